package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/project-submission-api/internal/models"
	"github.com/noah-isme/project-submission-api/pkg/jobs"
	"github.com/noah-isme/project-submission-api/pkg/mailer"
)

const jobTypeEmail = "email"

type notificationDispatcher interface {
	TryEnqueue(job jobs.Job) error
}

// reportNotifier is the side channel the lifecycle service informs after commits.
type reportNotifier interface {
	ReportSubmitted(ctx context.Context, report *models.Report)
	FeedbackRecorded(ctx context.Context, report *models.Report, feedback *models.Feedback)
}

// NotificationConfig carries the links embedded in outgoing mail.
type NotificationConfig struct {
	AppName string
	AppURL  string
}

// NotificationService turns lifecycle events into queued emails.
type NotificationService struct {
	queue  notificationDispatcher
	logger *zap.Logger
	cfg    NotificationConfig
}

// NewNotificationService constructs the notifier.
func NewNotificationService(queue notificationDispatcher, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AppName == "" {
		cfg.AppName = "Project Submission Portal"
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	return &NotificationService{queue: queue, logger: logger, cfg: cfg}
}

var submittedTemplate = template.Must(template.New("submitted").Parse(`<h2>New report submitted</h2>
<p>Dear {{.SupervisorName}},</p>
<p>{{.StudentName}} has submitted a new report for your review.</p>
<ul>
<li><strong>Title:</strong> {{.Title}}</li>
<li><strong>Stage:</strong> {{.Stage}}</li>
<li><strong>File:</strong> {{.FileName}}</li>
</ul>
<p><a href="{{.Link}}">Review the report</a></p>`))

var feedbackTemplate = template.Must(template.New("feedback").Parse(`<h2>Feedback on your report</h2>
<p>Dear {{.StudentName}},</p>
<p>{{.SupervisorName}} reviewed "{{.Title}}".</p>
<ul>
<li><strong>Decision:</strong> {{.Action}}</li>
<li><strong>Status:</strong> {{.Status}}</li>
</ul>
<blockquote>{{.Comment}}</blockquote>
<p><a href="{{.Link}}">Open the report</a></p>`))

// ReportSubmitted emails the supervisor about a new submission.
func (s *NotificationService) ReportSubmitted(ctx context.Context, report *models.Report) {
	if report == nil || report.SupervisorEmail == "" {
		return
	}
	data := map[string]string{
		"SupervisorName": report.SupervisorName,
		"StudentName":    report.StudentName,
		"Title":          report.Title,
		"Stage":          stageLabel(report.Stage),
		"FileName":       report.FileName,
		"Link":           s.reportLink(report.ID),
	}
	s.dispatch(ctx, submittedTemplate, data, mailer.Message{
		To:       []mail.Address{{Name: report.SupervisorName, Address: report.SupervisorEmail}},
		Subject:  "New report submission: " + report.Title,
		TextBody: fmt.Sprintf("%s submitted %q (%s). Review it at %s", report.StudentName, report.Title, stageLabel(report.Stage), data["Link"]),
	})
}

// FeedbackRecorded emails the student about new supervisor feedback.
func (s *NotificationService) FeedbackRecorded(ctx context.Context, report *models.Report, feedback *models.Feedback) {
	if report == nil || feedback == nil || report.StudentEmail == "" {
		return
	}
	data := map[string]string{
		"StudentName":    report.StudentName,
		"SupervisorName": report.SupervisorName,
		"Title":          report.Title,
		"Action":         strings.ReplaceAll(string(feedback.ActionTaken), "_", " "),
		"Status":         strings.ReplaceAll(string(report.Status), "_", " "),
		"Comment":        feedback.Comment,
		"Link":           s.reportLink(report.ID),
	}
	s.dispatch(ctx, feedbackTemplate, data, mailer.Message{
		To:       []mail.Address{{Name: report.StudentName, Address: report.StudentEmail}},
		Subject:  "Feedback received: " + report.Title,
		TextBody: fmt.Sprintf("%s left feedback on %q: %s", report.SupervisorName, report.Title, feedback.Comment),
	})
}

func (s *NotificationService) dispatch(_ context.Context, tmpl *template.Template, data interface{}, msg mailer.Message) {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		s.logger.Warn("failed to render notification", zap.String("template", tmpl.Name()), zap.Error(err))
		return
	}
	msg.HTMLBody = body.String()
	if s.queue == nil {
		return
	}
	if err := s.queue.TryEnqueue(jobs.Job{Type: jobTypeEmail, Payload: msg}); err != nil {
		s.logger.Warn("failed to enqueue notification", zap.String("template", tmpl.Name()), zap.Error(err))
	}
}

func (s *NotificationService) reportLink(reportID string) string {
	return s.cfg.AppURL + "/reports/" + reportID
}

func stageLabel(stage models.ReportStage) string {
	switch stage {
	case models.StageProgress1:
		return "Progress Report 1"
	case models.StageProgress2:
		return "Progress Report 2"
	case models.StageProgress3:
		return "Progress Report 3"
	case models.StageFinal:
		return "Final Report"
	default:
		return string(stage)
	}
}

// NotificationWorker delivers queued email jobs.
type NotificationWorker struct {
	mailer mailer.Mailer
	logger *zap.Logger
}

// NewNotificationWorker constructs a worker.
func NewNotificationWorker(m mailer.Mailer, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{mailer: m, logger: logger}
}

// Handle processes a queue job. Returning an error makes the queue retry it.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	if job.Type != jobTypeEmail {
		w.logger.Sugar().Warnw("dropping unknown notification job", "job_id", job.ID, "type", job.Type)
		return nil
	}
	msg, ok := job.Payload.(mailer.Message)
	if !ok {
		w.logger.Sugar().Warnw("dropping malformed notification job", "job_id", job.ID)
		return nil
	}
	if err := w.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %q: %w", msg.Subject, err)
	}
	w.logger.Sugar().Debugw("notification sent", "job_id", job.ID, "subject", msg.Subject, "attempt", job.Attempt)
	return nil
}
