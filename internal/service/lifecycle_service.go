package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/project-submission-api/internal/access"
	"github.com/noah-isme/project-submission-api/internal/models"
	"github.com/noah-isme/project-submission-api/internal/repository"
	appErrors "github.com/noah-isme/project-submission-api/pkg/errors"
	"github.com/noah-isme/project-submission-api/pkg/storage"
)

type lifecycleReportStore interface {
	Create(ctx context.Context, report *models.Report) error
	FindByID(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error)
	ReplaceFile(ctx context.Context, rep repository.FileReplacement) (*models.Report, error)
	ApplyFeedback(ctx context.Context, feedback *models.Feedback, expectedVersion int) (*models.Report, error)
	AdvanceStage(ctx context.Context, id string, from, to models.ReportStage, expectedVersion int) (*models.Report, error)
	ListVersions(ctx context.Context, reportID string) ([]models.ReportVersion, error)
}

type lifecycleFeedbackStore interface {
	ListByReport(ctx context.Context, reportID string) ([]models.Feedback, error)
	CreateHOD(ctx context.Context, fb *models.HODFeedback) error
	ListHODByReport(ctx context.Context, reportID string) ([]models.HODFeedback, error)
}

type activeAssignmentFinder interface {
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Assignment, error)
}

type reportFileStore interface {
	Save(key string, r io.Reader) (int64, error)
	Open(key string) (*os.File, error)
	Delete(key string) error
}

type downloadSigner interface {
	Generate(reportID, key string) (string, time.Time, error)
	Parse(token string) (*storage.DownloadToken, error)
}

// ReportUpload carries an incoming report file.
type ReportUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// SubmitReportRequest is the metadata of a first submission.
type SubmitReportRequest struct {
	Title        string             `json:"title" validate:"required,max=255"`
	Stage        models.ReportStage `json:"stage" validate:"required"`
	SupervisorID string             `json:"supervisor_id" validate:"omitempty,uuid"`
}

// FeedbackRequest is a supervisor verdict. ExpectedVersion is the report
// version the supervisor reviewed; zero means the version current at read time.
type FeedbackRequest struct {
	Comment         string                `json:"comment" validate:"max=5000"`
	Action          models.FeedbackAction `json:"action" validate:"required,max=50"`
	ExpectedVersion int                   `json:"-"`
}

// ReportListRequest narrows a role-scoped report listing.
type ReportListRequest struct {
	Status       string
	Stage        string
	StudentID    string
	SupervisorID string
	Search       string
	Page         int
	PageSize     int
}

// ReportFileDownload bundles an open report file for streaming.
type ReportFileDownload struct {
	File     *os.File
	Filename string
	MimeType string
	Size     int64
	Inline   bool
}

// DownloadLink is a signed, time limited link to a report file.
type DownloadLink struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReportFileContent is the text of an editable report file.
type ReportFileContent struct {
	Content  string `json:"content"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Version  int    `json:"version"`
}

// LifecycleConfig tunes upload validation and link generation.
type LifecycleConfig struct {
	MaxFileSize       int64
	AllowedExtensions []string
	APIPrefix         string
}

// LifecycleService drives reports through submission, review and stage progression.
type LifecycleService struct {
	reports     lifecycleReportStore
	feedback    lifecycleFeedbackStore
	assignments activeAssignmentFinder
	files       reportFileStore
	signer      downloadSigner
	activity    activityRecorder
	notifier    reportNotifier
	policy      *storage.UploadPolicy
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         LifecycleConfig
}

// NewLifecycleService constructs the service with defaults.
func NewLifecycleService(reports lifecycleReportStore, feedback lifecycleFeedbackStore, assignments activeAssignmentFinder, files reportFileStore, signer downloadSigner, activity activityRecorder, notifier reportNotifier, validate *validator.Validate, logger *zap.Logger, cfg LifecycleConfig) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &LifecycleService{
		reports:     reports,
		feedback:    feedback,
		assignments: assignments,
		files:       files,
		signer:      signer,
		activity:    activity,
		notifier:    notifier,
		policy:      storage.NewUploadPolicy(cfg.MaxFileSize, cfg.AllowedExtensions),
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// Submit creates the first version of a report for the calling student,
// addressed to the supervisor of their active assignment.
func (s *LifecycleService) Submit(ctx context.Context, actor access.Actor, req SubmitReportRequest, upload *ReportUpload) (*models.Report, error) {
	if !access.CanPerform(actor, access.OpSubmit, access.Resource{StudentID: actor.ID}) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can submit reports")
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "title and stage are required")
	}
	if !req.Stage.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown report stage")
	}
	mimeType, err := s.checkUpload(upload)
	if err != nil {
		return nil, err
	}

	assignment, err := s.assignments.FindActiveByStudent(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no supervisor assigned yet; contact your level coordinator")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if req.SupervisorID != "" && req.SupervisorID != assignment.SupervisorID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reports can only be submitted to your assigned supervisor")
	}

	report := &models.Report{
		ID:           uuid.NewString(),
		StudentID:    actor.ID,
		SupervisorID: assignment.SupervisorID,
		Title:        req.Title,
		Stage:        req.Stage,
		FileName:     upload.Filename,
		MimeType:     mimeType,
	}
	report.FileKey = reportFileKey(report.ID, 1, upload.Filename)
	size, err := s.files.Save(report.FileKey, upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report file")
	}
	report.FileSize = size

	if err := s.reports.Create(ctx, report); err != nil {
		s.discardFile(report.FileKey)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report")
	}
	if stored, err := s.reports.FindByID(ctx, report.ID); err == nil {
		report = stored
	} else {
		s.logger.Warn("failed to reload submitted report", zap.String("report_id", report.ID), zap.Error(err))
	}

	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     models.ActivityReportSubmit,
		EntityType: models.EntityReport,
		EntityID:   report.ID,
		Details: map[string]interface{}{
			"title":         report.Title,
			"stage":         report.Stage,
			"supervisor_id": report.SupervisorID,
			"file_name":     report.FileName,
		},
	})
	s.notifier.ReportSubmitted(ctx, report)
	return report, nil
}

// Reupload replaces the file of the caller's report, bumping the version and
// resetting the status to pending. A non-zero expectedVersion must match the
// stored version.
func (s *LifecycleService) Reupload(ctx context.Context, actor access.Actor, reportID string, upload *ReportUpload, expectedVersion int) (*models.Report, error) {
	report, err := s.loadReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	// Other students' reports are reported as missing rather than forbidden.
	if !access.CanPerform(actor, access.OpReupload, access.ReportResource(report)) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	mimeType, err := s.checkUpload(upload)
	if err != nil {
		return nil, err
	}
	if expectedVersion == 0 {
		expectedVersion = report.Version
	}
	if expectedVersion != report.Version {
		return nil, staleVersionError()
	}

	file := models.ReportFile{
		Key:      reportFileKey(report.ID, report.Version+1, upload.Filename),
		Name:     upload.Filename,
		MimeType: mimeType,
	}
	size, err := s.files.Save(file.Key, upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report file")
	}
	file.Size = size

	updated, err := s.reports.ReplaceFile(ctx, repository.FileReplacement{
		ReportID:        report.ID,
		ExpectedVersion: expectedVersion,
		File:            file,
		ActorID:         actor.ID,
		Reason:          models.VersionReasonReupload,
		NewVersion:      true,
	})
	if err != nil {
		s.discardFile(file.Key)
		return nil, s.mapReportError(err, "re-upload report")
	}

	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     models.ActivityReportReupload,
		EntityType: models.EntityReport,
		EntityID:   report.ID,
		Details: map[string]interface{}{
			"old_version": report.Version,
			"new_version": updated.Version,
			"file_name":   file.Name,
		},
	})
	return updated, nil
}

// RecordFeedback appends supervisor feedback and moves the report to the
// status the action implies.
func (s *LifecycleService) RecordFeedback(ctx context.Context, actor access.Actor, reportID string, req FeedbackRequest) (*models.Report, *models.Feedback, error) {
	req.Action = models.FeedbackAction(strings.TrimSpace(string(req.Action)))
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "feedback action is required")
	}
	report, err := s.loadReport(ctx, reportID)
	if err != nil {
		return nil, nil, err
	}
	if !access.CanPerform(actor, access.OpRecordFeedback, access.ReportResource(report)) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned supervisor can review this report")
	}
	expected := req.ExpectedVersion
	if expected == 0 {
		expected = report.Version
	}

	fb := &models.Feedback{
		ReportID:       report.ID,
		SupervisorID:   actor.ID,
		SupervisorName: report.SupervisorName,
		Comment:        strings.TrimSpace(req.Comment),
		ActionTaken:    req.Action,
	}
	updated, err := s.reports.ApplyFeedback(ctx, fb, expected)
	if err != nil {
		return nil, nil, s.mapReportError(err, "record feedback")
	}

	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     models.ActivityReportFeedback,
		EntityType: models.EntityReport,
		EntityID:   report.ID,
		Details: map[string]interface{}{
			"action":     fb.ActionTaken,
			"new_status": updated.Status,
			"version":    updated.Version,
		},
	})
	s.notifier.FeedbackRecorded(ctx, updated, fb)
	return updated, fb, nil
}

// AdvanceStage moves an approved report to the next stage.
func (s *LifecycleService) AdvanceStage(ctx context.Context, actor access.Actor, reportID string, expectedVersion int) (*models.Report, error) {
	report, err := s.loadReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !access.CanPerform(actor, access.OpAdvanceStage, access.ReportResource(report)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned supervisor can advance this report")
	}
	if report.Status != models.StatusApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "report must be approved before advancing")
	}
	next, ok := report.Stage.Next()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "report is already at the final stage")
	}
	if expectedVersion == 0 {
		expectedVersion = report.Version
	}

	updated, err := s.reports.AdvanceStage(ctx, report.ID, report.Stage, next, expectedVersion)
	if err != nil {
		return nil, s.mapReportError(err, "advance report stage")
	}

	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     models.ActivityStageAdvance,
		EntityType: models.EntityReport,
		EntityID:   report.ID,
		Details:    map[string]interface{}{"from": report.Stage, "to": next},
	})
	return updated, nil
}

// ViewReport returns a report with its feedback trail and archived versions.
func (s *LifecycleService) ViewReport(ctx context.Context, actor access.Actor, reportID string) (*models.ReportDetail, error) {
	report, err := s.visibleReport(ctx, actor, reportID)
	if err != nil {
		return nil, err
	}
	feedback, err := s.feedback.ListByReport(ctx, report.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feedback")
	}
	hodFeedback, err := s.feedback.ListHODByReport(ctx, report.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hod feedback")
	}
	versions, err := s.reports.ListVersions(ctx, report.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report versions")
	}
	return &models.ReportDetail{Report: report, Feedback: feedback, HODFeedback: hodFeedback, Versions: versions}, nil
}

// ListReports returns the reports visible to the actor.
func (s *LifecycleService) ListReports(ctx context.Context, actor access.Actor, req ReportListRequest) ([]models.Report, *models.Pagination, error) {
	filter := models.ReportFilter{
		StudentID:    req.StudentID,
		SupervisorID: req.SupervisorID,
		Search:       strings.TrimSpace(req.Search),
		Page:         req.Page,
		PageSize:     req.PageSize,
	}
	if req.Status != "" {
		status := models.ReportStatus(req.Status)
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown report status")
		}
		filter.Status = &status
	}
	if req.Stage != "" {
		stage := models.ReportStage(req.Stage)
		if !stage.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown report stage")
		}
		filter.Stage = &stage
	}

	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.ID
	case models.RoleSupervisor:
		filter.SupervisorID = actor.ID
	case models.RoleLevelCoordinator:
		if actor.Level == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "coordinator has no level")
		}
		filter.Level = actor.Level
	case models.RoleHOD:
		if actor.Department == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "head of department has no department")
		}
		filter.Department = actor.Department
	case models.RoleGeneralAdmin:
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	reports, total, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	return reports, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// RecordHODFeedback appends an advisory comment from the student's head of department.
func (s *LifecycleService) RecordHODFeedback(ctx context.Context, actor access.Actor, reportID, comment string) (*models.HODFeedback, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment is required")
	}
	report, err := s.loadReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !access.CanPerform(actor, access.OpHODFeedback, access.ReportResource(report)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report is outside your department")
	}
	fb := &models.HODFeedback{ReportID: report.ID, HODID: actor.ID, Comment: comment}
	if err := s.feedback.CreateHOD(ctx, fb); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record hod feedback")
	}
	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     models.ActivityReportHODFeedback,
		EntityType: models.EntityReport,
		EntityID:   report.ID,
	})
	return fb, nil
}

// OpenFile opens the current file of a visible report. Inline is honoured only
// for formats browsers can preview.
func (s *LifecycleService) OpenFile(ctx context.Context, actor access.Actor, reportID string, inline bool) (*ReportFileDownload, error) {
	report, err := s.visibleReport(ctx, actor, reportID)
	if err != nil {
		return nil, err
	}
	return s.openObject(ctx, actor, report, report.File(), inline)
}

// DownloadURL issues a signed link to the current file of a visible report.
func (s *LifecycleService) DownloadURL(ctx context.Context, actor access.Actor, reportID string) (*DownloadLink, error) {
	report, err := s.visibleReport(ctx, actor, reportID)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(report.ID, report.FileKey)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	link := fmt.Sprintf("%s/reports/%s/download?token=%s", s.cfg.APIPrefix, url.PathEscape(report.ID), url.QueryEscape(token))
	return &DownloadLink{URL: link, Token: token, ExpiresAt: expiresAt}, nil
}

// DownloadWithToken resolves a signed link. The token pins the exact stored
// object, so links issued before a re-upload keep serving the older file.
func (s *LifecycleService) DownloadWithToken(ctx context.Context, actor access.Actor, reportID, token string) (*ReportFileDownload, error) {
	parsed, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	if parsed.ReportID != reportID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	report, err := s.visibleReport(ctx, actor, reportID)
	if err != nil {
		return nil, err
	}
	file := report.File()
	if parsed.Key != file.Key {
		file = models.ReportFile{Key: parsed.Key, Name: fileNameFromKey(parsed.Key)}
		file.MimeType, _ = storage.DetectMIME(file.Name, nil)
	}
	return s.openObject(ctx, actor, report, file, false)
}

// FileContent returns the text of an editable report file for its supervisor.
func (s *LifecycleService) FileContent(ctx context.Context, actor access.Actor, reportID string) (*ReportFileContent, error) {
	report, err := s.editableReport(ctx, actor, reportID)
	if err != nil {
		return nil, err
	}
	f, err := s.files.Open(report.FileKey)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report file is missing")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report file")
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, s.policy.MaxSize()+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read report file")
	}
	if len(content) > 0 && !storage.IsText(content) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file content is not text")
	}
	return &ReportFileContent{
		Content:  string(content),
		FileName: report.FileName,
		MimeType: report.MimeType,
		Version:  report.Version,
	}, nil
}

// EditFileContent stores supervisor edits as a new object. The superseded file
// is archived; version and status stay as they are.
func (s *LifecycleService) EditFileContent(ctx context.Context, actor access.Actor, reportID, content string, expectedVersion int) (*models.Report, error) {
	report, err := s.editableReport(ctx, actor, reportID)
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > s.policy.MaxSize() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content exceeds maximum file size")
	}
	if expectedVersion == 0 {
		expectedVersion = report.Version
	}
	if expectedVersion != report.Version {
		return nil, staleVersionError()
	}

	file := models.ReportFile{
		Key:      reportFileKey(report.ID, report.Version, report.FileName),
		Name:     report.FileName,
		MimeType: report.MimeType,
	}
	size, err := s.files.Save(file.Key, bytes.NewReader([]byte(content)))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store edited file")
	}
	file.Size = size

	updated, err := s.reports.ReplaceFile(ctx, repository.FileReplacement{
		ReportID:        report.ID,
		ExpectedVersion: expectedVersion,
		File:            file,
		ActorID:         actor.ID,
		Reason:          models.VersionReasonEdit,
	})
	if err != nil {
		s.discardFile(file.Key)
		return nil, s.mapReportError(err, "save edited file")
	}

	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     models.ActivityFileEdit,
		EntityType: models.EntityReport,
		EntityID:   report.ID,
		Details: map[string]interface{}{
			"file_name": report.FileName,
			"old_size":  report.FileSize,
			"new_size":  size,
		},
	})
	return updated, nil
}

func (s *LifecycleService) loadReport(ctx context.Context, id string) (*models.Report, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "report id is required")
	}
	report, err := s.reports.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return report, nil
}

func (s *LifecycleService) visibleReport(ctx context.Context, actor access.Actor, id string) (*models.Report, error) {
	report, err := s.loadReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanPerform(actor, access.OpViewReport, access.ReportResource(report)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this report")
	}
	return report, nil
}

func (s *LifecycleService) editableReport(ctx context.Context, actor access.Actor, id string) (*models.Report, error) {
	report, err := s.loadReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanPerform(actor, access.OpEditFile, access.ReportResource(report)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned supervisor can edit this file")
	}
	if !storage.IsEditable(storage.Extension(report.FileName)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type cannot be edited")
	}
	return report, nil
}

func (s *LifecycleService) openObject(ctx context.Context, actor access.Actor, report *models.Report, file models.ReportFile, inline bool) (*ReportFileDownload, error) {
	f, err := s.files.Open(file.Key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report file is missing")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat report file")
	}
	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     models.ActivityFileDownload,
		EntityType: models.EntityReport,
		EntityID:   report.ID,
		Details:    map[string]interface{}{"file_name": file.Name, "inline": inline},
	})
	return &ReportFileDownload{
		File:     f,
		Filename: file.Name,
		MimeType: file.MimeType,
		Size:     info.Size(),
		Inline:   inline && storage.IsPreviewable(storage.Extension(file.Name)),
	}, nil
}

func (s *LifecycleService) checkUpload(upload *ReportUpload) (string, error) {
	if upload == nil || upload.Content == nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if _, err := s.policy.Check(upload.Filename, upload.Size); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	mimeType, err := storage.DetectMIME(upload.Filename, upload.Content)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect upload")
	}
	return mimeType, nil
}

func (s *LifecycleService) discardFile(key string) {
	if err := s.files.Delete(key); err != nil {
		s.logger.Warn("failed to remove orphaned report file", zap.String("key", key), zap.Error(err))
	}
}

func (s *LifecycleService) mapReportError(err error, action string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "report not found")
	case errors.Is(err, repository.ErrVersionConflict):
		return staleVersionError()
	case errors.Is(err, repository.ErrLockBusy):
		return appErrors.Clone(appErrors.ErrConflict, "another file update for this report is in progress")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to "+action)
	}
}

func staleVersionError() error {
	return appErrors.Clone(appErrors.ErrConflict, "report changed since it was read; reload and retry")
}

// reportFileKey builds an immutable object key. The random segment keeps
// concurrent writers for the same version from sharing an object.
func reportFileKey(reportID string, version int, filename string) string {
	return fmt.Sprintf("reports/%s/v%d/%s-%s", reportID, version, uuid.NewString()[:8], storage.SanitizeFilename(filename))
}

func fileNameFromKey(key string) string {
	base := key[strings.LastIndex(key, "/")+1:]
	if i := strings.Index(base, "-"); i >= 0 && i+1 < len(base) {
		return base[i+1:]
	}
	return base
}
