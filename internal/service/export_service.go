package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/project-submission-api/internal/access"
	"github.com/noah-isme/project-submission-api/internal/models"
	appErrors "github.com/noah-isme/project-submission-api/pkg/errors"
	"github.com/noah-isme/project-submission-api/pkg/export"
)

type progressRepository interface {
	ProgressOverview(ctx context.Context, filter models.ProgressFilter) ([]models.ProgressRow, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ProgressRequest selects the students included in a progress overview.
type ProgressRequest struct {
	Department string
	Level      string
	Status     string
}

// ExportResult is a rendered progress document.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
	Rows        int
}

// ExportService builds progress overviews and renders them as CSV or PDF.
type ExportService struct {
	repo     progressRepository
	activity activityRecorder
	csv      datasetRenderer
	pdf      datasetRenderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(repo progressRepository, activity activityRecorder, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{repo: repo, activity: activity, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// Overview returns one row per student in the caller's scope with their latest report.
func (s *ExportService) Overview(ctx context.Context, actor access.Actor, req ProgressRequest) ([]models.ProgressRow, error) {
	filter, err := progressScope(actor, req)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ProgressOverview(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress overview")
	}
	return rows, nil
}

// Export renders the caller's progress overview in the requested format.
func (s *ExportService) Export(ctx context.Context, actor access.Actor, req ProgressRequest, rawFormat string) (*ExportResult, error) {
	format, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(rawFormat)))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	rows, err := s.Overview(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	generatedAt := s.now().UTC()
	dataset := buildProgressDataset(rows, actor, generatedAt)

	var payload []byte
	switch format {
	case export.FormatPDF:
		payload, err = s.pdf.Render(dataset)
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     models.ActivityProgressExport,
		EntityType: models.EntityReport,
		Details: map[string]interface{}{
			"format": string(format),
			"rows":   len(rows),
			"scope":  dataset.Subtitle,
		},
	})
	s.logger.Debug("progress export rendered", zap.String("format", string(format)), zap.Int("rows", len(rows)))

	return &ExportResult{
		Filename:    fmt.Sprintf("progress-%s.%s", generatedAt.Format("20060102-150405"), format),
		ContentType: format.ContentType(),
		Payload:     payload,
		Rows:        len(rows),
	}, nil
}

func progressScope(actor access.Actor, req ProgressRequest) (models.ProgressFilter, error) {
	filter := models.ProgressFilter{
		Department: strings.TrimSpace(req.Department),
		Level:      strings.TrimSpace(req.Level),
	}
	if req.Status != "" {
		status := models.ReportStatus(strings.ToLower(req.Status))
		if !status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
		}
		filter.Status = &status
	}

	switch actor.Role {
	case models.RoleLevelCoordinator:
		filter.Level = actor.Level
	case models.RoleHOD:
		filter.Department = actor.Department
	}
	if !access.CanPerform(actor, access.OpExportProgress, access.Resource{Department: filter.Department, Level: filter.Level}) {
		return filter, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view progress for this scope")
	}
	return filter, nil
}

func buildProgressDataset(rows []models.ProgressRow, actor access.Actor, generatedAt time.Time) export.Dataset {
	subtitle := "All departments"
	switch {
	case actor.Role == models.RoleHOD:
		subtitle = "Department " + actor.Department
	case actor.Role == models.RoleLevelCoordinator:
		subtitle = "Level " + actor.Level
	}

	data := export.Dataset{
		Title:       "Project progress overview",
		Subtitle:    subtitle,
		Headers:     []string{"Student", "Reg. No.", "Department", "Level", "Supervisor", "Report", "Stage", "Status", "Version", "Updated"},
		Rows:        make([]map[string]string, 0, len(rows)),
		GeneratedAt: generatedAt,
	}
	for _, row := range rows {
		record := map[string]string{
			"Student":    row.StudentName,
			"Reg. No.":   derefString(row.RegistrationNumber),
			"Department": row.Department,
			"Level":      row.Level,
			"Supervisor": derefString(row.SupervisorName),
			"Report":     derefString(row.ReportTitle),
		}
		if row.Stage != nil {
			record["Stage"] = string(*row.Stage)
		}
		if row.Status != nil {
			record["Status"] = string(*row.Status)
		}
		if row.Version != nil {
			record["Version"] = strconv.Itoa(*row.Version)
		}
		if row.UpdatedAt != nil {
			record["Updated"] = row.UpdatedAt.UTC().Format("2006-01-02 15:04")
		}
		data.Rows = append(data.Rows, record)
	}
	return data
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
