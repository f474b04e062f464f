package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/project-submission-api/internal/access"
	"github.com/noah-isme/project-submission-api/internal/models"
	"github.com/noah-isme/project-submission-api/internal/service"
	appErrors "github.com/noah-isme/project-submission-api/pkg/errors"
	"github.com/noah-isme/project-submission-api/pkg/response"
)

type reportService interface {
	Submit(ctx context.Context, actor access.Actor, req service.SubmitReportRequest, upload *service.ReportUpload) (*models.Report, error)
	Reupload(ctx context.Context, actor access.Actor, reportID string, upload *service.ReportUpload, expectedVersion int) (*models.Report, error)
	RecordFeedback(ctx context.Context, actor access.Actor, reportID string, req service.FeedbackRequest) (*models.Report, *models.Feedback, error)
	AdvanceStage(ctx context.Context, actor access.Actor, reportID string, expectedVersion int) (*models.Report, error)
	ViewReport(ctx context.Context, actor access.Actor, reportID string) (*models.ReportDetail, error)
	ListReports(ctx context.Context, actor access.Actor, req service.ReportListRequest) ([]models.Report, *models.Pagination, error)
	RecordHODFeedback(ctx context.Context, actor access.Actor, reportID, comment string) (*models.HODFeedback, error)
	OpenFile(ctx context.Context, actor access.Actor, reportID string, inline bool) (*service.ReportFileDownload, error)
	DownloadURL(ctx context.Context, actor access.Actor, reportID string) (*service.DownloadLink, error)
	DownloadWithToken(ctx context.Context, actor access.Actor, reportID, token string) (*service.ReportFileDownload, error)
	FileContent(ctx context.Context, actor access.Actor, reportID string) (*service.ReportFileContent, error)
	EditFileContent(ctx context.Context, actor access.Actor, reportID, content string, expectedVersion int) (*models.Report, error)
}

// ReportHandler exposes the report submission lifecycle over HTTP.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

type feedbackPayload struct {
	Comment string                `json:"comment"`
	Action  models.FeedbackAction `json:"action"`
}

type hodFeedbackPayload struct {
	Comment string `json:"comment"`
}

type contentPayload struct {
	Content string `json:"content"`
}

type feedbackResult struct {
	Report   *models.Report   `json:"report"`
	Feedback *models.Feedback `json:"feedback"`
}

// Submit godoc
// @Summary Submit a report
// @Description Students upload the first version of a stage report to their supervisor
// @Tags Reports
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Report title"
// @Param stage formData string true "Stage"
// @Param supervisor_id formData string false "Expected supervisor"
// @Param file formData file true "Report file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	upload, closeFn, err := uploadFromForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn()

	req := service.SubmitReportRequest{
		Title:        strings.TrimSpace(c.PostForm("title")),
		Stage:        models.ReportStage(strings.TrimSpace(c.PostForm("stage"))),
		SupervisorID: strings.TrimSpace(c.PostForm("supervisor_id")),
	}
	report, err := h.service.Submit(c.Request.Context(), actor, req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Versioned(c, http.StatusCreated, report, report.Version)
}

// List godoc
// @Summary List reports
// @Description Lists the reports visible to the caller's role
// @Tags Reports
// @Produce json
// @Param status query string false "Status filter"
// @Param stage query string false "Stage filter"
// @Param search query string false "Title or student search"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	req := service.ReportListRequest{
		Status:       c.Query("status"),
		Stage:        c.Query("stage"),
		StudentID:    c.Query("student_id"),
		SupervisorID: c.Query("supervisor_id"),
		Search:       c.Query("search"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		req.PageSize = size
	}

	reports, pagination, err := h.service.ListReports(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, pagination)
}

// Get godoc
// @Summary Report detail
// @Description Returns a report with its feedback trail and archived versions
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.service.ViewReport(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Versioned(c, http.StatusOK, detail, detail.Report.Version)
}

// Reupload godoc
// @Summary Replace report file
// @Description Students upload a new version after feedback. Send the version you saw in If-Match.
// @Tags Reports
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Report ID"
// @Param If-Match header string false "Expected report version"
// @Param file formData file true "Report file"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reports/{id}/file [put]
func (h *ReportHandler) Reupload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	expected, err := expectedVersion(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	upload, closeFn, err := uploadFromForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn()

	report, err := h.service.Reupload(c.Request.Context(), actor, c.Param("id"), upload, expected)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Versioned(c, http.StatusOK, report, report.Version)
}

// Feedback godoc
// @Summary Record supervisor feedback
// @Description Attaches a verdict to the report version named in If-Match
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param If-Match header string false "Reviewed report version"
// @Param payload body feedbackPayload true "Feedback"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reports/{id}/feedback [post]
func (h *ReportHandler) Feedback(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	expected, err := expectedVersion(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var payload feedbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feedback payload"))
		return
	}

	report, feedback, err := h.service.RecordFeedback(c.Request.Context(), actor, c.Param("id"), service.FeedbackRequest{
		Comment:         payload.Comment,
		Action:          payload.Action,
		ExpectedVersion: expected,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Versioned(c, http.StatusCreated, feedbackResult{Report: report, Feedback: feedback}, report.Version)
}

// Advance godoc
// @Summary Advance report stage
// @Description Moves an approved report to the next stage
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Param If-Match header string false "Expected report version"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /reports/{id}/advance [post]
func (h *ReportHandler) Advance(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	expected, err := expectedVersion(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.service.AdvanceStage(c.Request.Context(), actor, c.Param("id"), expected)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Versioned(c, http.StatusOK, report, report.Version)
}

// HODFeedback godoc
// @Summary Record head of department remark
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body hodFeedbackPayload true "Remark"
// @Success 201 {object} response.Envelope
// @Router /reports/{id}/hod-feedback [post]
func (h *ReportHandler) HODFeedback(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload hodFeedbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	feedback, err := h.service.RecordHODFeedback(c.Request.Context(), actor, c.Param("id"), payload.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, feedback)
}

// File godoc
// @Summary Stream report file
// @Tags Reports
// @Produce octet-stream
// @Param id path string true "Report ID"
// @Param inline query bool false "Preview in browser when supported"
// @Success 200 {file} file
// @Router /reports/{id}/file [get]
func (h *ReportHandler) File(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	inline, _ := strconv.ParseBool(c.DefaultQuery("inline", "false"))
	download, err := h.service.OpenFile(c.Request.Context(), actor, c.Param("id"), inline)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()
	response.Attachment(c, download.Filename, download.MimeType, download.Size, download.File, download.Inline)
}

// DownloadLink godoc
// @Summary Issue signed download link
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/download-link [post]
func (h *ReportHandler) DownloadLink(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	link, err := h.service.DownloadURL(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download through signed link
// @Tags Reports
// @Produce octet-stream
// @Param id path string true "Report ID"
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /reports/{id}/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.service.DownloadWithToken(c.Request.Context(), actor, c.Param("id"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()
	response.Attachment(c, download.Filename, download.MimeType, download.Size, download.File, false)
}

// Content godoc
// @Summary Read editable report text
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/content [get]
func (h *ReportHandler) Content(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	content, err := h.service.FileContent(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Versioned(c, http.StatusOK, content, content.Version)
}

// EditContent godoc
// @Summary Edit report text in place
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param If-Match header string false "Expected report version"
// @Param payload body contentPayload true "New content"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reports/{id}/content [put]
func (h *ReportHandler) EditContent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	expected, err := expectedVersion(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var payload contentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.service.EditFileContent(c.Request.Context(), actor, c.Param("id"), payload.Content, expected)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Versioned(c, http.StatusOK, report, report.Version)
}

// uploadFromForm reads the "file" part of a multipart request. The returned
// func closes the part.
func uploadFromForm(c *gin.Context) (*service.ReportUpload, func(), error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required")
	}
	file, err := header.Open()
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file could not be read")
	}
	upload := &service.ReportUpload{Filename: header.Filename, Size: header.Size, Content: file}
	return upload, func() { _ = file.Close() }, nil
}

// expectedVersion reads the version a client last saw from If-Match, falling
// back to the expected_version query parameter. Zero means not supplied.
func expectedVersion(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.GetHeader("If-Match"))
	if raw == "" {
		raw = strings.TrimSpace(c.Query("expected_version"))
	}
	if raw == "" || raw == "*" {
		return 0, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	version, err := strconv.Atoi(raw)
	if err != nil || version < 1 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "If-Match must carry a report version")
	}
	return version, nil
}
