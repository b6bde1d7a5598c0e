package http

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"marginreco/internal/config"
	apperrors "marginreco/internal/errors"
	"marginreco/internal/middleware"
	"marginreco/internal/pipeline"
	"marginreco/internal/services"
	"marginreco/internal/validation"
)

const (
	// multipartMemory is kept in memory while parsing uploads; the rest spills to disk
	multipartMemory = 8 << 20
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	reportsPath     = "/api/v1/reports"
)

// ReportHandler serves report generation and artifact downloads
type ReportHandler struct {
	service      *services.ReportService
	store        *services.ArtifactStore
	validator    *middleware.Validator
	files        *validation.FileValidator
	maxUpload    int64
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewReportHandler creates a report handler
func NewReportHandler(
	service *services.ReportService,
	store *services.ArtifactStore,
	maxUpload int64,
	logger *slog.Logger,
	errorHandler *apperrors.ErrorHandler,
) *ReportHandler {
	return &ReportHandler{
		service:      service,
		store:        store,
		validator:    middleware.NewValidator(logger),
		files:        validation.NewFileValidator(logger),
		maxUpload:    maxUpload,
		logger:       logger.With(slog.String("component", "report_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the report routes
func (h *ReportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(middleware.ContentTypeValidator(h.errorHandler, "multipart/form-data")).Post("/", h.CreateReport)
	r.Get("/{id}/{kind}", h.Download)
	r.Delete("/{id}", h.DeleteReport)
	return r
}

// reportForm holds the non-file fields of a report upload
type reportForm struct {
	PrimarySheet   string `form:"primary_sheet" validate:"max=31"`
	SecondarySheet string `form:"secondary_sheet" validate:"max=31"`
	AllowOverlap   string `form:"allow_overlap" validate:"omitempty,oneof=true false 1 0"`
	LastGroupTotal string `form:"last_group_total" validate:"omitempty,oneof=true false 1 0"`
}

type downloadParams struct {
	ID   string `form:"id" validate:"required,uuid"`
	Kind string `form:"kind" validate:"required,oneof=complete trimmed"`
	Name string `form:"name" validate:"max=255,filename"`
}

// ReconciliationSummary carries the totals of the Difference sheet as decimal strings
type ReconciliationSummary struct {
	Total          string `json:"total"`
	TotalMargin    string `json:"total_margin"`
	Diff           string `json:"diff"`
	Consistent     bool   `json:"consistent"`
	LastGroupTotal bool   `json:"last_group_total"`
}

// ReportResponse is returned by POST /api/v1/reports
type ReportResponse struct {
	ID             string                `json:"id"`
	Records        int                   `json:"records"`
	Join           pipeline.JoinStats    `json:"join"`
	Classification map[string]int        `json:"classification"`
	Reconciliation ReconciliationSummary `json:"reconciliation"`
	Stages         []pipeline.StageState `json:"stages"`
	Links          map[string]string     `json:"links"`
	DurationMS     int64                 `json:"duration_ms"`
	ExpiresAt      time.Time             `json:"expires_at"`
}

// SheetsResponse is returned by POST /api/v1/sheets
type SheetsResponse struct {
	Sheets []string `json:"sheets"`
}

// ListSheets handles POST /api/v1/sheets
func (h *ReportHandler) ListSheets(w http.ResponseWriter, r *http.Request) {
	if err := h.parseUpload(w, r); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	file, err := h.formFile(r, "file")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer file.Close()

	sheets, err := h.service.SheetNames(services.Source{Reader: file})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, SheetsResponse{Sheets: sheets})
}

// CreateReport handles POST /api/v1/reports. The run is synchronous; the response
// links to both workbooks, which stay downloadable until the report expires.
func (h *ReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.parseUpload(w, r); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	form := reportForm{
		PrimarySheet:   r.FormValue("primary_sheet"),
		SecondarySheet: r.FormValue("secondary_sheet"),
		AllowOverlap:   r.FormValue("allow_overlap"),
		LastGroupTotal: r.FormValue("last_group_total"),
	}
	if err := h.validator.ValidateStruct(form); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	primary, err := h.formFile(r, "primary")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer primary.Close()
	secondary, err := h.formFile(r, "secondary")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer secondary.Close()

	artifact, err := h.store.Reserve()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	outcome, err := h.service.Generate(ctx, services.ReportRequest{
		Primary:        services.Source{Reader: primary, Sheet: form.PrimarySheet},
		Secondary:      services.Source{Reader: secondary, Sheet: form.SecondarySheet},
		AllowOverlap:   optionalBool(form.AllowOverlap),
		LastGroupTotal: optionalBool(form.LastGroupTotal),
	}, artifact.Destination)
	if err != nil {
		h.store.Discard(artifact)
		h.errorHandler.HandleError(w, r, err)
		return
	}
	artifact.Outcome = outcome
	h.store.Put(artifact)

	h.logger.InfoContext(ctx, "report created",
		slog.String("report_id", artifact.ID),
		slog.Int("records", outcome.Records()))

	rec := outcome.Report.Reconciliation
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ReportResponse{
		ID:             artifact.ID,
		Records:        outcome.Records(),
		Join:           outcome.Join,
		Classification: outcome.Classification,
		Reconciliation: ReconciliationSummary{
			Total:          rec.Total.String(),
			TotalMargin:    rec.TotalMargin.String(),
			Diff:           rec.Diff.String(),
			Consistent:     rec.Consistent(),
			LastGroupTotal: rec.LastGroupTotal,
		},
		Stages: outcome.Stages,
		Links: map[string]string{
			services.ArtifactComplete: downloadLink(artifact.ID, services.ArtifactComplete),
			services.ArtifactTrimmed:  downloadLink(artifact.ID, services.ArtifactTrimmed),
		},
		DurationMS: outcome.Duration.Milliseconds(),
		ExpiresAt:  artifact.ExpiresAt,
	})
}

// Download handles GET /api/v1/reports/{id}/{kind}
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	params := downloadParams{
		ID:   chi.URLParam(r, "id"),
		Kind: chi.URLParam(r, "kind"),
		Name: r.URL.Query().Get("name"),
	}
	if err := h.validator.ValidateStruct(params); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	artifact, release, err := h.store.Open(params.ID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer release()
	path, err := artifact.Path(params.Kind)
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.NewAppValidationError(err.Error()))
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = apperrors.NewNotFoundError(fmt.Sprintf("report %s", params.ID))
		} else {
			err = apperrors.NewArtifactIOError("failed to open workbook", err)
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer f.Close()

	def := config.DefaultCompleteName
	if params.Kind == services.ArtifactTrimmed {
		def = config.DefaultTrimmedName
	}
	name := config.SanitizeDownloadName(params.Name, def)

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, artifact.CreatedAt, f)
}

// DeleteReport handles DELETE /api/v1/reports/{id}
func (h *ReportHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(id); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "report deleted", slog.String("report_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// parseUpload bounds the request body and parses the multipart form
func (h *ReportHandler) parseUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.NewAppValidationError(
				fmt.Sprintf("upload exceeds the limit of %d bytes", tooLarge.Limit)).
				WithContext("max_upload_bytes", tooLarge.Limit)
		}
		return apperrors.NewAppError(apperrors.ErrTypeValidation, "invalid multipart upload", err)
	}
	return nil
}

// formFile opens an uploaded workbook after checking its name and signature
func (h *ReportHandler) formFile(r *http.Request, field string) (multipart.File, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("%s workbook is required", field)).
				WithContext("field", field)
		}
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation, fmt.Sprintf("invalid %s upload", field), err)
	}
	if err := h.files.ValidateWorkbookUpload(header.Filename, file); err != nil {
		file.Close()
		return nil, err
	}
	return file, nil
}

func optionalBool(s string) *bool {
	if s == "" {
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil
	}
	return &b
}

func downloadLink(id, kind string) string {
	return fmt.Sprintf("%s/%s/%s", reportsPath, id, kind)
}
