package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"marginreco/internal/config"
	"marginreco/internal/dataprocessing"
	"marginreco/internal/exporter"
	"marginreco/internal/infrastructure"
	"marginreco/internal/ledger"
	"marginreco/internal/pipeline"
	"marginreco/internal/report"
	"marginreco/internal/validation"
)

// Source locates one ledger worksheet. Reader is used when Path is empty.
type Source struct {
	Path   string
	Reader io.Reader
	Sheet  string
}

// ReportRequest describes one reconciliation run. Nil overrides fall back to config.
type ReportRequest struct {
	Primary        Source
	Secondary      Source
	AllowOverlap   *bool
	LastGroupTotal *bool
}

// ReportOutcome is the result of a successful run
type ReportOutcome struct {
	RunID          string                `json:"run_id"`
	Report         *report.Report        `json:"-"`
	Join           pipeline.JoinStats    `json:"join"`
	Classification map[string]int        `json:"classification"`
	Stages         []pipeline.StageState `json:"stages"`
	Destination    exporter.Destination  `json:"-"`
	Duration       time.Duration         `json:"duration"`
}

// Records is the number of ledger records, excluding the aggregate row
func (o *ReportOutcome) Records() int {
	return o.Report.Ledger.Len() - 1
}

// ReportService runs reconciliations
type ReportService struct {
	cfg      *config.Config
	exporter *exporter.WorkbookExporter
	files    *validation.FileValidator
	metrics  *infrastructure.RunMetrics
	logger   *slog.Logger
}

// NewReportService creates a report service. metrics may be nil.
func NewReportService(cfg *config.Config, metrics *infrastructure.RunMetrics, logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		cfg:      cfg,
		exporter: exporter.NewWorkbookExporter(logger),
		files:    validation.NewFileValidator(logger),
		metrics:  metrics,
		logger:   logger.With(slog.String("service", "report")),
	}
}

// SheetNames lists the worksheets of a ledger source
func (s *ReportService) SheetNames(src Source) ([]string, error) {
	switch {
	case src.Path != "":
		if err := s.files.ValidateWorkbookFile(src.Path); err != nil {
			return nil, err
		}
		return dataprocessing.SheetNames(src.Path)
	case src.Reader != nil:
		return dataprocessing.SheetNamesFrom(src.Reader)
	default:
		return nil, ErrNoSource
	}
}

// Generate reads both ledgers, derives the margin ledger and writes the workbooks to
// dest. The run ID is the context trace ID, created when absent.
func (s *ReportService) Generate(ctx context.Context, req ReportRequest, dest exporter.Destination) (*ReportOutcome, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	runID := infrastructure.GetTraceID(ctx)
	start := time.Now()

	outcome, err := s.generate(ctx, req, dest)
	obs := infrastructure.RunObservation{Duration: time.Since(start), Err: err}
	if err != nil {
		obs.FailedStage = pipeline.FailedStage(err)
		s.metrics.RecordRun(ctx, obs)
		s.logger.ErrorContext(ctx, "report run failed",
			slog.String("failed_stage", obs.FailedStage),
			slog.String("error", err.Error()))
		return nil, err
	}

	outcome.RunID = runID
	outcome.Duration = obs.Duration
	obs.Records = outcome.Records()
	obs.Dropped = outcome.Join.Dropped
	obs.Duplicates = outcome.Join.DuplicatesCollapsed
	obs.Diff = outcome.Report.Reconciliation.Diff.InexactFloat64()
	s.metrics.RecordRun(ctx, obs)

	s.logger.InfoContext(ctx, "report run completed",
		slog.Int("records", obs.Records),
		slog.Int("matched", outcome.Join.Matched),
		slog.Int("dropped", outcome.Join.Dropped),
		slog.String("total", outcome.Report.Reconciliation.Total.String()),
		slog.String("total_margin", outcome.Report.Reconciliation.TotalMargin.String()),
		slog.Duration("duration", obs.Duration))
	return outcome, nil
}

func (s *ReportService) generate(ctx context.Context, req ReportRequest, dest exporter.Destination) (*ReportOutcome, error) {
	primary, err := s.read(req.Primary, s.cfg.Ingest.HeaderRows)
	if err != nil {
		return nil, err
	}
	secondary, err := s.read(req.Secondary, s.cfg.Ingest.SecondaryHeaderRows)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "ledgers read",
		slog.Int("primary_rows", primary.Len()),
		slog.Int("primary_columns", len(primary.Columns())),
		slog.Int("secondary_rows", secondary.Len()))

	p := pipeline.New(pipeline.Options{
		Rules:        s.cfg.Classification.Rules,
		AllowOverlap: pick(req.AllowOverlap, s.cfg.Classification.AllowOverlap),
		DropColumns:  s.cfg.Ingest.DropColumns,
	}, s.logger)
	res, err := p.Run(ctx, primary, secondary)
	for _, st := range res.Stages {
		s.metrics.RecordStage(ctx, st.ID, st.Duration(), st.Status == pipeline.StageStatusCompleted)
	}
	if err != nil {
		return nil, err
	}

	rep, err := report.Build(res.Ledger, report.ReconcileOptions{
		LastGroupTotal: pick(req.LastGroupTotal, s.cfg.Reconcile.LastGroupTotal),
	})
	if err != nil {
		return nil, err
	}
	if rec := rep.Reconciliation; !rec.Consistent() {
		s.logger.WarnContext(ctx, "reconciliation mismatch",
			slog.String("total", rec.Total.String()),
			slog.String("total_margin", rec.TotalMargin.String()),
			slog.String("diff", rec.Diff.String()),
			slog.Bool("last_group_total", rec.LastGroupTotal))
	}

	if err := s.exporter.Export(rep, dest); err != nil {
		return nil, err
	}

	return &ReportOutcome{
		Report:         rep,
		Join:           res.Join,
		Classification: res.Classification.Counts(),
		Stages:         res.Stages,
		Destination:    dest,
	}, nil
}

func (s *ReportService) read(src Source, headerRows int) (*ledger.Table, error) {
	opts := dataprocessing.ReadOptions{Sheet: src.Sheet, HeaderRows: headerRows}
	switch {
	case src.Path != "":
		if err := s.files.ValidateWorkbookFile(src.Path); err != nil {
			return nil, err
		}
		return dataprocessing.ReadFile(src.Path, opts)
	case src.Reader != nil:
		return dataprocessing.Read(src.Reader, opts)
	default:
		return nil, ErrNoSource
	}
}

func pick(override *bool, def bool) bool {
	if override != nil {
		return *override
	}
	return def
}
