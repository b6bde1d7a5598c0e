// Package pipeline derives dealer margins from a primary sales ledger and a
// secondary discount ledger.
//
// Every stage is a pure function from one ledger table to the next, and can be
// used on its own:
//
//	normalized, err := pipeline.NormalizeTax(primary, classification)
//	shares, err := pipeline.AggregateShares(normalized, classification)
//	joined, stats, err := pipeline.JoinDiscounts(shares, discounts)
//	margins, err := pipeline.ComputeMargin(joined)
//	final, err := pipeline.AppendAggregateRow(margins)
//
// Pipeline.Run composes them in that order, classifying the header once up front,
// and reports the failing stage through StageError.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marginreco/internal/classify"
	"marginreco/internal/ledger"
)

// TracerName is the instrumentation scope of pipeline spans
const TracerName = "marginreco.pipeline"

// Options configures a pipeline
type Options struct {
	// Rules is the classification rule table; empty means classify.DefaultRules.
	Rules []classify.Rule
	// AllowOverlap lets a column count in several share categories.
	AllowOverlap bool
	// DropColumns are removed from the primary ledger before classification.
	DropColumns []string
}

// Result is the outcome of a successful run
type Result struct {
	Ledger         *ledger.Table
	Classification *classify.Classification
	Join           JoinStats
	Stages         []StageState
}

// Records returns the number of ledger records, excluding the aggregate row
func (r *Result) Records() int {
	return r.Ledger.Len() - 1
}

// Pipeline runs the derivation stages in order
type Pipeline struct {
	classifier  *classify.Classifier
	dropColumns []string
	logger      *slog.Logger
	tracer      trace.Tracer
}

// New creates a pipeline
func New(opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		classifier:  classify.NewClassifier(opts.Rules, opts.AllowOverlap),
		dropColumns: opts.DropColumns,
		logger:      logger.With(slog.String("component", "pipeline")),
		tracer:      otel.Tracer(TracerName),
	}
}

// Run derives the margin ledger. Inputs are not modified.
func (p *Pipeline) Run(ctx context.Context, primary, secondary *ledger.Table) (*Result, error) {
	res := &Result{}

	stages := []Stage{
		{ID: StagePrepare, Name: "Validate and classify", Run: func(_ context.Context, in *ledger.Table) (*ledger.Table, error) {
			out := in.Clone()
			out.Drop(p.dropColumns...)
			if err := ledger.ValidatePrimary(out); err != nil {
				return nil, err
			}
			if err := ledger.ValidateSecondary(secondary); err != nil {
				return nil, err
			}
			cls, err := p.classifier.Classify(out.Columns())
			if err != nil {
				return nil, err
			}
			res.Classification = cls
			p.logger.InfoContext(ctx, "columns classified",
				slog.Any("categories", cls.Counts()),
				slog.Int("overlapping", cls.Overlapping()))
			return out, nil
		}},
		{ID: StageTaxNormalize, Name: "Tax normalization", Run: func(_ context.Context, in *ledger.Table) (*ledger.Table, error) {
			return NormalizeTax(in, res.Classification)
		}},
		{ID: StageShareAggregate, Name: "Share aggregation", Run: func(_ context.Context, in *ledger.Table) (*ledger.Table, error) {
			return AggregateShares(in, res.Classification)
		}},
		{ID: StageLedgerJoin, Name: "Discount ledger join", Run: func(_ context.Context, in *ledger.Table) (*ledger.Table, error) {
			out, stats, err := JoinDiscounts(in, secondary)
			res.Join = stats
			if err == nil && stats.Dropped > 0 {
				p.logger.WarnContext(ctx, "records without a discount ledger entry dropped",
					slog.Int("dropped", stats.Dropped),
					slog.Int("matched", stats.Matched))
			}
			return out, err
		}},
		{ID: StageMargin, Name: "Margin computation", Run: func(_ context.Context, in *ledger.Table) (*ledger.Table, error) {
			return ComputeMargin(in)
		}},
		{ID: StageAggregateRow, Name: "Aggregate row", Run: func(_ context.Context, in *ledger.Table) (*ledger.Table, error) {
			return AppendAggregateRow(in)
		}},
	}

	table := primary
	for _, st := range stages {
		out, state, err := p.runStage(ctx, st, table)
		res.Stages = append(res.Stages, state)
		if err != nil {
			return res, &StageError{Stage: st.ID, Cause: err}
		}
		table = out
	}

	res.Ledger = table
	return res, nil
}

func (p *Pipeline) runStage(ctx context.Context, st Stage, in *ledger.Table) (*ledger.Table, StageState, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.stage."+st.ID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("stage.id", st.ID),
			attribute.Int("stage.rows_in", in.Len()),
		),
	)
	defer span.End()

	state := StageState{ID: st.ID, Name: st.Name, Status: StageStatusPending, StartTime: time.Now(), RowsIn: in.Len()}
	out, err := st.Run(ctx, in)
	state.EndTime = time.Now()

	if err != nil {
		state.Status = StageStatusFailed
		state.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.ErrorContext(ctx, "stage failed",
			slog.String("stage", st.ID),
			slog.Duration("duration", state.Duration()),
			slog.String("error", err.Error()))
		return nil, state, err
	}

	state.Status = StageStatusCompleted
	state.RowsOut = out.Len()
	span.SetAttributes(attribute.Int("stage.rows_out", out.Len()))
	p.logger.DebugContext(ctx, "stage completed",
		slog.String("stage", st.ID),
		slog.Duration("duration", state.Duration()),
		slog.Int("rows_in", state.RowsIn),
		slog.Int("rows_out", state.RowsOut))
	return out, state, nil
}
