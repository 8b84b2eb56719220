package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/stellify/stellify/core/graph"
	"github.com/stellify/stellify/core/invariant"
	"github.com/stellify/stellify/core/recordfmt"
	"github.com/stellify/stellify/runtime/lowering"
	"github.com/stellify/stellify/runtime/parser"
	"github.com/stellify/stellify/runtime/template"
)

const instrumentation = "github.com/stellify/stellify/runtime/export"

// Opt configures an Exporter.
type Opt func(*config)

type config struct {
	logger      *slog.Logger
	concurrency int
	tracer      trace.Tracer
	meter       metric.Meter
}

// WithLogger sets the logger for per-unit progress and failures.
func WithLogger(l *slog.Logger) Opt {
	return func(c *config) {
		c.logger = l
	}
}

// WithConcurrency bounds how many units are lowered at once. Values below
// one select runtime.NumCPU().
func WithConcurrency(n int) Opt {
	return func(c *config) {
		c.concurrency = n
	}
}

// WithTracer replaces the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Opt {
	return func(c *config) {
		c.tracer = t
	}
}

// WithMeter replaces the global OpenTelemetry meter.
func WithMeter(m metric.Meter) Opt {
	return func(c *config) {
		c.meter = m
	}
}

// Exporter lowers batches of units. It is safe for concurrent use when its
// Lowerer's id source is.
type Exporter struct {
	lowerer *lowering.Lowerer
	cfg     config

	units    metric.Int64Counter
	failures metric.Int64Counter
	records  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewExporter creates an Exporter lowering units with l.
func NewExporter(l *lowering.Lowerer, opts ...Opt) (*Exporter, error) {
	invariant.NotNil(l, "lowerer")
	cfg := config{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.concurrency < 1 {
		cfg.concurrency = runtime.NumCPU()
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(instrumentation)
	}
	if cfg.meter == nil {
		cfg.meter = otel.Meter(instrumentation)
	}

	e := &Exporter{lowerer: l, cfg: cfg}
	var err error
	if e.units, err = cfg.meter.Int64Counter("stellify.export.units",
		metric.WithDescription("Units lowered")); err != nil {
		return nil, fmt.Errorf("create units counter: %w", err)
	}
	if e.failures, err = cfg.meter.Int64Counter("stellify.export.failures",
		metric.WithDescription("Units that failed to lower")); err != nil {
		return nil, fmt.Errorf("create failures counter: %w", err)
	}
	if e.records, err = cfg.meter.Int64Counter("stellify.export.records",
		metric.WithDescription("Records produced, by record set")); err != nil {
		return nil, fmt.Errorf("create records counter: %w", err)
	}
	if e.duration, err = cfg.meter.Float64Histogram("stellify.export.unit.duration",
		metric.WithDescription("Time to lower one unit"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	return e, nil
}

// Report is the outcome of one batch.
type Report struct {
	Bundle   *recordfmt.Bundle
	Failures []*UnitError // in discovery order
	Views    []*template.Result
	Stats    graph.Stats
}

type outcome struct {
	store *graph.Store
	view  *template.Result
	err   *UnitError
}

// Export lowers units and merges their records in the order given. A unit
// that fails is reported and skipped. Cancellation is observed between
// units; a cancelled batch returns the context's error and no report.
func (e *Exporter) Export(ctx context.Context, units []Unit) (*Report, error) {
	ctx, span := e.cfg.tracer.Start(ctx, "export.batch",
		trace.WithAttributes(attribute.Int("stellify.units", len(units))))
	defer span.End()

	results := make([]outcome, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.concurrency)
	for i, u := range units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.lowerUnit(gctx, u)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	merged := graph.NewStore()
	rep := &Report{}
	for _, r := range results {
		if r.err != nil {
			rep.Failures = append(rep.Failures, r.err)
			continue
		}
		merged.Merge(r.store)
		if r.view != nil {
			rep.Views = append(rep.Views, r.view)
		}
	}
	rep.Bundle = recordfmt.FromStore(merged)
	rep.Stats = merged.Stats()

	e.count(ctx, rep.Stats)
	span.SetAttributes(
		attribute.Int("stellify.failures", len(rep.Failures)),
		attribute.Int("stellify.statements", rep.Stats.Statements),
		attribute.Int("stellify.clauses", rep.Stats.Clauses),
	)
	span.SetStatus(codes.Ok, "")
	e.cfg.logger.Info("export complete",
		"files", rep.Stats.Files,
		"methods", rep.Stats.Routines,
		"statements", rep.Stats.Statements,
		"clauses", rep.Stats.Clauses,
		"elements", rep.Stats.Elements,
		"failures", len(rep.Failures))
	return rep, nil
}

func (e *Exporter) lowerUnit(ctx context.Context, u Unit) outcome {
	_, span := e.cfg.tracer.Start(ctx, "export.unit", trace.WithAttributes(
		attribute.String("stellify.path", u.Path),
		attribute.String("stellify.kind", string(u.Kind)),
	))
	defer span.End()

	start := time.Now()
	kind := metric.WithAttributes(attribute.String("kind", string(u.Kind)))
	defer func() {
		e.duration.Record(ctx, time.Since(start).Seconds(), kind)
	}()

	out, err := e.lower(u)
	if err != nil {
		uerr := &UnitError{Path: u.Path, Err: cause(err)}
		span.RecordError(uerr)
		span.SetStatus(codes.Error, uerr.Error())
		e.failures.Add(ctx, 1, kind)
		e.cfg.logger.Error(uerr.Error())
		return outcome{err: uerr}
	}
	invariant.ExpectNoError(graph.Validate(out.store), "lowered unit "+u.Path)

	e.units.Add(ctx, 1, kind)
	span.SetStatus(codes.Ok, "")
	e.cfg.logger.Debug("unit lowered", "path", u.Path, "kind", u.Kind)
	return out
}

func (e *Exporter) lower(u Unit) (outcome, error) {
	src, err := os.ReadFile(u.Path)
	if err != nil {
		return outcome{}, err
	}
	store := graph.NewStore()
	if u.Template {
		view, err := template.Lower(e.lowerer, store, u.Name, src)
		if err != nil {
			return outcome{}, err
		}
		return outcome{store: store, view: view}, nil
	}
	if _, err := e.lowerer.LowerFile(store, u.Path, src); err != nil {
		return outcome{}, err
	}
	return outcome{store: store}, nil
}

// cause strips the lowering wrapper from parse failures; the UnitError
// already names the path.
func cause(err error) error {
	var list parser.ErrorList
	if errors.As(err, &list) {
		return list
	}
	return err
}

func (e *Exporter) count(ctx context.Context, st graph.Stats) {
	add := func(set string, n int) {
		e.records.Add(ctx, int64(n), metric.WithAttributes(attribute.String("set", set)))
	}
	add("files", st.Files)
	add("methods", st.Routines)
	add("statements", st.Statements)
	add("clauses", st.Clauses)
	add("elements", st.Elements)
}
