// Package telemetry wraps transactions in OpenTelemetry spans and records
// transaction and cycle-collection metrics, grounded on the same otel/trace and
// otel/metric wiring used elsewhere in the corpus to instrument a
// propagation-style engine.
package telemetry

import (
	"context"
	"time"

	sodium "github.com/pumped-fn/sodium-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryExtension records one span per outermost transaction (the only
// boundary SodiumCtx passes to Wrap), plus counters/histograms for
// transaction volume, transaction duration, and the nodes freed and roots
// scanned per collection, the latter recorded from OnCyclesCollected.
type TelemetryExtension struct {
	sodium.BaseExtension

	tracer trace.Tracer
	meter  metric.Meter

	transactions      metric.Int64Counter
	transactionErrors metric.Int64Counter
	transactionDur    metric.Float64Histogram
	nodesFreed        metric.Int64Histogram
	rootsScanned      metric.Int64Histogram
}

// New wires a TelemetryExtension against tracer and meter. Either may be
// the otel no-op implementation, in which case every span/metric call is
// itself a no-op — the extension never needs to check Config.Telemetry
// itself, the caller decides by choosing which tracer/meter to pass in.
func New(tracer trace.Tracer, meter metric.Meter) *TelemetryExtension {
	e := &TelemetryExtension{
		BaseExtension: sodium.NewBaseExtension("telemetry"),
		tracer:        tracer,
		meter:         meter,
	}
	e.transactions, _ = meter.Int64Counter("sodium.transactions",
		metric.WithDescription("number of completed outermost transactions"))
	e.transactionErrors, _ = meter.Int64Counter("sodium.transaction_errors",
		metric.WithDescription("number of transactions that panicked during propagation"))
	e.transactionDur, _ = meter.Float64Histogram("sodium.transaction_duration_ms",
		metric.WithDescription("wall time of one outermost transaction"),
		metric.WithUnit("ms"))
	e.nodesFreed, _ = meter.Int64Histogram("sodium.collect_cycles.nodes_freed",
		metric.WithDescription("nodes freed per CollectCycles pass"))
	e.rootsScanned, _ = meter.Int64Histogram("sodium.collect_cycles.roots_scanned",
		metric.WithDescription("possible-cycle roots scanned per CollectCycles pass"))
	return e
}

func (e *TelemetryExtension) Wrap(ctx context.Context, next func() error, op *sodium.Operation) error {
	spanName := "sodium.transaction"
	if op.Kind == sodium.OpCollectCycles {
		spanName = "sodium.collect_cycles"
	}

	ctx, span := e.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("sodium.ctx_id", op.Ctx.ID().String()),
	))
	defer span.End()

	start := time.Now()
	err := next()

	if op.Kind == sodium.OpTransaction {
		e.transactions.Add(ctx, 1)
		e.transactionDur.Record(ctx, float64(time.Since(start).Microseconds())/1000.0)
		if err != nil {
			e.transactionErrors.Add(ctx, 1)
			span.RecordError(err)
		}
	}
	return err
}

func (e *TelemetryExtension) OnTransactionError(err error, op *sodium.Operation) {
}

func (e *TelemetryExtension) OnCyclesCollected(stats sodium.CollectStats, op *sodium.Operation) {
	e.nodesFreed.Record(context.Background(), int64(stats.NodesFreed))
	e.rootsScanned.Record(context.Background(), int64(stats.RootsScanned))
}
