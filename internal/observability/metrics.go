package observability

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yungbote/studyplan-backend/internal/platform/logger"
)

const meterName = "github.com/yungbote/studyplan-backend"

type Metrics struct {
	apiRequests metric.Int64Counter
	apiLatency  metric.Float64Histogram
	apiInflight metric.Int64UpDownCounter

	aggregateOps       metric.Float64Histogram
	aggregateConflicts metric.Int64Counter
	aggregateRetries   metric.Int64Counter

	attempts           metric.Int64Counter
	replans            metric.Int64Counter
	predictorCalls     metric.Float64Histogram
	predictorFallbacks metric.Int64Counter
	retentionDeleted   metric.Int64Counter
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide instruments from the global meter provider.
func Init(log *logger.Logger) *Metrics {
	initOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			if log != nil {
				log.Warn("metrics init failed (continuing without metrics)", "error", err)
			}
			return
		}
		instance = m
	})
	return instance
}

// NewMetrics creates the instrument set on mp. Tests pass an sdk provider with a manual reader.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error
	if m.apiRequests, err = meter.Int64Counter("studyplan.api.requests",
		metric.WithDescription("HTTP requests by method, route and status.")); err != nil {
		return nil, err
	}
	if m.apiLatency, err = meter.Float64Histogram("studyplan.api.duration",
		metric.WithDescription("HTTP request latency."), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.apiInflight, err = meter.Int64UpDownCounter("studyplan.api.inflight",
		metric.WithDescription("In-flight HTTP requests.")); err != nil {
		return nil, err
	}
	if m.aggregateOps, err = meter.Float64Histogram("studyplan.aggregate.duration",
		metric.WithDescription("Aggregate write duration by operation and status."), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.aggregateConflicts, err = meter.Int64Counter("studyplan.aggregate.conflicts",
		metric.WithDescription("Aggregate writes that lost a compare-and-set or unique race.")); err != nil {
		return nil, err
	}
	if m.aggregateRetries, err = meter.Int64Counter("studyplan.aggregate.retries",
		metric.WithDescription("Aggregate writes that failed with a retryable storage error.")); err != nil {
		return nil, err
	}
	if m.attempts, err = meter.Int64Counter("studyplan.attempts",
		metric.WithDescription("Graded day attempts by resulting state.")); err != nil {
		return nil, err
	}
	if m.replans, err = meter.Int64Counter("studyplan.replans",
		metric.WithDescription("Weekend and adaptive replanning runs.")); err != nil {
		return nil, err
	}
	if m.predictorCalls, err = meter.Float64Histogram("studyplan.predictor.duration",
		metric.WithDescription("Mastery predictor call latency by status."), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.predictorFallbacks, err = meter.Int64Counter("studyplan.predictor.fallbacks",
		metric.WithDescription("Adaptive resequencing runs that fell back to frequency ranking.")); err != nil {
		return nil, err
	}
	if m.retentionDeleted, err = meter.Int64Counter("studyplan.retention.deleted_days",
		metric.WithDescription("Plan day rows removed by the retention sweep.")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", status),
	)
	ctx := context.Background()
	m.apiRequests.Add(ctx, 1, attrs)
	m.apiLatency.Record(ctx, dur.Seconds(), attrs)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(context.Background(), 1)
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(context.Background(), -1)
}

// ObserveAggregateWrite records one finished plan write with the conflicts and
// retryable failures it absorbed along the way.
func (m *Metrics) ObserveAggregateWrite(op, status string, conflicts, retryable int, dur time.Duration) {
	if m == nil {
		return
	}
	ctx := context.Background()
	opAttr := attribute.String("op", op)
	m.aggregateOps.Record(ctx, dur.Seconds(), metric.WithAttributes(opAttr, attribute.String("status", status)))
	if conflicts > 0 {
		m.aggregateConflicts.Add(ctx, int64(conflicts), metric.WithAttributes(opAttr))
	}
	if retryable > 0 {
		m.aggregateRetries.Add(ctx, int64(retryable), metric.WithAttributes(opAttr))
	}
}

func (m *Metrics) IncAttempt(state string) {
	if m == nil {
		return
	}
	m.attempts.Add(context.Background(), 1, metric.WithAttributes(attribute.String("state", state)))
}

func (m *Metrics) IncReplan(kind string, fallback bool) {
	if m == nil {
		return
	}
	m.replans.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("fallback", fallback),
	))
}

func (m *Metrics) ObservePredictorCall(status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.predictorCalls.Record(context.Background(), dur.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) IncPredictorFallback(reason string) {
	if m == nil {
		return
	}
	m.predictorFallbacks.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) AddRetentionDeleted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.retentionDeleted.Add(context.Background(), n)
}
