package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce     sync.Once
	roundtablesCounter  metric.Int64Counter
	roundtableDuration  metric.Float64Histogram
	mentionsCounter     metric.Int64Counter
	mentionDuration     metric.Float64Histogram
	agentCostHist       metric.Float64Histogram
	sseConnectionsGauge metric.Int64ObservableGauge
	sseEventsCounter    metric.Int64Counter
	sseConnections      int64
	sseConnectionsMu    sync.Mutex
)

// InitMetrics creates the meter instruments. Safe to call multiple times; only runs once.
// Call after InitMeterProvider.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		roundtablesCounter, err = m.Int64Counter("topiclab_roundtables_total", metric.WithDescription("Total roundtable runs by terminal status"))
		if err != nil {
			return
		}
		roundtableDuration, err = m.Float64Histogram("topiclab_roundtable_duration_seconds", metric.WithDescription("Roundtable run duration in seconds"))
		if err != nil {
			return
		}
		mentionsCounter, err = m.Int64Counter("topiclab_mention_replies_total", metric.WithDescription("Total mention replies by terminal status"))
		if err != nil {
			return
		}
		mentionDuration, err = m.Float64Histogram("topiclab_mention_reply_duration_seconds", metric.WithDescription("Mention reply duration in seconds"))
		if err != nil {
			return
		}
		agentCostHist, err = m.Float64Histogram("topiclab_agent_cost_usd", metric.WithDescription("Reported cost per agent run in USD"))
		if err != nil {
			return
		}
		sseEventsCounter, err = m.Int64Counter("topiclab_sse_events_total", metric.WithDescription("Total SSE events published"))
		if err != nil {
			return
		}
		sseConnectionsGauge, err = m.Int64ObservableGauge("topiclab_sse_connections", metric.WithDescription("Current SSE subscriber count"))
		if err != nil {
			return
		}
		_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			sseConnectionsMu.Lock()
			n := sseConnections
			sseConnectionsMu.Unlock()
			o.ObserveInt64(sseConnectionsGauge, n)
			return nil
		}, sseConnectionsGauge)
		if err != nil {
			return
		}
	})
	return err
}

// RecordRoundtable records one roundtable run reaching a terminal status.
func RecordRoundtable(ctx context.Context, status string, duration time.Duration) {
	if roundtablesCounter != nil {
		roundtablesCounter.Add(ctx, 1, metric.WithAttributes(AttrStatus.String(status)))
	}
	if roundtableDuration != nil {
		roundtableDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(AttrStatus.String(status)))
	}
}

// RecordMentionReply records one mention reply reaching a terminal status.
func RecordMentionReply(ctx context.Context, expert, status string, duration time.Duration) {
	if mentionsCounter != nil {
		mentionsCounter.Add(ctx, 1, metric.WithAttributes(AttrExpert.String(expert), AttrStatus.String(status)))
	}
	if mentionDuration != nil {
		mentionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(AttrExpert.String(expert), AttrStatus.String(status)))
	}
}

// RecordAgentCost records the cost a runner reported for one job.
func RecordAgentCost(ctx context.Context, kind string, costUSD float64) {
	if agentCostHist != nil {
		agentCostHist.Record(ctx, costUSD, metric.WithAttributes(AttrKind.String(kind)))
	}
}

// RecordSSEEvent records one SSE event published.
func RecordSSEEvent(ctx context.Context) {
	if sseEventsCounter != nil {
		sseEventsCounter.Add(ctx, 1)
	}
}

// AddSSEConnection adds 1 to the SSE connection gauge (call on subscribe).
func AddSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections++
	sseConnectionsMu.Unlock()
}

// RemoveSSEConnection subtracts 1 from the SSE connection gauge (call on unsubscribe).
func RemoveSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections--
	if sseConnections < 0 {
		sseConnections = 0
	}
	sseConnectionsMu.Unlock()
}

// TopicCountFunc returns topic counts by roundtable status. Used for the
// topiclab_topics_total gauge.
type TopicCountFunc func() (pending, running, completed, failed int64)

// InitMetricsWithTopicCount creates instruments and optionally registers a callback for topic gauges.
// Call after InitMeterProvider. If topicCount is nil, topic gauges are not reported.
func InitMetricsWithTopicCount(ctx context.Context, topicCount TopicCountFunc) error {
	if err := InitMetrics(ctx); err != nil {
		return err
	}
	if topicCount == nil {
		return nil
	}
	m := Meter()
	topicsGauge, err := m.Float64ObservableGauge("topiclab_topics_total", metric.WithDescription("Number of topics by roundtable status"))
	if err != nil {
		return err
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		pending, running, completed, failed := topicCount()
		o.ObserveFloat64(topicsGauge, float64(pending), metric.WithAttributes(AttrStatus.String("pending")))
		o.ObserveFloat64(topicsGauge, float64(running), metric.WithAttributes(AttrStatus.String("running")))
		o.ObserveFloat64(topicsGauge, float64(completed), metric.WithAttributes(AttrStatus.String("completed")))
		o.ObserveFloat64(topicsGauge, float64(failed), metric.WithAttributes(AttrStatus.String("failed")))
		return nil
	}, topicsGauge)
	return err
}
