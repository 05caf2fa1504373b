package otel

import (
	"context"
	"testing"
	"time"
)

func TestInitMetrics_RecordRoundtable(t *testing.T) {
	ctx := context.Background()
	_, err := InitMeterProvider(ctx, "metrics-test")
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	if err := InitMetrics(ctx); err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}
	RecordRoundtable(ctx, "completed", 2*time.Second)
	RecordRoundtable(ctx, "failed", time.Second)
}

func TestAddSSEConnection_RemoveSSEConnection(t *testing.T) {
	AddSSEConnection()
	AddSSEConnection()
	RemoveSSEConnection()
	RemoveSSEConnection()
	RemoveSSEConnection() // should not go negative
}

func TestRecordMentionReply_RecordAgentCost_RecordSSEEvent(t *testing.T) {
	ctx := context.Background()
	_, _ = InitMeterProvider(ctx, "record-test")
	_ = InitMetrics(ctx)
	RecordMentionReply(ctx, "physicist", "completed", 100*time.Millisecond)
	RecordAgentCost(ctx, "roundtable", 0.42)
	RecordSSEEvent(ctx)
}

func TestInitMetricsWithTopicCount(t *testing.T) {
	ctx := context.Background()
	_, _ = InitMeterProvider(ctx, "topiccount-test")
	err := InitMetricsWithTopicCount(ctx, func() (pending, running, completed, failed int64) {
		return 1, 2, 3, 0
	})
	if err != nil {
		t.Fatalf("InitMetricsWithTopicCount: %v", err)
	}
}

func TestInitMetricsWithTopicCount_nilFunc(t *testing.T) {
	ctx := context.Background()
	_, _ = InitMeterProvider(ctx, "topiccount-nil-test")
	err := InitMetricsWithTopicCount(ctx, nil)
	if err != nil {
		t.Fatalf("InitMetricsWithTopicCount(nil): %v", err)
	}
}
