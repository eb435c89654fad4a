package replay

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	resultReplayed = "replayed"
	resultPosted   = "posted"
	resultFailed   = "failed"
	resultDropped  = "dropped"
)

type replayMetrics struct {
	requests metric.Int64Counter
}

func newReplayMetrics(meter metric.Meter) (*replayMetrics, error) {
	requests, err := meter.Int64Counter("pos.replay.requests",
		metric.WithDescription("Offline requests and sales sent to the backend, by result"),
	)
	if err != nil {
		return nil, err
	}
	return &replayMetrics{requests: requests}, nil
}

func (m *replayMetrics) record(ctx context.Context, result string) {
	m.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
