package register

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type registerMetrics struct {
	scans      metric.Int64Counter
	collisions metric.Int64Counter
}

func newRegisterMetrics(meter metric.Meter) (*registerMetrics, error) {
	scans, err := meter.Int64Counter("pos.register.scans",
		metric.WithDescription("Scans by outcome and matching strategy"),
	)
	if err != nil {
		return nil, err
	}
	collisions, err := meter.Int64Counter("pos.register.catalog_key_collisions",
		metric.WithDescription("Catalog identifiers shared by more than one product"),
	)
	if err != nil {
		return nil, err
	}
	return &registerMetrics{scans: scans, collisions: collisions}, nil
}

func scanAttrs(o ScanOutcome) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("outcome", string(o.Kind)),
		attribute.String("strategy", o.Strategy),
	)
}
