package settlement

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type engineMetrics struct {
	sales         metric.Int64Counter
	fallbacks     metric.Int64Counter
	printFailures metric.Int64Counter
}

func newEngineMetrics(meter metric.Meter) (*engineMetrics, error) {
	sales, err := meter.Int64Counter("pos.settlement.sales",
		metric.WithDescription("Settled sales by persistence path"),
	)
	if err != nil {
		return nil, err
	}
	fallbacks, err := meter.Int64Counter("pos.settlement.online_fallbacks",
		metric.WithDescription("Online sale attempts that fell back to offline storage"),
	)
	if err != nil {
		return nil, err
	}
	printFailures, err := meter.Int64Counter("pos.settlement.print_failures",
		metric.WithDescription("Receipts the print server did not accept"),
	)
	if err != nil {
		return nil, err
	}
	return &engineMetrics{sales: sales, fallbacks: fallbacks, printFailures: printFailures}, nil
}

func pathAttr(p Path) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("path", string(p)))
}
