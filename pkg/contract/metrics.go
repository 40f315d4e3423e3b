package contract

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// engineMetrics are the contract counters. Instruments that fail to register
// fall back to no-ops so metrics never affect contract evaluation.
type engineMetrics struct {
	calls      metric.Int64Counter
	retries    metric.Int64Counter
	violations metric.Int64Counter
}

func newEngineMetrics(m metric.Meter, logger *slog.Logger) engineMetrics {
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := m.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			logger.Warn("failed to register contract metric", "metric", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return engineMetrics{
		calls:      counter("zerot.contract.calls", "Wrapped method invocations", "{call}"),
		retries:    counter("zerot.contract.retries", "Attempts retried after a recoverable violation", "{retry}"),
		violations: counter("zerot.contract.violations", "Calls that ended in a contract violation", "{violation}"),
	}
}
