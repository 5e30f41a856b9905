package runner

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/anchorwatch/anchorsim/internal/runner"

func meter() metric.Meter {
	return otel.GetMeterProvider().Meter(instrumentationName)
}
