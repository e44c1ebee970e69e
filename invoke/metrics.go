package invoke

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/arloliu/otxfn/invoke"

// Attribute keys for invocation metrics.
const (
	attrHandler = "otxfn.handler"
	attrOutcome = "otxfn.outcome"
	attrShape   = "otxfn.shape"
)

// Outcome values.
const (
	outcomeSuccess      = "success"
	outcomeClientError  = "client_error"
	outcomeHandlerError = "error"
)

type instruments struct {
	invocations metric.Int64Counter
	duration    metric.Float64Histogram
}

func newInstruments(mp metric.MeterProvider) *instruments {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	inst := &instruments{}
	var err error

	inst.invocations, err = meter.Int64Counter("otxfn.invocations",
		metric.WithDescription("Number of handler invocations."),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		otel.Handle(err)
	}

	inst.duration, err = meter.Float64Histogram("otxfn.invocation.duration",
		metric.WithDescription("Duration of handler invocations, including await time."),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}

	return inst
}

func (i *instruments) record(ctx context.Context, handler string, shape Shape, start time.Time, err error) {
	outcome := outcomeSuccess
	switch {
	case err == nil:
	case IsClientError(err):
		outcome = outcomeClientError
	default:
		outcome = outcomeHandlerError
	}

	attrs := metric.WithAttributes(
		attribute.String(attrHandler, handler),
		attribute.String(attrShape, shape.String()),
		attribute.String(attrOutcome, outcome),
	)
	if i.invocations != nil {
		i.invocations.Add(ctx, 1, attrs)
	}
	if i.duration != nil {
		i.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}
