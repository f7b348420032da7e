package room

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/td-engine/model"
)

const tracerName = "github.com/signalsfoundry/td-engine/internal/room"

// traceTransition records a lifecycle change as a zero-length span.
func (r *Room) traceTransition(name string, to model.Lifecycle, extra ...attribute.KeyValue) {
	attrs := append([]attribute.KeyValue{
		attribute.String("match_id", r.match.ID()),
		attribute.String("lifecycle", string(to)),
	}, extra...)
	_, span := otel.Tracer(tracerName).Start(context.Background(), "Room."+name, trace.WithAttributes(attrs...))
	span.End()
}
