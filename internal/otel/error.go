package otel

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RecordError attaches err to the span and flips its status to Error. A nil
// err or a non-recording span is a no-op, so every failure path can call it
// unconditionally.
func RecordError(err error, span trace.Span) {
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
