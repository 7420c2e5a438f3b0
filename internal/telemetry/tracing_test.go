/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitTracingDisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: false}, zerolog.Nop())
	if err != nil {
		t.Fatalf("InitTracing() error = %v", err)
	}

	_, span := StartSpan(context.Background(), "scheduler.Tick", attribute.String("run_id", "r1"))
	if span.IsRecording() {
		t.Fatal("span should not record with tracing disabled")
	}
	RecordError(span, errors.New("notion down"))
	RecordError(span, nil)
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
}

func TestTickSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1, want: "ParentBased{root:AlwaysOnSampler"},
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: 0.25, want: "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := tickSampler(tt.rate).Description(); !strings.Contains(got, tt.want) {
			t.Errorf("tickSampler(%v) = %q, want it to contain %q", tt.rate, got, tt.want)
		}
	}
}
