// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracing

import (
	"context"
	"maps"
	"net/http"

	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	tallyerrors "github.com/tombee/tally/pkg/errors"
)

// Header keys used by the W3C Trace Context and Baggage specifications.
const (
	DefaultTraceParentKey = "traceparent"
	DefaultBaggageKey     = "baggage"
)

// TraceContext is the carrier-independent form of a propagated trace:
// the remote span identity plus baggage.
type TraceContext struct {
	TraceID trace.TraceID
	SpanID  trace.SpanID
	Sampled bool
	Baggage map[string]string
}

// IsValid reports whether both identifiers are non-zero.
func (tc TraceContext) IsValid() bool {
	return tc.TraceID.IsValid() && tc.SpanID.IsValid()
}

// SpanContext returns tc as a remote OpenTelemetry span context.
func (tc TraceContext) SpanContext() trace.SpanContext {
	var flags trace.TraceFlags
	if tc.Sampled {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tc.TraceID,
		SpanID:     tc.SpanID,
		TraceFlags: flags,
		Remote:     true,
	})
}

// FromContext returns the trace context of the span active in ctx and the
// baggage attached to ctx. ok is false when ctx carries no valid span.
func FromContext(ctx context.Context) (tc TraceContext, ok bool) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return TraceContext{}, false
	}
	tc = TraceContext{
		TraceID: sc.TraceID(),
		SpanID:  sc.SpanID(),
		Sampled: sc.IsSampled(),
	}
	if members := baggage.FromContext(ctx).Members(); len(members) > 0 {
		tc.Baggage = make(map[string]string, len(members))
		for _, m := range members {
			tc.Baggage[m.Key()] = m.Value()
		}
	}
	return tc, true
}

// ContextWith returns a child of ctx whose remote parent is tc and whose
// baggage is tc.Baggage. An invalid tc returns ctx unchanged.
func ContextWith(ctx context.Context, tc TraceContext) context.Context {
	if !tc.IsValid() {
		return ctx
	}
	ctx = trace.ContextWithRemoteSpanContext(ctx, tc.SpanContext())
	if b, ok := buildBaggage(tc.Baggage); ok {
		ctx = baggage.ContextWithBaggage(ctx, b)
	}
	return ctx
}

// Propagator encodes a TraceContext into string headers and back.
// The zero value uses the W3C header names.
type Propagator struct {
	// TraceParentKey is the header holding the traceparent value.
	TraceParentKey string

	// BaggageKey is the header holding W3C baggage.
	BaggageKey string
}

// NewPropagator returns a Propagator using the given header keys; empty keys
// fall back to the W3C defaults.
func NewPropagator(traceParentKey, baggageKey string) Propagator {
	return Propagator{TraceParentKey: traceParentKey, BaggageKey: baggageKey}
}

func (p Propagator) traceParentKey() string {
	if p.TraceParentKey == "" {
		return DefaultTraceParentKey
	}
	return p.TraceParentKey
}

func (p Propagator) baggageKey() string {
	if p.BaggageKey == "" {
		return DefaultBaggageKey
	}
	return p.BaggageKey
}

// Encode returns the headers representing tc: a traceparent entry
// ("00-<trace id>-<span id>-<flags>") and, when tc has baggage, a baggage
// entry. An invalid tc encodes to an empty map.
func (p Propagator) Encode(tc TraceContext) map[string]string {
	headers := make(map[string]string, 2)
	if !tc.IsValid() {
		return headers
	}

	carrier := propagation.MapCarrier{}
	ctx := ContextWith(context.Background(), tc)
	propagation.TraceContext{}.Inject(ctx, carrier)
	propagation.Baggage{}.Inject(ctx, carrier)

	if v := carrier.Get(DefaultTraceParentKey); v != "" {
		headers[p.traceParentKey()] = v
	}
	if v := carrier.Get(DefaultBaggageKey); v != "" {
		headers[p.baggageKey()] = v
	}
	return headers
}

// Inject returns a copy of carrier with tc's headers added. Keys in carrier
// that are not reserved for propagation are left as they are; carrier
// itself is never modified.
func (p Propagator) Inject(tc TraceContext, carrier map[string]string) map[string]string {
	out := make(map[string]string, len(carrier)+2)
	maps.Copy(out, carrier)
	maps.Copy(out, p.Encode(tc))
	return out
}

// Decode parses the propagation headers. ok is false when the traceparent
// header is missing or malformed; a malformed baggage header only drops
// the baggage.
func (p Propagator) Decode(headers map[string]string) (tc TraceContext, ok bool) {
	tc, err := p.DecodeStrict(headers)
	if err != nil || !tc.IsValid() {
		return TraceContext{}, false
	}
	return tc, true
}

// DecodeStrict is Decode with the reason for rejection. A missing header
// yields a zero TraceContext and a nil error; a malformed one yields a
// *PropagationError.
func (p Propagator) DecodeStrict(headers map[string]string) (TraceContext, error) {
	raw, found := headers[p.traceParentKey()]
	if !found || raw == "" {
		return TraceContext{}, nil
	}

	ctx := propagation.TraceContext{}.Extract(context.Background(),
		propagation.MapCarrier{DefaultTraceParentKey: raw})
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return TraceContext{}, &tallyerrors.PropagationError{Header: p.traceParentKey(), Value: raw}
	}

	tc := TraceContext{
		TraceID: sc.TraceID(),
		SpanID:  sc.SpanID(),
		Sampled: sc.IsSampled(),
	}

	if rawBaggage := headers[p.baggageKey()]; rawBaggage != "" {
		if b, err := baggage.Parse(rawBaggage); err == nil && b.Len() > 0 {
			tc.Baggage = make(map[string]string, b.Len())
			for _, m := range b.Members() {
				tc.Baggage[m.Key()] = m.Value()
			}
		}
	}
	return tc, nil
}

// InjectHTTP writes the trace context of ctx into h.
func (p Propagator) InjectHTTP(ctx context.Context, h http.Header) {
	tc, ok := FromContext(ctx)
	if !ok {
		return
	}
	for k, v := range p.Encode(tc) {
		h.Set(k, v)
	}
}

// ExtractHTTP returns ctx with the remote parent found in h, if any.
func (p Propagator) ExtractHTTP(ctx context.Context, h http.Header) context.Context {
	headers := map[string]string{
		p.traceParentKey(): h.Get(p.traceParentKey()),
		p.baggageKey():     h.Get(p.baggageKey()),
	}
	if tc, ok := p.Decode(headers); ok {
		return ContextWith(ctx, tc)
	}
	return ctx
}

// W3CPropagator returns a TextMapPropagator that implements W3C Trace Context
// and Baggage, for libraries that use the global otel propagator.
func W3CPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func buildBaggage(values map[string]string) (baggage.Baggage, bool) {
	if len(values) == 0 {
		return baggage.Baggage{}, false
	}
	members := make([]baggage.Member, 0, len(values))
	for k, v := range values {
		m, err := baggage.NewMemberRaw(k, v)
		if err != nil {
			continue
		}
		members = append(members, m)
	}
	if len(members) == 0 {
		return baggage.Baggage{}, false
	}
	b, err := baggage.New(members...)
	if err != nil {
		return baggage.Baggage{}, false
	}
	return b, true
}
