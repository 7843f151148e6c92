package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// otlpHTTPExporter ships finished spans to an OTLP/HTTP collector endpoint
// using the JSON encoding.
type otlpHTTPExporter struct {
	endpoint string
	client   *http.Client
}

func newOTLPHTTPExporter(endpoint string) *otlpHTTPExporter {
	return &otlpHTTPExporter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *otlpHTTPExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if len(spans) == 0 {
		return nil
	}

	payload, err := json.Marshal(buildOTLPTraceRequest(spans))
	if err != nil {
		return fmt.Errorf("encode otlp request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build otlp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("send otlp request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 2048))
		message := string(body)
		if readErr != nil {
			message = "body-read-error"
		}
		return fmt.Errorf("otlp export failed status=%d body=%s", resp.StatusCode, message)
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (e *otlpHTTPExporter) Shutdown(_ context.Context) error {
	return nil
}

type otlpTraceRequest struct {
	ResourceSpans []otlpResourceSpans `json:"resourceSpans"`
}

type otlpResourceSpans struct {
	Resource   otlpResource     `json:"resource"`
	ScopeSpans []otlpScopeSpans `json:"scopeSpans"`
}

type otlpResource struct {
	Attributes []otlpKeyValue `json:"attributes"`
}

type otlpScopeSpans struct {
	Scope otlpScope  `json:"scope"`
	Spans []otlpSpan `json:"spans"`
}

type otlpScope struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type otlpSpan struct {
	TraceID           string         `json:"traceId"`
	SpanID            string         `json:"spanId"`
	ParentSpanID      string         `json:"parentSpanId,omitempty"`
	Name              string         `json:"name"`
	Kind              int            `json:"kind"`
	StartTimeUnixNano string         `json:"startTimeUnixNano"`
	EndTimeUnixNano   string         `json:"endTimeUnixNano"`
	Attributes        []otlpKeyValue `json:"attributes,omitempty"`
	Status            otlpStatus     `json:"status"`
}

type otlpStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

type otlpKeyValue struct {
	Key   string       `json:"key"`
	Value otlpAnyValue `json:"value"`
}

type otlpAnyValue struct {
	StringValue *string  `json:"stringValue,omitempty"`
	BoolValue   *bool    `json:"boolValue,omitempty"`
	IntValue    *string  `json:"intValue,omitempty"`
	DoubleValue *float64 `json:"doubleValue,omitempty"`
}

// buildOTLPTraceRequest groups finished spans by instrumentation scope under
// a single resource entry.
func buildOTLPTraceRequest(spans []sdktrace.ReadOnlySpan) otlpTraceRequest {
	if len(spans) == 0 {
		return otlpTraceRequest{}
	}

	scopeOrder := make([]otlpScope, 0, 1)
	scopeSpans := make(map[otlpScope][]otlpSpan)
	for _, span := range spans {
		scope := otlpScope{
			Name:    span.InstrumentationScope().Name,
			Version: span.InstrumentationScope().Version,
		}
		if _, ok := scopeSpans[scope]; !ok {
			scopeOrder = append(scopeOrder, scope)
		}
		scopeSpans[scope] = append(scopeSpans[scope], toOTLPSpan(span))
	}

	grouped := make([]otlpScopeSpans, 0, len(scopeOrder))
	for _, scope := range scopeOrder {
		grouped = append(grouped, otlpScopeSpans{Scope: scope, Spans: scopeSpans[scope]})
	}

	return otlpTraceRequest{
		ResourceSpans: []otlpResourceSpans{
			{
				Resource:   otlpResource{Attributes: toOTLPAttributes(spans[0].Resource().Attributes())},
				ScopeSpans: grouped,
			},
		},
	}
}

func toOTLPSpan(span sdktrace.ReadOnlySpan) otlpSpan {
	converted := otlpSpan{
		TraceID:           span.SpanContext().TraceID().String(),
		SpanID:            span.SpanContext().SpanID().String(),
		Name:              span.Name(),
		Kind:              int(span.SpanKind()),
		StartTimeUnixNano: strconv.FormatInt(span.StartTime().UnixNano(), 10),
		EndTimeUnixNano:   strconv.FormatInt(span.EndTime().UnixNano(), 10),
		Attributes:        toOTLPAttributes(span.Attributes()),
		Status: otlpStatus{
			Code:    int(span.Status().Code),
			Message: span.Status().Description,
		},
	}
	if span.Parent().HasSpanID() {
		converted.ParentSpanID = span.Parent().SpanID().String()
	}
	return converted
}

func toOTLPAttributes(attrs []attribute.KeyValue) []otlpKeyValue {
	converted := make([]otlpKeyValue, 0, len(attrs))
	for _, attr := range attrs {
		kv := otlpKeyValue{Key: string(attr.Key)}
		switch attr.Value.Type() {
		case attribute.BOOL:
			v := attr.Value.AsBool()
			kv.Value.BoolValue = &v
		case attribute.INT64:
			v := strconv.FormatInt(attr.Value.AsInt64(), 10)
			kv.Value.IntValue = &v
		case attribute.FLOAT64:
			v := attr.Value.AsFloat64()
			kv.Value.DoubleValue = &v
		default:
			v := attr.Value.Emit()
			kv.Value.StringValue = &v
		}
		converted = append(converted, kv)
	}
	return converted
}
