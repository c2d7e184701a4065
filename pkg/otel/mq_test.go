package otel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMQHeaderCarrier(t *testing.T) {
	headers := map[string]interface{}{"traceparent": "00-abc-def-01", "x-count": 3}
	c := NewMQHeaderCarrier(headers)

	require.Equal(t, "00-abc-def-01", c.Get("traceparent"))
	require.Empty(t, c.Get("x-count"))
	require.Empty(t, c.Get("missing"))

	c.Set("tracestate", "k=v")
	require.Equal(t, "k=v", headers["tracestate"])
	require.ElementsMatch(t, []string{"traceparent", "x-count", "tracestate"}, c.Keys())
}

func TestNewMQHeaderCarrier_NilHeaders(t *testing.T) {
	c := NewMQHeaderCarrier(nil)
	c.Set("traceparent", "x")
	require.Equal(t, "x", c.Get("traceparent"))
}
