package app

import (
	"encoding/json"
	"testing"
	"time"

	"payment-router/internal/config"
	"payment-router/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func testApp(t *testing.T) (*Application, *fasthttp.Server) {
	t.Helper()

	cfg := &config.Config{
		Port:     "8080",
		RedisURL: "localhost:6379",
		Urls: map[constants.PaymentMode]*config.ProcessorsConfig{
			constants.DefaultProcessorKey:  config.ProcessorURLs("http://localhost:8001"),
			constants.FallbackProcessorKey: config.ProcessorURLs("http://localhost:8002"),
		},
		RequestTimeout:   time.Second,
		HealthTimeout:    time.Second,
		HealthTTL:        time.Hour,
		BreakerThreshold: 20,
		BreakerCooldown:  10 * time.Second,
		MaxQueueSize:     10,
	}

	app, err := NewApp(cfg)
	require.NoError(t, err)
	return app, app.Mount()
}

func doRequest(server *fasthttp.Server, method, uri string, body []byte) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI(uri)
	ctx.Request.Header.SetMethod(method)
	if body != nil {
		ctx.Request.Header.SetContentType("application/json")
		ctx.Request.SetBody(body)
	}
	server.Handler(&ctx)
	return &ctx
}

func TestLivenessEndpoint(t *testing.T) {
	_, server := testApp(t)

	ctx := doRequest(server, fasthttp.MethodGet, "/health", nil)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"status":"ok"}`, string(ctx.Response.Body()))
}

func TestPaymentsRejectsInvalidJSON(t *testing.T) {
	_, server := testApp(t)

	ctx := doRequest(server, fasthttp.MethodPost, "/payments", []byte(`{not json`))
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestPaymentsRejectsMissingFields(t *testing.T) {
	_, server := testApp(t)

	ctx := doRequest(server, fasthttp.MethodPost, "/payments", []byte(`{"amount":10}`))
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

	ctx = doRequest(server, fasthttp.MethodPost, "/payments", []byte(`{"correlationId":"a","amount":-5}`))
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestQueueItemNotFound(t *testing.T) {
	_, server := testApp(t)

	ctx := doRequest(server, fasthttp.MethodGet, "/payments/queue/no-such-id", nil)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestSummaryRejectsBadTimeFormat(t *testing.T) {
	_, server := testApp(t)

	ctx := doRequest(server, fasthttp.MethodGet, "/payments-summary?from=yesterday", nil)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestStatusEndpointShape(t *testing.T) {
	app, server := testApp(t)
	app.services.Queue.Stop()

	ctx := doRequest(server, fasthttp.MethodGet, "/payments/status", nil)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	var status map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &status))
	assert.Contains(t, status, "default")
	assert.Contains(t, status, "fallback")
	assert.Contains(t, status, "queue")
}

func TestParseQueryTime(t *testing.T) {
	cases := []string{
		"2020-07-10T12:34:56Z",
		"2020-07-10T12:34:56.000Z",
		"2020-07-10T12:34:56",
		"2020-07-10",
		"2020-07-10T12:34:56-03:00",
	}
	for _, value := range cases {
		parsed, err := parseQueryTime(value)
		require.NoError(t, err, value)
		require.NotNil(t, parsed, value)
		assert.Equal(t, time.UTC, parsed.Location(), value)
	}

	parsed, err := parseQueryTime("")
	require.NoError(t, err)
	assert.Nil(t, parsed)

	_, err = parseQueryTime("not-a-time")
	assert.Error(t, err)
}
