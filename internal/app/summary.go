package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

func (app *Application) summaryHandler(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.SetContentType("application/json")

	from, err := parseQueryTime(string(ctx.QueryArgs().Peek("from")))
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString(`{"error":"invalid 'from' time format"}`)
		return
	}
	to, err := parseQueryTime(string(ctx.QueryArgs().Peek("to")))
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString(`{"error":"invalid 'to' time format"}`)
		return
	}

	summary, err := app.services.Summary.GetSummary(context.Background(), from, to)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"error":"failed to compute summary"}`)
		return
	}

	body, _ := json.Marshal(summary)
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(body)
}

func (app *Application) livenessHandler(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBodyString(`{"status":"ok"}`)
}

// parseQueryTime accepts the ISO-8601 variants load tools send. An empty
// string means the bound is open.
func parseQueryTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, value); err == nil {
			utc := t.UTC()
			return &utc, nil
		}
	}

	return nil, fmt.Errorf("invalid time format %q", value)
}
