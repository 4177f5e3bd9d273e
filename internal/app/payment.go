package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"payment-router/internal/constants"
	"payment-router/internal/models"
	"payment-router/internal/services"

	"github.com/valyala/fasthttp"
)

func (app *Application) paymentsHandler(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.SetContentType("application/json")

	var req models.PaymentRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString(`{"error":"invalid JSON"}`)
		return
	}

	if req.CorrelationID == "" || req.Amount <= 0 {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString(`{"error":"correlationId and a positive amount are required"}`)
		return
	}

	// Requests run to a terminal state; they are not cancelled by the caller.
	result, err := app.services.Payment.Process(context.Background(), req.CorrelationID, req.Amount)
	if err != nil {
		if errors.Is(err, services.ErrQueueFull) {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString(`{"error":"service overloaded, retry later"}`)
			return
		}
		log.Printf("failed to process payment %s: %v", req.CorrelationID, err)
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"error":"payment failed"}`)
		return
	}

	switch result.Status {
	case services.StatusQueued:
		body, _ := json.Marshal(models.QueuedResponse{
			CorrelationID: req.CorrelationID,
			QueueID:       result.QueueID,
			Status:        "queued",
		})
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBody(body)
	default:
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBody(result.Body)
	}
}

func (app *Application) statusHandler(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.SetContentType("application/json")

	health := app.services.Health.Snapshot()
	status := models.StatusResponse{
		Default: models.ProcessorStatus{
			Healthy: health.Default,
			Circuit: app.services.Breakers[constants.DefaultProcessorKey].State(),
		},
		Fallback: models.ProcessorStatus{
			Healthy: health.Fallback,
			Circuit: app.services.Breakers[constants.FallbackProcessorKey].State(),
		},
		Queue: app.services.Queue.Stats(),
	}

	body, _ := json.Marshal(status)
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(body)
}

func (app *Application) queueItemHandler(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.SetContentType("application/json")

	queueID, _ := ctx.UserValue("queueId").(string)
	item, ok := app.services.Queue.Get(queueID)
	if !ok {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetBodyString(`{"error":"queue item not found"}`)
		return
	}

	body, _ := json.Marshal(item)
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(body)
}
