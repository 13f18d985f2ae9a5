package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/strata/internal/config"
	"github.com/Additional-Code/strata/internal/messaging"
	ordersvc "github.com/Additional-Code/strata/internal/service/order"
	"github.com/Additional-Code/strata/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/strata/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewLifecycleHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewLifecycleHandler consumes order lifecycle events and dispatches on the
// envelope type. Unknown types are logged and committed rather than retried.
func NewLifecycleHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var envelope ordersvc.Envelope
		if err := json.Unmarshal(msg.Value, &envelope); err != nil {
			logger.Error("failed to decode lifecycle envelope", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		span.SetAttributes(attribute.String("event.type", envelope.Type))

		switch envelope.Type {
		case ordersvc.EventOrderCreated:
			var event ordersvc.OrderCreatedEvent
			if err := json.Unmarshal(envelope.Payload, &event); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "decode error")
				return err
			}
			logger.Info("order created",
				zap.String("id", event.ID),
				zap.String("customer_id", event.CustomerID),
				zap.String("total_amount", event.TotalAmount.String()),
				zap.Int("item_count", event.ItemCount),
			)
		case ordersvc.EventOrderStatusChanged:
			var event ordersvc.OrderStatusChangedEvent
			if err := json.Unmarshal(envelope.Payload, &event); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "decode error")
				return err
			}
			logger.Info("order status changed",
				zap.String("id", event.ID),
				zap.String("from", event.From),
				zap.String("to", event.To),
			)
		case ordersvc.EventOrdersBulkUpdated:
			var event ordersvc.OrdersBulkUpdatedEvent
			if err := json.Unmarshal(envelope.Payload, &event); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "decode error")
				return err
			}
			logger.Info("orders bulk updated",
				zap.String("from", event.From),
				zap.String("to", event.To),
				zap.Int64("updated", event.Updated),
			)
		default:
			logger.Warn("unknown lifecycle event", zap.String("type", envelope.Type))
		}

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
