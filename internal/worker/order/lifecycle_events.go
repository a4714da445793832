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

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/config"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/messaging"
	ordersvc "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/service/order"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/worker"
)

var workerTracer = otel.Tracer("github.com/oguarni/crescebr-b2b-marketplace-sub000/worker/order")

// Module registers order lifecycle worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewLifecycleEventHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewLifecycleEventHandler consumes lifecycle events from the orders topic.
// Today it drives fulfillment notifications (logged); downstream consumers
// such as the supplier notification mailer hang off the same topic.
func NewLifecycleEventHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event ordersvc.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode lifecycle event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		switch event.Type {
		case ordersvc.EventOrderCreated:
			logger.Info("order created",
				zap.String("order_id", event.OrderID.String()),
				zap.String("company_id", event.CompanyID.String()),
				zap.String("total_amount", event.TotalAmount.String()),
			)
		case ordersvc.EventOrderStatusChanged:
			from := ""
			if event.FromStatus != nil {
				from = string(*event.FromStatus)
			}
			logger.Info("order status changed",
				zap.String("order_id", event.OrderID.String()),
				zap.String("from", from),
				zap.String("to", string(event.ToStatus)),
			)
		default:
			logger.Warn("unknown lifecycle event type", zap.String("type", event.Type))
		}

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
