package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sn_metrics "socialnet/pkg/metrics"
	"socialnet/pkg/model"
	"socialnet/pkg/storage"
	sn_trace "socialnet/pkg/trace"

	"github.com/ServiceWeaver/weaver"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const notificationExchange = "notifications"

// NotificationService publishes delivery events to the notification
// exchange. Callers treat Send as fire-and-forget; a failed delivery
// never aborts the operation that triggered it.
type NotificationService interface {
	Send(ctx context.Context, recipientID int64, recipientUID string, channelHint string, payload model.NotificationPayload) error
}

type notificationServiceOptions struct {
	RabbitMQAddr     string `toml:"rabbitmq_address"`
	RabbitMQPort     int    `toml:"rabbitmq_port"`
	RabbitMQUsername string `toml:"rabbitmq_username"`
	RabbitMQPassword string `toml:"rabbitmq_password"`
	Region           string `toml:"region"`
}

type notificationService struct {
	weaver.Implements[NotificationService]
	weaver.WithConfig[notificationServiceOptions]
	amqChannel    *amqp.Channel
	amqConnection *amqp.Connection
}

func (n *notificationService) Init(ctx context.Context) error {
	logger := n.Logger(ctx)

	var err error
	n.amqChannel, n.amqConnection, err = storage.RabbitMQClient(ctx,
		n.Config().RabbitMQUsername, n.Config().RabbitMQPassword,
		n.Config().RabbitMQAddr, n.Config().RabbitMQPort,
	)
	if err != nil {
		logger.Error(err.Error())
		return err
	}

	err = n.amqChannel.ExchangeDeclare(notificationExchange, "topic", false, false, false, false, nil)
	if err != nil {
		logger.Error("error declaring exchange for rabbitmq", "msg", err.Error())
		return err
	}

	logger.Info("notification service running!", "region", n.Config().Region,
		"rabbitmq_addr", n.Config().RabbitMQAddr, "rabbitmq_port", n.Config().RabbitMQPort,
	)
	return nil
}

func (n *notificationService) Send(ctx context.Context, recipientID int64, recipientUID string, channelHint string, payload model.NotificationPayload) error {
	logger := n.Logger(ctx)
	logger.Debug("entering Send", "recipient_id", recipientID, "recipient_uid", recipientUID, "type", payload.Type)

	spanContext := trace.SpanContextFromContext(ctx)
	msg := model.NotificationMessage{
		RecipientID:  recipientID,
		RecipientUID: recipientUID,
		ChannelHint:  channelHint,
		Payload:      payload,
		SpanContext:  sn_trace.BuildSpanContext(spanContext),
		SentAtMs:     time.Now().UnixMilli(),
	}
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		logger.Error("error converting rabbitmq message to json", "msg", err.Error())
		return err
	}

	amqMsg := amqp.Publishing{
		ContentType: "application/json",
		Body:        msgJSON,
	}
	routingKey := fmt.Sprintf("%s-%s", notificationExchange, n.Config().Region)
	err = n.amqChannel.PublishWithContext(ctx, notificationExchange, routingKey, false, false, amqMsg)
	if err != nil {
		logger.Error("error publishing notification to rabbitmq", "msg", err.Error())
		return err
	}

	trace.SpanFromContext(ctx).AddEvent("published notification",
		trace.WithAttributes(
			attribute.Int64("recipient_id", recipientID),
			attribute.String("type", payload.Type),
		))
	sn_metrics.PublishedNotifications.Get(sn_metrics.RegionLabel{Region: n.Config().Region}).Inc()
	return nil
}
