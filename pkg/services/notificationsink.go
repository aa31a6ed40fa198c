package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sn_metrics "socialnet/pkg/metrics"
	"socialnet/pkg/model"
	"socialnet/pkg/storage"

	"github.com/ServiceWeaver/weaver"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type NotificationSink interface {
	// NotificationSink does not expose any rpc methods
}

type notificationSinkOptions struct {
	RabbitMQAddr     string `toml:"rabbitmq_address"`
	RabbitMQPort     int    `toml:"rabbitmq_port"`
	RabbitMQUsername string `toml:"rabbitmq_username"`
	RabbitMQPassword string `toml:"rabbitmq_password"`
	MongoDBAddr      string `toml:"mongodb_address"`
	MongoDBPort      int    `toml:"mongodb_port"`
	NumWorkers       int    `toml:"num_workers"`
	Region           string `toml:"region"`
}

// notificationSink drains the notification exchange and records each
// delivery in the notifications collection. The push transport that
// would fan out to devices sits outside this system.
type notificationSink struct {
	weaver.Implements[NotificationSink]
	weaver.WithConfig[notificationSinkOptions]
	mongoClient *mongo.Client
}

func (s *notificationSink) Init(ctx context.Context) error {
	logger := s.Logger(ctx)
	logger.Debug("initializing notification sink...")

	var err error
	s.mongoClient, err = storage.MongoDBClient(ctx, s.Config().MongoDBAddr, s.Config().MongoDBPort)
	if err != nil {
		logger.Error(err.Error())
		return err
	}

	numWorkers := s.Config().NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}
	logger.Info("initializing workers for notification sink", "region", s.Config().Region, "nworkers", numWorkers,
		"rabbitmq_addr", s.Config().RabbitMQAddr, "rabbitmq_port", s.Config().RabbitMQPort,
	)
	for i := 1; i <= numWorkers; i++ {
		go func() {
			err := s.workerThread(ctx)
			logger.Error("error in worker thread", "msg", err.Error())
		}()
	}
	return nil
}

func (s *notificationSink) onReceivedWorker(ctx context.Context, body []byte) error {
	logger := s.Logger(ctx)

	var msg model.NotificationMessage
	err := json.Unmarshal(body, &msg)
	if err != nil {
		logger.Error("error parsing json message", "msg", err.Error())
		return err
	}

	logger.Debug("received notification", "recipient_id", msg.RecipientID, "type", msg.Payload.Type)
	trace.SpanFromContext(ctx).AddEvent("reading notification message",
		trace.WithAttributes(
			attribute.Int64("queue_end_ms", time.Now().UnixMilli()),
		))

	collection := s.mongoClient.Database("notifications").Collection("notifications")
	_, err = collection.InsertOne(ctx, msg)
	if err != nil {
		logger.Error("error recording notification in mongodb", "msg", err.Error())
		return err
	}

	sn_metrics.ReceivedNotifications.Get(sn_metrics.RegionLabel{Region: s.Config().Region}).Inc()
	return nil
}

func (s *notificationSink) workerThread(ctx context.Context) error {
	logger := s.Logger(ctx)

	ch, conn, err := storage.RabbitMQClient(ctx,
		s.Config().RabbitMQUsername, s.Config().RabbitMQPassword,
		s.Config().RabbitMQAddr, s.Config().RabbitMQPort,
	)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	defer conn.Close()
	defer ch.Close()

	err = ch.ExchangeDeclare(notificationExchange, "topic", false, false, false, false, nil)
	if err != nil {
		logger.Error("error declaring exchange for rabbitmq", "msg", err.Error())
		return err
	}

	routingKey := fmt.Sprintf("%s-%s", notificationExchange, s.Config().Region)
	_, err = ch.QueueDeclare(routingKey, true, false, false, false, nil)
	if err != nil {
		logger.Error("error declaring queue for rabbitmq", "msg", err.Error())
		return err
	}

	err = ch.QueueBind(routingKey, routingKey, notificationExchange, false, nil)
	if err != nil {
		logger.Error("error binding queue for rabbitmq", "msg", err.Error())
		return err
	}

	msgs, err := ch.Consume(routingKey, "", true, false, false, false, nil)
	if err != nil {
		logger.Error("error consuming queue", "msg", err.Error())
		return err
	}

	for msg := range msgs {
		err = s.onReceivedWorker(ctx, msg.Body)
		if err != nil {
			logger.Warn("error handling notification message", "msg", err.Error())
		}
	}
	return nil
}
