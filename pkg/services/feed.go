package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"socialfeed/pkg/errs"
	"socialfeed/pkg/feed"
	"socialfeed/pkg/model"
	"socialfeed/pkg/storage"
	sn_trace "socialfeed/pkg/trace"
	"socialfeed/pkg/utils"

	"github.com/ServiceWeaver/weaver"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DISPATCH_INLINE   = "inline"
	DISPATCH_RABBITMQ = "rabbitmq"
)

type FeedService interface {
	ProcessPostCreation(ctx context.Context, reqID int64, postID int64) error
	FetchFeed(ctx context.Context, reqID int64, userID int64, start int64, stop int64) ([]int64, error)
}

type feedService struct {
	weaver.Implements[FeedService]
	weaver.WithConfig[feedServiceOptions]
	socialGraphService weaver.Ref[SocialGraphService]
	_                  weaver.Ref[FanOutWorkerService]
	redisClient        *redis.Client
	amqChannel         *amqp.Channel
	amqConnection      *amqp.Connection
	writer             *feed.Writer
	dispatcher         feed.Dispatcher
	inline             *feed.InlineDispatcher
}

type feedServiceOptions struct {
	RedisAddr         string   `toml:"redis_address"`
	RedisPort         int      `toml:"redis_port"`
	Dispatch          string   `toml:"dispatch"`
	FanOutConcurrency int      `toml:"fanout_concurrency"`
	RabbitMQAddr      string   `toml:"rabbitmq_address"`
	RabbitMQPort      int      `toml:"rabbitmq_port"`
	RabbitMQUsername  string   `toml:"rabbitmq_username"`
	RabbitMQPassword  string   `toml:"rabbitmq_password"`
	Regions           []string `toml:"regions"`
	Region            string   `toml:"region"`
}

func (f *feedService) Init(ctx context.Context) error {
	logger := f.Logger(ctx)

	region, err := utils.RegionOrDefault(f.Config().Region)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	f.Config().Region = region
	if len(f.Config().Regions) == 0 {
		f.Config().Regions = []string{region}
	}

	f.redisClient, err = storage.RedisClient(ctx, f.Config().RedisAddr, f.Config().RedisPort)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	f.writer = feed.NewWriter(f.socialGraphService.Get(), storage.NewRedisFeedCache(f.redisClient), logger, f.Config().FanOutConcurrency)

	switch f.Config().Dispatch {
	case DISPATCH_RABBITMQ:
		f.amqChannel, f.amqConnection, err = storage.RabbitMQClient(f.Config().RabbitMQUsername, f.Config().RabbitMQPassword, f.Config().RabbitMQAddr, f.Config().RabbitMQPort)
		if err != nil {
			logger.Error(err.Error())
			return err
		}
		for _, r := range f.Config().Regions {
			if _, err := storage.DeclareFanOutQueue(f.amqChannel, r); err != nil {
				logger.Error(err.Error())
				return err
			}
		}
		f.dispatcher = &queueDispatcher{channel: f.amqChannel, regions: f.Config().Regions, logger: logger}
	case DISPATCH_INLINE, "":
		f.inline = feed.NewInlineDispatcher(f.writer, logger)
		f.dispatcher = f.inline
	default:
		return errors.Errorf("unknown dispatch mode %q", f.Config().Dispatch)
	}

	logger.Info("feed service running!", "region", f.Config().Region, "regions", f.Config().Regions,
		"dispatch", f.Config().Dispatch, "redis_addr", f.Config().RedisAddr, "redis_port", f.Config().RedisPort,
		"rabbitmq_addr", f.Config().RabbitMQAddr, "rabbitmq_port", f.Config().RabbitMQPort,
	)
	return nil
}

func (f *feedService) Shutdown(ctx context.Context) error {
	if f.inline != nil {
		f.inline.Wait()
	}
	if f.amqConnection != nil {
		f.amqChannel.Close()
		f.amqConnection.Close()
	}
	return f.redisClient.Close()
}

// ProcessPostCreation verifies the post and returns as soon as its fan-out
// is dispatched.
func (f *feedService) ProcessPostCreation(ctx context.Context, reqID int64, postID int64) error {
	logger := f.Logger(ctx)
	logger.Debug("entering ProcessPostCreation", "req_id", reqID, "post_id", postID)
	err := feed.Accept(ctx, f.writer, f.dispatcher, reqID, postID)
	if err != nil {
		logger.Warn("post not accepted for fan-out", "req_id", reqID, "post_id", postID, "msg", err.Error())
	}
	return err
}

func (f *feedService) FetchFeed(ctx context.Context, reqID int64, userID int64, start int64, stop int64) ([]int64, error) {
	f.Logger(ctx).Debug("entering FetchFeed", "req_id", reqID, "user_id", userID, "start", start, "stop", stop)
	return f.writer.FetchFeed(ctx, userID, start, stop)
}

// queueDispatcher publishes one fan-out message per region; each region's
// workers write into their own feed cache.
type queueDispatcher struct {
	channel *amqp.Channel
	regions []string
	logger  *slog.Logger
	mu      sync.Mutex
}

func (d *queueDispatcher) Dispatch(ctx context.Context, reqID int64, post model.Post) error {
	span := trace.SpanFromContext(ctx)
	msg := model.FanOutMessage{
		ReqID:       reqID,
		PostID:      post.PostID,
		Timestamp:   time.Now().UnixMilli(),
		SpanContext: sn_trace.BuildSpanContext(span.SpanContext()),
	}
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		d.logger.Error("error converting fan-out message to json", "post_id", post.PostID, "msg", err.Error())
		return err
	}

	// publishing must not be cut short by the caller going away
	ctx = context.WithoutCancel(ctx)
	span.AddEvent("publishing fan-out message",
		trace.WithAttributes(
			attribute.Int64("queue_start_ms", msg.Timestamp),
			attribute.Int64("post_id", post.PostID),
		))

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, region := range d.regions {
		routingKey := storage.FanOutRoutingKey(region)
		err := d.channel.PublishWithContext(ctx, storage.FANOUT_EXCHANGE, routingKey, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.UnixMilli(msg.Timestamp),
			Body:         msgJSON,
		})
		if err != nil {
			d.logger.Error("error publishing fan-out message", "routing_key", routingKey, "post_id", post.PostID, "msg", err.Error())
			return errs.Upstream(err, "publishing fan-out message")
		}
	}
	return nil
}
