package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"socialfeed/pkg/errs"
	"socialfeed/pkg/feed"
	sn_metrics "socialfeed/pkg/metrics"
	"socialfeed/pkg/model"
	"socialfeed/pkg/storage"
	sn_trace "socialfeed/pkg/trace"
	"socialfeed/pkg/utils"

	"github.com/ServiceWeaver/weaver"
	"github.com/ServiceWeaver/weaver/metrics"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type FanOutWorkerService interface {
	// FanOutWorkerService does not expose any rpc methods
}

type fanOutWorkerServiceOptions struct {
	RabbitMQAddr      string `toml:"rabbitmq_address"`
	RabbitMQPort      int    `toml:"rabbitmq_port"`
	RabbitMQUsername  string `toml:"rabbitmq_username"`
	RabbitMQPassword  string `toml:"rabbitmq_password"`
	RedisAddr         string `toml:"redis_address"`
	RedisPort         int    `toml:"redis_port"`
	NumWorkers        int    `toml:"num_workers"`
	Prefetch          int    `toml:"prefetch"`
	FanOutConcurrency int    `toml:"fanout_concurrency"`
	Region            string `toml:"region"`
}

type fanOutWorkerService struct {
	weaver.Implements[FanOutWorkerService]
	weaver.WithConfig[fanOutWorkerServiceOptions]
	socialGraphService weaver.Ref[SocialGraphService]
	redisClient        *redis.Client
	writer             *feed.Writer
	cancel             context.CancelFunc
	wg                 sync.WaitGroup
}

var (
	inconsistencies = metrics.NewCounter(
		"sf_inconsistencies",
		"The number of queued posts that could not be found in the content store",
	)
)

func (w *fanOutWorkerService) Init(ctx context.Context) error {
	logger := w.Logger(ctx)
	if w.Config().NumWorkers <= 0 {
		logger.Info("fan-out workers disabled")
		return nil
	}

	region, err := utils.RegionOrDefault(w.Config().Region)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	w.Config().Region = region

	w.redisClient, err = storage.RedisClient(ctx, w.Config().RedisAddr, w.Config().RedisPort)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	w.writer = feed.NewWriter(w.socialGraphService.Get(), storage.NewRedisFeedCache(w.redisClient), logger, w.Config().FanOutConcurrency)

	logger.Info("initializing workers for FanOutWorkerService service", "region", region, "nworkers", w.Config().NumWorkers, "rabbitmq_addr", w.Config().RabbitMQAddr, "rabbitmq_port", w.Config().RabbitMQPort)
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel
	w.wg.Add(w.Config().NumWorkers)
	for i := 1; i <= w.Config().NumWorkers; i++ {
		go func(id int) {
			defer w.wg.Done()
			if err := w.workerThread(workerCtx); err != nil {
				logger.Error("error in worker thread", "worker", id, "msg", err.Error())
			}
		}(i)
	}
	return nil
}

func (w *fanOutWorkerService) Shutdown(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	w.wg.Wait()
	return w.redisClient.Close()
}

func (w *fanOutWorkerService) onReceivedWorker(ctx context.Context, body []byte) error {
	logger := w.Logger(ctx)

	var msg model.FanOutMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		logger.Error("error parsing json message", "msg", err.Error())
		return err
	}
	ctx = sn_trace.WithRemoteParent(ctx, msg.SpanContext)

	queueEnd := time.Now().UnixMilli()
	sn_metrics.QueueDurationMs.Get(sn_metrics.RegionLabel{Region: w.Config().Region}).Put(float64(queueEnd - msg.Timestamp))
	trace.SpanFromContext(ctx).AddEvent("reading rabbitmq message",
		trace.WithAttributes(
			attribute.Int64("queue_end_ms", queueEnd),
			attribute.Int64("post_id", msg.PostID),
		))
	logger.Debug("received rabbitmq message", "req_id", msg.ReqID, "post_id", msg.PostID)

	err := w.writer.ProcessPostCreation(ctx, msg.PostID)
	if errors.Is(err, errs.ErrNotFound) {
		logger.Debug("inconsistency!", "post_id", msg.PostID)
		inconsistencies.Inc()
		return nil
	}
	return err
}

func (w *fanOutWorkerService) workerThread(ctx context.Context) error {
	logger := w.Logger(ctx)

	ch, conn, err := storage.RabbitMQClient(w.Config().RabbitMQUsername, w.Config().RabbitMQPassword, w.Config().RabbitMQAddr, w.Config().RabbitMQPort)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer ch.Close()

	queue, err := storage.DeclareFanOutQueue(ch, w.Config().Region)
	if err != nil {
		return err
	}
	if w.Config().Prefetch > 0 {
		if err := ch.Qos(w.Config().Prefetch, 0, false); err != nil {
			return fmt.Errorf("error setting prefetch for rabbitmq: %s", err.Error())
		}
	}

	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("error consuming queue: %s", err.Error())
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("rabbitmq delivery channel closed")
			}
			// acked after processing so a crash mid fan-out redelivers it;
			// appends are idempotent
			if err := w.onReceivedWorker(ctx, msg.Body); err != nil {
				logger.Warn("error in worker thread", "msg", err.Error())
			}
			if err := msg.Ack(false); err != nil {
				logger.Warn("error acking rabbitmq message", "msg", err.Error())
			}
		}
	}
}
