package bootstrap

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"query_router/adapter/in/worker"
	"query_router/adapter/out/messaging"
	"query_router/core/port/in"
	"query_router/pkg/logger"
)

const consumerGroup = "router-workers"

// Worker consumes the learning streams and runs the periodic analysis.
type Worker struct {
	deps      *Dependencies
	pool      *worker.Pool
	consumer  *messaging.Consumer
	scheduler *worker.AnalysisScheduler
	zlog      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker wires the pool, the stream consumer (when Redis is configured)
// and the analysis scheduler.
func NewWorker(deps *Dependencies) *Worker {
	cfg := deps.Config
	zlog := logger.Component("worker")

	handler := worker.NewHandler(deps.Learning, deps.TicketRepo, deps.Classifier)

	poolCfg := worker.DefaultPoolConfig()
	poolCfg.Workers = cfg.WorkerMax
	poolCfg.WorkerChanSize = cfg.QueueSize
	poolCfg.MaxRetries = cfg.MaxRetries
	pool := worker.NewPool(handler, poolCfg, logger.Component("worker_pool"))

	var consumer *messaging.Consumer
	if deps.Redis != nil {
		consumer = messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
			Group:      consumerGroup,
			Consumer:   cfg.WorkerID,
			Streams:    messaging.LearningStreams,
			Handler:    worker.NewStreamHandler(pool),
			Logger:     logger.Component("stream_consumer"),
			MaxRetries: cfg.MaxRetries,
		})
	} else {
		zlog.Warn().Msg("REDIS_URL not set, worker only runs scheduled analysis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		deps:      deps,
		pool:      pool,
		consumer:  consumer,
		scheduler: worker.NewAnalysisScheduler(deps.Learning, deps.Classifier, cfg.LearningAnalyzeInterval),
		zlog:      zlog,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the pool, the consumer and the scheduler without blocking.
func (w *Worker) Start() error {
	if err := w.pool.Start(); err != nil {
		return err
	}

	if w.consumer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.zlog.Info().Str("group", consumerGroup).Msg("starting learning stream consumer")
			if err := w.consumer.Run(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.zlog.Error().Err(err).Msg("learning stream consumer stopped")
			}
		}()
	}

	w.scheduler.Start()
	return nil
}

// Stop stops consuming first so the pool can drain what it already holds.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.scheduler.Stop()
	w.pool.Stop()
}

// GetMetrics returns pool metrics.
func (w *Worker) GetMetrics() worker.PoolMetrics {
	return w.pool.GetMetrics()
}

// RunAnalysis runs one pattern analysis pass and refreshes the overlay.
func RunAnalysis(ctx context.Context, deps *Dependencies) (*in.AnalysisReport, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	scheduler := worker.NewAnalysisScheduler(deps.Learning, deps.Classifier, 0)
	return scheduler.RunOnce(ctx)
}
