package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wishory-lab/aiworkground/internal/config"
	"github.com/wishory-lab/aiworkground/internal/logging"
	"github.com/wishory-lab/aiworkground/internal/observability"
	"github.com/wishory-lab/aiworkground/internal/provider"
	"github.com/wishory-lab/aiworkground/internal/queue"
	"github.com/wishory-lab/aiworkground/internal/store"
	workerpkg "github.com/wishory-lab/aiworkground/internal/worker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel})
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	observability.RegisterMetrics()

	shutdownTracing, err := observability.InitTracing(context.Background(), observability.OTelConfig{
		ServiceName: firstNonEmpty(cfg.OTELServiceName, "aiworkground-worker"),
		Endpoint:    cfg.OTELExporterOTLPEndpoint,
		Env:         cfg.Env,
	})
	if err != nil {
		logger.Fatal("otel init failed", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.WorkerMetricsPort)
		logger.Info("worker metrics server starting", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, mux)
	}()

	st, err := store.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connection failed", zap.Error(err))
	}
	defer st.Close()

	q, err := queue.New(context.Background(), queue.Config{
		NATSURL:      cfg.NATSURL,
		StreamName:   cfg.NATSStreamName,
		ConsumerName: cfg.NATSConsumerName,
	})
	if err != nil {
		logger.Fatal("nats connection failed", zap.Error(err))
	}
	defer q.Close()

	sub, err := ensurePullSub(q, cfg, logger)
	if err != nil {
		logger.Fatal("create pull consumer failed", zap.Error(err))
	}

	openai := provider.NewOpenAIClient(provider.OpenAIConfig{
		APIKey:        cfg.OpenAIAPIKey,
		BaseURL:       cfg.OpenAIBaseURL,
		Timeout:       cfg.ProviderTimeout,
		MaxConcurrent: cfg.ProviderMaxConcurrent,
	})
	anthropic := provider.NewAnthropicClient(provider.AnthropicConfig{
		APIKey:        cfg.AnthropicAPIKey,
		BaseURL:       cfg.AnthropicBaseURL,
		Timeout:       cfg.ProviderTimeout,
		MaxConcurrent: cfg.ProviderMaxConcurrent,
	})

	router := workerpkg.NewRouter(openai, openai, anthropic)
	executor := workerpkg.NewExecutor(st, st, st, router, q, logger, workerpkg.ExecutorConfig{
		ProviderTimeout: cfg.ProviderTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	wg := &sync.WaitGroup{}
	sem := make(chan struct{}, cfg.WorkerConcurrency)

	logger.Info("worker started",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.Duration("poll_timeout", cfg.WorkerPollTimeout),
		zap.Duration("provider_timeout", cfg.ProviderTimeout),
	)

	go func() {
		<-stop
		logger.Info("shutdown signal received")
		cancel()
	}()

	for {
		select {
		case <-ctx.Done():
			// Drain: every in-flight execution runs to its terminal
			// state before the process exits.
			wg.Wait()
			logger.Info("worker stopped")
			return
		default:
		}

		msgs, err := sub.Fetch(1, nats.MaxWait(cfg.WorkerPollTimeout))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			logger.Warn("fetch error", zap.Error(err))
			continue
		}

		for _, m := range msgs {
			sem <- struct{}{}
			wg.Add(1)

			go func(m *nats.Msg) {
				defer wg.Done()
				defer func() { <-sem }()

				if err := handleMsg(ctx, logger, executor, m); err != nil {
					// Could not look at the task (store down, bad
					// payload already acked separately); redeliver.
					logger.Error("handle message failed", zap.Error(err))
					_ = m.Nak()
					return
				}
				_ = m.Ack()
			}(m)
		}
	}
}

func ensurePullSub(q *queue.Queue, cfg *config.Config, logger *zap.Logger) (*nats.Subscription, error) {
	js := q.JetStream()

	sub, err := js.PullSubscribe("tasks.*", cfg.NATSConsumerName,
		nats.BindStream(cfg.NATSStreamName),
		nats.ManualAck(),
		nats.AckExplicit(),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("pull subscription ready",
		zap.String("stream", cfg.NATSStreamName),
		zap.String("consumer", cfg.NATSConsumerName),
	)
	return sub, nil
}

// handleMsg unwraps one queue delivery and hands it to the executor.
// The executor owns all task-level failure handling; an error here only
// means the delivery itself should be retried.
func handleMsg(ctx context.Context, logger *zap.Logger, executor *workerpkg.Executor, m *nats.Msg) error {
	// Extract trace context from NATS headers (if present)
	if m.Header != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, observability.NATSHeaderCarrier{H: m.Header})
	}

	// Attempt number from JetStream delivery count
	attempt := 1
	if md, err := m.Metadata(); err == nil && md != nil && md.NumDelivered > 0 {
		attempt = int(md.NumDelivered)
	}

	var tm queue.TaskMessage
	if err := json.Unmarshal(m.Data, &tm); err != nil {
		logger.Error("bad task message, dropping", zap.Error(err), zap.String("subject", m.Subject))
		return nil
	}

	taskID, err := uuid.Parse(tm.TaskID)
	if err != nil {
		logger.Error("bad task id, dropping", zap.Error(err), zap.String("task_id", tm.TaskID))
		return nil
	}

	return executor.Execute(ctx, taskID, attempt)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
