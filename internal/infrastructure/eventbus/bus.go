package eventbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/bytedance/sonic"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/cache"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	MetadataDedupID = "dedup_id"
	MetadataPath    = "job_path"
)

var ErrBusClosed = errors.New("event bus is closed")

type Config struct {
	Buffer        int64
	MaxRetries    int
	RetryInterval time.Duration
	// DedupWindow drops a repeated deduplication id enqueued within the window.
	DedupWindow time.Duration
	// Registry enables router metrics when set.
	Registry prometheus.Registerer
}

// Bus is an in-process job queue on a watermill GoChannel. Each job path is a topic.
// The GoChannel is not persistent, so jobs published before Running is closed are lost.
type Bus struct {
	pubSub  *gochannel.GoChannel
	router  *message.Router
	seen    *cache.Store
	logger  *logging.Logger
	closed  chan struct{}
	started atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// HandlerFunc consumes one job payload. A returned error triggers a retry.
type HandlerFunc func(ctx context.Context, payload []byte) error

func New(cfg Config, logger *logging.Logger) (*Bus, error) {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.Named("eventbus")
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 200 * time.Millisecond
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = time.Minute
	}

	wmLog := newLoggerAdapter(logger)
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, wmLog)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}
	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.RetryInterval,
			Multiplier:      2,
			Logger:          wmLog,
		}.Middleware,
	)
	if cfg.Registry != nil {
		builder := metrics.NewPrometheusMetricsBuilder(cfg.Registry, "bolao", "eventbus")
		builder.AddPrometheusRouterMetrics(router)
	}

	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: cfg.Buffer}, wmLog),
		router: router,
		seen:   cache.NewStore(cfg.DedupWindow),
		logger: logger,
		closed: make(chan struct{}),
	}, nil
}

// Handle subscribes fn to path. Must be called before Run.
func (b *Bus) Handle(name, path string, fn HandlerFunc) {
	b.router.AddNoPublisherHandler(name, normalizePath(path), b.pubSub, func(msg *message.Message) error {
		ctx := otel.GetTextMapPropagator().Extract(msg.Context(), propagation.MapCarrier(msg.Metadata))
		err := fn(ctx, msg.Payload)
		if err != nil {
			b.logger.WarnContext(ctx, "job handler failed",
				"handler", name,
				"message_id", msg.UUID,
				"dedup_id", msg.Metadata.Get(MetadataDedupID),
				"error", err,
			)
		}
		return err
	})
}

// Run blocks until ctx is cancelled or the bus is closed.
func (b *Bus) Run(ctx context.Context) error {
	b.started.Store(true)
	return b.router.Run(ctx)
}

// Running is closed once handlers are subscribed.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Enqueue implements the job queue contract. A delay schedules the publish; a
// deduplication id seen inside the window is dropped silently.
func (b *Bus) Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error {
	select {
	case <-b.closed:
		return ErrBusClosed
	default:
	}

	topic := normalizePath(path)
	if topic == "/" {
		return fmt.Errorf("job path is required")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode job payload: %w", err)
	}

	deduplicationID = strings.TrimSpace(deduplicationID)
	if deduplicationID != "" {
		if _, dup := b.seen.Get(ctx, deduplicationID); dup {
			b.logger.DebugContext(ctx, "dropping duplicate job", "path", topic, "dedup_id", deduplicationID)
			return nil
		}
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set(MetadataPath, topic)
	msg.Metadata.Set(MetadataDedupID, deduplicationID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Metadata))

	if delay <= 0 {
		if err := b.publish(topic, msg); err != nil {
			return err
		}
		b.markSeen(ctx, deduplicationID)
		return nil
	}
	// A scheduled publish has been accepted; its outcome is only logged.
	b.markSeen(ctx, deduplicationID)
	time.AfterFunc(delay, func() {
		if err := b.publish(topic, msg); err != nil {
			b.logger.Error("delayed job publish failed", "path", topic, "dedup_id", deduplicationID, "error", err)
		}
	})
	return nil
}

func (b *Bus) markSeen(ctx context.Context, deduplicationID string) {
	if deduplicationID != "" {
		b.seen.Set(ctx, deduplicationID, struct{}{})
	}
}

func (b *Bus) publish(topic string, msg *message.Message) error {
	if err := b.pubSub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		close(b.closed)
		var errs []error
		if b.started.Load() {
			errs = append(errs, b.router.Close())
		}
		errs = append(errs, b.pubSub.Close())
		b.closeErr = errors.Join(errs...)
	})
	return b.closeErr
}

func normalizePath(path string) string {
	return "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
}
