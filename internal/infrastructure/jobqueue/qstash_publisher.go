package jobqueue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/logging"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/resilience"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/usecase"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InternalJobTokenHeader is checked by the internal job endpoints.
const InternalJobTokenHeader = "X-Internal-Job-Token"

type QStashPublisherConfig struct {
	BaseURL          string
	Token            string
	TargetBaseURL    string
	Retries          int
	InternalJobToken string
	Timeout          time.Duration
	Circuit          resilience.CircuitBreakerConfig
}

// QStashPublisher enqueues jobs on Upstash QStash, which calls back into
// TargetBaseURL+path with the payload.
type QStashPublisher struct {
	client        *http.Client
	breaker       *resilience.CircuitBreaker
	publishPrefix string
	targetBaseURL string
	token         string
	retries       int
	jobToken      string
	logger        *logging.Logger
}

func NewQStashPublisher(cfg QStashPublisherConfig, logger *logging.Logger) (*QStashPublisher, error) {
	if logger == nil {
		logger = logging.Default()
	}
	baseURL, err := validateHTTPBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, crerr.Wrap(err, "invalid QSTASH_BASE_URL")
	}
	targetBaseURL, err := validateHTTPBaseURL(cfg.TargetBaseURL)
	if err != nil {
		return nil, crerr.Wrap(err, "invalid QSTASH_TARGET_BASE_URL")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger = logger.Named("qstash")
	if cfg.Circuit.OnStateChange == nil {
		cfg.Circuit.OnStateChange = func(from, to resilience.CircuitState) {
			logger.Warn("qstash circuit state changed", "from", from, "to", to)
		}
	}

	return &QStashPublisher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker:       resilience.NewCircuitBreaker(cfg.Circuit),
		publishPrefix: baseURL + "/v2/publish/",
		targetBaseURL: targetBaseURL,
		token:         strings.TrimSpace(cfg.Token),
		retries:       cfg.Retries,
		jobToken:      strings.TrimSpace(cfg.InternalJobToken),
		logger:        logger,
	}, nil
}

func (p *QStashPublisher) Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error {
	path = "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "/" {
		return crerr.New("job path is required")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := sonic.Marshal(payload)
	if err != nil {
		return crerr.Wrap(err, "encode job payload")
	}

	targetURL := p.targetBaseURL + path
	deduplicationID = strings.TrimSpace(deduplicationID)
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.String("qstash.target_url", targetURL),
			attribute.String("qstash.deduplication_id", deduplicationID),
			attribute.Int("qstash.body_bytes", len(body)),
		)
	}

	err = p.breaker.Execute(func() error {
		return p.publish(ctx, targetURL, body, delay, deduplicationID)
	})
	if err != nil {
		// Transport and breaker failures surface as an unavailable dependency.
		return fmt.Errorf("%w: %w", usecase.ErrDependencyUnavailable, crerr.Wrapf(err, "publish qstash job path=%s", path))
	}

	p.logger.InfoContext(ctx, "qstash job published",
		"path", path,
		"delay", formatDelay(delay),
		"deduplication_id", deduplicationID,
	)
	return nil
}

func (p *QStashPublisher) publish(ctx context.Context, targetURL string, body []byte, delay time.Duration, deduplicationID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.publishPrefix+targetURL, bytes.NewReader(body))
	if err != nil {
		return crerr.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Upstash-Method", http.MethodPost)
	if p.retries > 0 {
		req.Header.Set("Upstash-Retries", strconv.Itoa(p.retries))
	}
	if delay > 0 {
		req.Header.Set("Upstash-Delay", formatDelay(delay))
	}
	if deduplicationID != "" {
		req.Header.Set("Upstash-Deduplication-Id", deduplicationID)
	}
	if p.jobToken != "" {
		req.Header.Set("Upstash-Forward-"+InternalJobTokenHeader, p.jobToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return crerr.WithDetailf(crerr.Newf("qstash responded status=%d", resp.StatusCode), "body=%s", strings.TrimSpace(string(raw)))
	}
	return nil
}

// formatDelay renders whole seconds, the unit QStash accepts.
func formatDelay(delay time.Duration) string {
	if delay <= 0 {
		return "0s"
	}
	return strconv.Itoa(int(delay.Round(time.Second).Seconds())) + "s"
}

func validateHTTPBaseURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", crerr.New("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", crerr.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", crerr.Newf("%q has empty host", candidate)
	}
	return strings.TrimRight(candidate, "/"), nil
}
