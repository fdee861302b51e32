package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"retrovue/internal/clock"
	"retrovue/internal/config"
)

const userAgent = "RetroVue-Go/0.1.0"

// Service defines the alerting surface exposed to scheduling and runtime
// components. Implementations are best-effort: a delivery failure must
// never stall scheduling or playout.
type Service interface {
	NotifyConfigurationGap(ctx context.Context, channel, day, reason string) error
	NotifyProducerStartFailure(ctx context.Context, channel string, cause error) error
	NotifyProducerCrash(ctx context.Context, channel string, crashes int, cause error) error
	NotifyChannelDegraded(ctx context.Context, channel, fallback string) error
	NotifyModeChange(ctx context.Context, channel, mode string) error
	NotifyGlobalMode(ctx context.Context, mode string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config, clk clock.Clock) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if clk == nil {
		clk = clock.NewSystem()
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		clock:       clk,
		dedupWindow: time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second,
		gaps:        cfg.Notifications.ConfigurationGaps,
		failures:    cfg.Notifications.ProducerFailures,
		modes:       cfg.Notifications.ModeChanges,
		sent:        make(map[string]time.Time),
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
	dedupKey string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	clock       clock.Clock
	dedupWindow time.Duration
	gaps        bool
	failures    bool
	modes       bool

	mu   sync.Mutex
	sent map[string]time.Time
}

func (n *ntfyService) NotifyConfigurationGap(ctx context.Context, channel, day, reason string) error {
	if !n.gaps {
		return nil
	}
	data := payload{
		title:    "RetroVue - Configuration Gap",
		message:  fmt.Sprintf("Channel %s cannot be scheduled for %s: %s", channel, day, strings.TrimSpace(reason)),
		tags:     []string{"retrovue", "schedule", "gap"},
		priority: "high",
		dedupKey: fmt.Sprintf("gap|%s|%s", channel, day),
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyProducerStartFailure(ctx context.Context, channel string, cause error) error {
	if !n.failures {
		return nil
	}
	data := payload{
		title:    "RetroVue - Producer Start Failure",
		message:  fmt.Sprintf("Channel %s producer failed to start: %s", channel, errText(cause)),
		tags:     []string{"retrovue", "producer", "start-failure"},
		priority: "high",
		dedupKey: "start|" + channel,
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyProducerCrash(ctx context.Context, channel string, crashes int, cause error) error {
	if !n.failures {
		return nil
	}
	data := payload{
		title:    "RetroVue - Producer Crash",
		message:  fmt.Sprintf("Channel %s producer crashed (%d recent): %s", channel, crashes, errText(cause)),
		tags:     []string{"retrovue", "producer", "crash"},
		priority: "high",
		dedupKey: "crash|" + channel,
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyChannelDegraded(ctx context.Context, channel, fallback string) error {
	// Degradation always pages, independent of the failure toggle, and is
	// never deduplicated.
	data := payload{
		title:    "RetroVue - Channel Degraded",
		message:  fmt.Sprintf("Channel %s crashed repeatedly and switched to %s fallback; operator action required", channel, fallback),
		tags:     []string{"retrovue", "channel", "degraded"},
		priority: "urgent",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyModeChange(ctx context.Context, channel, mode string) error {
	if !n.modes {
		return nil
	}
	data := payload{
		title:   "RetroVue - Mode Change",
		message: fmt.Sprintf("Channel %s switched to %s mode", channel, mode),
		tags:    []string{"retrovue", "mode"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyGlobalMode(ctx context.Context, mode string) error {
	if !n.modes {
		return nil
	}
	data := payload{
		title:    "RetroVue - Station Mode",
		message:  fmt.Sprintf("All channels switched to %s mode", mode),
		tags:     []string{"retrovue", "mode", "global"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "RetroVue - Test",
		message:  "Notification system test",
		tags:     []string{"retrovue", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if data.dedupKey != "" && n.suppressed(data.dedupKey) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// suppressed records the key and reports whether an identical alert was
// already sent inside the dedup window.
func (n *ntfyService) suppressed(key string) bool {
	if n.dedupWindow <= 0 {
		return false
	}
	now := n.clock.Now()
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.sent[key]; ok && now.Sub(last) < n.dedupWindow {
		return true
	}
	n.sent[key] = now
	return false
}

func errText(err error) string {
	if err == nil {
		return "unknown"
	}
	return strings.TrimSpace(err.Error())
}

type noopService struct{}

// NewNop returns a Service that drops every alert. Used in tests and when
// no ntfy topic is configured.
func NewNop() Service { return noopService{} }

func (noopService) NotifyConfigurationGap(context.Context, string, string, string) error { return nil }
func (noopService) NotifyProducerStartFailure(context.Context, string, error) error      { return nil }
func (noopService) NotifyProducerCrash(context.Context, string, int, error) error        { return nil }
func (noopService) NotifyChannelDegraded(context.Context, string, string) error          { return nil }
func (noopService) NotifyModeChange(context.Context, string, string) error               { return nil }
func (noopService) NotifyGlobalMode(context.Context, string) error                       { return nil }
func (noopService) TestNotification(context.Context) error                               { return nil }
