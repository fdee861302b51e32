package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"retrovue/internal/clock"
	"retrovue/internal/config"
	"retrovue/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg, nil)
	if err := svc.NotifyConfigurationGap(context.Background(), "retro-one", "2024-03-01", "no template assigned"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsAlerts(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "configuration gap",
			notify: func(svc notifications.Service) error {
				return svc.NotifyConfigurationGap(context.Background(), "retro-one", "2024-03-02", "no template assigned")
			},
			expectTitle:    "RetroVue - Configuration Gap",
			expectMessage:  "Channel retro-one cannot be scheduled for 2024-03-02: no template assigned",
			expectTags:     "retrovue,schedule,gap",
			expectPriority: "high",
		},
		{
			name: "channel degraded",
			notify: func(svc notifications.Service) error {
				return svc.NotifyChannelDegraded(context.Background(), "retro-one", "guide")
			},
			expectTitle:    "RetroVue - Channel Degraded",
			expectMessage:  "Channel retro-one crashed repeatedly and switched to guide fallback; operator action required",
			expectTags:     "retrovue,channel,degraded",
			expectPriority: "urgent",
		},
		{
			name: "global mode",
			notify: func(svc notifications.Service) error {
				return svc.NotifyGlobalMode(context.Background(), "emergency")
			},
			expectTitle:    "RetroVue - Station Mode",
			expectMessage:  "All channels switched to emergency mode",
			expectTags:     "retrovue,mode,global",
			expectPriority: "high",
		},
		{
			name: "test notification",
			notify: func(svc notifications.Service) error {
				return svc.TestNotification(context.Background())
			},
			expectTitle:    "RetroVue - Test",
			expectMessage:  "Notification system test",
			expectTags:     "retrovue,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			cfg.Notifications.ModeChanges = true

			svc := notifications.NewService(&cfg, nil)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceDeduplicatesStandingAlerts(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.DedupWindowSeconds = 600

	fake := clock.NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := notifications.NewService(&cfg, fake)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := svc.NotifyConfigurationGap(ctx, "retro-one", "2024-03-02", "no template assigned"); err != nil {
			t.Fatalf("notify %d: %v", i, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 delivery inside dedup window, got %d", got)
	}

	// A different day is a different standing condition.
	if err := svc.NotifyConfigurationGap(ctx, "retro-one", "2024-03-03", "no template assigned"); err != nil {
		t.Fatalf("notify other day: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected distinct key to deliver, got %d calls", got)
	}

	// Past the window the alert fires again.
	fake.Advance(11 * time.Minute)
	if err := svc.NotifyConfigurationGap(ctx, "retro-one", "2024-03-02", "no template assigned"); err != nil {
		t.Fatalf("notify after window: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected redelivery after dedup window, got %d calls", got)
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected delivery for disabled alert class: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.ConfigurationGaps = false
	cfg.Notifications.ProducerFailures = false
	cfg.Notifications.ModeChanges = false

	svc := notifications.NewService(&cfg, nil)
	ctx := context.Background()
	if err := svc.NotifyConfigurationGap(ctx, "retro-one", "2024-03-02", "gap"); err != nil {
		t.Fatalf("gap: %v", err)
	}
	if err := svc.NotifyProducerCrash(ctx, "retro-one", 2, nil); err != nil {
		t.Fatalf("crash: %v", err)
	}
	if err := svc.NotifyGlobalMode(ctx, "guide"); err != nil {
		t.Fatalf("mode: %v", err)
	}
}
