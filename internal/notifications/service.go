package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quire/internal/config"
)

const userAgent = "quire/0.1.0"

// Event identifies a notification kind.
type Event string

const (
	EventEditionDelivered Event = "edition_delivered"
	EventRunCompleted     Event = "run_completed"
	EventError            Event = "error"
	EventTest             Event = "test"
)

// Payload carries event fields keyed by name.
type Payload map[string]any

// Service is the notification surface used by the orchestrator and CLI.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventEditionDelivered: cfg.Notifications.Delivered,
			EventRunCompleted:     cfg.Notifications.RunSummary,
			EventError:            cfg.Notifications.Errors,
			EventTest:             true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventEditionDelivered:
		title := payloadString(payload, "title")
		if title == "" {
			title = payloadString(payload, "edition")
		}
		body := fmt.Sprintf("📚 Delivered: %s", title)
		if n := payloadInt(payload, "destinations"); n > 0 {
			body = fmt.Sprintf("%s (%d destinations)", body, n)
		}
		return message{
			title: "quire - Delivered",
			body:  body,
			tags:  []string{"quire", "delivery", "completed"},
		}, true
	case EventRunCompleted:
		delivered := payloadInt(payload, "delivered")
		skipped := payloadInt(payload, "skipped")
		failed := payloadInt(payload, "failed")
		duration := payloadDuration(payload, "duration")
		msg := message{
			title: "quire - Run Complete",
			body:  fmt.Sprintf("Run complete: %d delivered, %d already sent in %s", delivered, skipped, duration),
			tags:  []string{"quire", "run", "completed"},
		}
		if failed > 0 {
			msg.title = "quire - Run Complete (with errors)"
			msg.body = fmt.Sprintf("Run complete: %d delivered, %d failed, %d already sent in %s", delivered, failed, skipped, duration)
		}
		return msg, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := payloadString(payload, "context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if text := payloadString(payload, "error"); text != "" {
			builder.WriteString(text)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "quire - Error",
			body:     builder.String(),
			tags:     []string{"quire", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "quire - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"quire", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

func payloadString(payload Payload, key string) string {
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

func payloadInt(payload Payload, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func payloadDuration(payload Payload, key string) time.Duration {
	d, _ := payload[key].(time.Duration)
	d = d.Round(time.Second)
	if d < 0 {
		d = 0
	}
	return d
}

// Noop returns a service that discards every event.
func Noop() Service {
	return noopService{}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
