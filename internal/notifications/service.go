package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vigil/internal/config"
	"vigil/internal/logging"
)

const userAgent = "vigil/0.1.0"

// Event names a notification the sweep can emit.
type Event string

const (
	EventObjectCorrupted Event = "object_corrupted"
	EventSweepCompleted  Event = "sweep_completed"
	EventSweepFailed     Event = "sweep_failed"
	EventTest            Event = "test"
)

// Payload carries event fields. Keys are event specific.
type Payload map[string]any

// Service publishes events to the configured sinks.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds the notification fan-out described by cfg. When no sink
// is configured a no-op implementation is returned.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	if cfg == nil {
		return noopService{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldComponent, "notifications"))
	filter := eventFilter{
		corruption: cfg.Notifications.Corruption,
		completed:  cfg.Notifications.SweepCompleted,
		errors:     cfg.Notifications.Errors,
	}

	var sinks []Service
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		timeout := cfg.NotificationTimeout()
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		sinks = append(sinks, &ntfyService{
			endpoint: topic,
			client:   &http.Client{Timeout: timeout},
			filter:   filter,
		})
	}
	if len(cfg.Notifications.KafkaBrokers) > 0 {
		kafka, err := NewKafkaService(cfg.Notifications.KafkaBrokers, cfg.Notifications.KafkaTopic)
		if err != nil {
			logger.Warn("kafka notifications disabled",
				logging.Error(err),
				logging.String(logging.FieldEventType, "notify_kafka_init_failed"),
				logging.String(logging.FieldErrorHint, "check notifications.kafka_brokers"),
				logging.String(logging.FieldImpact, "corruption events are not published to kafka"),
			)
		} else {
			kafka.filter = filter
			sinks = append(sinks, kafka)
		}
	}

	switch len(sinks) {
	case 0:
		return noopService{}
	case 1:
		return sinks[0]
	default:
		return fanout(sinks)
	}
}

// Close releases sink resources when svc holds any.
func Close(svc Service) error {
	if closer, ok := svc.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

type eventFilter struct {
	corruption bool
	completed  bool
	errors     bool
}

func (f eventFilter) allows(event Event) bool {
	switch event {
	case EventObjectCorrupted:
		return f.corruption
	case EventSweepCompleted:
		return f.completed
	case EventSweepFailed:
		return f.errors
	case EventTest:
		return true
	default:
		return false
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	filter   eventFilter
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if !n.filter.allows(event) {
		return nil
	}
	p, ok := formatEvent(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, p)
}

func formatEvent(event Event, data Payload) (payload, bool) {
	switch event {
	case EventObjectCorrupted:
		identifier := payloadString(data, "identifier")
		message := fmt.Sprintf("Corrupted object: %s", identifier)
		if path := payloadString(data, "path"); path != "" {
			message = fmt.Sprintf("%s\nFile: %s", message, path)
			if reason := payloadString(data, "reason"); reason != "" {
				message = fmt.Sprintf("%s (%s)", message, reason)
			}
		}
		return payload{
			title:    "Vigil - Corruption Detected",
			message:  message,
			tags:     []string{"vigil", "integrity", "corrupted"},
			priority: "high",
		}, true
	case EventSweepCompleted:
		total := payloadInt(data, "total")
		corrupted := payloadInt(data, "corrupted")
		title := "Vigil - Sweep Complete"
		if corrupted > 0 {
			title = "Vigil - Sweep Complete (corruption found)"
		}
		message := fmt.Sprintf("Sweep complete: %d objects verified, %d corrupted", total, corrupted)
		if duration, ok := data["duration"].(time.Duration); ok && duration > 0 {
			message = fmt.Sprintf("%s in %s", message, duration.Round(time.Second))
		}
		return payload{
			title:   title,
			message: message,
			tags:    []string{"vigil", "sweep", "completed"},
		}, true
	case EventSweepFailed:
		var builder strings.Builder
		builder.WriteString("Sweep stopped")
		if identifier := payloadString(data, "identifier"); identifier != "" {
			builder.WriteString(" at ")
			builder.WriteString(identifier)
		}
		builder.WriteString(": ")
		if msg := payloadString(data, "error"); msg != "" {
			builder.WriteString(msg)
		} else {
			builder.WriteString("unknown")
		}
		return payload{
			title:    "Vigil - Sweep Failed",
			message:  builder.String(),
			tags:     []string{"vigil", "sweep", "error"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "Vigil - Test",
			message:  "Notification system test",
			tags:     []string{"vigil", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
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

type fanout []Service

func (f fanout) Publish(ctx context.Context, event Event, data Payload) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Publish(ctx, event, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) Close() error {
	var errs []error
	for _, sink := range f {
		if err := Close(sink); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

func payloadString(data Payload, key string) string {
	if data == nil {
		return ""
	}
	switch v := data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case error:
		return strings.TrimSpace(v.Error())
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func payloadInt(data Payload, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
