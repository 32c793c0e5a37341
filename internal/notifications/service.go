package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dubflow/internal/config"
)

const userAgent = "dubflow/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyBatchStarted(ctx context.Context, input string, count int) error
	NotifyBatchCompleted(ctx context.Context, succeeded, failed int, duration time.Duration, video string) error
	NotifyItemFailed(ctx context.Context, title, message string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
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
		settings: cfg.Notifications,
	}
}

// NewNoop returns a service that discards every notification.
func NewNoop() Service {
	return noopService{}
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
	settings config.Notifications
}

func (n *ntfyService) NotifyBatchStarted(ctx context.Context, input string, count int) error {
	if !n.settings.BatchStart {
		return nil
	}
	input = strings.TrimSpace(input)
	message := fmt.Sprintf("Started dubbing %d video(s)", count)
	if input != "" {
		message = fmt.Sprintf("%s\nSource: %s", message, input)
	}
	return n.send(ctx, payload{
		title:   "dubflow - Batch Started",
		message: message,
		tags:    []string{"dubflow", "batch", "started"},
	})
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, succeeded, failed int, duration time.Duration, video string) error {
	if !n.settings.BatchComplete {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	title := "dubflow - Batch Complete"
	message := fmt.Sprintf("成功: %d\n失败: %d\nElapsed: %s", succeeded, failed, duration)
	priority := ""
	if failed > 0 {
		title = "dubflow - Batch Complete (with errors)"
		priority = "high"
	}
	if video = strings.TrimSpace(video); video != "" {
		message = fmt.Sprintf("%s\nVideo: %s", message, video)
	}
	return n.send(ctx, payload{
		title:    title,
		message:  message,
		tags:     []string{"dubflow", "batch", "completed"},
		priority: priority,
	})
}

func (n *ntfyService) NotifyItemFailed(ctx context.Context, title, message string) error {
	if !n.settings.Errors {
		return nil
	}
	return n.send(ctx, payload{
		title:   "dubflow - Video Failed",
		message: fmt.Sprintf("%s: %s", strings.TrimSpace(title), strings.TrimSpace(message)),
		tags:    []string{"dubflow", "item", "failed"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.settings.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" during ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "dubflow - Error",
		message:  builder.String(),
		tags:     []string{"dubflow", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "dubflow - Test",
		message:  "Notification system test",
		tags:     []string{"dubflow", "test"},
		priority: "low",
	})
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

type noopService struct{}

func (noopService) NotifyBatchStarted(context.Context, string, int) error { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, int, time.Duration, string) error {
	return nil
}
func (noopService) NotifyItemFailed(context.Context, string, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error       { return nil }
func (noopService) TestNotification(context.Context) error                 { return nil }
