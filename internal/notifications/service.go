// Package notifications pushes queue events to an ntfy topic when one is
// configured. Without a topic every call is a no-op.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cliptube/internal/config"
	"cliptube/internal/queue"
)

const userAgent = "cliptube/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyLinkDetected(ctx context.Context, url string) error
	NotifyDownloadStarted(ctx context.Context, job *queue.Job) error
	NotifyDownloadCompleted(ctx context.Context, job *queue.Job) error
	NotifyDownloadFailed(ctx context.Context, job *queue.Job, cause string) error
	NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
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
		events:   cfg.Notifications,
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
	events   config.Notifications
}

func (n *ntfyService) NotifyLinkDetected(ctx context.Context, url string) error {
	if !n.events.LinkDetected {
		return nil
	}
	data := payload{
		title:   "cliptube - Link Detected",
		message: fmt.Sprintf("Queued from clipboard: %s", strings.TrimSpace(url)),
		tags:    []string{"cliptube", "clipboard", "detected"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDownloadStarted(ctx context.Context, job *queue.Job) error {
	if !n.events.Downloads || job == nil {
		return nil
	}
	data := payload{
		title:   "cliptube - Download Started",
		message: fmt.Sprintf("Started %s download: %s", job.Kind, jobLabel(job)),
		tags:    []string{"cliptube", "download", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDownloadCompleted(ctx context.Context, job *queue.Job) error {
	if !n.events.Downloads || job == nil {
		return nil
	}
	message := fmt.Sprintf("Finished: %s", jobLabel(job))
	if path := strings.TrimSpace(job.DestinationPath); path != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, path)
	}
	data := payload{
		title:   "cliptube - Download Complete",
		message: message,
		tags:    []string{"cliptube", "download", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDownloadFailed(ctx context.Context, job *queue.Job, cause string) error {
	if !n.events.Errors || job == nil {
		return nil
	}
	cause = strings.TrimSpace(cause)
	if cause == "" {
		cause = "unknown error"
	}
	data := payload{
		title:    "cliptube - Download Failed",
		message:  fmt.Sprintf("Failed after %d attempts: %s\n%s", job.Attempts, jobLabel(job), cause),
		tags:     []string{"cliptube", "download", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	if !n.events.Queue {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title string
	var message string
	if failed == 0 {
		title = "cliptube - Queue Complete"
		message = fmt.Sprintf("Queue drained: %d downloads finished in %s", processed, durationText)
	} else {
		title = "cliptube - Queue Complete (with errors)"
		message = fmt.Sprintf("Queue drained: %d succeeded, %d failed in %s", processed, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"cliptube", "queue", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "cliptube - Test",
		message:  "Notification system test",
		tags:     []string{"cliptube", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func jobLabel(job *queue.Job) string {
	if title := strings.TrimSpace(job.Title); title != "" {
		return title
	}
	return job.URL
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

func (noopService) NotifyLinkDetected(context.Context, string) error { return nil }

func (noopService) NotifyDownloadStarted(context.Context, *queue.Job) error { return nil }

func (noopService) NotifyDownloadCompleted(context.Context, *queue.Job) error { return nil }

func (noopService) NotifyDownloadFailed(context.Context, *queue.Job, string) error { return nil }

func (noopService) NotifyQueueCompleted(context.Context, int, int, time.Duration) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }
