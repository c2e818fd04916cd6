package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orrn/printworker/internal/config"
	"github.com/orrn/printworker/internal/core"
)

type WebhookEvent string

const (
	EventJobCompleted WebhookEvent = "job_completed"
	EventJobFailed    WebhookEvent = "job_failed"
)

type WebhookPayload struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Signature string    `json:"signature,omitempty"`
}

type JobEventData struct {
	JobID      string     `json:"job_id"`
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	Spooler    string     `json:"spooler_message,omitempty"`
	DurationMs int64      `json:"duration_ms"`
	PrintedAt  *time.Time `json:"printed_at,omitempty"`
}

// HTTPError is a non-2xx answer from an endpoint. 4xx answers are not retried.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: %d", e.StatusCode)
}

type webhookTask struct {
	endpoint config.WebhookEndpoint
	payload  *WebhookPayload
	attempt  int
}

// WebhookSender posts job outcomes to the configured endpoints from a small
// pool of workers. Delivery is best effort: a full queue drops the event.
type WebhookSender struct {
	endpoints   []config.WebhookEndpoint
	httpClient  *http.Client
	retryCount  int
	retryDelay  time.Duration
	workerCount int
	queue       chan *webhookTask
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	logger      *slog.Logger
}

func NewWebhookSender(cfg config.WebhooksConfig, logger *slog.Logger) *WebhookSender {
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &WebhookSender{
		endpoints: cfg.Endpoints,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retryCount:  cfg.RetryCount,
		retryDelay:  cfg.RetryDelay,
		workerCount: cfg.WorkerCount,
		queue:       make(chan *webhookTask, cfg.QueueSize),
		stopCh:      make(chan struct{}),
		logger:      logger.With("component", "webhook"),
	}
}

func (s *WebhookSender) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *WebhookSender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *WebhookSender) JobFinished(ctx context.Context, o core.Outcome) {
	data := &JobEventData{
		JobID:      o.Job.ID,
		Type:       string(o.Job.Type),
		Status:     string(o.Job.Status),
		Spooler:    o.Message,
		DurationMs: o.Duration.Milliseconds(),
		PrintedAt:  o.Job.PrintedAt,
	}

	event := EventJobCompleted
	if o.Err != nil {
		event = EventJobFailed
		data.Error = o.Err.Error()
		data.ErrorKind = string(core.KindOf(o.Err))
	}
	s.enqueue(event, data)
}

func subscribed(ep config.WebhookEndpoint, event WebhookEvent) bool {
	if len(ep.Events) == 0 {
		return true
	}
	for _, e := range ep.Events {
		if e == string(event) {
			return true
		}
	}
	return false
}

func (s *WebhookSender) enqueue(event WebhookEvent, data any) {
	for _, ep := range s.endpoints {
		if !subscribed(ep, event) {
			continue
		}

		task := &webhookTask{
			endpoint: ep,
			payload: &WebhookPayload{
				ID:        uuid.NewString(),
				Event:     string(event),
				Timestamp: time.Now().UTC(),
				Data:      data,
			},
		}

		select {
		case s.queue <- task:
		default:
			s.logger.Warn("queue full, dropping webhook", "url", ep.URL, "event", event)
		}
	}
}

func (s *WebhookSender) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case task := <-s.queue:
			if err := s.sendWithRetry(task); err != nil {
				s.logger.Error("webhook delivery failed",
					"worker", id,
					"url", task.endpoint.URL,
					"event", task.payload.Event,
					"attempts", task.attempt,
					"error", err,
				)
			}
		}
	}
}

func (s *WebhookSender) sendWithRetry(task *webhookTask) error {
	var lastErr error
	for task.attempt < s.retryCount {
		task.attempt++

		err := s.sendRequest(task.endpoint, task.payload)
		if err == nil {
			return nil
		}
		lastErr = err

		if isClientError(err) {
			return err
		}

		if task.attempt < s.retryCount {
			backoff := s.retryDelay * time.Duration(1<<(task.attempt-1))
			s.logger.Debug("retrying webhook",
				"attempt", task.attempt,
				"max", s.retryCount,
				"url", task.endpoint.URL,
				"backoff", backoff.String(),
				"error", err,
			)

			select {
			case <-s.stopCh:
				return fmt.Errorf("shutdown requested")
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (s *WebhookSender) sendRequest(ep config.WebhookEndpoint, payload *WebhookPayload) error {
	dataBytes, err := json.Marshal(payload.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	if ep.Secret != "" {
		payload.Signature = Sign(dataBytes, ep.Secret)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", payload.Event)
	req.Header.Set("X-Webhook-ID", payload.ID)
	if payload.Signature != "" {
		req.Header.Set("X-Webhook-Signature", payload.Signature)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &HTTPError{StatusCode: resp.StatusCode}
	}

	return nil
}

// Sign returns the hex HMAC-SHA256 of data under secret, as sent in
// X-Webhook-Signature.
func Sign(data []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func isClientError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500
	}
	return false
}
