package outbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gofedhttpsig "github.com/go-fed/httpsig"

	fedihttpsig "github.com/klppl/fedigo/httpsig"
)

// SubscribableQueue is a Queue that also supports draining via a
// handler, the shape WatermillQueue and any durable equivalent provide.
type SubscribableQueue interface {
	Queue
	Subscribe(ctx context.Context, handler Handler) error
}

// ErrorSink reports a delivery job that exhausted its retry budget or
// hit a non-retryable failure, per spec.md §7 error kind 7.
type ErrorSink func(job DeliveryJob, cause error)

// Worker dequeues delivery jobs, signs and POSTs each one, and
// re-enqueues with backoff on a retryable failure.
type Worker struct {
	Queue      SubscribableQueue
	HTTPClient *http.Client
	Backoff    BackoffPolicy
	ErrorSink  ErrorSink
}

func (w *Worker) httpClient() *http.Client {
	if w.HTTPClient != nil {
		return w.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// Start begins draining the queue. It returns once Subscribe has wired
// up delivery (the actual draining runs in the background).
func (w *Worker) Start(ctx context.Context) error {
	return w.Queue.Subscribe(ctx, w.handle)
}

func (w *Worker) handle(ctx context.Context, job DeliveryJob) error {
	err := w.deliver(ctx, job)
	if err == nil {
		return nil
	}

	de, ok := err.(*deliveryError)
	if !ok || !de.retryable {
		if w.ErrorSink != nil {
			w.ErrorSink(job, err)
		}
		return nil
	}

	job.Attempt++
	if job.Attempt >= w.Backoff.maxAttempts() {
		if w.ErrorSink != nil {
			w.ErrorSink(job, fmt.Errorf("outbox: exhausted retries for %s: %w", job.Inbox, err))
		}
		return nil
	}

	delay := w.Backoff.next(job.Attempt)
	slog.Debug("outbox: scheduling delivery retry", "inbox", job.Inbox, "attempt", job.Attempt, "delaySeconds", delay)
	return w.Queue.Enqueue(ctx, job, delay)
}

// deliveryError wraps a failed delivery attempt with its retryability,
// per spec.md §6's wire-protocol response rules.
type deliveryError struct {
	statusCode int
	retryable  bool
	err        error
}

func (e *deliveryError) Error() string { return e.err.Error() }
func (e *deliveryError) Unwrap() error { return e.err }

func classifyStatus(code int) bool {
	switch {
	case code >= 200 && code < 300:
		return false // not an error at all; caller checks 2xx separately
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}

// deliver signs and POSTs job's activity to its target inbox.
func (w *Worker) deliver(ctx context.Context, job DeliveryJob) error {
	privKey, keyID, ok := firstRSAKey(job.SenderKeys)
	if !ok {
		return &deliveryError{retryable: false, err: fmt.Errorf("outbox: no RSA sender key available for %s", job.Inbox)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.Inbox, bytes.NewReader(job.ActivityJSON))
	if err != nil {
		return &deliveryError{retryable: false, err: fmt.Errorf("outbox: build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/activity+json")

	if err := fedihttpsig.Sign(req, keyID, privKey, gofedhttpsig.RSA_SHA256, job.ActivityJSON); err != nil {
		return &deliveryError{retryable: false, err: fmt.Errorf("outbox: sign request: %w", err)}
	}

	resp, err := w.httpClient().Do(req)
	if err != nil {
		return &deliveryError{retryable: true, err: fmt.Errorf("outbox: POST %s: %w", job.Inbox, err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &deliveryError{
		statusCode: resp.StatusCode,
		retryable:  classifyStatus(resp.StatusCode),
		err:        fmt.Errorf("outbox: %s responded %d", job.Inbox, resp.StatusCode),
	}
}
