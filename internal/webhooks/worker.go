package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"myplaces/internal/metrics"
)

const (
	DefaultMaxAttempts = 10
	deadLetterCap      = 100
)

// Target is a receiving endpoint. A non-empty Secret signs every body.
type Target struct {
	URL    string `yaml:"url" json:"url"`
	Secret string `yaml:"secret" json:"-"`
}

// Delivery is one queued POST of an event to a target.
type Delivery struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	EventType string    `json:"eventType"`
	Attempts  int       `json:"attempts"`
	NextAt    time.Time `json:"nextAttemptAt"`
	LastError string    `json:"lastError,omitempty"`
	LastCode  int       `json:"lastResponseCode,omitempty"`

	secret  string
	payload []byte
}

// Worker delivers queued events with exponential backoff. Deliveries that
// exhaust MaxAttempts move to a bounded dead-letter list.
type Worker struct {
	HTTP        *http.Client
	MaxAttempts int
	Interval    time.Duration

	log *zap.Logger
	now func() time.Time

	mu     sync.Mutex
	queue  []*Delivery
	dead   []Delivery
	wakeup chan struct{}
}

func NewWorker(maxAttempts int, log *zap.Logger) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: maxAttempts,
		Interval:    time.Second,
		log:         log,
		now:         time.Now,
		wakeup:      make(chan struct{}, 1),
	}
}

// Enqueue schedules payload for immediate delivery to t.
func (w *Worker) Enqueue(t Target, eventType string, payload []byte) string {
	d := &Delivery{
		ID:        uuid.NewString(),
		URL:       t.URL,
		EventType: eventType,
		NextAt:    w.now(),
		secret:    t.Secret,
		payload:   payload,
	}
	w.mu.Lock()
	w.queue = append(w.queue, d)
	w.mu.Unlock()
	select {
	case w.wakeup <- struct{}{}:
	default:
	}
	return d.ID
}

// Run processes the queue until ctx ends.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wakeup:
		}
		w.processOnce(ctx)
	}
}

func (w *Worker) processOnce(ctx context.Context) {
	now := w.now()
	w.mu.Lock()
	var due []*Delivery
	rest := w.queue[:0]
	for _, d := range w.queue {
		if !d.NextAt.After(now) {
			due = append(due, d)
		} else {
			rest = append(rest, d)
		}
	}
	w.queue = rest
	w.mu.Unlock()

	for _, d := range due {
		code, err := w.send(ctx, d)
		d.Attempts++
		d.LastCode = code
		d.LastError = ""
		if err != nil {
			d.LastError = err.Error()
		}
		switch {
		case err == nil && code >= 200 && code < 300:
			metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
			continue
		case d.Attempts >= w.MaxAttempts:
			metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
			w.log.Warn("webhook delivery failed", zap.String("id", d.ID), zap.String("url", d.URL),
				zap.Int("attempts", d.Attempts), zap.Int("code", code), zap.String("error", d.LastError))
			w.mu.Lock()
			w.dead = append(w.dead, *d)
			if len(w.dead) > deadLetterCap {
				w.dead = w.dead[len(w.dead)-deadLetterCap:]
			}
			w.mu.Unlock()
		default:
			metrics.WebhookDeliveries.WithLabelValues("retry").Inc()
			d.NextAt = w.now().Add(nextBackoff(d.Attempts))
			w.mu.Lock()
			w.queue = append(w.queue, d)
			w.mu.Unlock()
		}
	}
}

func (w *Worker) send(ctx context.Context, d *Delivery) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(d.payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", d.EventType)
	req.Header.Set("X-Delivery-Id", d.ID)
	req.Header.Set("X-Delivery-Attempt", strconv.Itoa(d.Attempts+1))
	if d.secret != "" {
		req.Header.Set("X-Signature", SignHMAC(d.secret, d.payload))
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// Pending is the number of deliveries waiting for an attempt.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// DeadLetters returns the most recent failed deliveries, oldest first.
func (w *Worker) DeadLetters() []Delivery {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Delivery(nil), w.dead...)
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
