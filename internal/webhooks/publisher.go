// Package webhooks notifies external endpoints of place changes. Events are
// signed with HMAC-SHA256 when the target has a secret and retried with
// exponential backoff.
package webhooks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"myplaces/internal/store"
)

// Source delivers store mutations. *store.Notifying implements it.
type Source interface {
	Subscribe() (<-chan store.Change, func())
}

// Publisher turns events into deliveries for every target.
type Publisher struct {
	targets []Target
	worker  *Worker
	log     *zap.Logger
}

func NewPublisher(targets []Target, w *Worker, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{targets: targets, worker: w, log: log}
}

// Emit enqueues eventType with data for every target.
func (p *Publisher) Emit(eventType string, data any) {
	if len(p.targets) == 0 {
		return
	}
	body, err := json.Marshal(map[string]any{
		"id":   "evt_" + uuid.NewString(),
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": data,
	})
	if err != nil {
		p.log.Warn("webhook payload not encodable", zap.String("type", eventType), zap.Error(err))
		return
	}
	for _, t := range p.targets {
		p.worker.Enqueue(t, eventType, body)
	}
}

// placeEvent is the webhook view of a place; image bytes stay out of the
// payload.
type placeEvent struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Location string  `json:"location,omitempty"`
	Type     string  `json:"type,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
	HasImage bool    `json:"hasImage,omitempty"`
}

// Watch emits place.created, place.updated and place.deleted for every
// change from src until ctx ends.
func (p *Publisher) Watch(ctx context.Context, src Source) {
	ch, cancel := src.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-ch:
			if !ok {
				return
			}
			pl := c.Place
			p.Emit("place."+string(c.Kind), placeEvent{
				ID:       pl.ID,
				Name:     pl.Name,
				Location: pl.Location,
				Type:     pl.Type,
				Rating:   pl.Rating,
				HasImage: len(pl.ImageData) > 0,
			})
		}
	}
}
