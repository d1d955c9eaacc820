package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"myplaces/internal/session"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so a client can
// stream a session hosted by another instance.
type RedisBroker struct {
	rdb *redis.Client
	log *zap.Logger

	mu   sync.Mutex
	subs map[chan session.Event]*redis.PubSub
}

// NewRedisBroker connects to url and checks the connection.
func NewRedisBroker(ctx context.Context, url string, log *zap.Logger) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBroker{rdb: rdb, log: log, subs: map[chan session.Event]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(sessionID string) chan session.Event {
	ch := make(chan session.Event, 32)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(sessionID))
	// wait for the subscription so events published right after are seen
	if _, err := ps.Receive(ctx); err != nil {
		b.log.Warn("redis subscribe failed", zap.String("session", sessionID), zap.Error(err))
	}
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt session.Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch
}

// Unsubscribe closes the Pub/Sub connection; ch is closed once its reader
// goroutine drains.
func (b *RedisBroker) Unsubscribe(_ string, ch chan session.Event) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(sessionID string, evt session.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		b.log.Warn("event not encodable", zap.String("type", evt.Type), zap.Error(err))
		return
	}
	if err := b.rdb.Publish(ctx, b.chanName(sessionID), data).Err(); err != nil {
		b.log.Warn("redis publish failed", zap.String("session", sessionID), zap.Error(err))
	}
}

func (b *RedisBroker) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

// Close unsubscribes everyone and closes the client.
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	for ch, ps := range b.subs {
		_ = ps.Close()
		delete(b.subs, ch)
	}
	b.mu.Unlock()
	return b.rdb.Close()
}

func (b *RedisBroker) chanName(sessionID string) string { return "session:" + sessionID }
