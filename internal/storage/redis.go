package storage

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	redisOpTimeout = 3 * time.Second
	// RedisChangeChannel carries one message per write so every client
	// sharing the server hears about it.
	RedisChangeChannel = "bobmap:storage:changes"
)

type redisChange struct {
	Key    string `json:"key"`
	Origin string `json:"origin"`
}

// Redis stores keys as plain strings on a Redis server and announces writes
// over pub/sub.
type Redis struct {
	client *redis.Client
	opts   options

	mu     sync.Mutex
	closed bool
	watch  watchers
	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

var _ Storage = (*Redis)(nil)

// NewRedis wraps client. The Redis handle owns the client and closes it.
func NewRedis(client *redis.Client, opts ...Option) *Redis {
	return &Redis{client: client, opts: buildOptions(opts)}
}

// Get implements Storage.
func (r *Redis) Get(key string) (string, bool, error) {
	if r.isClosed() {
		return "", false, ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	return value, true, nil
}

// Set implements Storage.
func (r *Redis) Set(key, value string) error {
	if err := r.opts.checkQuota(value); err != nil {
		return err
	}
	return r.write(key, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Set(ctx, key, value, 0)
	})
}

// Remove implements Storage.
func (r *Redis) Remove(key string) error {
	return r.write(key, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Del(ctx, key)
	})
}

func (r *Redis) write(key string, apply func(context.Context, redis.Pipeliner)) error {
	if r.isClosed() {
		return ErrClosed
	}
	payload, err := json.Marshal(redisChange{Key: key, Origin: r.opts.origin})
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		apply(ctx, pipe)
		pipe.Publish(ctx, RedisChangeChannel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Watch implements Storage. The subscription is confirmed before Watch
// returns, so writes made afterwards are always delivered.
func (r *Redis) Watch(fn func(Event)) func() {
	stop := r.watch.add(fn)
	r.subscribe()
	return stop
}

// Origin implements Storage.
func (r *Redis) Origin() string {
	return r.opts.origin
}

// Close implements Storage.
func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	pubsub := r.pubsub
	r.mu.Unlock()

	if pubsub != nil {
		_ = pubsub.Close()
	}
	r.wg.Wait()
	return r.client.Close()
}

func (r *Redis) subscribe() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.pubsub != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	pubsub := r.client.Subscribe(ctx, RedisChangeChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		log.Warn("storage watch unavailable", "channel", RedisChangeChannel, "error", err)
		return
	}
	r.pubsub = pubsub

	r.wg.Add(1)
	go r.loop(pubsub.Channel())
}

func (r *Redis) loop(messages <-chan *redis.Message) {
	defer r.wg.Done()
	for msg := range messages {
		var change redisChange
		if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
			log.Warn("ignoring malformed storage change", "payload", msg.Payload, "error", err)
			continue
		}
		r.watch.emit(Event{Key: change.Key, Origin: change.Origin})
	}
}

func (r *Redis) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
