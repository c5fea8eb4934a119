package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	cmodels "tabletop-chat/backend/conversation/models"
	"tabletop-chat/backend/pkg/logger"
)

const publishTimeout = 2 * time.Second

// relayEnvelope is what instances exchange over redis
type relayEnvelope struct {
	GameID string          `json:"gameId"`
	Event  json.RawMessage `json:"event"`
}

// RedisRelay fans events out to every instance through a redis channel.
// Events that cannot be published are delivered to the local hub.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	log     *logger.Logger
	out     chan relayEnvelope
}

// NewRedisRelay creates a relay publishing on "<prefix>:messages"
func NewRedisRelay(client *redis.Client, prefix string, hub *Hub, log *logger.Logger) *RedisRelay {
	if prefix == "" {
		prefix = "tabletop"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RedisRelay{
		client:  client,
		channel: prefix + ":messages",
		hub:     hub,
		log:     log,
		out:     make(chan relayEnvelope, broadcastBuffer),
	}
}

// NewRedisClient parses a redis url such as redis://localhost:6379/0. A bare
// host:port is accepted too.
func NewRedisClient(url string) (*redis.Client, error) {
	if !strings.Contains(url, "://") {
		return redis.NewClient(&redis.Options{Addr: url}), nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Channel returns the redis channel name
func (r *RedisRelay) Channel() string {
	return r.channel
}

// EmitMessageCreated queues the event for publishing without blocking
func (r *RedisRelay) EmitMessageCreated(msg *cmodels.Message) {
	data, err := encodeMessageCreated(msg)
	if err != nil {
		r.log.LogError(err, "Failed to encode message event", "message_id", msg.ID)
		return
	}
	env := relayEnvelope{GameID: msg.GameID, Event: data}
	select {
	case r.out <- env:
	default:
		r.log.Warn("Relay queue full, delivering locally", "game_id", msg.GameID)
		r.hub.Publish(env.GameID, env.Event)
	}
}

// Run publishes queued events and relays subscribed ones to the hub until
// ctx is done
func (r *RedisRelay) Run(ctx context.Context) {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	go r.publishLoop(ctx)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				r.log.LogError(err, "Dropping malformed relay payload", "channel", r.channel)
				continue
			}
			r.hub.Publish(env.GameID, env.Event)
		}
	}
}

func (r *RedisRelay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-r.out:
			r.publish(ctx, env)
		}
	}
}

func (r *RedisRelay) publish(ctx context.Context, env relayEnvelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		r.log.LogError(err, "Failed to encode relay envelope")
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := r.client.Publish(pubCtx, r.channel, payload).Err(); err != nil {
		r.log.LogError(err, "Redis publish failed, delivering locally", "game_id", env.GameID)
		r.hub.Publish(env.GameID, env.Event)
	}
}

// Ping checks the redis connection
func (r *RedisRelay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
