package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/studyplan-backend/internal/platform/envutil"
	"github.com/yungbote/studyplan-backend/internal/platform/logger"
	"github.com/yungbote/studyplan-backend/internal/realtime"
)

const (
	defaultChannel = "studyplan.events"
	envelopeV1     = 1
)

// envelope is the wire form on the Redis channel.
type envelope struct {
	V     int                `json:"v"`
	Event realtime.PlanEvent `json:"event"`
}

func encodeEnvelope(evt realtime.PlanEvent) ([]byte, error) {
	return json.Marshal(envelope{V: envelopeV1, Event: evt})
}

func decodeEnvelope(raw string) (realtime.PlanEvent, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return realtime.PlanEvent{}, err
	}
	if env.V != envelopeV1 {
		return realtime.PlanEvent{}, fmt.Errorf("unsupported plan event envelope v%d", env.V)
	}
	if env.Event.Event == "" {
		return realtime.PlanEvent{}, fmt.Errorf("plan event without a name")
	}
	return env.Event, nil
}

type redisBus struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
}

// NewRedisBus connects using REDIS_URL, or REDIS_ADDR when no URL is set, and publishes
// on REDIS_CHANNEL.
func NewRedisBus(log *logger.Logger) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	var opts *goredis.Options
	if url := envutil.String("REDIS_URL", "", log); url != "" {
		parsed, err := goredis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("REDIS_URL: %w", err)
		}
		opts = parsed
	} else if addr := envutil.String("REDIS_ADDR", "", log); addr != "" {
		opts = &goredis.Options{Addr: addr}
	} else {
		return nil, fmt.Errorf("neither REDIS_URL nor REDIS_ADDR is set")
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisBusWithClient(log, rdb, envutil.String("REDIS_CHANNEL", defaultChannel, log)), nil
}

func NewRedisBusWithClient(log *logger.Logger, rdb goredis.UniversalClient, channel string) Bus {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = defaultChannel
	}
	return &redisBus{log: log.With("bus", "redis", "channel", channel), rdb: rdb, channel: channel}
}

func (b *redisBus) Publish(ctx context.Context, evt realtime.PlanEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis plan bus not initialized")
	}
	raw, err := encodeEnvelope(evt)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder subscribes before returning, so events published afterwards are not
// missed. Delivery stops when ctx ends.
func (b *redisBus) StartForwarder(ctx context.Context, onEvt func(e realtime.PlanEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis plan bus not initialized")
	}
	if onEvt == nil {
		return fmt.Errorf("onEvt callback required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel(goredis.WithChannelSize(256))
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				evt, err := decodeEnvelope(m.Payload)
				if err != nil {
					b.log.Warn("dropping plan event", "error", err)
					continue
				}
				onEvt(evt)
			}
		}
	}()
	return nil
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
