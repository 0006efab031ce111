// Package invalidation broadcasts directory changes between service
// instances over Redis pub/sub so every instance drops its cached listing.
package invalidation

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goflare.io/petclinic/pkg/serialization"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "petclinic:directory:invalidate"

// Event asks receivers to drop one cache key, or every key when All is set.
type Event struct {
	Key    string    `json:"key,omitempty"`
	All    bool      `json:"all,omitempty"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// Target is what an event is applied to.
type Target interface {
	InvalidateKey(key string) bool
	Clear()
}

// Bus publishes and receives invalidation events on one channel.
type Bus struct {
	client  redis.UniversalClient
	channel string
	codec   serialization.Codec
	source  string
	logger  *zap.Logger
}

// NewBus creates a Bus. Every bus gets a unique source id so it can skip the
// events it published itself.
func NewBus(client redis.UniversalClient, channel string, codec serialization.Codec, logger *zap.Logger) *Bus {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		client:  client,
		channel: channel,
		codec:   codec,
		source:  uuid.NewString(),
		logger:  logger,
	}
}

// Source returns the id stamped on events published by this bus.
func (b *Bus) Source() string {
	return b.source
}

// Publish broadcasts ev to every subscriber of the channel.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	ev.Source = b.source
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	payload, err := b.Encode(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

// Run subscribes to the channel and applies events to target until ctx is done.
func (b *Bus) Run(ctx context.Context, target Target) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			b.logger.Warn("Failed to close invalidation subscription", zap.Error(err))
		}
	}()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.logger.Info("Listening for directory invalidations", zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := b.Handle([]byte(msg.Payload), target); err != nil {
				b.logger.Warn("Ignoring malformed invalidation", zap.Error(err))
			}
		}
	}
}

// Handle decodes one payload and applies it to target. Events from this bus
// are skipped because the publisher already invalidated locally.
func (b *Bus) Handle(payload []byte, target Target) error {
	ev, err := b.Decode(payload)
	if err != nil {
		return err
	}
	if ev.Source == b.source {
		return nil
	}

	switch {
	case ev.All:
		target.Clear()
		b.logger.Info("Cleared directory cache", zap.String("source", ev.Source))
	case ev.Key != "":
		removed := target.InvalidateKey(ev.Key)
		b.logger.Info("Invalidated directory cache key",
			zap.String("key", ev.Key),
			zap.Bool("removed", removed),
			zap.String("source", ev.Source))
	default:
		return fmt.Errorf("invalidation event from %s names no key", ev.Source)
	}
	return nil
}

// Encode serializes ev with the bus codec.
func (b *Bus) Encode(ev Event) ([]byte, error) {
	var buf bytes.Buffer
	if err := b.codec.NewEncoder(&buf).Encode(ev); err != nil {
		return nil, fmt.Errorf("failed to encode invalidation: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a payload produced by Encode.
func (b *Bus) Decode(payload []byte) (Event, error) {
	var ev Event
	if err := b.codec.NewDecoder(bytes.NewReader(payload)).Decode(&ev); err != nil {
		return Event{}, fmt.Errorf("failed to decode invalidation: %w", err)
	}
	return ev, nil
}
