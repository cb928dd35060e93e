package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"slidehub/internal/presence"
)

// ChangeChannelService is the Redis-backed pub/sub facility that notifies
// subscribers when session rows for a document change. One Redis channel
// per document: "doc:<documentId>:sessions".
//
// Delivery latency and reconnection are go-redis's responsibility; this
// layer only publishes envelopes and pumps them to handlers.
type ChangeChannelService struct {
	redis      *RedisService
	instanceID string
}

// NewChangeChannelService creates a change channel over a Redis connection.
// instanceID identifies this server instance in published envelopes.
func NewChangeChannelService(redisService *RedisService, instanceID string) *ChangeChannelService {
	return &ChangeChannelService{
		redis:      redisService,
		instanceID: instanceID,
	}
}

func documentChannel(documentID string) string {
	return "doc:" + documentID + ":sessions"
}

// Publish broadcasts a session change to every subscriber of the document.
// Events from this instance are delivered to local subscribers too — a tab
// must also react to its own writes landing.
func (s *ChangeChannelService) Publish(ctx context.Context, ev presence.ChangeEvent) error {
	ev.InstanceID = s.instanceID
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	return s.redis.Publish(ctx, documentChannel(ev.DocumentID), data)
}

// Subscribe subscribes to all session changes for one document. onEvent is
// called for each delivered change; onState reports subscription health
// (true once confirmed, false when the message stream ends).
func (s *ChangeChannelService) Subscribe(ctx context.Context, documentID string, onEvent func(presence.ChangeEvent), onState func(connected bool)) (presence.Subscription, error) {
	pubsub := s.redis.Subscribe(ctx, documentChannel(documentID))

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to document %s: %w", documentID, err)
	}

	sub := &changeSubscription{pubsub: pubsub}
	go sub.processMessages(onEvent, onState)

	log.Printf("📡 [CHANGE-CHANNEL] Subscribed to document %s", documentID)
	return sub, nil
}

// changeSubscription is one live per-document subscription
type changeSubscription struct {
	pubsub    *redis.PubSub
	closeOnce sync.Once
}

// Close unsubscribes. Idempotent.
func (s *changeSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.pubsub.Close()
	})
	return err
}

// processMessages pumps delivered envelopes to the handler until the
// subscription closes. go-redis keeps the channel open across transient
// reconnects, so a closed channel means the subscription is gone for good.
func (s *changeSubscription) processMessages(onEvent func(presence.ChangeEvent), onState func(connected bool)) {
	if onState != nil {
		onState(true)
	}

	for msg := range s.pubsub.Channel() {
		var ev presence.ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Printf("⚠️ [CHANGE-CHANNEL] Failed to unmarshal change event: %v", err)
			continue
		}
		if m := GetMetrics(); m != nil {
			m.RecordPresenceEvent(ev.Kind)
		}
		onEvent(ev)
	}

	if onState != nil {
		onState(false)
	}
}
