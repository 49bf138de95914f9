package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	syncusecase "deskmail-backend/internal/sync/usecase"

	"cloud.google.com/go/pubsub"
)

type mailboxNotification struct {
	EmailAddress string      `json:"emailAddress"`
	HistoryID    json.Number `json:"historyId"`
}

// Service is the Pub/Sub pull subscriber for mailbox change notifications.
// It feeds the same incremental sync path as the push webhook, for
// deployments where the API is not reachable from outside.
type Service struct {
	pubsubClient *pubsub.Client
	engine       *syncusecase.SyncEngine
	topicName    string
	subName      string

	mu sync.Mutex
	// last processed historyId per address, to drop duplicate deliveries
	lastHistoryID map[string]uint64
}

func NewService(ctx context.Context, projectID, topicName string, engine *syncusecase.SyncEngine) (*Service, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &Service{
		pubsubClient:  client,
		engine:        engine,
		topicName:     topicName,
		subName:       topicName + "-sub",
		lastHistoryID: make(map[string]uint64),
	}, nil
}

// Start blocks receiving notifications until the context is cancelled. The
// subscription is created on first run if the topic already exists.
func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] starting notification service, topic %s, subscription %s", s.topicName, s.subName)

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] failed to check subscription: %v", err)
		return
	}
	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] failed to check topic: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] topic %s does not exist, notification service disabled", s.topicName)
			return
		}
		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] created subscription %s", s.subName)
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] receive stopped: %v", err)
	}
}

func (s *Service) handleMessage(ctx context.Context, msg *pubsub.Message) {
	var notification mailboxNotification
	if err := json.Unmarshal(msg.Data, &notification); err != nil {
		log.Printf("[PubSub] dropping malformed notification: %v", err)
		return
	}
	if notification.EmailAddress == "" {
		log.Printf("[PubSub] dropping notification without address")
		return
	}

	if s.isDuplicate(notification.EmailAddress, notification.HistoryID.String()) {
		return
	}

	log.Printf("[PubSub] notification for %s at history %s", notification.EmailAddress, notification.HistoryID)
	if err := s.engine.HandleNotification(ctx, notification.EmailAddress, notification.HistoryID.String()); err != nil {
		log.Printf("[PubSub] sync failed for %s: %v", notification.EmailAddress, err)
	}
}

// isDuplicate drops redeliveries whose historyId is not newer than the last
// one processed for the address.
func (s *Service) isDuplicate(address, historyID string) bool {
	parsed, err := strconv.ParseUint(historyID, 10, 64)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastHistoryID[address]; ok && parsed <= last {
		log.Printf("[PubSub] skipping duplicate notification for %s (history %d <= %d)", address, parsed, last)
		return true
	}
	s.lastHistoryID[address] = parsed
	return false
}
