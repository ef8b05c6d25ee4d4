package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"engagement-service/internal/logging"
	"engagement-service/internal/models"
)

const (
	EventMessageAppended = "message_appended"
	EventMessageRead     = "message_read"
)

type Config struct {
	Broker  string
	Topic   string
	GroupID string
}

// Event is a conversation change published by the inbox channels.
type Event struct {
	Type      string          `json:"type"`
	LeadID    string          `json:"lead_id"`
	Message   *models.Message `json:"message,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	ReadAt    *time.Time      `json:"read_at,omitempty"`
}

// Inbox is the part of the engagement service the consumer feeds.
type Inbox interface {
	AppendMessage(ctx context.Context, m models.Message) (models.Message, error)
	MarkReadAt(ctx context.Context, leadID, messageID string, at time.Time) (models.Message, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader messageReader
	inbox  Inbox
	logger *logging.Logger
}

func NewConsumer(cfg Config, inbox Inbox, logger *logging.Logger) (*Consumer, error) {
	if cfg.Broker == "" || cfg.Topic == "" {
		return nil, errors.New("kafka broker and topic are required")
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{cfg.Broker},
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Consumer{reader: r, inbox: inbox, logger: logger}, nil
}

// Start consumes until ctx is cancelled. Every fetched message is committed, including
// ones that were skipped as invalid.
func (s *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.logger.Infof("Kafka consumer started")
		for {
			msg, err := s.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					s.logger.Infof("Kafka consumer stopped")
					return
				}
				s.logger.Errorf("Read message failed: %v", err)
				continue
			}

			if err := s.handleMessage(ctx, msg.Value); err != nil {
				s.logger.Errorf("Skipping event at offset %d: %v", msg.Offset, err)
			}
			if err := s.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				s.logger.Errorf("Commit offset %d failed: %v", msg.Offset, err)
			}
		}
	}()
}

func (s *Consumer) handleMessage(ctx context.Context, raw []byte) error {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}
	if ev.LeadID == "" {
		return errors.New("invalid event: missing lead_id")
	}

	switch ev.Type {
	case EventMessageAppended:
		if ev.Message == nil {
			return errors.New("invalid event: missing message")
		}
		m := *ev.Message
		if m.LeadID == "" {
			m.LeadID = ev.LeadID
		}
		if m.LeadID != ev.LeadID {
			return fmt.Errorf("invalid event: message lead %s does not match %s", m.LeadID, ev.LeadID)
		}
		stored, err := s.inbox.AppendMessage(ctx, m)
		if errors.Is(err, models.ErrDuplicate) {
			s.logger.Infof("Skipping redelivered message %s for lead %s", m.ID, m.LeadID)
			return nil
		}
		if err != nil {
			return err
		}
		s.logger.Debugf("Appended message %s for lead %s (seq %d)", stored.ID, stored.LeadID, stored.Seq)
	case EventMessageRead:
		if ev.MessageID == "" || ev.ReadAt == nil {
			return errors.New("invalid event: message_read needs message_id and read_at")
		}
		if _, err := s.inbox.MarkReadAt(ctx, ev.LeadID, ev.MessageID, *ev.ReadAt); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid event: unknown type %q", ev.Type)
	}
	return nil
}

func (s *Consumer) Close() error {
	return s.reader.Close()
}
