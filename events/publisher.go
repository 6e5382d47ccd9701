/*
Package events publishes leave flag changes for downstream consumers.

PURPOSE:
  Payroll needs to know when a day flips between paid and Loss of Pay,
  including days the user did not touch (a delete earlier in the month
  can make a later LOP day valid again). Each flip is one Kafka message.

MESSAGE:
  Key:     member id (keeps one member's flips ordered in a partition)
  Value:   JSON FlagChangedEvent
  Headers: event_type, event_id

SEE ALSO:
  - leave/ledger.go: Calls PublishFlagChanges after commit
*/
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/warp/leave-ledger/leave"
)

const (
	FlagChangedTopic = "leave.flag.changed"
	FlagChangedType  = "LeaveFlagChanged"
)

// FlagChangedEvent is the wire payload of one flag flip.
type FlagChangedEvent struct {
	EventID    string    `json:"event_id"`
	LeaveID    string    `json:"leave_id"`
	MemberID   string    `json:"member_id"`
	LeaveDate  string    `json:"leave_date"`
	Year       int       `json:"year"`
	IsLOP      bool      `json:"is_lop"`
	Status     string    `json:"status"`
	Cause      string    `json:"cause"`
	OccurredAt time.Time `json:"occurred_at"`
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher implements leave.FlagPublisher.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

// NewKafkaWriter builds a writer with the settings the publisher expects.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaPublisher wraps w. An empty topic uses FlagChangedTopic, unless
// the writer carries its own topic.
func NewKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	if kw, ok := w.(*kafka.Writer); ok && kw.Topic != "" {
		topic = ""
	} else if topic == "" {
		topic = FlagChangedTopic
	}
	return &KafkaPublisher{writer: w, topic: topic, now: time.Now}
}

func (p *KafkaPublisher) PublishFlagChanges(ctx context.Context, changes []leave.FlagChange) error {
	if len(changes) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(changes))
	occurred := p.now().UTC()
	for _, c := range changes {
		ev := newFlagChangedEvent(c, occurred)
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode flag change %s: %w", c.EventID, err)
		}
		msgs = append(msgs, kafka.Message{
			Topic: p.topic,
			Key:   []byte(ev.MemberID),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(FlagChangedType)},
				{Key: "event_id", Value: []byte(ev.EventID)},
			},
		})
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func newFlagChangedEvent(c leave.FlagChange, occurred time.Time) FlagChangedEvent {
	status := "Valid"
	if c.IsLOP {
		status = "LOP"
	}
	return FlagChangedEvent{
		EventID:    uuid.NewString(),
		LeaveID:    string(c.EventID),
		MemberID:   string(c.MemberID),
		LeaveDate:  c.Date.String(),
		Year:       c.Year,
		IsLOP:      c.IsLOP,
		Status:     status,
		Cause:      string(c.Cause),
		OccurredAt: occurred,
	}
}

// NoopPublisher drops every change.
type NoopPublisher struct{}

func (NoopPublisher) PublishFlagChanges(context.Context, []leave.FlagChange) error { return nil }
