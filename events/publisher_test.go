package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaPublisher_PublishFlagChanges(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, "")
	p.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }

	changes := []leave.FlagChange{
		{EventID: "ev-1", MemberID: "m-1", Date: generic.NewTimePoint(2024, 2, 10), Year: 2024, IsLOP: false, Cause: leave.CauseDeleted},
		{EventID: "ev-2", MemberID: "m-1", Date: generic.NewTimePoint(2024, 2, 12), Year: 2024, IsLOP: true, Cause: leave.CauseDeleted},
	}
	require.NoError(t, p.PublishFlagChanges(context.Background(), changes))
	require.Len(t, w.msgs, 2)

	msg := w.msgs[1]
	assert.Equal(t, FlagChangedTopic, msg.Topic)
	assert.Equal(t, []byte("m-1"), msg.Key)

	var ev FlagChangedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(t, "ev-2", ev.LeaveID)
	assert.Equal(t, "2024-02-12", ev.LeaveDate)
	assert.True(t, ev.IsLOP)
	assert.Equal(t, "LOP", ev.Status)
	assert.Equal(t, "deleted", ev.Cause)
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, FlagChangedType, string(msg.Headers[0].Value))
}

func TestKafkaPublisher_Empty(t *testing.T) {
	w := &fakeWriter{err: errors.New("must not be called")}
	p := NewKafkaPublisher(w, "custom.topic")
	assert.NoError(t, p.PublishFlagChanges(context.Background(), nil))
	assert.Equal(t, "custom.topic", p.topic)
}

func TestKafkaPublisher_WriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewKafkaPublisher(w, "")
	err := p.PublishFlagChanges(context.Background(), []leave.FlagChange{{EventID: "ev-1", MemberID: "m-1"}})
	assert.EqualError(t, err, "broker down")
}

func TestNewKafkaPublisher_WriterTopic(t *testing.T) {
	// kafka-go rejects messages that set Topic when the writer has one.
	w := NewKafkaWriter([]string{"localhost:9092"}, "leave.flags")
	p := NewKafkaPublisher(w, "ignored")
	assert.Empty(t, p.topic)
}

func TestNoopPublisher(t *testing.T) {
	var p leave.FlagPublisher = NoopPublisher{}
	assert.NoError(t, p.PublishFlagChanges(context.Background(), []leave.FlagChange{{EventID: "ev-1"}}))
}
