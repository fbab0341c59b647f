package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{Writer: w, Logger: zerolog.Nop()}

	err := p.Publish(context.Background(), Event{Kind: ModelTrained, Outlet: "Dax", RunID: "r1", Order: "(1,1,0)(0,0,0)[53]", AIC: 512.5})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "Dax", string(w.msgs[0].Key))

	var got Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, ModelTrained, got.Kind)
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, 512.5, got.AIC)
	assert.False(t, got.At.IsZero())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &raw))
	assert.NotContains(t, raw, "error")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherKeepsTimestamp(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{Writer: w, Logger: zerolog.Nop()}
	at := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	require.NoError(t, p.Publish(context.Background(), Event{Kind: ForecastComputed, Outlet: "Pau", Weeks: 6, At: at}))
	var got Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.True(t, at.Equal(got.At))
	assert.Equal(t, 6, got.Weeks)
}

func TestKafkaPublisherError(t *testing.T) {
	p := &KafkaPublisher{Writer: &fakeWriter{err: errors.New("broker down")}, Logger: zerolog.Nop()}
	err := p.Publish(context.Background(), Event{Kind: TrainingFailed, Outlet: "Dax"})
	assert.ErrorContains(t, err, "broker down")
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{Kind: ModelTrained}))
	assert.NoError(t, p.Close())
}
