package mail

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type flakyDialer struct {
	failures int
	calls    int
}

func (d *flakyDialer) DialAndSend(...*gomail.Message) error {
	d.calls++
	if d.calls <= d.failures {
		return errors.New("421 try again later")
	}
	return nil
}

func TestSMTPSenderRetries(t *testing.T) {
	d := &flakyDialer{failures: 1}
	s := &SMTPSender{dialer: d, from: "a@b.c", maxElapsed: 5 * time.Second, logger: zap.NewNop()}

	err := s.Send(context.Background(), Message{To: "x@y.z", Subject: "hi", Body: "code"})
	require.NoError(t, err)
	assert.Equal(t, 2, d.calls)
}

func TestSMTPSenderStopsOnCancel(t *testing.T) {
	d := &flakyDialer{failures: 100}
	s := &SMTPSender{dialer: d, from: "a@b.c", maxElapsed: time.Minute, logger: zap.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Send(ctx, Message{To: "x@y.z"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, d.calls)
}

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestQueueSenderPublishesJob(t *testing.T) {
	w := &captureWriter{}
	s := &QueueSender{writer: w}

	msg := Message{To: "x@y.z", Subject: "Your code", Body: "123456"}
	require.NoError(t, s.Send(context.Background(), msg))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("x@y.z"), w.msgs[0].Key)

	var got Message
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, msg, got)
}

type stubReader struct {
	msgs      []kafka.Message
	committed []int64
}

func (r *stubReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *stubReader) Close() error { return nil }

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	done chan struct{}
	want int
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	if len(s.sent) == s.want {
		close(s.done)
	}
	return nil
}

func TestConsumerDeliversAndCommits(t *testing.T) {
	job, err := json.Marshal(Message{To: "x@y.z", Subject: "s", Body: "b"})
	require.NoError(t, err)

	r := &stubReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte("not json")},
		{Offset: 2, Value: job},
	}}
	sender := &recordingSender{done: make(chan struct{}), want: 1}
	c := &Consumer{reader: r, sender: sender, logger: zap.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()

	select {
	case <-sender.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not delivered")
	}
	cancel()
	require.NoError(t, <-errc)

	assert.Equal(t, "x@y.z", sender.sent[0].To)
	assert.Equal(t, []int64{1, 2}, r.committed)
}
