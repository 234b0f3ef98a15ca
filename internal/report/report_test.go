package report

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/chillbot/internal/facts"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func sample(id string) Report {
	return Report{
		CycleID:   id,
		Timestamp: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
		Facts:     facts.Facts{"hasCoke": true, "hasPerrier": false, "hasOther": false},
		Summary:   "cocacola",
	}
}

type recordingSink struct {
	mu      sync.Mutex
	reports []Report
	err     error
	closed  bool
	entered chan struct{}
	gate    chan struct{}
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Write(ctx context.Context, r Report) error {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return s.err
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

func TestDispatcher_WritesToAllSinks(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	d := NewDispatcher(discardLogger, 4, a, b)
	require.True(t, d.Enqueue(sample("1")))
	require.True(t, d.Enqueue(sample("2")))
	require.NoError(t, d.Close())

	assert.Equal(t, 2, a.count())
	assert.Equal(t, 2, b.count())
	assert.True(t, a.closed)
	assert.Equal(t, uint64(4), d.Stats().Written)
}

func TestDispatcher_FailingSinkIsSwallowed(t *testing.T) {
	bad := &recordingSink{err: errors.New("firebase down")}
	good := &recordingSink{}
	d := NewDispatcher(discardLogger, 4, bad, good)
	d.Enqueue(sample("1"))
	require.NoError(t, d.Close())

	assert.Equal(t, 1, good.count())
	st := d.Stats()
	assert.Equal(t, uint64(1), st.Failed)
	assert.Equal(t, uint64(1), st.Written)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	slow := &recordingSink{entered: make(chan struct{}, 4), gate: make(chan struct{})}
	d := NewDispatcher(discardLogger, 1, slow)

	require.True(t, d.Enqueue(sample("1")))
	<-slow.entered // worker is busy with report 1
	require.True(t, d.Enqueue(sample("2")))
	assert.False(t, d.Enqueue(sample("3")))

	close(slow.gate)
	require.NoError(t, d.Close())
	assert.Equal(t, 2, slow.count())
	assert.Equal(t, uint64(1), d.Stats().Dropped)
}

func TestDispatcher_EnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(nil, 1)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.False(t, d.Enqueue(sample("1")))
}

func TestEncode_Formats(t *testing.T) {
	for _, format := range []string{FormatJSON, FormatMsgpack} {
		data, err := Encode(sample("abc"), format)
		require.NoError(t, err, format)
		got, err := Decode(data, format)
		require.NoError(t, err, format)
		assert.Equal(t, "abc", got.CycleID)
		assert.True(t, got.Facts["hasCoke"])
		assert.True(t, got.Timestamp.Equal(sample("abc").Timestamp))
	}
	_, err := Encode(sample("abc"), "xml")
	assert.Error(t, err)
}

func TestSQLiteSink_WriteAndRecent(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "history.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	first := sample("first")
	second := sample("second")
	second.Timestamp = first.Timestamp.Add(time.Minute)
	second.Facts = facts.Facts{"hasCoke": false, "hasPerrier": true, "hasOther": false}

	require.NoError(t, s.Write(ctx, first))
	require.NoError(t, s.Write(ctx, second))

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].CycleID)
	assert.True(t, got[0].Facts["hasPerrier"])
	assert.True(t, got[1].Timestamp.Equal(first.Timestamp))
}

func TestSQLiteSink_RecentEmpty(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakePublisher struct {
	topic        string
	qos          byte
	retained     bool
	payload      []byte
	err          error
	disconnected bool
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.topic, p.qos, p.retained = topic, qos, retained
	p.payload = payload.([]byte)
	return newFakeToken(p.err)
}

func (p *fakePublisher) Disconnect(uint) { p.disconnected = true }

func TestMQTTSink_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	s := newMQTTSink(MQTTConfig{Topic: "chillbot/drinks", QoS: 1, Retain: true, Format: FormatMsgpack}, pub, discardLogger)

	require.NoError(t, s.Write(context.Background(), sample("c1")))
	assert.Equal(t, "chillbot/drinks", pub.topic)
	assert.Equal(t, byte(1), pub.qos)
	assert.True(t, pub.retained)

	got, err := Decode(pub.payload, FormatMsgpack)
	require.NoError(t, err)
	assert.Equal(t, "c1", got.CycleID)

	require.NoError(t, s.Close())
	assert.True(t, pub.disconnected)
}

func TestMQTTSink_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	s := newMQTTSink(MQTTConfig{Topic: "t"}, pub, discardLogger)
	assert.ErrorContains(t, s.Write(context.Background(), sample("c1")), "not connected")
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, s.Write(context.Background(), sample("c1")))
	assert.Contains(t, buf.String(), "hasCoke=true")
	assert.Contains(t, buf.String(), "cycle_id=c1")
}
