package publisher

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorwatch/anchorsim/internal/sim"
)

var (
	_ Publisher = (*WebSocketPublisher)(nil)
	_ Publisher = (*MQTTPublisher)(nil)
	_ Publisher = (*Multi)(nil)
)

// fakePublisher records calls for Multi fan-out tests.
type fakePublisher struct {
	snapshots   int
	transitions int
	closed      bool
	err         error
}

func (f *fakePublisher) PublishSnapshot(sim.Snapshot) error {
	f.snapshots++
	return f.err
}

func (f *fakePublisher) PublishTransition(string, string, float64, uint64) error {
	f.transitions++
	return f.err
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return f.err
}

func TestMultiFansOut(t *testing.T) {
	a := &fakePublisher{}
	b := &fakePublisher{err: assert.AnError}
	m := NewMulti(zerolog.Nop(), a, b)

	require.NoError(t, m.PublishSnapshot(sim.Snapshot{}))
	require.NoError(t, m.PublishTransition("idle", "initialDrop", 0, 1))
	assert.Equal(t, 1, a.snapshots)
	assert.Equal(t, 1, a.transitions)
	assert.Equal(t, 1, b.snapshots)

	require.Error(t, m.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestWebSocketPublisherDelivers(t *testing.T) {
	upgrader := ws.Upgrader{}
	received := make(chan []byte, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- msg
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	p, err := NewWebSocketPublisher(wsURL, zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.PublishSnapshot(sim.Snapshot{TickCount: 9, Stage: "settled"}))
	require.NoError(t, p.PublishTransition("finalScope", "settled", 25, 9))

	select {
	case msg := <-received:
		var state snapshotMessage
		require.NoError(t, json.Unmarshal(msg, &state))
		assert.Equal(t, "state", state.Type)
		assert.Equal(t, uint64(9), state.TickCount)
		assert.Equal(t, "settled", state.Stage)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot message")
	}

	select {
	case msg := <-received:
		var tr transitionMessage
		require.NoError(t, json.Unmarshal(msg, &tr))
		assert.Equal(t, "stageTransition", tr.Type)
		assert.Equal(t, "settled", tr.ToStage)
		assert.Equal(t, 25.0, tr.RodeMeters)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for transition message")
	}
}

func TestWebSocketPublisherRejectsBadURL(t *testing.T) {
	_, err := NewWebSocketPublisher("http://127.0.0.1:1", zerolog.Nop())
	require.Error(t, err)
}

func TestMQTTTopics(t *testing.T) {
	p := &MQTTPublisher{cfg: MQTTConfig{TopicPrefix: "anchorsim"}}
	assert.Equal(t, "anchorsim/state", p.stateTopic())
	assert.Equal(t, "anchorsim/stage", p.stageTopic())
}
