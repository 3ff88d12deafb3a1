package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mavprep/voice/internal/app"
	"github.com/mavprep/voice/internal/app/orch"
	"github.com/mavprep/voice/internal/core"
	"github.com/mavprep/voice/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSignalServer(t *testing.T, rl *RateLimiter) (*orch.Orchestrator, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	o := orch.New(app.NewRegistry(), app.NewRoomTable(), app.SimplePolicy{MaxMembers: 2}, orch.DefaultOptions())
	ctl := NewSignalWSController(o, rl, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set(IdentityKey, domain.Identity{})
		ctl.HandleSignal(ctx, c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return o, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

type wsClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func dial(t *testing.T, url string) *wsClient {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return &wsClient{t: t, ws: ws}
}

func (c *wsClient) send(v any) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteJSON(v))
}

// expect reads until an event of type typ arrives.
func (c *wsClient) expect(typ string) map[string]any {
	c.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(c.t, c.ws.SetReadDeadline(deadline))
		_, data, err := c.ws.ReadMessage()
		require.NoError(c.t, err, "waiting for %s", typ)
		ev := map[string]any{}
		require.NoError(c.t, json.Unmarshal(data, &ev))
		if ev["type"] == typ {
			return ev
		}
	}
}

func TestSignalRoundTrip(t *testing.T) {
	o, url := newSignalServer(t, nil)

	alice := dial(t, url)
	alice.send(map[string]any{"type": "join-room", "roomId": "study-1", "memberId": "alice"})
	ack := alice.expect(core.EventRoomJoined)
	assert.EqualValues(t, 1, ack["memberCount"])
	aliceConn, _ := ack["connectionId"].(string)

	bob := dial(t, url)
	bob.send(map[string]any{"type": "join-room", "roomId": "study-1", "memberId": "bob"})
	ack = bob.expect(core.EventRoomJoined)
	assert.EqualValues(t, 2, ack["memberCount"])

	joined := alice.expect(core.EventUserJoined)
	assert.Equal(t, "bob", joined["memberId"])

	alice.send(map[string]any{
		"type": "signal", "roomId": "study-1", "targetMemberId": "bob",
		"payload": map[string]any{"kind": "offer", "sdp": "v=0"},
	})
	sig := bob.expect(core.EventSignal)
	assert.Equal(t, aliceConn, sig["senderConnectionId"])
	assert.Equal(t, "alice", sig["senderMemberId"])
	assert.Equal(t, map[string]any{"kind": "offer", "sdp": "v=0"}, sig["payload"])

	carol := dial(t, url)
	carol.send(map[string]any{"type": "join-room", "roomId": "study-1", "memberId": "carol"})
	errEv := carol.expect(core.EventError)
	assert.Equal(t, "room_full", errEv["code"])

	require.NoError(t, alice.ws.Close())
	left := bob.expect(core.EventUserLeft)
	assert.Equal(t, "alice", left["memberId"])
	assert.Equal(t, aliceConn, left["connectionId"])

	assert.Eventually(t, func() bool { return o.Rooms.Size("study-1") == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestSignalControlMessages(t *testing.T) {
	_, url := newSignalServer(t, nil)
	c := dial(t, url)

	c.send(map[string]any{"type": "ping"})
	c.expect(core.EventPong)

	c.send(map[string]any{"type": "whoami"})
	who := c.expect(core.EventWhoAmI)
	assert.Equal(t, "unjoined", who["state"])

	c.send(map[string]any{"type": "dance"})
	assert.Equal(t, "invalid_request", c.expect(core.EventError)["code"])

	require.NoError(t, c.ws.WriteMessage(websocket.TextMessage, []byte("{")))
	assert.Equal(t, "invalid_request", c.expect(core.EventError)["code"])

	c.send(map[string]any{"type": "join-room", "roomId": "study-1", "memberId": "alice"})
	c.expect(core.EventRoomJoined)
	c.send(map[string]any{"type": "leave-room", "roomId": "study-1", "memberId": "alice"})
	c.expect(core.EventRoomLeft)

	c.send(map[string]any{"type": "join-room", "roomId": "study-1", "memberId": "alice"})
	assert.Equal(t, "stale_connection", c.expect(core.EventError)["code"])
}

func TestSignalRateLimited(t *testing.T) {
	_, url := newSignalServer(t, NewRateLimiter(1, time.Minute))
	alice := dial(t, url)
	alice.send(map[string]any{"type": "join-room", "roomId": "study-1", "memberId": "alice"})
	alice.expect(core.EventRoomJoined)

	alice.send(map[string]any{"type": "signal", "roomId": "study-1", "payload": "x"})
	alice.send(map[string]any{"type": "signal", "roomId": "study-1", "payload": "y"})
	assert.Equal(t, "rate_limited", alice.expect(core.EventError)["code"])
}
