package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *Registry, *httptest.Server) {
	t.Helper()
	reg := NewRegistry()
	hub := NewHub(reg, 0)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		cctx, ccancel := context.WithCancel(context.Background())
		c := NewClient(hub, conn, r.URL.Query().Get("user"))
		c.Start(cctx, ccancel)
		hub.Register(c)
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, reg, srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, ev IncomingEvent) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ev))
}

type receivedEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readEvent(t *testing.T, conn *websocket.Conn) receivedEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev receivedEvent
	require.NoError(t, json.Unmarshal(raw, &ev))
	return ev
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func joinRoom(t *testing.T, reg *Registry, conn *websocket.Conn, user string, want int) {
	t.Helper()
	sendEvent(t, conn, IncomingEvent{Type: EventJoinRoom, Room: user})
	waitFor(t, func() bool { return len(reg.Resolve(user)) == want }, "join_room not processed")
}

func TestHub_EmitToJoinedRoom(t *testing.T) {
	req := require.New(t)
	hub, reg, srv := startHub(t)

	conn := dial(t, srv, "alice")
	joinRoom(t, reg, conn, "alice", 1)

	delivered := hub.EmitToUser("alice", OutgoingEvent{Type: EventNewNotification, Payload: map[string]string{"id": "n1"}})
	req.Equal(1, delivered)

	got := readEvent(t, conn)
	req.Equal(EventNewNotification, got.Type)
	req.Contains(string(got.Payload), "n1")
}

func TestHub_EmitToEmptyRoomIsDropped(t *testing.T) {
	hub, _, _ := startHub(t)
	delivered := hub.EmitToUser("nobody", OutgoingEvent{Type: EventNewMessage})
	require.Equal(t, 0, delivered)
}

func TestHub_JoinForeignRoomRefused(t *testing.T) {
	req := require.New(t)
	_, reg, srv := startHub(t)

	conn := dial(t, srv, "alice")
	sendEvent(t, conn, IncomingEvent{Type: EventJoinRoom, Room: "bob"})

	got := readEvent(t, conn)
	req.Equal(EventError, got.Type)
	req.Empty(reg.Resolve("bob"))
	req.Equal(0, reg.Connections())
}

func TestHub_SendMessageRelaysVerbatim(t *testing.T) {
	req := require.New(t)
	_, reg, srv := startHub(t)

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	joinRoom(t, reg, alice, "alice", 1)
	joinRoom(t, reg, bob, "bob", 1)

	sendEvent(t, alice, IncomingEvent{Type: EventSendMessage, ReceiverID: "bob", Text: "hello"})

	got := readEvent(t, bob)
	req.Equal(EventReceiveMessage, got.Type)

	var payload RelayPayload
	req.NoError(json.Unmarshal(got.Payload, &payload))
	req.Equal("alice", payload.SenderID)
	req.Equal("bob", payload.ReceiverID)
	req.Equal("hello", payload.Text)
}

func TestHub_SendMessageRequiresJoin(t *testing.T) {
	req := require.New(t)
	_, _, srv := startHub(t)

	conn := dial(t, srv, "alice")
	sendEvent(t, conn, IncomingEvent{Type: EventSendMessage, ReceiverID: "bob", Text: "hi"})

	got := readEvent(t, conn)
	req.Equal(EventError, got.Type)
}

func TestHub_AllConnectionsInRoomReceive(t *testing.T) {
	req := require.New(t)
	hub, reg, srv := startHub(t)

	tab1 := dial(t, srv, "alice")
	tab2 := dial(t, srv, "alice")
	joinRoom(t, reg, tab1, "alice", 1)
	joinRoom(t, reg, tab2, "alice", 2)

	delivered := hub.EmitToUser("alice", OutgoingEvent{Type: EventNewMessage, Payload: map[string]string{"id": "m1"}})
	req.Equal(2, delivered)

	for _, conn := range []*websocket.Conn{tab1, tab2} {
		got := readEvent(t, conn)
		req.Equal(EventNewMessage, got.Type)
	}
}

func TestHub_EmissionOrderPreserved(t *testing.T) {
	req := require.New(t)
	hub, reg, srv := startHub(t)

	conn := dial(t, srv, "alice")
	joinRoom(t, reg, conn, "alice", 1)

	const n = 20
	for i := 0; i < n; i++ {
		hub.EmitToUser("alice", OutgoingEvent{Type: EventNewNotification, Payload: map[string]int{"seq": i}})
	}
	for i := 0; i < n; i++ {
		got := readEvent(t, conn)
		var payload struct {
			Seq int `json:"seq"`
		}
		req.NoError(json.Unmarshal(got.Payload, &payload))
		req.Equal(i, payload.Seq)
	}
}

func TestHub_DisconnectLeavesRoom(t *testing.T) {
	_, reg, srv := startHub(t)

	conn := dial(t, srv, "alice")
	joinRoom(t, reg, conn, "alice", 1)

	conn.Close()
	waitFor(t, func() bool { return reg.Connections() == 0 }, "membership not cleaned up on disconnect")
}

func TestHub_CapRejectedClientLeavesRoom(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	hub := NewHub(reg, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	first := newTestClient()
	hub.Register(first)

	// The overflow connection's join_room can be processed by its readPump
	// before the run loop rejects the registration at the cap.
	second := newTestClient()
	reg.Join(second, "bob")
	hub.Register(second)
	hub.Unregister(second)

	waitFor(t, func() bool { return len(reg.Resolve("bob")) == 0 }, "cap-rejected client leaked room membership")
	req.Equal(0, reg.Connections())
}

func TestHub_UnknownEventType(t *testing.T) {
	req := require.New(t)
	_, _, srv := startHub(t)

	conn := dial(t, srv, "alice")
	sendEvent(t, conn, IncomingEvent{Type: "dance"})

	got := readEvent(t, conn)
	req.Equal(EventError, got.Type)
}
