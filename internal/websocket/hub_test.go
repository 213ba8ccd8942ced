package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func register(t *testing.T, hub *Hub, userID string) *Client {
	t.Helper()
	client := NewClient(hub, nil, userID)
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.IsUserOnline(userID) }, time.Second, 5*time.Millisecond)
	return client
}

func receive(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case raw := <-client.Send:
		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

func TestHub_PublishReachesEveryConnectionOfUser(t *testing.T) {
	hub := startHub(t)
	laptop := register(t, hub, "user-1")
	phone := register(t, hub, "user-1")
	other := register(t, hub, "user-2")

	hub.Publish("user-1", "cart.updated", map[string]int{"count": 2})

	for _, c := range []*Client{laptop, phone} {
		ev := receive(t, c)
		assert.Equal(t, "cart.updated", ev.Type)
		assert.Equal(t, map[string]interface{}{"count": float64(2)}, ev.Payload)
		assert.False(t, ev.At.IsZero())
	}
	assert.Len(t, other.Send, 0)
}

func TestHub_PublishToOfflineUserIsDropped(t *testing.T) {
	hub := startHub(t)
	hub.Publish("nobody", "cart.updated", nil)
	assert.False(t, hub.IsUserOnline("nobody"))
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	first := register(t, hub, "user-1")
	second := register(t, hub, "user-1")

	hub.Unregister(first)
	_, open := <-first.Send
	assert.False(t, open)
	assert.True(t, hub.IsUserOnline("user-1"))

	hub.Unregister(second)
	require.Eventually(t, func() bool { return !hub.IsUserOnline("user-1") }, time.Second, 5*time.Millisecond)
}

func TestHub_PingGetsPong(t *testing.T) {
	hub := startHub(t)
	client := register(t, hub, "user-1")

	hub.HandleClientMessage(client, []byte(`{"type":"ping"}`))
	assert.Equal(t, "pong", receive(t, client).Type)

	hub.HandleClientMessage(client, []byte(`{"type":"checkout.start"}`))
	hub.HandleClientMessage(client, []byte(`not json`))
	assert.Len(t, client.Send, 0)
}

func TestHub_RateLimit(t *testing.T) {
	hub := startHub(t)
	client := register(t, hub, "user-1")

	for i := 0; i < maxMessagesPerSecond+5; i++ {
		hub.HandleClientMessage(client, []byte(`{"type":"ping"}`))
	}
	require.Eventually(t, func() bool { return len(client.Send) >= maxMessagesPerSecond }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, maxMessagesPerSecond, len(client.Send))
}
