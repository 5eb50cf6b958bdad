package broadcast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubFanOutSkipsSender(t *testing.T) {
	hub := NewHub()
	a := hub.Endpoint()
	b := hub.Endpoint()
	c := hub.Endpoint()

	msg := Message{Kind: KindAnnounce, Token: "t", InstanceID: "a", OpenedAt: 1}
	require.NoError(t, a.Send(context.Background(), msg))

	assert.Equal(t, msg, <-b.Receive())
	assert.Equal(t, msg, <-c.Receive())
	select {
	case got := <-a.Receive():
		t.Fatalf("sender received its own message: %+v", got)
	default:
	}
}

func TestHubClosedEndpointSkipped(t *testing.T) {
	hub := NewHub()
	a := hub.Endpoint()
	b := hub.Endpoint()

	require.NoError(t, b.Close())
	assert.NoError(t, a.Send(context.Background(), Message{Kind: KindPresence}))

	_, ok := <-b.Receive()
	assert.False(t, ok)
}
