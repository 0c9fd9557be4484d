package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notice struct {
	SeedURL string `json:"seed_url"`
	Session string `json:"-"`
}

func (n notice) Attributes() map[string]string {
	return map[string]string{"session_id": n.Session}
}

func TestNewMessageCarriesAttributes(t *testing.T) {
	t.Parallel()

	msg, err := newMessage("artifacts", notice{SeedURL: "https://galxe.com", Session: "s-1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"seed_url":"https://galxe.com"}`, string(msg.Data))
	assert.Equal(t, map[string]string{"session_id": "s-1", "topic": "artifacts"}, msg.Attributes)
}

func TestNewMessageRejectsUnmarshalable(t *testing.T) {
	t.Parallel()

	_, err := newMessage("t", make(chan int))
	require.Error(t, err)
}

func TestPublishWithoutPublisher(t *testing.T) {
	t.Parallel()

	p := New(nil)
	_, err := p.Publish(context.Background(), "t", "payload")
	require.Error(t, err)
	p.Stop()
}
