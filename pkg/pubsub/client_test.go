package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportsarena/membership-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	c := &Client{projectID: "arena-prod"}

	assert.Equal(t, "projects/arena-prod/topics/billing", c.topicResourceName("billing"))
	assert.Equal(t, "projects/other/topics/billing", c.topicResourceName("projects/other/topics/billing"))
	assert.Empty(t, c.topicResourceName("  "))
	assert.Empty(t, (&Client{}).topicResourceName("billing"))
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{BillingTopic: "billing"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)
}

func TestNewClientRequiresBillingTopic(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{ProjectID: "arena"}, config.PubSubConfig{}, nil)
	require.ErrorIs(t, err, errNoTopic)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("billing"))
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, c.Close())
}
