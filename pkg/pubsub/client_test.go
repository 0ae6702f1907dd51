package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/deposit-ledger/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	assert.Equal(t, "projects/p1/topics/ledger-mirror", TopicResourceName("p1", "ledger-mirror"))
	assert.Equal(t, "projects/other/topics/t", TopicResourceName("p1", "projects/other/topics/t"))
	assert.Equal(t, "", TopicResourceName("", "ledger-mirror"))
	assert.Equal(t, "", TopicResourceName("p1", "  "))
}

func TestClientOptionsPreferInlineCredentials(t *testing.T) {
	assert.Len(t, clientOptions(config.GCPConfig{}), 0)
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/creds.json"}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/creds.json"}), 1)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("t"))
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}
