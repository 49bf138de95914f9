package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMailboxes(t *testing.T) {
	specs := parseMailboxes("board=board@dream-x.app:dream-x, general=general@playerxchange.org:playerxchange")
	require.Len(t, specs, 2)
	assert.Equal(t, MailboxSpec{ID: "board", Address: "board@dream-x.app", TenantID: "dream-x"}, specs[0])
	assert.Equal(t, MailboxSpec{ID: "general", Address: "general@playerxchange.org", TenantID: "playerxchange"}, specs[1])
}

func TestParseMailboxesSkipsMalformedEntries(t *testing.T) {
	specs := parseMailboxes("good=a@b.c:t1,no-equals,missing=address,=x@y.z:t2,,last=l@m.n:t3")
	require.Len(t, specs, 2)
	assert.Equal(t, "good", specs[0].ID)
	assert.Equal(t, "last", specs[1].ID)
}

func TestParseMailboxesEmpty(t *testing.T) {
	assert.Empty(t, parseMailboxes(""))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("MAILBOXES", "")
	t.Setenv("GMAIL_PUBSUB_TOPIC", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.NotEmpty(t, cfg.Mailboxes)
	assert.Equal(t, "gmail-updates", cfg.PubSubTopic)
	assert.Equal(t, float64(5), cfg.CostPer1MInput)
	assert.Equal(t, float64(15), cfg.CostPer1MOutput)
}
