package mailbox

import (
	"testing"

	"deskmail-backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func specs() []config.MailboxSpec {
	return []config.MailboxSpec{
		{ID: "board", Address: "board@dream-x.app", TenantID: "dream-x"},
		{ID: "general", Address: "general@playerxchange.org", TenantID: "playerxchange"},
		{ID: "support", Address: "support@playerxchange.org", TenantID: "playerxchange"},
	}
}

func TestRegistryLookups(t *testing.T) {
	r := NewRegistry(specs())

	mb, ok := r.Get("board")
	require.True(t, ok)
	assert.Equal(t, "board@dream-x.app", mb.Address)
	assert.Equal(t, "dream-x", mb.TenantID)

	_, ok = r.Get("ghost")
	assert.False(t, ok)

	assert.True(t, r.Known("general"))
	assert.False(t, r.Known("ghost"))

	tenantID, ok := r.ResolveTenant("support")
	require.True(t, ok)
	assert.Equal(t, "playerxchange", tenantID)
}

func TestResolveFromAddressIsCaseInsensitive(t *testing.T) {
	r := NewRegistry(specs())

	mb, ok := r.ResolveFromAddress("Board@Dream-X.app")
	require.True(t, ok)
	assert.Equal(t, "board", mb.ID)

	_, ok = r.ResolveFromAddress("stranger@elsewhere.net")
	assert.False(t, ok)
}

func TestForTenantAndAll(t *testing.T) {
	r := NewRegistry(specs())

	px := r.ForTenant("playerxchange")
	require.Len(t, px, 2)
	assert.Equal(t, "general", px[0].ID)
	assert.Equal(t, "support", px[1].ID)

	assert.Empty(t, r.ForTenant("ghost"))
	assert.Len(t, r.All(), 3)
}

func TestDuplicateIDsKeepFirst(t *testing.T) {
	r := NewRegistry([]config.MailboxSpec{
		{ID: "board", Address: "board@dream-x.app", TenantID: "dream-x"},
		{ID: "board", Address: "other@elsewhere.net", TenantID: "other"},
	})

	mb, ok := r.Get("board")
	require.True(t, ok)
	assert.Equal(t, "board@dream-x.app", mb.Address)
	assert.Len(t, r.All(), 1)
}
