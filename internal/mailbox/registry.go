package mailbox

import (
	"strings"

	"deskmail-backend/pkg/config"
)

// Mailbox is one logical shared email identity: a stable id, the external
// account address behind it, and the owning tenant.
type Mailbox struct {
	ID       string `json:"id"`
	Address  string `json:"address"`
	TenantID string `json:"tenant_id"`
}

// Registry is the static, config-driven mailbox map. Pure lookups, no state.
type Registry struct {
	byID      map[string]Mailbox
	byAddress map[string]Mailbox
	ordered   []Mailbox
}

func NewRegistry(specs []config.MailboxSpec) *Registry {
	r := &Registry{
		byID:      make(map[string]Mailbox, len(specs)),
		byAddress: make(map[string]Mailbox, len(specs)),
	}
	for _, spec := range specs {
		mb := Mailbox{ID: spec.ID, Address: spec.Address, TenantID: spec.TenantID}
		if _, exists := r.byID[mb.ID]; exists {
			continue
		}
		r.byID[mb.ID] = mb
		r.byAddress[strings.ToLower(mb.Address)] = mb
		r.ordered = append(r.ordered, mb)
	}
	return r
}

func (r *Registry) Get(id string) (Mailbox, bool) {
	mb, ok := r.byID[id]
	return mb, ok
}

func (r *Registry) Known(id string) bool {
	_, ok := r.byID[id]
	return ok
}

func (r *Registry) ResolveTenant(id string) (string, bool) {
	mb, ok := r.byID[id]
	return mb.TenantID, ok
}

// ResolveFromAddress routes inbound push notifications to a mailbox. Lookup
// is case-insensitive; unknown addresses simply miss.
func (r *Registry) ResolveFromAddress(address string) (Mailbox, bool) {
	mb, ok := r.byAddress[strings.ToLower(address)]
	return mb, ok
}

func (r *Registry) ForTenant(tenantID string) []Mailbox {
	var mailboxes []Mailbox
	for _, mb := range r.ordered {
		if mb.TenantID == tenantID {
			mailboxes = append(mailboxes, mb)
		}
	}
	return mailboxes
}

func (r *Registry) All() []Mailbox {
	return append([]Mailbox(nil), r.ordered...)
}
