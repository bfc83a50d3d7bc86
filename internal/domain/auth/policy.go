package auth

import "errors"

// Authentication and authorization failures. Handlers translate these into
// 401/403 responses; none of them may be treated as "allow".
var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrCredentialMissing  = errors.New("identity has no credential set")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrGuestDisabled      = errors.New("guest access is disabled")
)

// RoleSet is an explicit allow-list of roles.
type RoleSet map[Role]struct{}

// Roles builds a RoleSet from the given roles.
func Roles(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Contains reports whether r is in the set.
func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// Authorize checks the session's role against an explicit allow-list.
// It fails closed: a nil session is unauthenticated and an empty or nil
// allow-list grants nothing.
func Authorize(sess *Session, allowed RoleSet) error {
	if sess == nil {
		return ErrUnauthenticated
	}
	if !allowed.Contains(sess.Role) {
		return ErrForbidden
	}
	return nil
}

// Operation names a protected operation in the policy table.
type Operation string

const (
	OpLotsList           Operation = "lots.list"
	OpLotsGet            Operation = "lots.get"
	OpLotsCreate         Operation = "lots.create"
	OpLotsUpdate         Operation = "lots.update"
	OpLotsLock           Operation = "lots.lock"
	OpLotsDelete         Operation = "lots.delete"
	OpItemsList          Operation = "items.list"
	OpItemsMine          Operation = "items.mine"
	OpItemsCreate        Operation = "items.create"
	OpItemsUpdate        Operation = "items.update"
	OpItemsCancel        Operation = "items.cancel"
	OpItemsDelete        Operation = "items.delete"
	OpChecklistView      Operation = "checklist.view"
	OpChecklistSet       Operation = "checklist.set"
	OpBidsList           Operation = "bids.list"
	OpBidsCreate         Operation = "bids.create"
	OpIdentitiesCreate   Operation = "identities.create"
	OpCredentialsMigrate Operation = "credentials.migrate"
)

// Policy maps each operation to the roles allowed to perform it.
// Every entry states its own allow-list; nothing is inferred from role order.
type Policy map[Operation]RoleSet

// DefaultPolicy returns the allow-list table used by the HTTP layer.
func DefaultPolicy() Policy {
	all := func() RoleSet { return Roles(RoleAdmin, RoleManager, RoleViewer) }
	staff := func() RoleSet { return Roles(RoleAdmin, RoleManager) }
	adminOnly := func() RoleSet { return Roles(RoleAdmin) }

	return Policy{
		OpLotsList:           all(),
		OpLotsGet:            all(),
		OpLotsCreate:         staff(),
		OpLotsUpdate:         staff(),
		OpLotsLock:           adminOnly(),
		OpLotsDelete:         adminOnly(),
		OpItemsList:          all(),
		OpItemsMine:          all(),
		OpItemsCreate:        all(),
		OpItemsUpdate:        staff(),
		OpItemsCancel:        staff(),
		OpItemsDelete:        adminOnly(),
		OpChecklistView:      staff(),
		OpChecklistSet:       staff(),
		OpBidsList:           staff(),
		OpBidsCreate:         staff(),
		OpIdentitiesCreate:   adminOnly(),
		OpCredentialsMigrate: adminOnly(),
	}
}

// Authorize checks sess against the allow-list declared for op.
// Operations missing from the table are forbidden.
func (p Policy) Authorize(sess *Session, op Operation) error {
	return Authorize(sess, p[op])
}
