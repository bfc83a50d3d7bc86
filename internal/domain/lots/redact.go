// Package lots holds the read-path rules applied to lots and items before
// they leave the service layer.
package lots

import (
	"github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/domain/model"
)

// RedactItems returns a copy of items with viewer-restricted fields cleared.
// For a viewer, every row they do not own loses Price and OwnerUsername.
// Ownership is an exact, case-sensitive username match. Other roles see rows
// unchanged. The input slice is never modified.
func RedactItems(items []model.Item, requester auth.Requester) []model.Item {
	out := make([]model.Item, len(items))
	copy(out, items)
	if requester.Role != auth.RoleViewer {
		return out
	}
	for i := range out {
		if ownedBy(out[i], requester.Username) {
			continue
		}
		out[i].Price = nil
		out[i].OwnerUsername = nil
	}
	return out
}

func ownedBy(it model.Item, username string) bool {
	return it.OwnerUsername != nil && *it.OwnerUsername == username
}
