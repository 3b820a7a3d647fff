package service

import (
	"github.com/njprem/ReviewHub_BackEnd/internal/domain"
)

type ReviewAction string

const (
	ActionUpdate ReviewAction = "update"
	ActionDelete ReviewAction = "delete"
)

// CanMutate decides whether principal may update or delete review. Owners may
// always mutate their own reviews; administrators may mutate any review.
func CanMutate(principal domain.Principal, review domain.Review, action ReviewAction) bool {
	if principal.IsAnonymous() {
		return false
	}
	switch action {
	case ActionUpdate, ActionDelete:
		return principal.ID == review.OwnerID || principal.Role == domain.RoleAdmin
	default:
		return false
	}
}

func authorize(principal domain.Principal, review domain.Review, action ReviewAction) error {
	if !CanMutate(principal, review, action) {
		return ErrAccessDenied
	}
	return nil
}
