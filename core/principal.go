package core

import "context"

// Role is the coarse permission level of an authenticated principal.
type Role string

const (
	RoleOwner Role = "OWNER"
	RoleStore Role = "STORE"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleStore
}

// Principal is the authenticated caller as supplied by the identity layer.
// StoreID is only set for STORE principals bound to a store.
type Principal struct {
	UserID  uint   `json:"id"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
	StoreID *uint  `json:"storeId"`
}

// IsOwner reports whether the principal holds the OWNER role.
func (p Principal) IsOwner() bool {
	return p.Role == RoleOwner
}

// BoundStore returns the store the principal acts for.
func (p Principal) BoundStore() (uint, error) {
	if p.StoreID == nil || *p.StoreID == 0 {
		return 0, &Error{
			Op:      "Principal.BoundStore",
			Kind:    "identity",
			ID:      p.Email,
			Message: "Store user is not linked to a store.",
			Err:     ErrUnlinkedStore,
		}
	}
	return *p.StoreID, nil
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext extracts the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
