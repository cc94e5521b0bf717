// Package auth carries the caller identity resolved by the API-token
// middleware. There is no session state; every request re-resolves its actor.
package auth

import "context"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleLandlord Role = "landlord"
	RoleManager  Role = "manager"
	RoleTenant   Role = "tenant"
)

// Actor is the authenticated caller. LandlordID is the landlord the actor
// belongs to or manages; 0 for plain tenants and platform admins.
type Actor struct {
	UserID     int64
	Role       Role
	LandlordID int64
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type ctxKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}
