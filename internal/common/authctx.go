package common

import "context"

type ctxKey string

const (
	userIDKey ctxKey = "auth/user-id"
	rolesKey  ctxKey = "auth/roles"
	tierKey   ctxKey = "auth/tier"
)

// WithUserID stores the authenticated user identifier on the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated user identifier from the context.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// WithRoles stores the authenticated account's roles on the context.
func WithRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, rolesKey, roles)
}

// Roles extracts the account roles from the context.
func Roles(ctx context.Context) []string {
	roles, _ := ctx.Value(rolesKey).([]string)
	return roles
}

// HasRole reports whether the context carries the given role.
func HasRole(ctx context.Context, role string) bool {
	for _, r := range Roles(ctx) {
		if r == role {
			return true
		}
	}
	return false
}

// WithTier stores the resolved pricing tier name on the context.
func WithTier(ctx context.Context, tier string) context.Context {
	return context.WithValue(ctx, tierKey, tier)
}

// TierName extracts the pricing tier name from the context.
func TierName(ctx context.Context) (string, bool) {
	tier, ok := ctx.Value(tierKey).(string)
	return tier, ok
}
