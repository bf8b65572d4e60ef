package auth

import (
	"context"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
)

const anonymousProvider = "anonymous"

// Identity is the signed-in shopper behind a verified Firebase ID token.
type Identity struct {
	UID      string
	Email    string
	Locale   string
	StoreID  string
	Provider string // firebase.sign_in_provider, e.g. "password" or "anonymous"
}

// Anonymous reports whether the token came from Firebase anonymous sign-in.
// Such sessions own no customer carts and are treated as guests.
func (i *Identity) Anonymous() bool {
	return i != nil && i.Provider == anonymousProvider
}

func (a *Authenticator) identityFromToken(token *firebaseauth.Token) *Identity {
	return &Identity{
		UID:      token.UID,
		Email:    stringClaim(token.Claims, defaultEmailClaim),
		Locale:   stringClaim(token.Claims, a.localeClaim),
		StoreID:  stringClaim(token.Claims, a.storeClaim),
		Provider: token.Firebase.SignInProvider,
	}
}

func stringClaim(claims map[string]interface{}, key string) string {
	value, _ := claims[key].(string)
	return strings.TrimSpace(value)
}

type identityKey struct{}

// WithIdentity attaches identity to ctx.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity attached by OptionalFirebaseAuth. Guests have none.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, _ := ctx.Value(identityKey{}).(*Identity)
	return identity, identity != nil
}
