package gateway

import "context"

// CredentialSource supplies the bearer token attached to outbound calls.
// An empty token means the call runs unauthenticated.
type CredentialSource interface {
	BearerToken() string
}

// StaticToken is a fixed credential, mostly for tools and tests.
type StaticToken string

func (t StaticToken) BearerToken() string {
	return string(t)
}

type tokenKey struct{}

// WithToken forces the token used for calls made with ctx, overriding the
// CredentialSource. Login uses it to fetch the profile before a session exists.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFor resolves the token for a call: a context override first, then the source.
func TokenFor(ctx context.Context, src CredentialSource) string {
	if token, ok := ctx.Value(tokenKey{}).(string); ok {
		return token
	}
	if src == nil {
		return ""
	}
	return src.BearerToken()
}

// CredentialFunc adapts a function to CredentialSource. It lets the gateway
// be built before the session holder that supplies the token.
type CredentialFunc func() string

func (f CredentialFunc) BearerToken() string {
	if f == nil {
		return ""
	}
	return f()
}
