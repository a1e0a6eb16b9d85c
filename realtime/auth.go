package realtime

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/flashbots/auctioneer/auction"
)

// ErrUnknownToken is returned for a token the provider did not issue.
var ErrUnknownToken = errors.New("unknown token")

// Authenticator resolves a bearer token to a verified identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auction.Identity, error)
}

// StaticTokens is an Authenticator backed by a fixed token table.
type StaticTokens map[string]auction.Identity

func (t StaticTokens) Authenticate(_ context.Context, token string) (auction.Identity, error) {
	id, ok := t[token]
	if !ok || !id.Authenticated() {
		return auction.Identity{}, ErrUnknownToken
	}
	return id, nil
}

// tokenFromRequest reads the Authorization bearer token, falling back to
// the token query parameter that browsers use for WebSocket upgrades.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// identify authenticates the request. Missing or unknown tokens yield the
// guest identity, which may watch but not bid.
func identify(r *http.Request, auth Authenticator) auction.Identity {
	token := tokenFromRequest(r)
	if token == "" || auth == nil {
		return auction.Identity{}
	}
	id, err := auth.Authenticate(r.Context(), token)
	if err != nil {
		return auction.Identity{}
	}
	return id
}
