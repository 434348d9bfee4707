package core

import (
	"context"
	"errors"

	"github.com/dkeye/Classroom/internal/domain"
)

// ErrNoToken means the token endpoint answered without a usable token.
var ErrNoToken = errors.New("no usable sfu token in response")

// TokenResult is the canonical token-or-failure shape. The HTTP
// adapter normalizes the endpoint's varying payloads (bare string,
// token, nested token/jwt) into this before it enters the core.
type TokenResult struct {
	Token string
}

// TokenProvider fetches a media session access token for an identity.
type TokenProvider interface {
	Fetch(ctx context.Context, roomID domain.RoomID, identity domain.Identity, name string) (TokenResult, error)
}
