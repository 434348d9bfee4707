// Package token fetches SFU access tokens from the signaling server
// and normalizes the endpoint's varying payload shapes at the
// boundary.
package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

const requestTimeout = 10 * time.Second

type Client struct {
	base string
	http *http.Client
}

func NewClient(base string) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: requestTimeout},
	}
}

type tokenRequest struct {
	RoomID   domain.RoomID   `json:"roomId"`
	Identity domain.Identity `json:"identity"`
	Name     string          `json:"name"`
}

// Fetch posts to /api/sfu/token and returns the canonical token
// result. An answer without a usable token is core.ErrNoToken.
func (c *Client) Fetch(ctx context.Context, roomID domain.RoomID, identity domain.Identity, name string) (core.TokenResult, error) {
	body, err := json.Marshal(tokenRequest{RoomID: roomID, Identity: identity, Name: name})
	if err != nil {
		return core.TokenResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/sfu/token", bytes.NewReader(body))
	if err != nil {
		return core.TokenResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return core.TokenResult{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return core.TokenResult{}, fmt.Errorf("token endpoint status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.TokenResult{}, err
	}

	result, err := Normalize(raw)
	if err != nil {
		return core.TokenResult{}, err
	}
	logClaims(result.Token)
	return result, nil
}

// Normalize accepts the shapes the endpoint is known to answer with:
// a bare JSON string, {"token":"..."} and {"token":{"token"|"jwt":"..."}}.
func Normalize(raw []byte) (core.TokenResult, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return core.TokenResult{}, core.ErrNoToken
		}
		return core.TokenResult{Token: s}, nil
	}

	var wrapped struct {
		Token json.RawMessage `json:"token"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil || len(wrapped.Token) == 0 {
		return core.TokenResult{}, core.ErrNoToken
	}

	if err := json.Unmarshal(wrapped.Token, &s); err == nil {
		if s == "" {
			return core.TokenResult{}, core.ErrNoToken
		}
		return core.TokenResult{Token: s}, nil
	}

	var nested struct {
		Token string `json:"token"`
		JWT   string `json:"jwt"`
	}
	if err := json.Unmarshal(wrapped.Token, &nested); err == nil {
		if nested.Token != "" {
			return core.TokenResult{Token: nested.Token}, nil
		}
		if nested.JWT != "" {
			return core.TokenResult{Token: nested.JWT}, nil
		}
	}
	return core.TokenResult{}, core.ErrNoToken
}

// logClaims peeks into the token without verifying it; verification is
// the SFU's job, this is observability only. Opaque tokens are fine.
func logClaims(token string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		log.Debug().Str("module", "adapters.token").Msg("token is not a jwt, skipping claim log")
		return
	}
	ev := log.Debug().Str("module", "adapters.token")
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ev = ev.Time("exp", exp.Time)
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		ev = ev.Str("sub", sub)
	}
	ev.Msg("sfu token claims")
}
