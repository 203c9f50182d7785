package upstream

import (
	"context"
	"strings"

	"github.com/valyala/fasthttp"
)

// IdentityClient asks the identity service whether an email names a known
// player. With no base URL configured every identity is accepted, which is
// the local development mode.
type IdentityClient struct {
	c *client
}

func NewIdentityClient(baseURL string, opts ...Option) *IdentityClient {
	if strings.TrimSpace(baseURL) == "" {
		return &IdentityClient{}
	}
	return &IdentityClient{c: newClient(baseURL, opts...)}
}

type verifyRequest struct {
	Email string `json:"email"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

// Verify reports whether email belongs to a registered player.
func (ic *IdentityClient) Verify(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, nil
	}
	if ic.c == nil {
		return true, nil
	}
	var resp verifyResponse
	if err := ic.c.doJSON(ctx, fasthttp.MethodPost, "/verify", verifyRequest{Email: email}, &resp, true); err != nil {
		return false, err
	}
	return resp.Valid, nil
}
