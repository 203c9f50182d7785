package upstream

import (
	"context"
	"errors"
	"strings"

	"github.com/valyala/fasthttp"
)

// ErrAnalysisUnavailable means no engine is configured or it returned nothing
// usable. Callers fall back to a canned hint.
var ErrAnalysisUnavailable = errors.New("analysis engine unavailable")

// AnalysisClient fetches engine suggestions for hint requests.
type AnalysisClient struct {
	c *client
}

func NewAnalysisClient(baseURL string, opts ...Option) *AnalysisClient {
	if strings.TrimSpace(baseURL) == "" {
		return &AnalysisClient{}
	}
	return &AnalysisClient{c: newClient(baseURL, opts...)}
}

const hintDepth = 12

type bestMoveRequest struct {
	FEN   string `json:"fen"`
	Depth int    `json:"depth"`
}

type bestMoveResponse struct {
	BestMove string `json:"bestMove"`
}

// BestMove returns the engine's preferred move in UCI for the position.
func (ac *AnalysisClient) BestMove(ctx context.Context, fen string) (string, error) {
	if ac.c == nil {
		return "", ErrAnalysisUnavailable
	}
	var resp bestMoveResponse
	if err := ac.c.doJSON(ctx, fasthttp.MethodPost, "/bestmove", bestMoveRequest{FEN: fen, Depth: hintDepth}, &resp, false); err != nil {
		return "", err
	}
	mv := strings.TrimSpace(resp.BestMove)
	if mv == "" {
		return "", ErrAnalysisUnavailable
	}
	return mv, nil
}
