package toolcall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TokenSource issues bearer tokens for the remote data provider.
type TokenSource interface {
	Token() (string, error)
}

type HTTPInvokerConfig struct {
	BaseURL    string
	Path       string
	Timeout    time.Duration
	Tokens     TokenSource
	HTTPClient *http.Client
}

// HTTPInvoker posts requests to a data provider served over HTTP. Retries are
// left to the caller, which knows which tools are safe to repeat.
type HTTPInvoker struct {
	baseURL string
	path    string
	timeout time.Duration
	tokens  TokenSource
	client  *http.Client
}

func NewHTTPInvoker(cfg HTTPInvokerConfig) (*HTTPInvoker, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("tools base url required")
	}
	path := cfg.Path
	if path == "" {
		path = "/tools/invoke"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPInvoker{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		path:    path,
		timeout: timeout,
		tokens:  cfg.Tokens,
		client:  client,
	}, nil
}

func (h *HTTPInvoker) Invoke(ctx context.Context, req Request) Response {
	body, err := json.Marshal(req)
	if err != nil {
		return Fail(KindValidation, "encode request: "+err.Error())
	}

	reqCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, h.baseURL+h.path, bytes.NewReader(body))
	if err != nil {
		return Fail(KindInternal, "build request: "+err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.tokens != nil {
		token, err := h.tokens.Token()
		if err != nil {
			return Fail(KindInternal, "issue service token: "+err.Error())
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return Fail(KindUpstreamUnavailable, "data provider unreachable: "+err.Error())
	}
	defer resp.Body.Close()
	return decodeResponse(resp)
}

func decodeResponse(resp *http.Response) Response {
	if resp.StatusCode >= 500 {
		return Fail(KindUpstreamUnavailable, "data provider unavailable: "+resp.Status)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Fail(KindInternal, "data provider rejected credentials: "+resp.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Fail(KindUpstreamUnavailable, "read response: "+err.Error())
	}
	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return Fail(KindInternal, "decode response: "+err.Error())
	}
	if !out.Success && out.Error == nil {
		return Fail(KindInternal, "data provider returned "+resp.Status+" without an error payload")
	}
	return out
}
