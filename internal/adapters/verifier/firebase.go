// Package verifier validates bearer tokens against the Firebase
// Identity Toolkit REST API.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/reberkhan12-ai/live-azan/internal/domain"
)

const defaultEndpoint = "https://identitytoolkit.googleapis.com/v1/accounts:lookup"

var ErrInvalidToken = errors.New("invalid token")

type Firebase struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

type Option func(*Firebase)

// WithEndpoint overrides the lookup URL, mainly for tests.
func WithEndpoint(url string) Option {
	return func(f *Firebase) { f.endpoint = url }
}

func NewFirebase(apiKey string, opts ...Option) *Firebase {
	f := &Firebase{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Firebase) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	body, err := json.Marshal(map[string]string{"idToken": token})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint+"?key="+f.apiKey, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token lookup: %w (status %d)", ErrInvalidToken, resp.StatusCode)
	}

	var out struct {
		Users []struct {
			LocalID string `json:"localId"`
			Email   string `json:"email"`
		} `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("token lookup decode: %w", err)
	}
	if len(out.Users) == 0 || out.Users[0].LocalID == "" {
		return nil, ErrInvalidToken
	}

	return &domain.Identity{
		Subject: out.Users[0].LocalID,
		Email:   out.Users[0].Email,
	}, nil
}
