package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ExchangeResult is what a platform-specific refresh produces on success.
type ExchangeResult struct {
	Payload        TokenPayload
	TokenExpiresAt *time.Time
}

// Exchanger performs the platform-specific half of a refresh attempt:
// Shopify offline tokens are no-ops, Meta performs a long-lived token
// exchange, Google performs an OAuth2 refresh_token grant (spec.md 4.3).
type Exchanger interface {
	Exchange(ctx context.Context, sourceType SourceType, current TokenPayload) (ExchangeResult, error)
}

// PlatformExchanger is the production Exchanger, backed by real OAuth
// client credentials.
type PlatformExchanger struct {
	GoogleClientID     string
	GoogleClientSecret string
	MetaAppID          string
	MetaAppSecret      string
	HTTPClient         *http.Client
}

func (p *PlatformExchanger) httpClient() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return http.DefaultClient
}

func (p *PlatformExchanger) Exchange(ctx context.Context, sourceType SourceType, current TokenPayload) (ExchangeResult, error) {
	switch sourceType {
	case SourceShopify:
		return p.exchangeShopify(current)
	case SourceGoogle:
		return p.exchangeGoogle(ctx, current)
	case SourceMeta:
		return p.exchangeMeta(ctx, current)
	default:
		return ExchangeResult{}, fmt.Errorf("unknown source type %q", sourceType)
	}
}

// exchangeShopify is a no-op: Shopify offline access tokens don't expire
// and have no refresh_token to rotate (spec.md 4.3).
func (p *PlatformExchanger) exchangeShopify(current TokenPayload) (ExchangeResult, error) {
	return ExchangeResult{Payload: current, TokenExpiresAt: nil}, nil
}

func (p *PlatformExchanger) exchangeGoogle(ctx context.Context, current TokenPayload) (ExchangeResult, error) {
	if current.RefreshToken == "" {
		return ExchangeResult{}, errNoRefreshToken
	}

	cfg := &oauth2.Config{
		ClientID:     p.GoogleClientID,
		ClientSecret: p.GoogleClientSecret,
		Endpoint:     google.Endpoint,
	}

	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return ExchangeResult{}, fmt.Errorf("google refresh_token grant: %w", err)
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = current.RefreshToken // Google doesn't always rotate it
	}

	return ExchangeResult{
		Payload: TokenPayload{
			AccessToken:  tok.AccessToken,
			RefreshToken: refreshToken,
			TokenType:    tok.TokenType,
		},
		TokenExpiresAt: &tok.Expiry,
	}, nil
}

// exchangeMeta performs Meta's long-lived token exchange: a GET against
// the Graph API fb_exchange_token grant, not a standard oauth2.Config flow.
func (p *PlatformExchanger) exchangeMeta(ctx context.Context, current TokenPayload) (ExchangeResult, error) {
	if current.AccessToken == "" {
		return ExchangeResult{}, errNoRefreshToken
	}

	q := url.Values{}
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", p.MetaAppID)
	q.Set("client_secret", p.MetaAppSecret)
	q.Set("fb_exchange_token", current.AccessToken)

	endpoint := "https://graph.facebook.com/v19.0/oauth/access_token?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ExchangeResult{}, fmt.Errorf("building meta exchange request: %w", err)
	}

	resp, err := p.httpClient().Do(req)
	if err != nil {
		return ExchangeResult{}, fmt.Errorf("meta long-lived exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ExchangeResult{}, fmt.Errorf("meta long-lived exchange: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ExchangeResult{}, fmt.Errorf("decoding meta exchange response: %w", err)
	}

	var expiresAt *time.Time
	if body.ExpiresIn > 0 {
		t := time.Now().UTC().Add(time.Duration(body.ExpiresIn) * time.Second)
		expiresAt = &t
	}

	return ExchangeResult{
		Payload:        TokenPayload{AccessToken: body.AccessToken, TokenType: current.TokenType},
		TokenExpiresAt: expiresAt,
	}, nil
}

var errNoRefreshToken = fmt.Errorf("no refresh token present on credential")
