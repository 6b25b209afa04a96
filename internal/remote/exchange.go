package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// GrantTypeClientCredentials is the only grant the exchanger performs
const GrantTypeClientCredentials = "client_credentials"

// AuthConfig holds the client credentials used to obtain a bearer token
// for the claim fetch
type AuthConfig struct {
	URL          string
	ClientID     string
	ClientSecret string
}

// Validate fails unless every field is set
func (a AuthConfig) Validate() error {
	var missing []string
	if a.URL == "" {
		missing = append(missing, "url")
	}
	if a.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if a.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if len(missing) > 0 {
		return newError(KindInvalidConfig, a.URL,
			fmt.Sprintf("client auth configuration incomplete, missing %s", strings.Join(missing, ", ")), nil)
	}
	return nil
}

// TokenExchanger trades client credentials for an access token.
// Every call performs a fresh exchange; tokens are not cached.
type TokenExchanger struct {
	executor *Executor
}

// NewTokenExchanger creates an exchanger that sends through executor
func NewTokenExchanger(executor *Executor) *TokenExchanger {
	return &TokenExchanger{executor: executor}
}

// ClientCredentials performs the client_credentials grant against auth.URL
// and returns the access_token from the response
func (t *TokenExchanger) ClientCredentials(ctx context.Context, auth AuthConfig) (string, error) {
	if err := auth.Validate(); err != nil {
		return "", err
	}

	spec := &RequestSpec{
		BaseURL:     auth.URL,
		ContentType: ContentTypeForm,
		Form: []Param{
			{Key: "grant_type", Value: GrantTypeClientCredentials},
			{Key: "client_id", Value: auth.ClientID},
			{Key: "client_secret", Value: auth.ClientSecret},
		},
	}

	body, err := t.executor.Execute(ctx, spec)
	if err != nil {
		return "", err
	}

	return accessToken(auth.URL, body)
}

func accessToken(url string, body json.RawMessage) (string, error) {
	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return "", newError(KindMissingAccessToken, url, "access_token not found in token response", err)
	}

	switch v := payload["access_token"].(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	default:
		return "", newError(KindMissingAccessToken, url, "access_token not found in token response", nil)
	}
}
