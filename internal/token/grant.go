package token

import (
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"
	"github.com/poken/poseidon/internal/transport"
)

// Grant is an OAuth2 grant type accepted by the token endpoint.
type Grant string

// Accepted grant types
const (
	GrantCode     Grant = "authorization_code"
	GrantPassword Grant = "password"
	GrantClient   Grant = "client_credentials"
	GrantExternal Grant = "poken_external"
	GrantRefresh  Grant = "refresh_token"
)

// Valid reports whether g is an accepted grant type.
func (g Grant) Valid() bool {
	switch g {
	case GrantCode, GrantPassword, GrantClient, GrantExternal, GrantRefresh:
		return true
	}
	return false
}

// Authenticated reports whether tokens obtained with g belong to an end user.
func (g Grant) Authenticated() bool {
	return g != GrantClient
}

type passwordParams struct {
	Username string `url:"username"`
	Password string `url:"password"`
}

type externalParams struct {
	Service       string `url:"service"`
	ServiceSecret string `url:"service_secret"`
	RedirectURI   string `url:"redirect_uri"`
}

type codeParams struct {
	Code        string `url:"code"`
	RedirectURI string `url:"redirect_uri"`
}

type refreshParams struct {
	RefreshToken string `url:"refresh_token"`
}

func encodeParams(v any) (transport.Params, error) {
	values, err := query.Values(v)
	if err != nil {
		return nil, err
	}
	return transport.FromValues(values), nil
}

// GrantPath derives the OAuth2 entry point from the REST base path by
// replacing its final path segment with "oauth2".
//
//	GrantPath("https://api.poken.com/rest081/") == "https://api.poken.com/oauth2/"
func GrantPath(base string) string {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil || u.Host == "" {
		trimmed := strings.Trim(base, "/")
		return trimmed[:strings.LastIndex(trimmed, "/")+1] + "oauth2/"
	}

	p := strings.TrimRight(u.Path, "/")
	p = p[:strings.LastIndex(p, "/")+1]
	if p == "" {
		p = "/"
	}
	u.Path = p + "oauth2/"
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
