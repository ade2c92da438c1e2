package httpx

import (
	"context"
	"database/sql"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/oauth"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/access"
	"github.com/mbolis/quick-forms/config"
)

const (
	ClaimRole   = "role"
	ClaimUserID = "uid"

	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

func NewBearerServer(db *sql.DB, users UserDirectory, cfg config.Config) *oauth.BearerServer {
	return oauth.NewBearerServer(cfg.TokenSecret, cfg.TokenTTL, CredentialsVerifier(db, users), nil)
}

// Tokens is the bearer server's answer to a successful grant.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// PasswordGrant asks the bearer server for tokens in exchange for credentials.
func PasswordGrant(ctx context.Context, bs *oauth.BearerServer, username, password string) (ResponseBuffer, error) {
	return grant(ctx, bs, url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
	})
}

// RefreshGrant trades a refresh token for a new token pair.
func RefreshGrant(ctx context.Context, bs *oauth.BearerServer, refreshToken string) (ResponseBuffer, error) {
	return grant(ctx, bs, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
}

// oauth.BearerServer only speaks HTTP, so grants go through a synthetic form post.
func grant(ctx context.Context, bs *oauth.BearerServer, body url.Values) (ResponseBuffer, error) {
	encoded := body.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", strings.NewReader(encoded))
	if err != nil {
		return nil, errors.Wrap(err, "new grant request")
	}
	req.Header.Set("content-type", "application/x-www-form-urlencoded")
	req.Header.Set("content-length", strconv.Itoa(len(encoded)))

	resp := NewResponseBuffer()
	bs.UserCredentials(resp, req)
	return resp, nil
}

func SetTokenCookies(w http.ResponseWriter, tokens Tokens) {
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     AccessCookie,
		Value:    tokens.AccessToken,
		MaxAge:   int(tokens.ExpiresIn),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     RefreshCookie,
		Value:    tokens.RefreshToken,
		MaxAge:   int(refreshTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Path:     "/",
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// IdentityFromClaims rebuilds the caller's identity from a verified token.
func IdentityFromClaims(credential string, claims map[string]string) (access.Identity, error) {
	role, err := access.ParseRole(claims[ClaimRole])
	if err != nil {
		return access.Identity{}, err
	}
	uid, err := strconv.ParseInt(claims[ClaimUserID], 10, 64)
	if err != nil {
		return access.Identity{}, errors.Wrap(err, "parse user id claim")
	}
	return access.Identity{UserID: uid, Username: credential, Role: role}, nil
}
