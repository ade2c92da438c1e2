package middlewares

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/oauth"

	"github.com/mbolis/quick-forms/access"
	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/log"
)

// LoginPath is where anonymous page loads are sent.
const LoginPath = "/login"

// Authenticated verifies the bearer token and attaches the caller's identity to the request.
func Authenticated(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(oauth.Authorize(secret, nil), identify).Handler(next)
	}
}

func identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential, _ := r.Context().Value(oauth.CredentialContext).(string)
		claims, _ := r.Context().Value(oauth.ClaimsContext).(map[string]string)

		id, err := httpx.IdentityFromClaims(credential, claims)
		if err != nil {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "auth.claims")
			return
		}

		next.ServeHTTP(w, r.WithContext(access.WithIdentity(r.Context(), id)))
	})
}

// Require stops callers that don't meet req before the handler runs.
func Require(req access.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := access.Authorize(access.FromContext(r.Context()), req); err != nil {
				httpx.LogError(w, r, "auth.require."+req.String(), err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CookieAuth lets browsers authenticate with the token cookies set at login.
//
// GET requests without an Authorization header use the access token cookie. When
// that is missing or stale, the refresh token cookie is traded for a new pair and
// the request is retried. When that fails too, the browser is redirected to the
// login page. Other requests pass through untouched.
func CookieAuth(bearerServer *oauth.BearerServer) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || r.Header.Get("authorization") != "" {
				h.ServeHTTP(w, r)
				return
			}

			token, err := r.Cookie(httpx.AccessCookie)
			if err != nil && !errors.Is(err, http.ErrNoCookie) {
				httpx.LogInternalError(w, "auth.cookie.access", err)
				return
			}
			if err == nil {
				r.Header.Set("authorization", "Bearer "+token.Value)
				buf := httpx.NewResponseBuffer()
				h.ServeHTTP(buf, r)
				if buf.Status() != http.StatusUnauthorized {
					buf.Flush(w)
					return
				}
			}

			loginLocation := LoginPath + "?goto=" + url.QueryEscape(r.RequestURI)

			// token was empty or unauthorized
			refreshToken, err := r.Cookie(httpx.RefreshCookie)
			if err != nil {
				if !errors.Is(err, http.ErrNoCookie) {
					httpx.LogInternalError(w, "auth.cookie.refresh", err)
					return
				}

				// refresh token was empty: redirect to login page
				http.Redirect(w, r, loginLocation, http.StatusTemporaryRedirect)
				return
			}

			resp, err := httpx.RefreshGrant(r.Context(), bearerServer, refreshToken.Value)
			if err != nil {
				httpx.LogInternalError(w, "auth.cookie.refresh", err)
				return
			}
			if resp.Status() != http.StatusOK {
				log.Debugf("auth.cookie.refresh: status %d", resp.Status())
				httpx.ClearTokenCookies(w)
				http.Redirect(w, r, loginLocation, http.StatusTemporaryRedirect)
				return
			}

			var tokens httpx.Tokens
			if err = resp.DecodeJSON(&tokens); err != nil {
				httpx.LogInternalError(w, "auth.cookie.refresh.decode", err)
				return
			}
			httpx.SetTokenCookies(w, tokens)

			r.Header.Set("authorization", "Bearer "+tokens.AccessToken)
			h.ServeHTTP(w, r)
		})
	}
}
