package routes

import (
	"net/http"
	"regexp"

	"github.com/mbolis/quick-forms/app"
	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/log"
)

var reRefresh = regexp.MustCompile(`(?i)^refresh\s+(.*)`)

// Login trades HTTP Basic credentials for a token pair. The tokens are returned
// in the body and also set as cookies for browsers.
func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "login.basic_auth")
			return
		}

		resp, err := httpx.PasswordGrant(r.Context(), app.BearerServer, user, pass)
		if err != nil {
			httpx.LogInternalError(w, "login.grant", err)
			return
		}
		withCookies(w, resp, "login")
	}
}

func Refresh(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		match := reRefresh.FindStringSubmatch(r.Header.Get("authorization"))
		if len(match) == 0 {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "refresh.token")
			return
		}

		resp, err := httpx.RefreshGrant(r.Context(), app.BearerServer, match[1])
		if err != nil {
			httpx.LogInternalError(w, "refresh.grant", err)
			return
		}
		withCookies(w, resp, "refresh")
	}
}

func Logout(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.ClearTokenCookies(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

func withCookies(w http.ResponseWriter, resp httpx.ResponseBuffer, code string) {
	if resp.Status() == http.StatusOK {
		var tokens httpx.Tokens
		if err := resp.DecodeJSON(&tokens); err != nil {
			httpx.LogInternalError(w, code+".decode", err)
			return
		}
		httpx.SetTokenCookies(w, tokens)
	} else {
		log.Debugf("%s: status %d", code, resp.Status())
	}
	resp.Flush(w)
}
