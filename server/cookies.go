package server

import (
	"net/http"

	"github.com/marketloop/auth-server/session"
)

// Cookie names. guestSession is set by the storefront for anonymous browsing
// and only read here, never written.
const (
	CookieAccessToken  = "accessToken"
	CookieRefreshToken = "refreshToken"
	CookieCSRFToken    = "csrfToken"
	CookieGuestSession = "guestSession"
)

// HeaderCSRFToken is the request header compared against the csrf cookie on
// refresh (double-submit).
const HeaderCSRFToken = "x-csrf-token"

// Cookie lifetimes. Shorter than the underlying JWT expiries: the cookie
// vanishing forces a refresh round-trip while the token itself stays valid.
const (
	accessCookieMaxAge  = 15 * 60          // 15 minutes
	refreshCookieMaxAge = 7 * 24 * 60 * 60 // 7 days
)

// setAuthCookies writes the full credential set. The access and csrf cookies
// are readable by frontend scripts; only the refresh token is HttpOnly.
func setAuthCookies(w http.ResponseWriter, creds *session.Credentials) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieAccessToken,
		Value:    creds.AccessToken,
		Path:     "/",
		MaxAge:   accessCookieMaxAge,
		HttpOnly: false,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CookieRefreshToken,
		Value:    creds.RefreshToken,
		Path:     "/",
		MaxAge:   refreshCookieMaxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	// Session-length cookie, no MaxAge. Dies with the browser session.
	http.SetCookie(w, &http.Cookie{
		Name:     CookieCSRFToken,
		Value:    creds.CSRFToken,
		Path:     "/",
		HttpOnly: false,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearAuthCookies expires all three credential cookies. Always clears the
// full set regardless of which cookies the request carried.
func clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{CookieAccessToken, CookieRefreshToken, CookieCSRFToken} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name == CookieRefreshToken,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// cookieValue returns the named cookie's value or "" when absent.
func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
