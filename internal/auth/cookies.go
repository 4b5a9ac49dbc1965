package auth

import (
	"net/http"
	"strings"
	"time"
)

const (
	accessTokenCookie  = "access_token"
	sessionTokenCookie = "session_token"
)

// ShouldUseCookies reports whether the client looks like a browser that
// expects cookie-based auth rather than tokens in the response body.
func ShouldUseCookies(r *http.Request) bool {
	// Explicit opt-in wins
	if r.Header.Get("X-Use-Cookies") == "true" {
		return true
	}
	// Browsers send Accept: text/html on navigations and an Origin on
	// fetch() calls; API clients generally do neither.
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		return true
	}
	return r.Header.Get("Origin") != ""
}

// SetAuthCookies writes the access and session tokens as HttpOnly cookies.
func SetAuthCookies(w http.ResponseWriter, accessToken, sessionToken string, isProduction bool, accessDuration, sessionDuration time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		MaxAge:   int(accessDuration.Seconds()),
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     sessionTokenCookie,
		Value:    sessionToken,
		Path:     "/",
		MaxAge:   int(sessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAuthCookies expires both auth cookies.
func ClearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{accessTokenCookie, sessionTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}
}

// GetAccessTokenFromCookie reads the access token cookie.
func GetAccessTokenFromCookie(r *http.Request) (string, error) {
	c, err := r.Cookie(accessTokenCookie)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

// GetSessionTokenFromCookie reads the session token cookie.
func GetSessionTokenFromCookie(r *http.Request) (string, error) {
	c, err := r.Cookie(sessionTokenCookie)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}
