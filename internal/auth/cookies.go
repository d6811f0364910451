package auth

import (
	"net/http"
	"sort"
	"strings"
	"time"
)

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain   string // Empty string = current host only
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
	MaxAge   int    // seconds; 0 = session cookie
}

// CookieStore exposes the request's cookies as a key/value store and writes
// every change back to the response. It is the server-side home of the
// client's auth storage.
type CookieStore struct {
	w      http.ResponseWriter
	config CookieConfig
	values map[string]string
}

// NewCookieStore snapshots the cookies on r
func NewCookieStore(w http.ResponseWriter, r *http.Request, config CookieConfig) *CookieStore {
	values := make(map[string]string)
	for _, c := range r.Cookies() {
		values[c.Name] = c.Value
	}
	return &CookieStore{w: w, config: config, values: values}
}

func (s *CookieStore) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set writes an HttpOnly cookie
func (s *CookieStore) Set(key, value string) {
	s.set(key, value, true)
}

// SetReadable writes a cookie that scripts may read, e.g. the CSRF token
func (s *CookieStore) SetReadable(key, value string) {
	s.set(key, value, false)
}

func (s *CookieStore) set(key, value string, httpOnly bool) {
	s.values[key] = value
	cookie := &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		Domain:   s.config.Domain,
		HttpOnly: httpOnly,
		Secure:   s.config.Secure,
		SameSite: parseSameSite(s.config.SameSite),
	}
	if s.config.MaxAge > 0 {
		cookie.MaxAge = s.config.MaxAge
		cookie.Expires = time.Now().Add(time.Duration(s.config.MaxAge) * time.Second)
	}
	http.SetCookie(s.w, cookie)
}

// Keys returns the cookie names in sorted order
func (s *CookieStore) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Remove expires the cookie on the client
func (s *CookieStore) Remove(key string) {
	delete(s.values, key)
	http.SetCookie(s.w, &http.Cookie{
		Name:     key,
		Value:    "",
		Path:     "/",
		Domain:   s.config.Domain,
		MaxAge:   -1, // Negative MaxAge deletes the cookie
		HttpOnly: true,
		Secure:   s.config.Secure,
		SameSite: parseSameSite(s.config.SameSite),
	})
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch strings.ToLower(sameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
