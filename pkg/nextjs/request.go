package nextjs

import (
	"net"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// Request is the inbound request as seen by the bridge, independent of the
// web framework that received it.
type Request struct {
	// Path of the page, as received. Leading slashes are dropped when the
	// page URL is built.
	Path string
	// Query keeps every value of repeated keys.
	Query      url.Values
	Cookies    []*http.Cookie
	Header     http.Header
	RemoteAddr string
	// CSRFToken is the token issued to the caller for this request, if any.
	CSRFToken string
}

// FromHTTP converts a net/http request. csrfToken may be empty.
func FromHTTP(r *http.Request, csrfToken string) *Request {
	return &Request{
		Path:       r.URL.Path,
		Query:      r.URL.Query(),
		Cookies:    r.Cookies(),
		Header:     r.Header.Clone(),
		RemoteAddr: r.RemoteAddr,
		CSRFToken:  csrfToken,
	}
}

// EnsureCSRFToken makes sure req carries a CSRF token. An issued token wins,
// then the caller's existing CSRF cookie, then a newly generated one.
// fresh reports whether the token was generated here, in which case the
// caller still has to receive it as a cookie.
func (b *Bridge) EnsureCSRFToken(req *Request) (token string, fresh bool) {
	if req.CSRFToken != "" {
		return req.CSRFToken, false
	}
	if c := findCookie(req.Cookies, b.cookieName()); c != nil && c.Value != "" {
		req.CSRFToken = c.Value
		return req.CSRFToken, false
	}
	req.CSRFToken = uuid.NewString()
	return req.CSRFToken, true
}

// OutboundCookies mirrors the caller's cookies, in arrival order, and makes
// sure the CSRF cookie named cookieName carries the request's token.
func OutboundCookies(req *Request, cookieName string) []*http.Cookie {
	token := req.CSRFToken
	if token == "" {
		if c := findCookie(req.Cookies, cookieName); c != nil && c.Value != "" {
			token = c.Value
		} else {
			token = uuid.NewString()
		}
	}

	cookies := make([]*http.Cookie, 0, len(req.Cookies)+1)
	seen := false
	for _, c := range req.Cookies {
		if c.Name == cookieName {
			if seen {
				continue
			}
			seen = true
			cookies = append(cookies, &http.Cookie{Name: cookieName, Value: token})
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	if !seen {
		cookies = append(cookies, &http.Cookie{Name: cookieName, Value: token})
	}
	return cookies
}

// OutboundHeaders returns the headers identifying the caller to the renderer.
func OutboundHeaders(req *Request) http.Header {
	h := make(http.Header, 2)
	h.Set("X-Real-Ip", realIP(req))
	h.Set("User-Agent", req.Header.Get("User-Agent"))
	return h
}

func realIP(req *Request) string {
	if ip := req.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		// already a bare address
		return req.RemoteAddr
	}
	return host
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
