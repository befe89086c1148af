package nextjs

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
)

// FetchError is returned when the page could not be retrieved from the
// Next.js server.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("error fetching page %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Result is the outcome of an asynchronous fetch or render.
type Result struct {
	Body string
	Err  error
}

// PageURL is the Next.js URL serving req.
func (b *Bridge) PageURL(req *Request) string {
	page := (&url.URL{Path: strings.TrimLeft(req.Path, "/")}).EscapedPath()
	u := b.baseURL() + "/" + page
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

// FetchPage retrieves the rendered page for req. The response status is not
// interpreted; whatever body the server sends is returned. req is given a
// CSRF token if it has none.
func (b *Bridge) FetchPage(ctx context.Context, req *Request) (string, error) {
	b.EnsureCSRFToken(req)

	pageURL := b.PageURL(req)
	if b.LogURLs {
		log.Println(pageURL)
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}
	for key, values := range OutboundHeaders(req) {
		r.Header[key] = values
	}
	r.Header.Set("Cookie", cookieHeader(OutboundCookies(req, b.cookieName())))

	resp, err := b.client().Do(r)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: fmt.Errorf("error reading response body: %w", err)}
	}
	return string(body), nil
}

// cookieHeader joins cookies as they arrived. Values are not sanitized the
// way http.Request.AddCookie does it.
func cookieHeader(cookies []*http.Cookie) string {
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

// FetchPageAsync runs FetchPage in the background. The channel receives
// exactly one Result.
func (b *Bridge) FetchPageAsync(ctx context.Context, req *Request) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		body, err := b.FetchPage(ctx, req)
		ch <- Result{Body: body, Err: err}
	}()
	return ch
}
