package nextjs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
)

// Template data keys set next to the caller's data.
const (
	SectionsKey  = "nextjs"
	CSRFTokenKey = "csrfToken"
	RequestKey   = "request"
)

const defaultContentType = "text/html; charset=utf-8"

var ErrNoViews = errors.New("nextjs: no views configured")

// RenderOptions select how a page is turned into a response.
type RenderOptions struct {
	// Template wraps the page when set and the page carries all markers.
	Template string
	// Data is passed to the template next to the sections. It is copied,
	// never modified.
	Data        map[string]interface{}
	ContentType string
	Status      int
}

type Response struct {
	Status      int
	ContentType string
	Body        string
}

// Send writes the response to w.
func (r *Response) Send(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", r.ContentType)
	w.WriteHeader(r.Status)
	_, err := w.Write([]byte(r.Body))
	return err
}

// ResponseResult is the outcome of RenderAsync.
type ResponseResult struct {
	Response *Response
	Err      error
}

// RenderToString fetches the page for req and, when templateName is set and
// the page carries all markers, renders it through that template. Otherwise
// the page is returned as fetched.
func (b *Bridge) RenderToString(ctx context.Context, req *Request, templateName string, data map[string]interface{}) (string, error) {
	html, err := b.FetchPage(ctx, req)
	if err != nil {
		return "", err
	}
	return b.finish(req, html, templateName, data)
}

// RenderToStringAsync runs RenderToString in the background. The channel
// receives exactly one Result.
func (b *Bridge) RenderToStringAsync(ctx context.Context, req *Request, templateName string, data map[string]interface{}) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		body, err := b.RenderToString(ctx, req, templateName, data)
		ch <- Result{Body: body, Err: err}
	}()
	return ch
}

// Render is RenderToString wrapped in a Response.
func (b *Bridge) Render(ctx context.Context, req *Request, opts RenderOptions) (*Response, error) {
	body, err := b.RenderToString(ctx, req, opts.Template, opts.Data)
	if err != nil {
		return nil, err
	}
	return newResponse(body, opts), nil
}

// RenderAsync runs Render in the background. The channel receives exactly
// one ResponseResult.
func (b *Bridge) RenderAsync(ctx context.Context, req *Request, opts RenderOptions) <-chan ResponseResult {
	ch := make(chan ResponseResult, 1)
	go func() {
		resp, err := b.Render(ctx, req, opts)
		ch <- ResponseResult{Response: resp, Err: err}
	}()
	return ch
}

// Handler serves pages for net/http. A CSRF cookie is issued to callers
// that arrive without one.
func (b *Bridge) Handler(opts RenderOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := FromHTTP(r, "")
		if token, fresh := b.EnsureCSRFToken(req); fresh {
			http.SetCookie(w, &http.Cookie{
				Name:     b.cookieName(),
				Value:    token,
				Path:     "/",
				SameSite: http.SameSiteLaxMode,
			})
		}

		resp, err := b.Render(r.Context(), req, opts)
		if err != nil {
			log.Printf("ERROR: Failed to render %s: %v", r.URL.Path, err)
			http.Error(w, err.Error(), StatusForError(err))
			return
		}
		if err := resp.Send(w); err != nil {
			log.Printf("ERROR: Failed to write %s: %v", r.URL.Path, err)
		}
	})
}

// StatusForError maps a render error to the status reported to the caller.
func StatusForError(err error) int {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (b *Bridge) finish(req *Request, html, templateName string, data map[string]interface{}) (string, error) {
	out := html
	if templateName != "" {
		if sections, ok := ExtractSections(html); ok {
			rendered, err := b.renderTemplate(templateName, templateData(data, req, sections))
			if err != nil {
				return "", err
			}
			out = rendered
		}
	}
	return b.Rules.Apply(req.Path, out), nil
}

func (b *Bridge) renderTemplate(name string, data map[string]interface{}) (string, error) {
	if b.Views == nil {
		return "", ErrNoViews
	}
	var buf bytes.Buffer
	if err := b.Views.Render(&buf, name, data); err != nil {
		return "", fmt.Errorf("error rendering template '%s': %w", name, err)
	}
	return buf.String(), nil
}

func templateData(data map[string]interface{}, req *Request, sections Sections) map[string]interface{} {
	out := make(map[string]interface{}, len(data)+3)
	for k, v := range data {
		out[k] = v
	}
	out[SectionsKey] = sections.Map()
	out[CSRFTokenKey] = req.CSRFToken
	out[RequestKey] = req
	return out
}

func newResponse(body string, opts RenderOptions) *Response {
	resp := &Response{
		Status:      opts.Status,
		ContentType: opts.ContentType,
		Body:        body,
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	if resp.ContentType == "" {
		resp.ContentType = defaultContentType
	}
	return resp
}
