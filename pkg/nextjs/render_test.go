package nextjs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wrapper = `{{ .nextjs.section1 }}<meta name="app" content="{{ .app }}">{{ .nextjs.section2 }}` +
	`{{ .nextjs.section3 }}<nav>menu</nav>{{ .nextjs.section4 }}<footer>foot</footer>{{ .nextjs.section5 }}`

const tokenWrapper = `<input name="csrf" value="{{ .csrfToken }}"><p>{{ .request.Path }}</p>` +
	`{{ .nextjs.section1 }}{{ .nextjs.section2 }}{{ .nextjs.section3 }}{{ .nextjs.section4 }}{{ .nextjs.section5 }}`

func testViews(t *testing.T) *Templates {
	t.Helper()
	views := NewTemplates(fstest.MapFS{
		"page.html":   {Data: []byte(wrapper)},
		"broken.html": {Data: []byte(`{{ .nextjs.section1.missing }}`)},
		"token.html":  {Data: []byte(tokenWrapper)},
	})
	require.NoError(t, views.Load())
	return views
}

func TestRenderToStringWithTemplate(t *testing.T) {
	srv, _ := nextServer(t, page)
	b := &Bridge{ServerURL: srv.URL, Views: testViews(t)}

	data := map[string]interface{}{"app": "shop"}
	out, err := b.RenderToString(context.Background(), &Request{Path: "/"}, "page.html", data)
	require.NoError(t, err)

	s, _ := ExtractSections(page)
	expected := s[0] + `<meta name="app" content="shop">` + s[1] + s[2] + `<nav>menu</nav>` + s[3] + `<footer>foot</footer>` + s[4]
	assert.Equal(t, expected, out)

	// the caller's data is left alone
	assert.Equal(t, map[string]interface{}{"app": "shop"}, data)
}

func TestRenderToStringExposesRequest(t *testing.T) {
	srv, rec := nextServer(t, page)
	b := &Bridge{ServerURL: srv.URL, Views: testViews(t)}

	req := &Request{Path: "/checkout"}
	out, err := b.RenderToString(context.Background(), req, "token.html", nil)
	require.NoError(t, err)

	// the template sees the token that was sent to the renderer
	sent := cookieMap(rec.last().Cookies())[DefaultCSRFCookieName]
	require.NotEmpty(t, sent)
	assert.Equal(t, sent, req.CSRFToken)
	assert.Contains(t, out, `<input name="csrf" value="`+sent+`"><p>/checkout</p>`)
}

func TestRenderToStringWithoutMarkers(t *testing.T) {
	const plain = "<html><head></head><body>plain</body></html>"
	srv, _ := nextServer(t, plain)
	b := &Bridge{ServerURL: srv.URL, Views: testViews(t)}

	out, err := b.RenderToString(context.Background(), &Request{Path: "/"}, "page.html", nil)
	require.NoError(t, err)
	assert.Equal(t, plain, out)
}

func TestRenderToStringWithoutTemplate(t *testing.T) {
	srv, _ := nextServer(t, page)
	b := &Bridge{ServerURL: srv.URL}

	out, err := b.RenderToString(context.Background(), &Request{Path: "/"}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, page, out)
}

func TestRenderToStringTemplateErrors(t *testing.T) {
	srv, _ := nextServer(t, page)

	b := &Bridge{ServerURL: srv.URL}
	_, err := b.RenderToString(context.Background(), &Request{Path: "/"}, "page.html", nil)
	assert.ErrorIs(t, err, ErrNoViews)
	assert.Equal(t, http.StatusInternalServerError, StatusForError(err))

	b.Views = testViews(t)
	_, err = b.RenderToString(context.Background(), &Request{Path: "/"}, "missing.html", nil)
	assert.Error(t, err)

	_, err = b.RenderToString(context.Background(), &Request{Path: "/"}, "broken.html", nil)
	assert.Error(t, err)
}

func TestRenderToStringAsync(t *testing.T) {
	srv, _ := nextServer(t, page)
	b := &Bridge{ServerURL: srv.URL, Views: testViews(t)}

	res := <-b.RenderToStringAsync(context.Background(), &Request{Path: "/"}, "page.html", nil)
	require.NoError(t, res.Err)
	assert.Contains(t, res.Body, "<nav>menu</nav>")
}

func TestRender(t *testing.T) {
	srv, _ := nextServer(t, page)
	b := &Bridge{ServerURL: srv.URL}

	resp, err := b.Render(context.Background(), &Request{Path: "/"}, RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "text/html; charset=utf-8", resp.ContentType)
	assert.Equal(t, page, resp.Body)

	res := <-b.RenderAsync(context.Background(), &Request{Path: "/"}, RenderOptions{
		ContentType: "text/plain",
		Status:      http.StatusTeapot,
	})
	require.NoError(t, res.Err)
	assert.Equal(t, http.StatusTeapot, res.Response.Status)
	assert.Equal(t, "text/plain", res.Response.ContentType)
}

func TestHandler(t *testing.T) {
	srv, rec := nextServer(t, page)
	b := &Bridge{ServerURL: srv.URL, Views: testViews(t)}
	h := b.Handler(RenderOptions{Template: "page.html", Data: map[string]interface{}{"app": "shop"}})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products?sort=asc", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `<meta name="app" content="shop">`)

	// the token handed to the caller is the one sent to the renderer
	issued := cookieMap(w.Result().Cookies())[DefaultCSRFCookieName]
	require.NotEmpty(t, issued)
	seen := rec.last()
	assert.Equal(t, issued, cookieMap(seen.Cookies())[DefaultCSRFCookieName])
	assert.Equal(t, "/products", seen.URL.Path)
	assert.Equal(t, "asc", seen.URL.Query().Get("sort"))

	// callers that already have a token keep it
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "known"})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Empty(t, w.Result().Cookies())
	assert.Equal(t, "known", cookieMap(rec.last().Cookies())[DefaultCSRFCookieName])
}

func TestHandlerFetchError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	b := &Bridge{ServerURL: srv.URL}

	w := httptest.NewRecorder()
	b.Handler(RenderOptions{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}
