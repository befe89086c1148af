package handlers

import (
	"log"
	"net/http"
	"net/url"

	"github.com/andesco/nextbridge/pkg/nextjs"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// CSRFContextKey is the Locals key the CSRF middleware stores its token under.
const CSRFContextKey = "csrf"

// Page is a Fiber handler that renders the requested path through the
// Next.js server.
func Page(b *nextjs.Bridge, opts nextjs.RenderOptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := FromFiber(c, CSRFContextKey)

		resp, err := b.Render(c.UserContext(), req, opts)
		if err != nil {
			log.Printf("ERROR: Failed to render %s: %v", req.Path, err)
			return c.Status(nextjs.StatusForError(err)).SendString(err.Error())
		}

		c.Set(fiber.HeaderContentType, resp.ContentType)
		return c.Status(resp.Status).SendString(resp.Body)
	}
}

// FromFiber converts the request of c. The CSRF token is read from the
// Locals entry csrfContextKey, if present.
func FromFiber(c *fiber.Ctx, csrfContextKey string) *nextjs.Request {
	rawQuery := string(c.Request().URI().QueryString())
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		// ParseQuery keeps the pairs it could decode
		log.Printf("WARN: Malformed query string '%s': %v", rawQuery, err)
	}

	// Convert Fiber headers to http.Header
	headers := make(http.Header)
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers.Add(string(key), string(value))
	})

	var cookies []*http.Cookie
	c.Request().Header.VisitAllCookie(func(key, value []byte) {
		cookies = append(cookies, &http.Cookie{Name: string(key), Value: string(value)})
	})

	token, _ := c.Locals(csrfContextKey).(string)

	// Fiber hands out the path still escaped; the bridge escapes it once more
	// when building the page URL.
	path, err := url.PathUnescape(c.Path())
	if err != nil {
		// fallback
		path = c.Path()
	}

	return &nextjs.Request{
		Path:       utils.CopyString(path),
		Query:      query,
		Cookies:    cookies,
		Header:     headers,
		RemoteAddr: utils.CopyString(c.IP()),
		CSRFToken:  token,
	}
}
