package handlers

import (
	"log"
	"strings"

	"github.com/andesco/nextbridge/pkg/nextjs"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
)

// NextStatic forwards requests for the renderer's own assets (/_next/...)
// to the Next.js server unchanged.
func NextStatic(b *nextjs.Bridge) fiber.Handler {
	base := strings.TrimSuffix(b.ServerURL, "/")

	return func(c *fiber.Ctx) error {
		target := base + c.OriginalURL()
		if b.LogURLs {
			log.Println(target)
		}

		if err := proxy.Do(c, target); err != nil {
			log.Printf("ERROR: Failed to proxy %s: %v", target, err)
			return c.Status(fiber.StatusBadGateway).SendString(err.Error())
		}
		c.Response().Header.Del(fiber.HeaderServer)
		return nil
	}
}
