package main

import (
	"fmt"
	"log"
	"os"

	"github.com/andesco/nextbridge/handlers"
	"github.com/andesco/nextbridge/pkg/nextjs"

	"github.com/akamensky/argparse"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"golang.org/x/term"
)

func main() {
	cfg := nextjs.ConfigFromEnv()

	parser := argparse.NewParser("nextbridge", "Serves pages rendered by a Next.js server")

	port := parser.String("p", "port", &argparse.Options{
		Required: false,
		Default:  getenv("PORT", "8080"),
		Help:     "Port the server listens on",
	})
	serverURL := parser.String("n", "nextjs-url", &argparse.Options{
		Required: false,
		Default:  cfg.ServerURL,
		Help:     "Base URL of the Next.js server",
	})
	ruleset := parser.String("r", "ruleset", &argparse.Options{
		Required: false,
		Default:  cfg.RulesetPath,
		Help:     "Page rules: ';'-separated YAML files or directories",
	})
	templates := parser.String("t", "templates", &argparse.Options{
		Required: false,
		Default:  cfg.TemplatesDir,
		Help:     "Directory of templates pages can be wrapped in",
	})
	template := parser.String("T", "template", &argparse.Options{
		Required: false,
		Default:  os.Getenv("PAGE_TEMPLATE"),
		Help:     "Template every page is rendered through",
	})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	cfg.ServerURL = *serverURL
	cfg.RulesetPath = *ruleset
	cfg.TemplatesDir = *templates

	bridge, err := nextjs.New(cfg)
	if err != nil {
		log.Fatalf("ERROR: Failed to initialize bridge: %v", err)
	}

	fiberCfg := fiber.Config{
		DisableStartupMessage: !term.IsTerminal(int(os.Stdout.Fd())),
	}
	if bridge.Views != nil {
		fiberCfg.Views = bridge.Views
	}
	app := fiber.New(fiberCfg)

	app.Use(logger.New())
	app.Use(csrf.New(csrf.Config{
		CookieName:     cfg.CSRFCookieName,
		CookieSameSite: "Lax",
		ContextKey:     handlers.CSRFContextKey,
	}))

	app.Get("/_next/*", handlers.NextStatic(bridge))
	app.Get("/*", handlers.Page(bridge, nextjs.RenderOptions{Template: *template}))

	log.Printf("INFO: Rendering pages from %s", bridge.ServerURL)
	log.Fatal(app.Listen(":" + *port))
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
