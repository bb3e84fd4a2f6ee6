package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/mmcdole/directus/internal/adapter"
	"github.com/mmcdole/directus/internal/adapter/directus"
	"github.com/mmcdole/directus/internal/domain"
	"github.com/mmcdole/directus/internal/service"
	"github.com/mmcdole/directus/internal/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

const requestTimeout = 30 * time.Second

// command is one CLI subcommand
type command struct {
	usage string
	short string
	flags *flag.FlagSet
	exec  func(ctx context.Context, a *app, args []string) error
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	global := flag.NewFlagSet("directus", flag.ContinueOnError)
	showVersion := global.BoolP("version", "v", false, "print version")
	global.SetInterspersed(false)
	global.SetOutput(&strings.Builder{})

	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage()
			return 0
		}
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("error: "+err.Error()))
		return 1
	}
	if *showVersion {
		fmt.Printf("directus %s\n", Version)
		return 0
	}

	rest := global.Args()
	if len(rest) == 0 {
		printUsage()
		return 1
	}

	cmd := findCommand(rest)
	if cmd == nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("error: unknown command "+strings.Join(rest, " ")))
		printUsage()
		return 1
	}
	words := len(strings.Fields(commandPath(cmd)))

	cmd.flags.SetOutput(&strings.Builder{})
	if err := cmd.flags.Parse(rest[words:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printCommandHelp(cmd)
			return 0
		}
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("error: "+err.Error()))
		printCommandHelp(cmd)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("error: "+err.Error()))
		return 1
	}
	defer a.Close()

	if err := cmd.exec(ctx, a, cmd.flags.Args()); err != nil {
		a.logger.Error("Command failed", "command", commandPath(cmd), "error", err)
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("error: "+describe(err)))
		return 1
	}
	return 0
}

// commandPath is the command words without arguments, e.g. "items list"
func commandPath(c *command) string {
	var words []string
	for _, w := range strings.Fields(c.usage) {
		if strings.HasPrefix(w, "<") || strings.HasPrefix(w, "[") {
			break
		}
		words = append(words, w)
	}
	return strings.Join(words, " ")
}

func findCommand(args []string) *command {
	var best *command
	bestLen := 0
	for _, c := range commands() {
		words := strings.Fields(commandPath(c))
		if len(words) > len(args) || len(words) <= bestLen {
			continue
		}
		match := true
		for i, w := range words {
			if args[i] != w {
				match = false
				break
			}
		}
		if match {
			best, bestLen = c, len(words)
		}
	}
	return best
}

func printUsage() {
	fmt.Println(TitleStyle.Render("Usage: directus <command> [flags]"))
	fmt.Println()
	for _, c := range commands() {
		fmt.Printf("  %-32s %s\n", c.usage, SubtitleStyle.Render(c.short))
	}
}

func printCommandHelp(c *command) {
	fmt.Println(TitleStyle.Render("Usage: directus " + c.usage))
	fmt.Println()
	fmt.Println(c.short)
	if c.flags.HasFlags() {
		fmt.Println()
		fmt.Println("Flags:")
		var buf strings.Builder
		c.flags.SetOutput(&buf)
		c.flags.PrintDefaults()
		fmt.Print(buf.String())
	}
}

// describe turns SDK errors into user-facing text
func describe(err error) string {
	var denied *domain.ServerDeniedError
	switch {
	case errors.Is(err, domain.ErrAuthenticationRequired):
		return "not logged in, run: directus login"
	case errors.As(err, &denied):
		return denied.Error()
	case errors.Is(err, domain.ErrTransport):
		return "server unreachable: " + err.Error()
	default:
		return err.Error()
	}
}

// app wires configuration, logging, persistence and the SDK client
type app struct {
	cfg       *adapter.Config
	logger    *slog.Logger
	logCloser io.Closer
	http      *http.Client

	// Built on first use, once a server URL is known
	cache  store.Store
	tokens *adapter.TokenFile
	client *service.Client
}

func newApp() (*app, error) {
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, closer, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger, closer = adapter.NullLogger(), nil
	}
	slog.SetDefault(logger)
	logger.Info("starting directus", "version", Version)

	return &app{
		cfg:       cfg,
		logger:    logger,
		logCloser: closer,
		http:      &http.Client{Timeout: requestTimeout},
	}, nil
}

// Client builds the SDK client for the configured server.
func (a *app) Client() (*service.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	if !a.cfg.IsConfigured() {
		return nil, errors.New("no server configured, run: directus login --url <server>")
	}

	cacheDir, err := a.cfg.CachePath()
	if err != nil {
		return nil, err
	}
	cache, err := store.Open(store.Options{
		Backend:       a.cfg.Cache.Backend,
		Dir:           cacheDir,
		ServerURL:     a.cfg.Server.URL,
		MemoryEntries: a.cfg.Cache.MemoryEntries,
		Logger:        a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	tokens, err := adapter.NewTokenFile(a.cfg.Auth.RefreshTokenFile)
	if err != nil {
		cache.Close()
		return nil, err
	}

	state := directus.NewTokenState(tokens.Load, tokens.Save, a.logger)
	api := directus.NewAPI(a.cfg.Server.URL, state, a.logger)

	a.cache = cache
	a.tokens = tokens
	a.client = service.NewClient(api, cache, a.http, a.logger)
	return a.client, nil
}

// cacheOptions applies the configured max age to the read-through defaults.
func (a *app) cacheOptions(useCache bool) service.CacheOptions {
	opts := service.DefaultCacheOptions()
	opts.CanUseCache = useCache
	if a.cfg.Cache.MaxAge > 0 {
		opts.MaxCacheAge = a.cfg.Cache.MaxAge
	}
	return opts
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("Failed to close cache", "error", err)
		}
	}
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}
