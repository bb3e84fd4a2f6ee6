package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/mmcdole/directus/internal/adapter"
	"github.com/mmcdole/directus/internal/adapter/directus"
	"github.com/mmcdole/directus/internal/domain"
	"github.com/mmcdole/directus/internal/service"
)

func commands() []*command {
	return []*command{
		loginCommand(),
		logoutCommand(),
		meCommand(),
		itemsListCommand(),
		itemsGetCommand(),
		cacheListCommand(),
		cacheClearCommand(),
		cacheDropTagCommand(),
	}
}

func loginCommand() *command {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	url := fs.String("url", "", "server URL (defaults to the configured server)")
	email := fs.String("email", "", "account email (defaults to the last used email)")
	otp := fs.String("otp", "", "one-time password for two-factor accounts")

	return &command{
		usage: "login",
		short: "Sign in and store the refresh token",
		flags: fs,
		exec: func(ctx context.Context, a *app, _ []string) error {
			serverURL := strings.TrimRight(firstNonEmpty(*url, a.cfg.Server.URL), "/")
			if serverURL == "" {
				return errors.New("no server URL, pass --url")
			}

			info, err := directus.Ping(ctx, a.http, serverURL)
			if err != nil {
				return err
			}
			if info.ProjectName != "" {
				fmt.Println(SubtitleStyle.Render("Connected to " + info.ProjectName))
			}

			addr := firstNonEmpty(*email, a.cfg.Server.Email)
			if addr == "" {
				if addr, err = prompt("Email: "); err != nil {
					return err
				}
			}
			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}

			if a.cfg.IsConfigured() && serverURL != a.cfg.Server.URL {
				// Refresh tokens belong to one server
				if err := forgetSession(a.cfg); err != nil {
					return err
				}
			}
			a.cfg.Server.URL = serverURL
			a.cfg.Server.Email = addr
			if err := adapter.SaveConfig(a.cfg); err != nil {
				return err
			}

			client, err := a.Client()
			if err != nil {
				return err
			}
			result, err := client.Login(ctx, domain.Credentials{Email: addr, Password: password, OTP: *otp})
			if err != nil {
				return err
			}
			if !result.OK() {
				msg := result.Type.String()
				if result.Message != "" {
					msg += ": " + result.Message
				}
				return fmt.Errorf("login failed (%s)", msg)
			}
			fmt.Println(SuccessStyle.Render("Logged in as " + addr))
			return nil
		},
	}
}

func logoutCommand() *command {
	return &command{
		usage: "logout",
		short: "End the session and forget the refresh token",
		flags: flag.NewFlagSet("logout", flag.ContinueOnError),
		exec: func(ctx context.Context, a *app, _ []string) error {
			client, err := a.Client()
			if err != nil {
				return err
			}
			ok, err := client.Logout(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("server refused to end the session")
			}
			fmt.Println(SuccessStyle.Render("Logged out"))
			return nil
		},
	}
}

func meCommand() *command {
	fs := flag.NewFlagSet("me", flag.ContinueOnError)
	fields := fs.String("fields", "*", "fields to request")
	useCache := fs.Bool("cache", false, "serve a fresh cached response when available")

	return &command{
		usage: "me",
		short: "Show the logged in user",
		flags: fs,
		exec: func(ctx context.Context, a *app, _ []string) error {
			client, err := a.Client()
			if err != nil {
				return err
			}
			user, err := client.CurrentUser(ctx, *fields, a.cacheOptions(*useCache))
			if err != nil {
				return err
			}
			if user == nil {
				return errors.New("could not load the current user")
			}

			fmt.Println(TitleStyle.Render(firstNonEmpty(user.FullName(), user.Email())))
			if user.Email() != "" {
				fmt.Println(DimStyle.Render(user.Email()))
			}
			if status, ok := user.Status(); ok {
				fmt.Println(DimStyle.Render("status: " + string(status)))
			}
			return nil
		},
	}
}

func itemsListCommand() *command {
	fs := flag.NewFlagSet("items list", flag.ContinueOnError)
	fields := fs.String("fields", "", "fields to request (default: collection default)")
	limit := fs.Int("limit", 0, "maximum number of items")
	offset := fs.Int("offset", 0, "number of items to skip")
	sort := fs.StringSlice("sort", nil, "sort fields, prefix with - for descending")
	where := fs.StringArray("where", nil, "field=value equality filter, repeatable")
	all := fs.Bool("all", false, "fetch every page, --limit sets the page size")
	useCache := fs.Bool("cache", false, "serve a fresh cached response when available")

	return &command{
		usage: "items list <collection>",
		short: "List items of a collection",
		flags: fs,
		exec: func(ctx context.Context, a *app, args []string) error {
			if len(args) != 1 {
				return errors.New("expected a collection name")
			}
			filter, err := parseWhere(*where)
			if err != nil {
				return err
			}
			client, err := a.Client()
			if err != nil {
				return err
			}

			q := domain.ListQuery{
				Fields: *fields,
				Filter: filter,
				Sort:   parseSort(*sort),
				Limit:  *limit,
				Offset: *offset,
			}
			svc := client.Items(domain.NewCollection(args[0]))
			var items []*domain.Record
			if *all {
				items, err = svc.ListAll(ctx, q, *limit, a.cacheOptions(*useCache), func(loaded int) {
					fmt.Fprint(os.Stderr, DimStyle.Render(fmt.Sprintf("\rloaded %d items", loaded)))
				})
				fmt.Fprintln(os.Stderr)
			} else {
				items, err = svc.List(ctx, q, a.cacheOptions(*useCache))
			}
			if err != nil {
				return err
			}
			return printJSON(items)
		},
	}
}

func itemsGetCommand() *command {
	fs := flag.NewFlagSet("items get", flag.ContinueOnError)
	fields := fs.String("fields", "", "fields to request (default: collection default)")
	useCache := fs.Bool("cache", false, "serve a fresh cached response when available")

	return &command{
		usage: "items get <collection> <id>",
		short: "Show one item",
		flags: fs,
		exec: func(ctx context.Context, a *app, args []string) error {
			if len(args) != 2 {
				return errors.New("expected a collection name and an item id")
			}
			client, err := a.Client()
			if err != nil {
				return err
			}
			item, err := client.Items(domain.NewCollection(args[0])).Get(ctx, args[1], *fields, a.cacheOptions(*useCache))
			if err != nil {
				return err
			}
			if item == nil {
				return fmt.Errorf("item %s not found in %s", args[1], args[0])
			}
			return printJSON(item)
		},
	}
}

func cacheListCommand() *command {
	fs := flag.NewFlagSet("cache ls", flag.ContinueOnError)
	tags := fs.Bool("tags", false, "list tags instead of keys")

	return &command{
		usage: "cache ls [query]",
		short: "List cached responses, fuzzy matching query",
		flags: fs,
		exec: func(_ context.Context, a *app, args []string) error {
			browser, err := a.cacheBrowser()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")

			if *tags {
				for _, tag := range browser.MatchTags(query) {
					fmt.Printf("%s %s\n", AccentStyle.Render(tag), DimStyle.Render(fmt.Sprintf("(%d)", len(browser.KeysWithTag(tag)))))
				}
				return nil
			}

			for _, m := range browser.MatchKeys(query) {
				line := highlight(m.Key, m.MatchedIndexes)
				if entry, ok := browser.Entry(m.Key); ok {
					state := "fresh"
					if !entry.IsFresh(time.Now()) {
						state = "stale"
					}
					line += " " + DimStyle.Render(fmt.Sprintf("%d %s", entry.StatusCode, state))
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func cacheClearCommand() *command {
	return &command{
		usage: "cache clear",
		short: "Delete every cached response",
		flags: flag.NewFlagSet("cache clear", flag.ContinueOnError),
		exec: func(_ context.Context, a *app, _ []string) error {
			browser, err := a.cacheBrowser()
			if err != nil {
				return err
			}
			if err := browser.Clear(); err != nil {
				return err
			}
			fmt.Println(SuccessStyle.Render("Cache cleared"))
			return nil
		},
	}
}

func cacheDropTagCommand() *command {
	return &command{
		usage: "cache drop-tag <tag>",
		short: "Delete every cached response carrying tag",
		flags: flag.NewFlagSet("cache drop-tag", flag.ContinueOnError),
		exec: func(_ context.Context, a *app, args []string) error {
			if len(args) != 1 {
				return errors.New("expected a tag")
			}
			browser, err := a.cacheBrowser()
			if err != nil {
				return err
			}
			n, err := browser.DropTag(args[0])
			if err != nil {
				return err
			}
			fmt.Println(SuccessStyle.Render(fmt.Sprintf("Removed %d entries", n)))
			return nil
		},
	}
}

// parseWhere turns field=value pairs into an equality filter.
func parseWhere(pairs []string) (domain.Filter, error) {
	var filters []domain.Filter
	for _, pair := range pairs {
		field, value, ok := strings.Cut(pair, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid --where %q, expected field=value", pair)
		}
		filters = append(filters, domain.Where(field, domain.OpEquals, value))
	}
	switch len(filters) {
	case 0:
		return nil, nil
	case 1:
		return filters[0], nil
	default:
		return domain.And(filters...), nil
	}
}

func parseSort(fields []string) []domain.SortProperty {
	var props []domain.SortProperty
	for _, f := range fields {
		if name, ok := strings.CutPrefix(f, "-"); ok {
			props = append(props, domain.Desc(name))
		} else if f != "" {
			props = append(props, domain.Asc(f))
		}
	}
	return props
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(label)
	}
	fmt.Print(label)
	pw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

func forgetSession(cfg *adapter.Config) error {
	tokens, err := adapter.NewTokenFile(cfg.Auth.RefreshTokenFile)
	if err != nil {
		return err
	}
	if err := tokens.Delete(); err != nil {
		return err
	}
	return adapter.ClearServerConfig(cfg)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// cacheBrowser opens the cache through the client so both share one handle.
func (a *app) cacheBrowser() (*service.CacheBrowser, error) {
	if _, err := a.Client(); err != nil {
		return nil, err
	}
	return service.NewCacheBrowser(a.cache, a.logger), nil
}
