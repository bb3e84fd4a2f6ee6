package directus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/directus/internal/domain"
	"github.com/tidwall/gjson"
)

const pingTimeout = 10 * time.Second

// ServerInfo is what an unauthenticated probe learns about a server.
type ServerInfo struct {
	ProjectName string
}

// Ping checks that serverURL answers /server/ping like a Directus server and
// reads the public project name from /server/info when available.
func Ping(ctx context.Context, doer domain.HTTPDoer, serverURL string) (*ServerInfo, error) {
	// Normalize URL (remove trailing slash)
	serverURL = strings.TrimRight(serverURL, "/")

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	body, err := probe(ctx, doer, serverURL+"/server/ping")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(body)) != "pong" {
		return nil, fmt.Errorf("not a Directus server (ping answered %q)", truncate(string(body), 40))
	}

	info := &ServerInfo{}
	if body, err := probe(ctx, doer, serverURL+"/server/info"); err == nil && gjson.ValidBytes(body) {
		info.ProjectName = gjson.GetBytes(body, "data.project.project_name").String()
	}
	return info, nil
}

func probe(ctx context.Context, doer domain.HTTPDoer, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
