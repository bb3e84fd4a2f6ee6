package directus

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/directus/internal/domain"
)

func TestPing(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		ping        string
		info        string
		wantProject string
		wantErr     bool
	}{
		{name: "WithProjectName", ping: "pong", info: `{"data":{"project":{"project_name":"Blog"}}}`, wantProject: "Blog"},
		{name: "InfoUnavailable", ping: "pong", info: ``, wantProject: ""},
		{name: "NotDirectus", ping: "<html>hello</html>", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mux := http.NewServeMux()
			mux.HandleFunc("/server/ping", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.ping)
			})
			mux.HandleFunc("/server/info", func(w http.ResponseWriter, r *http.Request) {
				if tc.info == "" {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				fmt.Fprint(w, tc.info)
			})
			srv := httptest.NewServer(mux)
			t.Cleanup(srv.Close)

			info, err := Ping(context.Background(), srv.Client(), srv.URL+"/")
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantProject, info.ProjectName)
		})
	}
}

func TestPing_WrapsTransportErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Ping(context.Background(), http.DefaultClient, url)
	require.ErrorIs(t, err, domain.ErrTransport)
}
