package directus

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/directus/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestAPI() *API {
	a := NewAPI("http://api/", nil, nil)
	a.now = func() time.Time { return testNow }
	a.tokens.now = a.now
	return a
}

func jsonResponse(status int, body string) *domain.RawResponse {
	return &domain.RawResponse{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       []byte(body),
	}
}

func readBody(t *testing.T, req *http.Request) string {
	t.Helper()
	data, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	return string(data)
}

func TestParseLogin_AppliesTokensWhenResponseComplete(t *testing.T) {
	t.Parallel()

	a := newTestAPI()
	res, err := a.ParseLogin(jsonResponse(200, `{"data":{"access_token":"A","refresh_token":"B","expires":900000}}`))
	require.NoError(t, err)

	assert.Equal(t, domain.LoginSuccess, res.Type)
	assert.Equal(t, "A", a.tokens.AccessToken())
	refresh, _ := a.tokens.RefreshToken()
	assert.Equal(t, "B", refresh)
	assert.Equal(t, testNow.Add(900*time.Second), a.tokens.Expiry())
}

func TestParseLogin_Maps401Codes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		body    string
		want    domain.LoginResultType
		wantMsg string
	}{
		{
			name:    "InvalidCredentials",
			body:    `{"errors":[{"message":"Invalid user credentials.","extensions":{"code":"INVALID_CREDENTIALS"}}]}`,
			want:    domain.LoginInvalidCredentials,
			wantMsg: "Invalid user credentials.",
		},
		{
			name:    "InvalidOTP",
			body:    `{"errors":[{"message":"Invalid OTP.","extensions":{"code":"INVALID_OTP"}}]}`,
			want:    domain.LoginInvalidOTP,
			wantMsg: "Invalid OTP.",
		},
		{
			name:    "OtherCode",
			body:    `{"errors":[{"message":"Locked.","extensions":{"code":"USER_SUSPENDED"}}]}`,
			want:    domain.LoginError,
			wantMsg: "Locked.",
		},
		{
			name: "NotJSON",
			body: `<html>`,
			want: domain.LoginError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			a := newTestAPI()
			res, err := a.ParseLogin(jsonResponse(401, tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Type)
			assert.Equal(t, tc.wantMsg, res.Message)
			assert.Empty(t, a.tokens.AccessToken(), "tokens stay absent")
			_, ok := a.tokens.RefreshToken()
			assert.False(t, ok)
		})
	}
}

func TestParseLogin_JoinsMessagesWhenStatusUnexpected(t *testing.T) {
	t.Parallel()

	a := newTestAPI()
	res, err := a.ParseLogin(jsonResponse(500, `{"errors":[{"message":"one"},{"message":"two"}]}`))
	require.NoError(t, err)
	assert.Equal(t, domain.LoginError, res.Type)
	assert.Equal(t, "one\ntwo", res.Message)
}

func TestParseLogin_ReportsIncompleteWhenTokenMissing(t *testing.T) {
	t.Parallel()

	a := newTestAPI()
	res, err := a.ParseLogin(jsonResponse(200, `{"data":{"access_token":"A","expires":1000}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.LoginResult{Type: domain.LoginError, Message: "Incomplete token response."}, res)
	assert.Empty(t, a.tokens.AccessToken())
}

func TestParseLogin_UsesJWTExpiryWhenExpiresMissing(t *testing.T) {
	t.Parallel()

	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("secret"))
	require.NoError(t, err)

	a := newTestAPI()
	res, err := a.ParseLogin(jsonResponse(200, `{"data":{"access_token":"`+access+`","refresh_token":"B"}}`))
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.True(t, exp.Equal(a.tokens.Expiry()), "expiry %v should come from the exp claim", a.tokens.Expiry())
}

func TestPrepareLogin_SendsJSONCredentials(t *testing.T) {
	t.Parallel()

	a := newTestAPI()
	p, err := a.PrepareLogin(domain.Credentials{Email: "a@b.c", Password: "pw", OTP: "123456"})
	require.NoError(t, err)

	assert.Equal(t, "POST http://api/auth/login", p.CacheKey())
	assert.Equal(t, "application/json", p.Request.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"email":"a@b.c","password":"pw","otp":"123456"}`, readBody(t, p.Request))
}

func TestPrepareRefresh_FailsWhenNoRefreshToken(t *testing.T) {
	t.Parallel()

	a := newTestAPI()
	_, err := a.PrepareRefresh(context.Background())
	require.ErrorIs(t, err, domain.ErrAuthenticationRequired)
}

func TestPrepareRefresh_LoadsStoredToken(t *testing.T) {
	t.Parallel()

	ts := NewTokenState(func(context.Context) (string, bool, error) { return "stored", true, nil }, nil, nil)
	a := NewAPI("http://api", ts, nil)

	p, err := a.PrepareRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "POST http://api/auth/refresh", p.CacheKey())
	assert.JSONEq(t, `{"refresh_token":"stored"}`, readBody(t, p.Request))
	assert.Empty(t, p.Request.Header.Get("Authorization"))
}

func TestPrepareLogout_ReportsNoSession(t *testing.T) {
	t.Parallel()

	a := newTestAPI()
	_, ok, err := a.PrepareLogout(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseLogout_ClearsTokensOnSuccess(t *testing.T) {
	t.Parallel()

	a := newTestAPI()
	a.tokens.Apply(context.Background(), domain.TokenResult{AccessToken: "A", RefreshToken: "B"})

	ok, err := a.ParseLogout(jsonResponse(400, `{}`))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "A", a.tokens.AccessToken(), "failed logout keeps the session")

	ok, err = a.ParseLogout(&domain.RawResponse{StatusCode: 204})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, a.tokens.AccessToken())
}

func TestPrepareListItems_OrdersQueryParameters(t *testing.T) {
	t.Parallel()

	a := newTestAPI()
	a.tokens.Apply(context.Background(), domain.TokenResult{AccessToken: "tok", RefreshToken: "r"})
	coll := domain.NewCollection("article")

	p, err := a.PrepareListItems(coll, domain.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, "GET http://api/items/article?fields=*", p.CacheKey())
	assert.Equal(t, "Bearer tok", p.Request.Header.Get("Authorization"))

	p, err = a.PrepareListItems(coll, domain.ListQuery{
		Fields: "id,title",
		Filter: domain.Where("status", domain.OpEquals, "published"),
		Sort:   []domain.SortProperty{domain.Desc("date"), domain.Asc("title")},
		Limit:  10,
		Offset: 20,
	})
	require.NoError(t, err)
	assert.Equal(t,
		"http://api/items/article?fields=id,title&filter=%7B%22status%22%3A%7B%22_eq%22%3A%22published%22%7D%7D&limit=10&sort=-date,title&offset=20",
		p.URL())
}

func TestPrepareGetItem_CarriesTags(t *testing.T) {
	t.Parallel()

	a := newTestAPI()
	p, err := a.PrepareGetItem(domain.NewCollection("article"), "42", "", []string{"article/42"})
	require.NoError(t, err)
	assert.Equal(t, "GET http://api/items/article/42?fields=*", p.CacheKey())
	assert.Equal(t, []string{"article/42"}, p.Tags)
}

func TestParseListItems(t *testing.T) {
	t.Parallel()

	a := newTestAPI()

	items, err := a.ParseListItems(jsonResponse(200, `{"data":[{"id":1,"title":"x"},{"id":"b"}]}`))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].ID())
	assert.Equal(t, "b", items[1].ID())

	items, err = a.ParseListItems(jsonResponse(200, `{"data":null}`))
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = a.ParseListItems(jsonResponse(200, `{"data":[`))
	require.ErrorIs(t, err, domain.ErrParse)

	_, err = a.ParseListItems(jsonResponse(403, `{"errors":[{"message":"You don't have permission."}]}`))
	var denied *domain.ServerDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, 403, denied.StatusCode)
	assert.Equal(t, "You don't have permission.", denied.Message())
	assert.ErrorIs(t, err, domain.ErrServerDenied)
}

func TestParseCreateItems(t *testing.T) {
	t.Parallel()

	a := newTestAPI()

	res, err := a.ParseCreateItems(jsonResponse(200, `{"data":{"id":5}}`))
	require.NoError(t, err)
	require.NoError(t, res.Err)
	item, ok := res.Item()
	require.True(t, ok)
	assert.Equal(t, "5", item.ID())

	res, _ = a.ParseCreateItems(jsonResponse(200, `{"data":[{"id":1},{"id":2}]}`))
	require.NoError(t, res.Err)
	assert.Len(t, res.Items, 2)

	res, _ = a.ParseCreateItems(&domain.RawResponse{StatusCode: 204})
	require.NoError(t, res.Err)
	assert.Empty(t, res.Items)

	res, _ = a.ParseCreateItems(jsonResponse(400, `{"errors":[{"message":"bad"}]}`))
	assert.ErrorIs(t, res.Err, domain.ErrServerDenied)
}

func TestPrepareDeleteItems_SendsIdArray(t *testing.T) {
	t.Parallel()

	a := newTestAPI()
	p, err := a.PrepareDeleteItems(domain.NewCollection("article"), []string{"1", "abc"}, false)
	require.NoError(t, err)
	assert.Equal(t, "DELETE http://api/items/article", p.CacheKey())
	assert.JSONEq(t, `[1,"abc"]`, readBody(t, p.Request))

	_, err = a.PrepareDeleteItems(domain.NewCollection("article"), nil, false)
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestPrepareUploadFile_WritesFieldsBeforeFile(t *testing.T) {
	t.Parallel()

	a := newTestAPI()
	p, err := a.PrepareUploadFile(domain.FileUpload{
		Data:        []byte("hello"),
		Filename:    "hello.txt",
		ContentType: "text/plain",
		Title:       "Greeting",
		Folder:      "f1",
	})
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(p.Request.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)

	r := multipart.NewReader(p.Request.Body, params["boundary"])
	var names []string
	for {
		part, err := r.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, part.FormName())
		data, _ := io.ReadAll(part)
		if part.FormName() == "file" {
			assert.Equal(t, "hello.txt", part.FileName())
			assert.Equal(t, "text/plain", part.Header.Get("Content-Type"))
			assert.Equal(t, "hello", string(data))
		}
	}
	assert.Equal(t, []string{"storage", "title", "folder", "file"}, names)
}

func TestPrepareImportFile_OmitsEmptyMetadata(t *testing.T) {
	t.Parallel()

	a := newTestAPI()
	p, err := a.PrepareImportFile("https://example.com/a.png", "A", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://example.com/a.png","data":{"title":"A"}}`, readBody(t, p.Request))
}

func TestParseFile_AcceptsAny2xx(t *testing.T) {
	t.Parallel()

	a := newTestAPI()
	f, err := a.ParseFile(jsonResponse(201, `{"data":{"id":"f1","title":"T","width":300,"height":150}}`))
	require.NoError(t, err)
	assert.Equal(t, "T", f.Title())
	assert.InDelta(t, 2.0, f.Ratio(), 0.0001)
}

func TestParseInvite_ReturnsFalseOnDenial(t *testing.T) {
	t.Parallel()

	a := newTestAPI()
	ok, err := a.ParseInvite(jsonResponse(403, `{}`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWebSocketURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "wss://cms.example.com/websocket", NewAPI("https://cms.example.com/", nil, nil).WebSocketURL())
	assert.Equal(t, "ws://localhost:8055/websocket", NewAPI("http://localhost:8055", nil, nil).WebSocketURL())
}

func TestPrepareCustom_EncodesBody(t *testing.T) {
	t.Parallel()

	a := newTestAPI()
	p, err := a.PrepareCustom(http.MethodPost, "flows/trigger", map[string]int{"n": 1}, []string{"customRequest"})
	require.NoError(t, err)
	assert.Equal(t, "POST http://api/flows/trigger", p.CacheKey())
	assert.True(t, strings.HasPrefix(p.Request.Header.Get("Content-Type"), "application/json"))
	assert.JSONEq(t, `{"n":1}`, readBody(t, p.Request))
	assert.Equal(t, []string{"customRequest"}, p.Tags)
}
