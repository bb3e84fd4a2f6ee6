package domain_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/directus/internal/domain"
)

func TestNewRecord_RequiresId(t *testing.T) {
	t.Parallel()

	_, err := domain.RecordFromJSON([]byte(`{"title":"x"}`))
	require.ErrorIs(t, err, domain.ErrMissingID)

	_, err = domain.RecordFromJSON([]byte(`{"id":null}`))
	require.ErrorIs(t, err, domain.ErrMissingID)

	_, err = domain.RecordFromJSON([]byte(`[1]`))
	require.ErrorIs(t, err, domain.ErrParse)
}

func TestRecord_SetSuppressesUnchangedValues(t *testing.T) {
	t.Parallel()

	r, err := domain.RecordFromJSON([]byte(`{"id":7,"title":"a","views":1}`))
	require.NoError(t, err)

	r.SetString("title", "a")
	require.NoError(t, r.SetAny("views", 1.0))
	r.Set("missing", domain.NullValue())
	assert.False(t, r.NeedsSaving(), "equal values and null on an absent key are not changes")

	r.SetString("title", "b")
	assert.True(t, r.HasChanged("title"))
	assert.Equal(t, "b", r.Get("title").String())
	assert.Equal(t, "a", r.Raw().Map()["title"], "raw fields keep the server value")

	assert.JSONEq(t, `{"title":"b"}`, mustJSON(t, r.Pending()))
	assert.JSONEq(t, `{"title":"b","views":1}`, mustJSON(t, r.ForCreation()))
}

func TestRecord_MergeResponseClearsPending(t *testing.T) {
	t.Parallel()

	r, err := domain.RecordFromMap(map[string]any{"id": "a", "title": "old"})
	require.NoError(t, err)
	r.SetString("title", "new")

	resp, err := domain.ParseFields([]byte(`{"title":"new","modified":"2025-06-01"}`))
	require.NoError(t, err)
	r.MergeResponse(resp)

	assert.False(t, r.NeedsSaving())
	modified, err := r.GetTime("modified")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), modified)
}

func TestRecord_TypedAccessors(t *testing.T) {
	t.Parallel()

	r, err := domain.RecordFromJSON([]byte(`{
		"id": "42",
		"count": 3,
		"ratio": 0.5,
		"done": true,
		"tags": ["a", "b"],
		"meta": {"k": "v"},
		"at": "2025-06-01T12:00:00",
		"nothing": null
	}`))
	require.NoError(t, err)

	id, err := r.IntID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	n, err := r.GetInt("count")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	f, err := r.GetFloat("ratio")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, f, 1e-9)

	b, err := r.GetBool("done")
	require.NoError(t, err)
	assert.True(t, b)

	list, err := r.GetList("tags")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	meta, err := r.GetMap("meta")
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, meta.Keys())

	at, err := r.GetTime("at")
	require.NoError(t, err)
	assert.Equal(t, 12, at.Hour())

	_, err = r.GetInt("ratio")
	require.ErrorIs(t, err, domain.ErrTypeMismatch)
	_, err = r.GetString("count")
	require.ErrorIs(t, err, domain.ErrTypeMismatch)

	_, ok := r.OptionalString("nothing")
	assert.False(t, ok)
	_, ok = r.OptionalInt("absent")
	assert.False(t, ok)
}

func TestFields_KeepDocumentOrder(t *testing.T) {
	t.Parallel()

	f, err := domain.ParseFields([]byte(`{"zeta":1,"alpha":{"y":2,"x":3},"big":12345678901234567890}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "big"}, f.Keys())
	assert.Equal(t, `{"zeta":1,"alpha":{"y":2,"x":3},"big":12345678901234567890}`, mustJSON(t, f))
}

func TestNewItem_HasUuidId(t *testing.T) {
	t.Parallel()

	r := domain.NewItem()
	_, err := uuid.Parse(r.ID())
	require.NoError(t, err)
	assert.NotEqual(t, r.ID(), domain.NewItem().ID())
}

func TestNewCacheEntry_ClampsNegativeAge(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	resp := &domain.RawResponse{StatusCode: 404, Header: http.Header{"Content-Type": {"application/json"}}, Body: []byte(`{}`)}

	e := domain.NewCacheEntry("k", resp, now, -time.Minute)
	assert.Equal(t, now, e.ValidUntil)
	assert.False(t, e.IsFresh(now), "an entry expiring now is stale")

	back := e.Response()
	assert.Equal(t, 404, back.StatusCode)
	assert.Equal(t, "application/json", back.Header.Get("Content-Type"))
	assert.Equal(t, `{}`, string(back.Body))
}

func TestFile_DownloadURL(t *testing.T) {
	t.Parallel()

	f := domain.FileFromID("a b", "")

	u, err := f.DownloadURL("https://cms.example.com/", domain.AssetOptions{
		Width: 10, Quality: 80, Extra: map[string]string{"fit": "cover", "format": "webp"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cms.example.com/assets/a%20b?width=10&quality=80&fit=cover&format=webp", u)

	_, err = f.DownloadURL("", domain.AssetOptions{})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestFile_RatioDefaultsToOne(t *testing.T) {
	t.Parallel()

	r, err := domain.RecordFromJSON([]byte(`{"id":"f","width":300,"height":0}`))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, domain.FileFromRecord(r).Ratio(), 1e-9)
}

func TestServerDeniedError_MatchesSentinel(t *testing.T) {
	t.Parallel()

	err := error(&domain.ServerDeniedError{StatusCode: 403, Messages: []string{"one", "two"}})
	require.ErrorIs(t, err, domain.ErrServerDenied)
	assert.Equal(t, "server denied this action. HTTP code: 403. one\ntwo", err.Error())
	assert.Equal(t, "server denied this action. HTTP code: 500. No error message in response",
		(&domain.ServerDeniedError{StatusCode: 500}).Error())
}

func mustJSON(t *testing.T, f *domain.Fields) string {
	t.Helper()
	data, err := f.MarshalJSON()
	require.NoError(t, err)
	return string(data)
}

func TestCacheEntry_EncodesBinaryBody(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	body := []byte{0x89, 0x50, 0x4e, 0x47, 0xff, 0xd8, 0x00}

	bin := domain.NewCacheEntry("k", &domain.RawResponse{StatusCode: 200, Body: body}, now, time.Minute)
	assert.Equal(t, domain.BodyBase64, bin.BodyEncoding)
	require.NoError(t, bin.Validate())
	assert.Equal(t, body, bin.Response().Body)

	text := domain.NewCacheEntry("k", &domain.RawResponse{StatusCode: 200, Body: []byte(`{"data":"é"}`)}, now, time.Minute)
	assert.Empty(t, text.BodyEncoding)
	assert.Equal(t, `{"data":"é"}`, text.Body)

	bin.Body = "not base64!"
	require.ErrorIs(t, bin.Validate(), domain.ErrParse)
}
