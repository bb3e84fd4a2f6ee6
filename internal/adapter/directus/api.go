package directus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/directus/internal/domain"
	"github.com/tidwall/gjson"
)

const incompleteTokenResponse = "Incomplete token response."

// Error codes of a 401 login response
const (
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeInvalidOTP         = "INVALID_OTP"
)

// API builds requests for and parses responses from a Directus server.
// It owns the session tokens.
type API struct {
	baseURL string
	tokens  *TokenState
	logger  *slog.Logger
	now     func() time.Time
}

var _ domain.DirectusAPI = (*API)(nil)

// NewAPI creates an API for baseURL. tokens may be nil for an anonymous client.
func NewAPI(baseURL string, tokens *TokenState, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	if tokens == nil {
		tokens = NewTokenState(nil, nil, logger)
	}
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		logger:  logger,
		now:     time.Now,
	}
}

func (a *API) BaseURL() string { return a.baseURL }

// Tokens exposes the session state.
func (a *API) Tokens() *TokenState { return a.tokens }

// WebSocketURL derives the realtime endpoint: http becomes ws, https becomes wss.
func (a *API) WebSocketURL() string {
	switch {
	case strings.HasPrefix(a.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(a.baseURL, "https://") + "/websocket"
	case strings.HasPrefix(a.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(a.baseURL, "http://") + "/websocket"
	default:
		return a.baseURL + "/websocket"
	}
}

// FullURL joins path onto the base URL with exactly one slash.
func (a *API) FullURL(path string) string {
	if strings.HasPrefix(path, "/") {
		return a.baseURL + path
	}
	return a.baseURL + "/" + path
}

// Authenticate adds the bearer header when an access token is held.
func (a *API) Authenticate(req *http.Request) {
	if token := a.tokens.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// === Request helpers ===

// queryParam is one ordered query pair.
type queryParam struct {
	name, value string
}

var queryUnescaper = strings.NewReplacer("+", "%20", "%2A", "*", "%2C", ",")

// encodeQuery encodes params in the given order. "*" and "," stay literal so
// field lists read naturally and cache keys stay stable.
func encodeQuery(params []queryParam) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, queryUnescaper.Replace(url.QueryEscape(p.name))+"="+queryUnescaper.Replace(url.QueryEscape(p.value)))
	}
	return strings.Join(parts, "&")
}

func (a *API) newRequest(method, path string, query []queryParam, body io.Reader) (*http.Request, error) {
	target := a.FullURL(path)
	if len(query) > 0 {
		target += "?" + encodeQuery(query)
	}
	req, err := http.NewRequest(method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (a *API) newJSONRequest(method, path string, query []queryParam, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode body: %v", domain.ErrInvalidRequest, err)
	}
	req, err := a.newRequest(method, path, query, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func prepared(req *http.Request, tags ...string) domain.PreparedRequest {
	return domain.PreparedRequest{Request: req, Tags: tags}
}

func fieldsParam(fields, fallback string) []queryParam {
	if fields == "" {
		fields = fallback
	}
	return []queryParam{{"fields", fields}}
}

// === Login / refresh ===

func (a *API) ShouldRefresh() bool { return a.tokens.ShouldRefresh() }

func (a *API) PrepareLogin(creds domain.Credentials) (domain.PreparedRequest, error) {
	body := map[string]string{"email": creds.Email, "password": creds.Password}
	if creds.OTP != "" {
		body["otp"] = creds.OTP
	}
	req, err := a.newJSONRequest(http.MethodPost, "/auth/login", nil, body)
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	return prepared(req), nil
}

// ParseLogin clears the current tokens, then classifies resp. Tokens are
// applied only when both are present. The error is always nil.
func (a *API) ParseLogin(resp *domain.RawResponse) (domain.LoginResult, error) {
	a.tokens.Clear()

	if resp.StatusCode != http.StatusOK {
		msg := strings.Join(errorMessages(resp.Body), "\n")
		if resp.StatusCode == http.StatusUnauthorized {
			switch errorCode(resp.Body) {
			case codeInvalidCredentials:
				return domain.LoginResult{Type: domain.LoginInvalidCredentials, Message: msg}, nil
			case codeInvalidOTP:
				return domain.LoginResult{Type: domain.LoginInvalidOTP, Message: msg}, nil
			}
		}
		return domain.LoginResult{Type: domain.LoginError, Message: msg}, nil
	}

	if !gjson.ValidBytes(resp.Body) {
		return domain.LoginResult{Type: domain.LoginError, Message: incompleteTokenResponse}, nil
	}
	data := gjson.GetBytes(resp.Body, "data")
	if !data.IsObject() {
		return domain.LoginResult{Type: domain.LoginError, Message: strings.Join(errorMessages(resp.Body), "\n")}, nil
	}

	access := data.Get("access_token")
	refresh := data.Get("refresh_token")
	if access.Type != gjson.String || refresh.Type != gjson.String {
		return domain.LoginResult{Type: domain.LoginError, Message: incompleteTokenResponse}, nil
	}

	result := domain.TokenResult{AccessToken: access.Str, RefreshToken: refresh.Str}
	if expires := data.Get("expires"); expires.Type == gjson.Number {
		result.Expiry = a.now().Add(time.Duration(expires.Int()/1000) * time.Second)
	} else {
		result.Expiry = tokenExpiry(access.Str)
	}

	// Parsers have no caller context; persisting the token must not be cut short.
	a.tokens.Apply(context.Background(), result)
	return domain.LoginResult{Type: domain.LoginSuccess}, nil
}

func (a *API) PrepareRefresh(ctx context.Context) (domain.PreparedRequest, error) {
	token, err := a.tokens.UsableRefreshToken(ctx)
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	req, err := a.newJSONRequest(http.MethodPost, "/auth/refresh", nil, map[string]string{"refresh_token": token})
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	return prepared(req), nil
}

// === Logout ===

func (a *API) PrepareLogout(ctx context.Context) (domain.PreparedRequest, bool, error) {
	token, err := a.tokens.UsableRefreshToken(ctx)
	if errors.Is(err, domain.ErrAuthenticationRequired) {
		return domain.PreparedRequest{}, false, nil
	}
	if err != nil {
		return domain.PreparedRequest{}, false, err
	}
	req, err := a.newJSONRequest(http.MethodPost, "/auth/logout", nil, map[string]string{"refresh_token": token})
	if err != nil {
		return domain.PreparedRequest{}, false, err
	}
	return prepared(req), true, nil
}

// ParseLogout reports false for a non-2xx response and otherwise clears the tokens.
func (a *API) ParseLogout(resp *domain.RawResponse) (bool, error) {
	if !resp.IsSuccess() {
		return false, nil
	}
	a.tokens.Clear()
	return true, nil
}

func (a *API) ForgetSession(ctx context.Context) {
	a.tokens.Forget(ctx)
}

// === Password ===

func (a *API) PreparePasswordRequest(email, resetURL string) (domain.PreparedRequest, error) {
	body := map[string]string{"email": email}
	if resetURL != "" {
		body["reset_url"] = resetURL
	}
	req, err := a.newJSONRequest(http.MethodPost, "/auth/password/request", nil, body)
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	return prepared(req), nil
}

func (a *API) PreparePasswordReset(token, password string) (domain.PreparedRequest, error) {
	req, err := a.newJSONRequest(http.MethodPost, "/auth/password/reset", nil, map[string]string{
		"token":    token,
		"password": password,
	})
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	return prepared(req), nil
}

// === Items ===

func itemPath(coll domain.Collection, id string) string {
	return coll.Path() + "/" + url.PathEscape(id)
}

func (a *API) PrepareListItems(coll domain.Collection, q domain.ListQuery) (domain.PreparedRequest, error) {
	if coll.Name == "" {
		return domain.PreparedRequest{}, fmt.Errorf("%w: collection name is required", domain.ErrInvalidRequest)
	}
	query := fieldsParam(q.Fields, coll.Fields())
	if q.Filter != nil {
		query = append(query, queryParam{"filter", domain.FilterJSON(q.Filter)})
	}
	if q.Limit != 0 {
		query = append(query, queryParam{"limit", strconv.Itoa(q.Limit)})
	}
	if len(q.Sort) > 0 {
		query = append(query, queryParam{"sort", domain.JoinSort(q.Sort)})
	}
	if q.Offset > 0 {
		query = append(query, queryParam{"offset", strconv.Itoa(q.Offset)})
	}

	req, err := a.newRequest(http.MethodGet, coll.Path(), query, nil)
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	a.Authenticate(req)
	return prepared(req), nil
}

// ParseListItems decodes a 200 list envelope. A null data member is an empty list.
func (a *API) ParseListItems(resp *domain.RawResponse) ([]*domain.Record, error) {
	data, err := dataField(resp)
	if err != nil {
		return nil, err
	}
	if data.IsNull() {
		return []*domain.Record{}, nil
	}
	return recordsFromValue(data)
}

func (a *API) PrepareGetItem(coll domain.Collection, id, fields string, tags []string) (domain.PreparedRequest, error) {
	if id == "" {
		return domain.PreparedRequest{}, fmt.Errorf("%w: item id is required", domain.ErrInvalidRequest)
	}
	req, err := a.newRequest(http.MethodGet, itemPath(coll, id), fieldsParam(fields, coll.Fields()), nil)
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	a.Authenticate(req)
	return prepared(req, tags...), nil
}

func (a *API) ParseItem(resp *domain.RawResponse) (*domain.Record, error) {
	data, err := dataField(resp)
	if err != nil {
		return nil, err
	}
	return recordFromValue(data)
}

func (a *API) PrepareCreateItems(coll domain.Collection, fields string, items []*domain.Fields) (domain.PreparedRequest, error) {
	if len(items) == 0 {
		return domain.PreparedRequest{}, fmt.Errorf("%w: nothing to create", domain.ErrInvalidRequest)
	}
	var payload any = items
	if len(items) == 1 {
		payload = items[0]
	}
	req, err := a.newJSONRequest(http.MethodPost, coll.Path(), fieldsParam(fields, coll.Fields()), payload)
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	a.Authenticate(req)
	return prepared(req), nil
}

// ParseCreateItems accepts 200 with an object or a list, and 204 as nothing
// created. Failures are reported in the result, never as the error.
func (a *API) ParseCreateItems(resp *domain.RawResponse) (domain.ItemCreationResult, error) {
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return domain.ItemCreationResult{Items: []*domain.Record{}}, nil
	default:
		return domain.ItemCreationResult{Err: denied(resp)}, nil
	}

	data, err := dataField(resp)
	if err != nil {
		return domain.ItemCreationResult{Err: err}, nil
	}
	if data.Kind() == domain.KindList {
		items, err := recordsFromValue(data)
		return domain.ItemCreationResult{Items: items, Err: err}, nil
	}
	item, err := recordFromValue(data)
	if err != nil {
		return domain.ItemCreationResult{Err: err}, nil
	}
	return domain.ItemCreationResult{Items: []*domain.Record{item}}, nil
}

func (a *API) PrepareUpdateItem(coll domain.Collection, id, fields string, body *domain.Fields) (domain.PreparedRequest, error) {
	if id == "" {
		return domain.PreparedRequest{}, fmt.Errorf("%w: item id is required", domain.ErrInvalidRequest)
	}
	fallback := coll.DefaultUpdateFields
	if fallback == "" {
		fallback = coll.Fields()
	}
	if body == nil {
		body = domain.NewFields()
	}
	req, err := a.newJSONRequest(http.MethodPatch, itemPath(coll, id), fieldsParam(fields, fallback), body)
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	a.Authenticate(req)
	return prepared(req), nil
}

func (a *API) PrepareDeleteItem(coll domain.Collection, id string, authenticated bool) (domain.PreparedRequest, error) {
	if id == "" {
		return domain.PreparedRequest{}, fmt.Errorf("%w: item id is required", domain.ErrInvalidRequest)
	}
	req, err := a.newRequest(http.MethodDelete, itemPath(coll, id), nil, nil)
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	if authenticated {
		a.Authenticate(req)
	}
	return prepared(req), nil
}

// PrepareDeleteItems sends the ids as a JSON array. Purely numeric ids are
// sent as numbers so integer primary keys match.
func (a *API) PrepareDeleteItems(coll domain.Collection, ids []string, authenticated bool) (domain.PreparedRequest, error) {
	if len(ids) == 0 {
		return domain.PreparedRequest{}, fmt.Errorf("%w: no ids to delete", domain.ErrInvalidRequest)
	}
	list := make([]any, len(ids))
	for i, id := range ids {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			list[i] = n
		} else {
			list[i] = id
		}
	}
	req, err := a.newJSONRequest(http.MethodDelete, coll.Path(), nil, list)
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	if authenticated {
		a.Authenticate(req)
	}
	return prepared(req), nil
}

// ParseBool reports true for 2xx and a ServerDeniedError otherwise.
func (a *API) ParseBool(resp *domain.RawResponse) (bool, error) {
	if err := requireSuccess(resp); err != nil {
		return false, err
	}
	return true, nil
}

// === Files ===

func (a *API) prepareMultipart(method, path string, up domain.FileUpload) (domain.PreparedRequest, error) {
	if err := up.Validate(); err != nil {
		return domain.PreparedRequest{}, err
	}
	body, contentType, err := multipartBody(up)
	if err != nil {
		return domain.PreparedRequest{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	req, err := a.newRequest(method, path, nil, bytes.NewReader(body))
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	req.Header.Set("Content-Type", contentType)
	a.Authenticate(req)
	return prepared(req), nil
}

func (a *API) PrepareUploadFile(up domain.FileUpload) (domain.PreparedRequest, error) {
	return a.prepareMultipart(http.MethodPost, "/files", up)
}

func (a *API) PrepareUpdateFile(id string, up domain.FileUpload) (domain.PreparedRequest, error) {
	if id == "" {
		return domain.PreparedRequest{}, fmt.Errorf("%w: file id is required", domain.ErrInvalidRequest)
	}
	return a.prepareMultipart(http.MethodPatch, "/files/"+url.PathEscape(id), up)
}

func (a *API) PrepareImportFile(remoteURL, title, folder string) (domain.PreparedRequest, error) {
	data := map[string]string{}
	if title != "" {
		data["title"] = title
	}
	if folder != "" {
		data["folder"] = folder
	}
	req, err := a.newJSONRequest(http.MethodPost, "/files/import", nil, map[string]any{
		"url":  remoteURL,
		"data": data,
	})
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	a.Authenticate(req)
	return prepared(req), nil
}

// ParseFile accepts any 2xx response carrying a file object under "data".
func (a *API) ParseFile(resp *domain.RawResponse) (*domain.File, error) {
	if err := requireSuccess(resp); err != nil {
		return nil, err
	}
	ok := *resp
	ok.StatusCode = http.StatusOK
	data, err := dataField(&ok)
	if err != nil {
		return nil, err
	}
	r, err := recordFromValue(data)
	if err != nil {
		return nil, err
	}
	return domain.FileFromRecord(r), nil
}

func (a *API) PrepareDownloadFile(id string) (domain.PreparedRequest, error) {
	if id == "" {
		return domain.PreparedRequest{}, fmt.Errorf("%w: file id is required", domain.ErrInvalidRequest)
	}
	req, err := a.newRequest(http.MethodGet, "/assets/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	a.Authenticate(req)
	return prepared(req), nil
}

func (a *API) ParseDownload(resp *domain.RawResponse) ([]byte, error) {
	if err := requireSuccess(resp); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (a *API) PrepareDeleteFile(id string) (domain.PreparedRequest, error) {
	if id == "" {
		return domain.PreparedRequest{}, fmt.Errorf("%w: file id is required", domain.ErrInvalidRequest)
	}
	req, err := a.newRequest(http.MethodDelete, "/files/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	a.Authenticate(req)
	return prepared(req), nil
}

// === Users ===

func (a *API) PrepareCurrentUser(fields string) (domain.PreparedRequest, error) {
	req, err := a.newRequest(http.MethodGet, "/users/me", fieldsParam(fields, "*"), nil)
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	a.Authenticate(req)
	return prepared(req), nil
}

func (a *API) ParseUser(resp *domain.RawResponse) (*domain.User, error) {
	r, err := a.ParseItem(resp)
	if err != nil {
		return nil, err
	}
	return domain.UserFromRecord(r), nil
}

func (a *API) PrepareInvite(email, role string) (domain.PreparedRequest, error) {
	req, err := a.newJSONRequest(http.MethodPost, "/users/invite", nil, map[string]string{
		"email": email,
		"role":  role,
	})
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	a.Authenticate(req)
	return prepared(req), nil
}

func (a *API) ParseInvite(resp *domain.RawResponse) (bool, error) {
	return resp.IsSuccess(), nil
}

func (a *API) PrepareRegister(email, password, firstName, lastName string) (domain.PreparedRequest, error) {
	body := map[string]string{"email": email, "password": password}
	if firstName != "" {
		body["first_name"] = firstName
	}
	if lastName != "" {
		body["last_name"] = lastName
	}
	req, err := a.newJSONRequest(http.MethodPost, "/users/register", nil, body)
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	return prepared(req), nil
}

// === Custom endpoints ===

// PrepareCustom builds a request to path. A []byte body is sent as is, any
// other non-nil body is encoded as JSON.
func (a *API) PrepareCustom(method, path string, body any, tags []string) (domain.PreparedRequest, error) {
	var (
		req *http.Request
		err error
	)
	switch b := body.(type) {
	case nil:
		req, err = a.newRequest(method, path, nil, nil)
	case []byte:
		req, err = a.newRequest(method, path, nil, bytes.NewReader(b))
	default:
		req, err = a.newJSONRequest(method, path, nil, b)
	}
	if err != nil {
		return domain.PreparedRequest{}, err
	}
	a.Authenticate(req)
	return prepared(req, tags...), nil
}
