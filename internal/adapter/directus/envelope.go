package directus

import (
	"fmt"

	"github.com/mmcdole/directus/internal/domain"
	"github.com/tidwall/gjson"
)

// errorMessages returns errors[].message of a response body, in order.
func errorMessages(body []byte) []string {
	return domain.ServerMessages(body)
}

// errorCode returns errors[0].extensions.code, or "".
func errorCode(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	return gjson.GetBytes(body, "errors.0.extensions.code").String()
}

// denied builds the error for a non-success response.
func denied(resp *domain.RawResponse) error {
	return domain.DeniedResponse(resp)
}

// requireSuccess returns a ServerDeniedError unless resp is 2xx.
func requireSuccess(resp *domain.RawResponse) error {
	if !resp.IsSuccess() {
		return denied(resp)
	}
	return nil
}

// dataField validates a 200 envelope and returns its "data" member.
func dataField(resp *domain.RawResponse) (domain.Value, error) {
	if resp.StatusCode != 200 {
		return domain.Value{}, denied(resp)
	}
	if !gjson.ValidBytes(resp.Body) {
		return domain.Value{}, fmt.Errorf("%w: body is not JSON", domain.ErrParse)
	}
	root := gjson.ParseBytes(resp.Body)
	if !root.IsObject() {
		return domain.Value{}, fmt.Errorf("%w: body is not a JSON object", domain.ErrParse)
	}
	data := root.Get("data")
	if !data.Exists() {
		return domain.NullValue(), nil
	}
	return domain.ParseValue([]byte(data.Raw))
}

func recordFromValue(v domain.Value) (*domain.Record, error) {
	fields, err := v.AsMap()
	if err != nil {
		return nil, fmt.Errorf("%w: expected an object, got %s", domain.ErrParse, v.Kind())
	}
	r, err := domain.NewRecord(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrParse, err)
	}
	return r, nil
}

func recordsFromValue(v domain.Value) ([]*domain.Record, error) {
	list, err := v.AsList()
	if err != nil {
		return nil, fmt.Errorf("%w: expected a list, got %s", domain.ErrParse, v.Kind())
	}
	out := make([]*domain.Record, 0, len(list))
	for _, item := range list {
		r, err := recordFromValue(item)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
