package domain

import "strings"

// DefaultItemsPrefix is the path prefix of user collections.
const DefaultItemsPrefix = "/items/"

// Collection describes where a collection lives and which fields are requested by default.
type Collection struct {
	Name                string
	Prefix              string
	DefaultFields       string
	DefaultUpdateFields string
	WebSocketEndpoint   string
}

// NewCollection returns a user collection with the default prefix and "*" fields.
func NewCollection(name string) Collection {
	return Collection{
		Name:          name,
		Prefix:        DefaultItemsPrefix,
		DefaultFields: "*",
	}
}

// Path is the collection endpoint path, e.g. "/items/article".
func (c Collection) Path() string {
	prefix := c.Prefix
	if prefix == "" {
		prefix = DefaultItemsPrefix
	}
	return prefix + c.Name
}

// Fields returns DefaultFields, falling back to "*".
func (c Collection) Fields() string {
	if c.DefaultFields == "" {
		return "*"
	}
	return c.DefaultFields
}

// UpdateFields returns the field names sent on update, or nil to send every field.
func (c Collection) UpdateFields() []string {
	if c.DefaultUpdateFields == "" || c.DefaultUpdateFields == "*" {
		return nil
	}
	var out []string
	for _, f := range strings.Split(c.DefaultUpdateFields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// SubscriptionEndpoint is the realtime collection name, defaulting to Name.
func (c Collection) SubscriptionEndpoint() string {
	if c.WebSocketEndpoint != "" {
		return c.WebSocketEndpoint
	}
	return c.Name
}

// ItemTag is the cache tag and identifier for one item: "<collection>/<id>".
func (c Collection) ItemTag(id string) string {
	return c.Name + "/" + id
}
