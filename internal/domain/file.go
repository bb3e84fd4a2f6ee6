package domain

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// File is a record from the directus_files collection.
type File struct {
	*Record
}

// FileFromRecord wraps an existing record.
func FileFromRecord(r *Record) *File { return &File{Record: r} }

// FileFromID references an already uploaded file by id.
func FileFromID(id, title string) *File {
	raw := NewFields()
	raw.Set(IDField, StringValue(id))
	if title != "" {
		raw.Set("title", StringValue(title))
	}
	return &File{Record: &Record{raw: raw, pending: NewFields()}}
}

func (f *File) Title() string       { s, _ := f.OptionalString("title"); return s }
func (f *File) Type() string        { s, _ := f.OptionalString("type"); return s }
func (f *File) Description() string { s, _ := f.OptionalString("description"); return s }

func (f *File) UploadedOn() (time.Time, bool) { return f.OptionalTime("uploaded_on") }
func (f *File) FileSize() (int64, bool)       { return f.OptionalInt("filesize") }
func (f *File) Width() (int64, bool)          { return f.OptionalInt("width") }
func (f *File) Height() (int64, bool)         { return f.OptionalInt("height") }
func (f *File) Duration() (int64, bool)       { return f.OptionalInt("duration") }

// Metadata returns the embedded metadata object, if any.
func (f *File) Metadata() (*Fields, bool) {
	m, err := f.GetMap("metadata")
	return m, err == nil
}

// Ratio is width / height, or 1 when either is unknown or height is zero.
func (f *File) Ratio() float64 {
	w, okW := f.Width()
	h, okH := f.Height()
	if !okW || !okH || h == 0 {
		return 1
	}
	return float64(w) / float64(h)
}

// AssetOptions are the transformation parameters of an asset URL. Zero values are omitted.
type AssetOptions struct {
	Width   int
	Height  int
	Quality int
	Extra   map[string]string
}

// DownloadURL returns the /assets URL of the file under baseURL.
func (f *File) DownloadURL(baseURL string, opts AssetOptions) (string, error) {
	if baseURL == "" {
		return "", fmt.Errorf("%w: base URL is empty", ErrInvalidRequest)
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/assets/" + url.PathEscape(f.ID()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var params []string
	add := func(k, v string) {
		params = append(params, url.QueryEscape(k)+"="+url.QueryEscape(v))
	}
	if opts.Width > 0 {
		add("width", strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		add("height", strconv.Itoa(opts.Height))
	}
	if opts.Quality > 0 {
		add("quality", strconv.Itoa(opts.Quality))
	}
	extra := make([]string, 0, len(opts.Extra))
	for k := range opts.Extra {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, k := range extra {
		add(k, opts.Extra[k])
	}
	u.RawQuery = strings.Join(params, "&")
	return u.String(), nil
}
