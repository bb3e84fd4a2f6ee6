package directus

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
	"github.com/mmcdole/directus/internal/domain"
)

const defaultStorage = "local"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartBody encodes an upload. Metadata fields precede the file part,
// which the server requires.
func multipartBody(up domain.FileUpload) (body []byte, contentType string, err error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(uuid.NewString()); err != nil {
		return nil, "", err
	}

	storage := up.Storage
	if storage == "" {
		storage = defaultStorage
	}
	fields := [][2]string{{"storage", storage}}
	if up.Title != "" {
		fields = append(fields, [2]string{"title", up.Title})
	}
	if up.Folder != "" {
		fields = append(fields, [2]string{"folder", up.Folder})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	if up.Data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(up.Filename)))
		if up.ContentType != "" {
			h.Set("Content-Type", up.ContentType)
		}
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := part.Write(up.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write file part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
