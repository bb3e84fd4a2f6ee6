package service

import (
	"context"

	"github.com/mmcdole/directus/internal/domain"
)

// FileService runs operations on the file library.
type FileService struct {
	client *Client
}

// Files returns the file operations.
func (c *Client) Files() *FileService {
	return &FileService{client: c}
}

// Download fetches the bytes of a file. Downloads are saved to the cache and
// served stale when the network fails, subject to opts.
func (s *FileService) Download(ctx context.Context, id string, opts CacheOptions) ([]byte, error) {
	api := s.client.api
	return send(ctx, s.client.engine,
		func(context.Context) (domain.PreparedRequest, error) { return api.PrepareDownloadFile(id) },
		api.ParseDownload,
		RequestOptions{DependsOnToken: true, Cache: opts},
	)
}

// Upload creates a file from bytes.
func (s *FileService) Upload(ctx context.Context, up domain.FileUpload) (*domain.File, error) {
	api := s.client.api
	return send(ctx, s.client.engine,
		func(context.Context) (domain.PreparedRequest, error) { return api.PrepareUploadFile(up) },
		api.ParseFile,
		RequestOptions{DependsOnToken: true, Cache: NoCache()},
	)
}

// Replace uploads new content for an existing file.
func (s *FileService) Replace(ctx context.Context, id string, up domain.FileUpload) (*domain.File, error) {
	api := s.client.api
	return send(ctx, s.client.engine,
		func(context.Context) (domain.PreparedRequest, error) { return api.PrepareUpdateFile(id, up) },
		api.ParseFile,
		RequestOptions{DependsOnToken: true, Cache: NoCache()},
	)
}

// Import asks the server to fetch a file from remoteURL.
func (s *FileService) Import(ctx context.Context, remoteURL, title, folder string) (*domain.File, error) {
	api := s.client.api
	return send(ctx, s.client.engine,
		func(context.Context) (domain.PreparedRequest, error) {
			return api.PrepareImportFile(remoteURL, title, folder)
		},
		api.ParseFile,
		RequestOptions{DependsOnToken: true, Cache: NoCache()},
	)
}

// Delete removes a file.
func (s *FileService) Delete(ctx context.Context, id string) (bool, error) {
	api := s.client.api
	return send(ctx, s.client.engine,
		func(context.Context) (domain.PreparedRequest, error) { return api.PrepareDeleteFile(id) },
		api.ParseBool,
		RequestOptions{DependsOnToken: true, Cache: NoCache()},
	)
}

// URL returns the asset URL of f on this server.
func (s *FileService) URL(f *domain.File, opts domain.AssetOptions) (string, error) {
	return f.DownloadURL(s.client.BaseURL(), opts)
}
