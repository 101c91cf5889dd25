package seedsync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// FileUploader publishes a cache by copying it into a directory served by a
// web server. The file is replaced atomically so the server never hands out
// a partial cache.
type FileUploader struct {
	// Dir is the served directory.
	Dir string

	// Name is the file name of the published cache.
	Name string
}

// A compile time check to ensure FileUploader implements Uploader.
var _ Uploader = (*FileUploader)(nil)

// Upload copies the file at path to Dir/Name.
func (u *FileUploader) Upload(_ context.Context, path string) (string,
	error) {

	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(u.Dir, u.Name+".tmp-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, src)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", err
	}

	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", err
	}

	dst := filepath.Join(u.Dir, u.Name)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}

	return fmt.Sprintf("UPLOAD - Success: copied %d bytes to %s%s", n, dst,
		LineSeparator), nil
}

// HTTPUploader publishes a cache with an HTTP PUT request.
type HTTPUploader struct {
	// URL receives the PUT request.
	URL string

	// Client sends the request. Defaults to http.DefaultClient.
	Client *http.Client
}

// A compile time check to ensure HTTPUploader implements Uploader.
var _ Uploader = (*HTTPUploader)(nil)

// Upload sends the file at path to URL.
func (u *HTTPUploader) Upload(ctx context.Context, path string) (string,
	error) {

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.URL, f)
	if err != nil {
		return "", err
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("upload to %s rejected: %s", u.URL,
			resp.Status)
	}

	return fmt.Sprintf("UPLOAD - Success: sent %d bytes to %s%s",
		info.Size(), u.URL, LineSeparator), nil
}
