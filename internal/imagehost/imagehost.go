// Package imagehost stores uploaded images and hands back a public URL plus
// an identifier that can later be used to delete the image.
package imagehost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"pinned/internal/api"
)

var (
	ErrNotImage = errors.New("only image files are allowed")
	ErrBadID    = errors.New("invalid image id")
)

type Host interface {
	Upload(ctx context.Context, contentType string, body io.Reader) (api.UploadedImage, error)
	Delete(ctx context.Context, publicID string) error
}

// Disk keeps images in a local directory that the HTTP server exposes under
// BaseURL.
type Disk struct {
	Dir     string
	BaseURL string // e.g. http://localhost:8080/uploads
}

func NewDisk(dir, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *Disk) Upload(ctx context.Context, contentType string, body io.Reader) (api.UploadedImage, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return api.UploadedImage{}, ErrNotImage
	}
	name := uuid.NewString() + extensionFor(contentType)

	f, err := os.CreateTemp(d.Dir, ".upload-*")
	if err != nil {
		return api.UploadedImage{}, err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := io.Copy(f, contextReader{ctx: ctx, r: body}); err != nil {
		f.Close()
		return api.UploadedImage{}, err
	}
	if err := f.Close(); err != nil {
		return api.UploadedImage{}, err
	}
	if err := os.Rename(tmp, filepath.Join(d.Dir, name)); err != nil {
		return api.UploadedImage{}, err
	}
	return api.UploadedImage{URL: d.BaseURL + "/" + name, PublicID: name}, nil
}

// Delete removes the image. Deleting an image that is already gone is not
// an error.
func (d *Disk) Delete(_ context.Context, publicID string) error {
	if publicID == "" || publicID != filepath.Base(publicID) || strings.HasPrefix(publicID, ".") {
		return ErrBadID
	}
	err := os.Remove(filepath.Join(d.Dir, publicID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	return ""
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
