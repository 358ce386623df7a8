package handler_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pinned/internal/api"
	"pinned/internal/http/handler"
)

var gif = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\x00\x00\x00\xff\xff\xff!\xf9\x04\x01\x00\x00\x00\x00,\x00\x00\x00\x00\x01\x00\x01\x00\x00\x02\x02D\x01\x00;")

type memHost struct {
	mu    sync.Mutex
	count int
}

func (m *memHost) Upload(_ context.Context, _ string, body io.Reader) (api.UploadedImage, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return api.UploadedImage{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
	return api.UploadedImage{URL: "http://img/pic.gif", PublicID: "pic.gif"}, nil
}

func (m *memHost) Delete(context.Context, string) error { return nil }

func imageRequest(t *testing.T, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="pic.gif"`)
	h.Set("Content-Type", "image/gif")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload_DefaultLimitLeavesHandlerUntouched(t *testing.T) {
	host := &memHost{}
	h := &handler.UploadHandler{Host: host, Log: zap.NewNop()}

	var wg sync.WaitGroup
	codes := make([]int, 8)
	for i := range codes {
		req := imageRequest(t, gif)
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			h.Image(rec, req)
			codes[i] = rec.Code
		}()
	}
	wg.Wait()

	for _, c := range codes {
		assert.Equal(t, http.StatusCreated, c)
	}
	assert.Equal(t, 8, host.count)
	assert.Zero(t, h.MaxBytes, "the configured limit is never rewritten")
}

func TestUpload_ConfiguredLimit(t *testing.T) {
	h := &handler.UploadHandler{Host: &memHost{}, MaxBytes: 64, Log: zap.NewNop()}

	rec := httptest.NewRecorder()
	h.Image(rec, imageRequest(t, append(append([]byte{}, gif...), make([]byte, 128)...)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = httptest.NewRecorder()
	h.Image(rec, imageRequest(t, gif))
	assert.Equal(t, http.StatusCreated, rec.Code)
}
