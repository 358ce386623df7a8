// Package client is a typed HTTP client for the pinned REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"pinned/internal/api"
)

// Error is returned for any non-2xx response.
type Error struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func statusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

func IsNotFound(err error) bool     { return statusOf(err) == http.StatusNotFound }
func IsForbidden(err error) bool    { return statusOf(err) == http.StatusForbidden }
func IsUnauthorized(err error) bool { return statusOf(err) == http.StatusUnauthorized }

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Register creates an account and keeps the returned token.
func (c *Client) Register(ctx context.Context, cred api.Credentials) (api.AuthResponse, error) {
	var out api.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", cred, &out); err != nil {
		return out, err
	}
	c.SetToken(out.Token)
	return out, nil
}

// Login authenticates and keeps the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (api.AuthResponse, error) {
	var out api.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", api.Credentials{Email: email, Password: password}, &out); err != nil {
		return out, err
	}
	c.SetToken(out.Token)
	return out, nil
}

func (c *Client) Me(ctx context.Context) (api.User, error) {
	var out api.MeResponse
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out)
	return out.User, err
}

func (c *Client) ListBoards(ctx context.Context) ([]api.Board, error) {
	var out []api.Board
	err := c.do(ctx, http.MethodGet, "/boards", nil, &out)
	return out, err
}

func (c *Client) GetBoard(ctx context.Context, boardID string) (api.Board, error) {
	var out api.Board
	err := c.do(ctx, http.MethodGet, "/boards/"+url.PathEscape(boardID), nil, &out)
	return out, err
}

func (c *Client) CreateBoard(ctx context.Context, in api.BoardInput) (api.Board, error) {
	var out api.Board
	err := c.do(ctx, http.MethodPost, "/boards", in, &out)
	return out, err
}

func (c *Client) UpdateBoard(ctx context.Context, boardID string, in api.BoardInput) (api.Board, error) {
	var out api.Board
	err := c.do(ctx, http.MethodPatch, "/boards/"+url.PathEscape(boardID), in, &out)
	return out, err
}

func (c *Client) DeleteBoard(ctx context.Context, boardID string) error {
	return c.do(ctx, http.MethodDelete, "/boards/"+url.PathEscape(boardID), nil, nil)
}

func (c *Client) DuplicateBoard(ctx context.Context, boardID string) (api.Board, error) {
	var out api.Board
	err := c.do(ctx, http.MethodPost, "/boards/"+url.PathEscape(boardID)+"/duplicate", nil, &out)
	return out, err
}

func tilesPath(boardID string) string {
	return "/boards/" + url.PathEscape(boardID) + "/tiles"
}

func tilePath(boardID, tileID string) string {
	return tilesPath(boardID) + "/" + url.PathEscape(tileID)
}

func (c *Client) ListTiles(ctx context.Context, boardID string) ([]api.Tile, error) {
	var out []api.Tile
	err := c.do(ctx, http.MethodGet, tilesPath(boardID), nil, &out)
	return out, err
}

func (c *Client) GetTile(ctx context.Context, boardID, tileID string) (api.Tile, error) {
	var out api.Tile
	err := c.do(ctx, http.MethodGet, tilePath(boardID, tileID), nil, &out)
	return out, err
}

func (c *Client) CreateTile(ctx context.Context, boardID string, in api.TileInput) (api.Tile, error) {
	var out api.Tile
	err := c.do(ctx, http.MethodPost, tilesPath(boardID), in, &out)
	return out, err
}

func (c *Client) UpdateTile(ctx context.Context, boardID, tileID string, p api.TilePatch) (api.Tile, error) {
	var out api.Tile
	err := c.do(ctx, http.MethodPatch, tilePath(boardID, tileID), p, &out)
	return out, err
}

func (c *Client) DeleteTile(ctx context.Context, boardID, tileID string) error {
	return c.do(ctx, http.MethodDelete, tilePath(boardID, tileID), nil, nil)
}

// UploadImage sends body as the "image" field of a multipart form.
func (c *Client) UploadImage(ctx context.Context, filename, contentType string, body io.Reader) (api.UploadedImage, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return api.UploadedImage{}, err
	}
	if _, err := io.Copy(part, body); err != nil {
		return api.UploadedImage{}, fmt.Errorf("read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return api.UploadedImage{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload/image", &buf)
	if err != nil {
		return api.UploadedImage{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out api.UploadedImage
	err = c.send(req, &out)
	return out, err
}

func (c *Client) FetchMetadata(ctx context.Context, rawURL string) (api.Metadata, error) {
	var out api.Metadata
	err := c.do(ctx, http.MethodGet, "/metadata?url="+url.QueryEscape(rawURL), nil, &out)
	return out, err
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{
			StatusCode: resp.StatusCode,
			Method:     req.Method,
			Path:       req.URL.Path,
			Message:    strings.TrimSpace(string(msg)),
		}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
