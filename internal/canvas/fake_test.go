package canvas_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pinned/internal/api"
	"pinned/internal/client"
)

// fakeBackend is an in-memory tile API with failure injection and gates
// for holding requests in flight.
type fakeBackend struct {
	mu     sync.Mutex
	board  api.Board
	tiles  []api.Tile
	nextID int
	calls  map[string]int
	fail   map[string]error

	listGate   chan struct{}
	createGate chan struct{}
}

func newFakeBackend(tiles ...api.Tile) *fakeBackend {
	f := &fakeBackend{
		board: api.Board{ID: "board-1", Title: "Test"},
		calls: map[string]int{},
		fail:  map[string]error{},
	}
	for _, t := range tiles {
		t.BoardID = f.board.ID
		if t.ID == "" {
			t.ID = f.newID()
		}
		f.tiles = append(f.tiles, t)
	}
	return f
}

func (f *fakeBackend) newID() string {
	f.nextID++
	return fmt.Sprintf("srv-%d", f.nextID)
}

func (f *fakeBackend) enter(method string) (chan struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	var gate chan struct{}
	switch method {
	case "list":
		gate = f.listGate
	case "create":
		gate = f.createGate
	}
	return gate, f.fail[method]
}

func (f *fakeBackend) setFail(method string, err error) {
	f.mu.Lock()
	f.fail[method] = err
	f.mu.Unlock()
}

func (f *fakeBackend) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeBackend) serverTiles() []api.Tile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Tile(nil), f.tiles...)
}

func notFound() error {
	return &client.Error{StatusCode: http.StatusNotFound, Message: "not found"}
}

func (f *fakeBackend) GetBoard(_ context.Context, boardID string) (api.Board, error) {
	if boardID != f.board.ID {
		return api.Board{}, notFound()
	}
	return f.board, nil
}

func (f *fakeBackend) ListTiles(ctx context.Context, boardID string) ([]api.Tile, error) {
	gate, err := f.enter("list")
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return f.serverTiles(), nil
}

func (f *fakeBackend) CreateTile(ctx context.Context, boardID string, in api.TileInput) (api.Tile, error) {
	gate, err := f.enter("create")
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return api.Tile{}, ctx.Err()
		}
	}
	if err != nil {
		return api.Tile{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t := in.Resolve(boardID)
	t.ID = f.newID()
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt
	f.tiles = append(f.tiles, t)
	return t, nil
}

func (f *fakeBackend) UpdateTile(_ context.Context, _, tileID string, p api.TilePatch) (api.Tile, error) {
	if _, err := f.enter("update"); err != nil {
		return api.Tile{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tiles {
		if f.tiles[i].ID == tileID {
			f.tiles[i] = p.Apply(f.tiles[i])
			return f.tiles[i], nil
		}
	}
	return api.Tile{}, notFound()
}

func (f *fakeBackend) DeleteTile(_ context.Context, _, tileID string) error {
	if _, err := f.enter("delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tiles {
		if f.tiles[i].ID == tileID {
			f.tiles = append(f.tiles[:i], f.tiles[i+1:]...)
			return nil
		}
	}
	return notFound()
}
