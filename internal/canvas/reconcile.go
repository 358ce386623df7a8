package canvas

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"pinned/internal/api"
	"pinned/internal/client"
)

// Backend is the slice of the REST API the canvas engine needs.
// *client.Client satisfies it.
type Backend interface {
	GetBoard(ctx context.Context, boardID string) (api.Board, error)
	ListTiles(ctx context.Context, boardID string) ([]api.Tile, error)
	CreateTile(ctx context.Context, boardID string, in api.TileInput) (api.Tile, error)
	UpdateTile(ctx context.Context, boardID, tileID string, p api.TilePatch) (api.Tile, error)
	DeleteTile(ctx context.Context, boardID, tileID string) error
}

var _ Backend = (*client.Client)(nil)

// Plan is the set of requests that moves the server onto a target snapshot.
type Plan struct {
	Deletes []string
	Updates []api.Tile
	Creates []api.Tile
}

func (p Plan) Len() int { return len(p.Deletes) + len(p.Updates) + len(p.Creates) }

// Diff plans the requests that turn server into target. Server tiles absent
// from target are deleted. Target tiles the server knows are updated with
// their full payload. The rest are created and will get new ids.
func Diff(target, server []api.Tile) Plan {
	var p Plan
	onServer := make(map[string]bool, len(server))
	for _, t := range server {
		onServer[t.ID] = true
	}
	inTarget := make(map[string]bool, len(target))
	for _, t := range target {
		inTarget[t.ID] = true
		if onServer[t.ID] {
			p.Updates = append(p.Updates, t)
		} else {
			p.Creates = append(p.Creates, t)
		}
	}
	for _, t := range server {
		if !inTarget[t.ID] {
			p.Deletes = append(p.Deletes, t.ID)
		}
	}
	return p
}

// DefaultConcurrency bounds the requests a reconciliation has in flight.
const DefaultConcurrency = 8

type Reconciler struct {
	Backend     Backend
	Concurrency int
}

// Apply issues every request of p concurrently and waits for all of them.
// Failures do not stop sibling requests; they are combined into the result.
func (r *Reconciler) Apply(ctx context.Context, boardID string, p Plan) error {
	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	g.SetLimit(limit)
	fail := func(err error) {
		mu.Lock()
		errs = multierr.Append(errs, err)
		mu.Unlock()
	}

	for _, id := range p.Deletes {
		g.Go(func() error {
			if err := r.Backend.DeleteTile(ctx, boardID, id); err != nil && !client.IsNotFound(err) {
				fail(fmt.Errorf("delete tile %s: %w", id, err))
			}
			return nil
		})
	}
	for _, t := range p.Updates {
		g.Go(func() error {
			if _, err := r.Backend.UpdateTile(ctx, boardID, t.ID, t.Patch()); err != nil {
				fail(fmt.Errorf("update tile %s: %w", t.ID, err))
			}
			return nil
		})
	}
	for _, t := range p.Creates {
		g.Go(func() error {
			if _, err := r.Backend.CreateTile(ctx, boardID, t.Input()); err != nil {
				fail(fmt.Errorf("create tile %s: %w", t.ID, err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// Reconcile brings the server tiles of boardID in line with target and
// returns the server list fetched afterwards. The fresh list is returned
// even when some requests failed; it is nil only if a fetch failed.
func (r *Reconciler) Reconcile(ctx context.Context, boardID string, target []api.Tile) ([]api.Tile, error) {
	server, err := r.Backend.ListTiles(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("fetch tiles: %w", err)
	}
	applyErr := r.Apply(ctx, boardID, Diff(target, server))

	fresh, err := r.Backend.ListTiles(ctx, boardID)
	if err != nil {
		return nil, multierr.Append(applyErr, fmt.Errorf("refetch tiles: %w", err))
	}
	return fresh, applyErr
}
