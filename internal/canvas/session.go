// Package canvas keeps the client-side state of one open board: the live
// tile list, its undo/redo history and the background reconciliation that
// pushes history jumps to the server.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"pinned/internal/api"
	"pinned/internal/client"
	"pinned/internal/logging"
)

var (
	ErrTileNotFound = errors.New("tile not found")
	ErrClosed       = errors.New("session closed")
)

// placeholderPrefix marks ids of tiles whose create has not been confirmed.
const placeholderPrefix = "tmp-"

// createSlots is the weight of the create semaphore. Each create holds one
// slot; a reconciliation pass holds all of them.
const createSlots = 1 << 16

func IsPlaceholder(id string) bool { return strings.HasPrefix(id, placeholderPrefix) }

// FailurePolicy decides what happens to an optimistic change whose request
// failed.
type FailurePolicy int

const (
	// RevertAll rolls back failed creates, updates and deletes.
	RevertAll FailurePolicy = iota
	// RetainOptimistic only rolls back failed updates. Failed creates and
	// deletes stay applied locally until the next reconciliation.
	RetainOptimistic
)

// Notifier receives user-facing failures.
type Notifier interface {
	Notify(err error)
}

type NotifierFunc func(err error)

func (f NotifierFunc) Notify(err error) { f(err) }

type Option func(*Session)

func WithLogger(l *zap.Logger) Option          { return func(s *Session) { s.log = logging.OrNop(l) } }
func WithNotifier(n Notifier) Option           { return func(s *Session) { s.notifier = n } }
func WithHistoryLimit(n int) Option            { return func(s *Session) { s.historyLimit = n } }
func WithSyncDelay(d time.Duration) Option     { return func(s *Session) { s.syncDelay = d } }
func WithFailurePolicy(p FailurePolicy) Option { return func(s *Session) { s.policy = p } }
func WithConcurrency(n int) Option             { return func(s *Session) { s.rec.Concurrency = n } }

// Session owns the tiles of one board for as long as it is open.
type Session struct {
	backend      Backend
	board        api.Board
	log          *zap.Logger
	notifier     Notifier
	policy       FailurePolicy
	historyLimit int
	syncDelay    time.Duration
	rec          *Reconciler
	sched        *Scheduler
	creates      *semaphore.Weighted

	mu        sync.Mutex
	tiles     []api.Tile
	hist      *History
	creating  map[string]bool // placeholder ids awaiting their server id
	syncing   bool
	listeners map[int]func([]api.Tile)
	nextLis   int
	closed    bool
}

// Open loads a board and its tiles. A missing or forbidden board surfaces
// as the load error; see client.IsNotFound and client.IsForbidden.
func Open(ctx context.Context, backend Backend, boardID string, opts ...Option) (*Session, error) {
	s := &Session{
		backend:      backend,
		log:          zap.NewNop(),
		historyLimit: DefaultHistoryLimit,
		syncDelay:    DefaultSyncDelay,
		rec:          &Reconciler{Backend: backend},
		creates:      semaphore.NewWeighted(createSlots),
		creating:     map[string]bool{},
		listeners:    map[int]func([]api.Tile){},
	}
	for _, o := range opts {
		o(s)
	}

	b, err := backend.GetBoard(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("load board %s: %w", boardID, err)
	}
	tiles, err := backend.ListTiles(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("load tiles of %s: %w", boardID, err)
	}

	s.board = b
	s.tiles = clone(tiles)
	s.hist = NewHistory(tiles, s.historyLimit)
	s.sched = NewScheduler(s.syncDelay, s.sync)
	s.log = s.log.With(zap.String("board_id", b.ID))
	return s, nil
}

func (s *Session) Board() api.Board { return s.board }

// Tiles returns a copy of the live tile list.
func (s *Session) Tiles() []api.Tile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.tiles)
}

// Tile returns the live tile with the given id.
func (s *Session) Tile(id string) (api.Tile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.tiles[i], true
	}
	return api.Tile{}, false
}

// HistoryState returns the snapshot count and the cursor.
func (s *Session) HistoryState() (length, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.Len(), s.hist.Index()
}

// Snapshot returns a copy of history entry i.
func (s *Session) Snapshot(i int) []api.Tile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.At(i)
}

func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.syncing && s.hist.CanUndo()
}

func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.syncing && s.hist.CanRedo()
}

// Syncing reports whether a reconciliation pass is running.
func (s *Session) Syncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// Settled reports that no reconciliation is pending or running and no
// create is awaiting its server id.
func (s *Session) Settled() bool {
	s.mu.Lock()
	creating := len(s.creating)
	s.mu.Unlock()
	return creating == 0 && s.sched.Idle()
}

// OnChange registers fn to receive a copy of the tile list after every
// change. The returned func unregisters it.
func (s *Session) OnChange(fn func([]api.Tile)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextLis
	s.nextLis++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Close stops background reconciliation. Requests already issued by the
// caller are not cancelled.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.sched.Stop()
}

// Create adds a tile immediately under a placeholder id and persists it.
// On success the placeholder is replaced by the server id everywhere. The
// request waits for a reconciliation pass in progress to finish.
func (s *Session) Create(ctx context.Context, in api.TileInput) (api.Tile, error) {
	if !in.Type.Valid() {
		return api.Tile{}, fmt.Errorf("create tile: invalid type %q", in.Type)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return api.Tile{}, ErrClosed
	}
	t := in.Resolve(s.board.ID)
	t.ID = placeholderPrefix + uuid.NewString()
	s.tiles = append(s.tiles, t)
	seq := s.hist.Record(s.tiles)
	s.creating[t.ID] = true
	emit := s.changedLocked()
	s.mu.Unlock()
	emit()

	if err := s.creates.Acquire(ctx, 1); err != nil {
		return api.Tile{}, s.createFailed(seq, t.ID, err)
	}
	defer s.creates.Release(1)

	created, err := s.backend.CreateTile(ctx, s.board.ID, in)
	if err != nil {
		return api.Tile{}, s.createFailed(seq, t.ID, err)
	}
	return s.confirmCreate(ctx, t.ID, created)
}

func (s *Session) createFailed(seq uint64, tmpID string, err error) error {
	s.mu.Lock()
	delete(s.creating, tmpID)
	s.mu.Unlock()
	err = fmt.Errorf("create tile: %w", err)
	s.fail(err)
	if s.policy == RevertAll {
		s.revert(seq, tmpID, nil, -1)
	}
	return err
}

// confirmCreate swaps a placeholder for its server tile. Edits made while
// the create was in flight are sent as a follow-up update. If the tile was
// removed meanwhile the server copy is deleted.
func (s *Session) confirmCreate(ctx context.Context, tmpID string, created api.Tile) (api.Tile, error) {
	s.mu.Lock()
	delete(s.creating, tmpID)
	s.hist.RemapID(tmpID, created.ID)

	i := s.indexLocked(tmpID)
	if i < 0 {
		s.mu.Unlock()
		if err := s.backend.DeleteTile(ctx, s.board.ID, created.ID); err != nil && !client.IsNotFound(err) {
			err = fmt.Errorf("delete removed tile %s: %w", created.ID, err)
			s.fail(err)
			return created, err
		}
		return created, nil
	}

	live := s.tiles[i]
	live.ID = created.ID
	live.CreatedAt, live.UpdatedAt = created.CreatedAt, created.UpdatedAt
	s.tiles[i] = live
	s.hist.AmendCurrent(s.tiles)
	edited := !live.SameContent(created)
	emit := s.changedLocked()
	s.mu.Unlock()
	emit()

	if !edited {
		return live, nil
	}
	if _, err := s.backend.UpdateTile(ctx, s.board.ID, live.ID, live.Patch()); err != nil {
		err = fmt.Errorf("update tile %s: %w", live.ID, err)
		s.fail(err)
		return live, err
	}
	return live, nil
}

// Update applies p to the live tile immediately and persists it. A failed
// request restores the tile as it was before.
func (s *Session) Update(ctx context.Context, id string, p api.TilePatch) (api.Tile, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return api.Tile{}, ErrClosed
	}
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return api.Tile{}, fmt.Errorf("%w: %s", ErrTileNotFound, id)
	}
	prev := s.tiles[i]
	next := p.Apply(prev)
	s.tiles[i] = next
	seq := s.hist.Record(s.tiles)
	emit := s.changedLocked()
	s.mu.Unlock()
	emit()

	// an unconfirmed tile is persisted by its create or by the next pass
	if IsPlaceholder(id) {
		return next, nil
	}

	if _, err := s.backend.UpdateTile(ctx, s.board.ID, id, p); err != nil {
		err = fmt.Errorf("update tile %s: %w", id, err)
		s.fail(err)
		s.revert(seq, id, &prev, -1)
		return api.Tile{}, err
	}
	return next, nil
}

// Delete removes the tile immediately and persists the removal.
func (s *Session) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTileNotFound, id)
	}
	prev := s.tiles[i]
	s.tiles = append(s.tiles[:i:i], s.tiles[i+1:]...)
	seq := s.hist.Record(s.tiles)
	emit := s.changedLocked()
	s.mu.Unlock()
	emit()

	if IsPlaceholder(id) {
		return nil
	}

	if err := s.backend.DeleteTile(ctx, s.board.ID, id); err != nil && !client.IsNotFound(err) {
		err = fmt.Errorf("delete tile %s: %w", id, err)
		s.fail(err)
		if s.policy == RevertAll {
			s.revert(seq, id, &prev, i)
		}
		return err
	}
	return nil
}

// Undo moves back one snapshot and schedules a reconciliation. It is a
// no-op at the oldest snapshot or while a reconciliation runs.
func (s *Session) Undo() bool {
	return s.jump((*History).Undo)
}

// Redo moves forward one snapshot and schedules a reconciliation. It is a
// no-op at the newest snapshot or while a reconciliation runs.
func (s *Session) Redo() bool {
	return s.jump((*History).Redo)
}

func (s *Session) jump(step func(*History) ([]api.Tile, bool)) bool {
	s.mu.Lock()
	if s.closed || s.syncing {
		s.mu.Unlock()
		return false
	}
	tiles, ok := step(s.hist)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.tiles = tiles
	emit := s.changedLocked()
	s.mu.Unlock()
	emit()

	s.sched.Trigger()
	return true
}

// sync is one reconciliation pass, run by the scheduler. It waits for
// creates in flight to land so every tile the server holds is known by its
// server id before the fetch. Creates started meanwhile wait for the pass.
func (s *Session) sync(ctx context.Context) {
	s.setSyncing(true)
	if err := s.creates.Acquire(ctx, createSlots); err != nil {
		s.setSyncing(false)
		return
	}
	defer s.creates.Release(createSlots)

	s.mu.Lock()
	seq := s.hist.CurrentSeq()
	var target, held []api.Tile
	for _, t := range s.hist.Current() {
		if s.creating[t.ID] {
			held = append(held, t)
			continue
		}
		target = append(target, t)
	}
	s.mu.Unlock()

	start := time.Now()
	fresh, err := s.rec.Reconcile(ctx, s.board.ID, target)

	s.mu.Lock()
	s.syncing = false
	var emit func()
	if fresh != nil {
		fresh = s.keepPendingLocked(fresh, held)
		s.hist.Replace(seq, fresh)
		if s.hist.CurrentSeq() == seq {
			s.tiles = clone(fresh)
			emit = s.changedLocked()
		}
	}
	s.mu.Unlock()
	if emit != nil {
		emit()
	}

	s.log.Debug("reconciled",
		zap.Int("tiles", len(target)),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err))
	if err != nil {
		s.fail(fmt.Errorf("sync board: %w", err))
	}
}

func (s *Session) setSyncing(v bool) {
	s.mu.Lock()
	s.syncing = v
	s.mu.Unlock()
}

// keepPendingLocked re-adds tiles whose create was queued behind the pass,
// so the refetched list does not drop them. They were never sent, so the
// server cannot hold a copy yet.
func (s *Session) keepPendingLocked(fresh, held []api.Tile) []api.Tile {
	for _, t := range held {
		if s.creating[t.ID] || s.policy == RetainOptimistic {
			fresh = append(fresh, t)
		}
	}
	return fresh
}

// revert undoes a failed optimistic change. If the change is still the
// newest snapshot under the cursor that snapshot is dropped; otherwise the
// tile is restored in the live list and the current snapshot amended.
// restore nil means the tile should not exist; at >= 0 is where a deleted
// tile is reinserted.
func (s *Session) revert(seq uint64, id string, restore *api.Tile, at int) {
	s.mu.Lock()
	if s.hist.DropTop(seq) {
		s.tiles = s.hist.Current()
	} else {
		i := s.indexLocked(id)
		switch {
		case restore == nil && i >= 0:
			s.tiles = append(s.tiles[:i:i], s.tiles[i+1:]...)
		case restore != nil && i >= 0:
			s.tiles[i] = *restore
		case restore != nil && at >= 0:
			if at > len(s.tiles) {
				at = len(s.tiles)
			}
			s.tiles = append(s.tiles[:at:at], append([]api.Tile{*restore}, s.tiles[at:]...)...)
		}
		s.hist.AmendCurrent(s.tiles)
	}
	emit := s.changedLocked()
	s.mu.Unlock()
	emit()
}

func (s *Session) fail(err error) {
	s.log.Warn("board change failed", zap.Error(err))
	if s.notifier != nil {
		s.notifier.Notify(err)
	}
}

func (s *Session) indexLocked(id string) int {
	for i := range s.tiles {
		if s.tiles[i].ID == id {
			return i
		}
	}
	return -1
}

// changedLocked captures the state listeners should see. Call the result
// after releasing the lock.
func (s *Session) changedLocked() func() {
	if len(s.listeners) == 0 {
		return func() {}
	}
	snap := clone(s.tiles)
	fns := make([]func([]api.Tile), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return func() {
		for _, fn := range fns {
			fn(clone(snap))
		}
	}
}
