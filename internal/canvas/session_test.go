package canvas_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinned/internal/api"
	"pinned/internal/canvas"
	"pinned/internal/client"
)

type notes struct {
	mu   sync.Mutex
	errs []error
}

func (n *notes) Notify(err error) {
	n.mu.Lock()
	n.errs = append(n.errs, err)
	n.mu.Unlock()
}

func (n *notes) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errs)
}

func open(t *testing.T, be canvas.Backend, opts ...canvas.Option) *canvas.Session {
	t.Helper()
	opts = append([]canvas.Option{canvas.WithSyncDelay(20 * time.Millisecond)}, opts...)
	s, err := canvas.Open(context.Background(), be, "board-1", opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func settle(t *testing.T, s *canvas.Session) {
	t.Helper()
	require.Eventually(t, s.Settled, 2*time.Second, 5*time.Millisecond)
}

func textInput(x, y float64, text string) api.TileInput {
	return api.TileInput{
		Type:     api.TileText,
		Position: &api.Position{X: x, Y: y},
		Size:     &api.Size{Width: 240, Height: 200},
		Data:     api.TileData{Text: text},
	}
}

func TestOpen_MissingBoard(t *testing.T) {
	_, err := canvas.Open(context.Background(), newFakeBackend(), "nope")
	require.Error(t, err)
	assert.True(t, client.IsNotFound(err))
}

func TestOpen_InitialSnapshot(t *testing.T) {
	s := open(t, newFakeBackend(textTile("", 0, 0, "a")))
	n, i := s.HistoryState()
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, i)
	assert.Len(t, s.Tiles(), 1)
	assert.False(t, s.CanUndo())
}

func TestCreateTextTile(t *testing.T) {
	be := newFakeBackend()
	s := open(t, be)

	tl, err := s.Create(context.Background(), textInput(200, 200, "hi"))
	require.NoError(t, err)

	n, i := s.HistoryState()
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, i)

	live := s.Tiles()
	require.Len(t, live, 1)
	assert.Equal(t, api.Position{X: 200, Y: 200}, live[0].Position)
	assert.Equal(t, api.Size{Width: 240, Height: 200}, live[0].Size)
	assert.Equal(t, tl.ID, live[0].ID)
	assert.False(t, canvas.IsPlaceholder(tl.ID))
	assert.Equal(t, tl.ID, s.Snapshot(1)[0].ID, "snapshot carries the server id")
}

func TestUndoRedoKeepsIDs(t *testing.T) {
	be := newFakeBackend()
	s := open(t, be, canvas.WithSyncDelay(200*time.Millisecond))
	ctx := context.Background()

	a, err := s.Create(ctx, textInput(0, 0, "A"))
	require.NoError(t, err)
	b, err := s.Create(ctx, textInput(300, 0, "B"))
	require.NoError(t, err)

	require.True(t, s.Undo())
	assert.Equal(t, []string{a.ID}, tileIDs(s.Tiles()))

	require.True(t, s.Redo())
	assert.Equal(t, []string{a.ID, b.ID}, tileIDs(s.Tiles()))

	settle(t, s)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, tileIDs(s.Tiles()))
	assert.ElementsMatch(t, []string{a.ID, b.ID}, tileIDs(be.serverTiles()))
}

func TestUndoDeleteRecreatesWithNewID(t *testing.T) {
	be := newFakeBackend()
	s := open(t, be)
	ctx := context.Background()

	a, err := s.Create(ctx, textInput(10, 20, "A"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, a.ID))
	assert.Empty(t, be.serverTiles())

	require.True(t, s.Undo())
	settle(t, s)

	server := be.serverTiles()
	require.Len(t, server, 1)
	assert.NotEqual(t, a.ID, server[0].ID)
	assert.True(t, server[0].SameContent(a))

	live := s.Tiles()
	require.Len(t, live, 1)
	assert.Equal(t, server[0].ID, live[0].ID)
	_, i := s.HistoryState()
	assert.Equal(t, server[0].ID, s.Snapshot(i)[0].ID)
}

func TestHistoryCap(t *testing.T) {
	s := open(t, newFakeBackend(), canvas.WithSyncDelay(time.Hour))
	ctx := context.Background()
	for i := 0; i < 60; i++ {
		_, err := s.Create(ctx, textInput(float64(i), 0, "t"))
		require.NoError(t, err)
	}

	n, i := s.HistoryState()
	assert.Equal(t, canvas.DefaultHistoryLimit, n)
	assert.Equal(t, canvas.DefaultHistoryLimit-1, i)

	undos := 0
	for s.Undo() {
		undos++
	}
	assert.Equal(t, canvas.DefaultHistoryLimit-1, undos)
	assert.Len(t, s.Tiles(), 11, "earliest snapshots are gone")
}

func TestRapidUndosRunOnePass(t *testing.T) {
	be := newFakeBackend()
	s := open(t, be, canvas.WithSyncDelay(50*time.Millisecond))
	ctx := context.Background()

	a, err := s.Create(ctx, textInput(0, 0, "A"))
	require.NoError(t, err)
	_, err = s.Create(ctx, textInput(0, 0, "B"))
	require.NoError(t, err)
	_, err = s.Create(ctx, textInput(0, 0, "C"))
	require.NoError(t, err)
	listsBefore := be.count("list")

	require.True(t, s.Undo())
	require.True(t, s.Undo())
	settle(t, s)

	assert.Equal(t, listsBefore+2, be.count("list"), "one fetch and one refetch")
	assert.Equal(t, []string{a.ID}, tileIDs(s.Tiles()))
	assert.Equal(t, []string{a.ID}, tileIDs(be.serverTiles()))
}

func TestUndoIgnoredWhileSyncing(t *testing.T) {
	be := newFakeBackend()
	s := open(t, be)
	ctx := context.Background()

	_, err := s.Create(ctx, textInput(0, 0, "A"))
	require.NoError(t, err)
	_, err = s.Create(ctx, textInput(0, 0, "B"))
	require.NoError(t, err)

	gate := make(chan struct{})
	be.mu.Lock()
	be.listGate = gate
	be.mu.Unlock()

	require.True(t, s.Undo())
	require.Eventually(t, s.Syncing, time.Second, time.Millisecond)

	_, before := s.HistoryState()
	assert.False(t, s.Undo())
	assert.False(t, s.Redo())
	assert.False(t, s.CanUndo())
	_, after := s.HistoryState()
	assert.Equal(t, before, after)

	be.mu.Lock()
	be.listGate = nil
	be.mu.Unlock()
	close(gate)
	settle(t, s)

	assert.True(t, s.Undo(), "available again once the pass is done")
}

func TestUpdateFailureReverts(t *testing.T) {
	be := newFakeBackend()
	n := &notes{}
	s := open(t, be, canvas.WithNotifier(n))
	ctx := context.Background()

	a, err := s.Create(ctx, textInput(1, 2, "A"))
	require.NoError(t, err)

	be.setFail("update", errors.New("offline"))
	_, err = s.Update(ctx, a.ID, api.TilePatch{Position: &api.Position{X: 50, Y: 60}})
	require.Error(t, err)

	got, ok := s.Tile(a.ID)
	require.True(t, ok)
	assert.Equal(t, api.Position{X: 1, Y: 2}, got.Position)
	length, i := s.HistoryState()
	assert.Equal(t, 2, length)
	assert.Equal(t, 1, i)
	assert.Equal(t, 1, n.count())
}

func TestUpdateUnknownTile(t *testing.T) {
	s := open(t, newFakeBackend())
	_, err := s.Update(context.Background(), "ghost", api.TilePatch{})
	assert.ErrorIs(t, err, canvas.ErrTileNotFound)
	assert.ErrorIs(t, s.Delete(context.Background(), "ghost"), canvas.ErrTileNotFound)
}

func TestFailurePolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("revert all", func(t *testing.T) {
		be := newFakeBackend(textTile("", 0, 0, "A"))
		s := open(t, be)
		id := be.serverTiles()[0].ID

		be.setFail("delete", errors.New("offline"))
		require.Error(t, s.Delete(ctx, id))
		assert.Equal(t, []string{id}, tileIDs(s.Tiles()))

		be.setFail("create", errors.New("offline"))
		_, err := s.Create(ctx, textInput(0, 0, "B"))
		require.Error(t, err)
		assert.Equal(t, []string{id}, tileIDs(s.Tiles()))

		n, _ := s.HistoryState()
		assert.Equal(t, 1, n)
	})

	t.Run("retain optimistic", func(t *testing.T) {
		be := newFakeBackend(textTile("", 0, 0, "A"))
		s := open(t, be, canvas.WithFailurePolicy(canvas.RetainOptimistic))
		id := be.serverTiles()[0].ID

		be.setFail("delete", errors.New("offline"))
		require.Error(t, s.Delete(ctx, id))
		assert.Empty(t, s.Tiles())

		be.setFail("create", errors.New("offline"))
		_, err := s.Create(ctx, textInput(0, 0, "B"))
		require.Error(t, err)
		live := s.Tiles()
		require.Len(t, live, 1)
		assert.True(t, canvas.IsPlaceholder(live[0].ID))

		n, _ := s.HistoryState()
		assert.Equal(t, 3, n)
	})
}

func TestRevertBehindNewerChange(t *testing.T) {
	be := newFakeBackend(textTile("", 0, 0, "A"), textTile("", 0, 0, "B"))
	ctx := context.Background()
	ids := tileIDs(be.serverTiles())

	gate := make(chan struct{})
	started := make(chan struct{})
	blocking := &gatedUpdates{fakeBackend: be, gate: gate, started: started, target: ids[0]}
	s2 := open(t, blocking)

	errc := make(chan error, 1)
	go func() {
		_, err := s2.Update(ctx, ids[0], api.TilePatch{Position: &api.Position{X: 5, Y: 5}})
		errc <- err
	}()
	<-started
	_, err := s2.Update(ctx, ids[1], api.TilePatch{Position: &api.Position{X: 9, Y: 9}})
	require.NoError(t, err)

	be.setFail("update", errors.New("offline"))
	close(gate)
	require.Error(t, <-errc)

	a, _ := s2.Tile(ids[0])
	b, _ := s2.Tile(ids[1])
	assert.Equal(t, api.Position{}, a.Position, "failed move rolled back")
	assert.Equal(t, api.Position{X: 9, Y: 9}, b.Position, "later move kept")

	length, i := s2.HistoryState()
	assert.Equal(t, 3, length)
	assert.Equal(t, a.Position, s2.Snapshot(i)[0].Position, "current snapshot amended")
}

// gatedUpdates holds the update of one tile until gate closes.
type gatedUpdates struct {
	*fakeBackend
	gate    chan struct{}
	started chan struct{}
	target  string
}

func (g *gatedUpdates) UpdateTile(ctx context.Context, boardID, tileID string, p api.TilePatch) (api.Tile, error) {
	if tileID == g.target {
		close(g.started)
		<-g.gate
	}
	return g.fakeBackend.UpdateTile(ctx, boardID, tileID, p)
}

func TestEditWhileCreateInFlight(t *testing.T) {
	be := newFakeBackend()
	s := open(t, be)
	ctx := context.Background()

	gate := make(chan struct{})
	be.mu.Lock()
	be.createGate = gate
	be.mu.Unlock()

	done := make(chan api.Tile, 1)
	go func() {
		tl, err := s.Create(ctx, textInput(0, 0, "draft"))
		assert.NoError(t, err)
		done <- tl
	}()
	require.Eventually(t, func() bool { return len(s.Tiles()) == 1 }, time.Second, time.Millisecond)
	tmp := s.Tiles()[0].ID
	require.True(t, canvas.IsPlaceholder(tmp))

	_, err := s.Update(ctx, tmp, api.TilePatch{Position: &api.Position{X: 70, Y: 80}})
	require.NoError(t, err)
	assert.Zero(t, be.count("update"), "nothing to update on the server yet")

	close(gate)
	created := <-done

	server := be.serverTiles()
	require.Len(t, server, 1)
	assert.Equal(t, created.ID, server[0].ID)
	assert.Equal(t, api.Position{X: 70, Y: 80}, server[0].Position, "follow-up update sent")

	length, _ := s.HistoryState()
	for i := 0; i < length; i++ {
		for _, tl := range s.Snapshot(i) {
			assert.False(t, canvas.IsPlaceholder(tl.ID))
		}
	}
}

func TestDeleteWhileCreateInFlight(t *testing.T) {
	be := newFakeBackend()
	s := open(t, be)
	ctx := context.Background()

	gate := make(chan struct{})
	be.mu.Lock()
	be.createGate = gate
	be.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Create(ctx, textInput(0, 0, "draft"))
	}()
	require.Eventually(t, func() bool { return len(s.Tiles()) == 1 }, time.Second, time.Millisecond)
	require.NoError(t, s.Delete(ctx, s.Tiles()[0].ID))

	close(gate)
	<-done
	assert.Empty(t, be.serverTiles())
	assert.Empty(t, s.Tiles())
}

func TestUndoWhileCreateInFlight(t *testing.T) {
	be := newFakeBackend()
	s := open(t, be)
	ctx := context.Background()

	x, err := s.Create(ctx, textInput(0, 0, "X"))
	require.NoError(t, err)

	gate := make(chan struct{})
	be.mu.Lock()
	be.createGate = gate
	be.mu.Unlock()

	done := make(chan api.Tile, 1)
	go func() {
		tl, err := s.Create(ctx, textInput(300, 0, "A"))
		assert.NoError(t, err)
		done <- tl
	}()
	require.Eventually(t, func() bool { return len(s.Tiles()) == 2 }, time.Second, time.Millisecond)

	_, err = s.Update(ctx, x.ID, api.TilePatch{Position: &api.Position{X: 40, Y: 40}})
	require.NoError(t, err)
	require.True(t, s.Undo())
	require.Eventually(t, s.Syncing, time.Second, time.Millisecond)

	lists := be.count("list")
	assert.Never(t, func() bool { return be.count("list") > lists }, 60*time.Millisecond, 5*time.Millisecond,
		"the pass waits for the create before fetching")

	be.mu.Lock()
	be.createGate = nil
	be.mu.Unlock()
	close(gate)
	a := <-done
	settle(t, s)

	server := be.serverTiles()
	assert.ElementsMatch(t, []string{x.ID, a.ID}, tileIDs(server))
	assert.ElementsMatch(t, tileIDs(server), tileIDs(s.Tiles()))
	got, ok := s.Tile(x.ID)
	require.True(t, ok)
	assert.Equal(t, api.Position{}, got.Position)
}

func TestCreateDuringSync(t *testing.T) {
	be := newFakeBackend()
	s := open(t, be)
	ctx := context.Background()

	a, err := s.Create(ctx, textInput(0, 0, "A"))
	require.NoError(t, err)
	_, err = s.Update(ctx, a.ID, api.TilePatch{Position: &api.Position{X: 10, Y: 10}})
	require.NoError(t, err)

	gate := make(chan struct{})
	be.mu.Lock()
	be.listGate = gate
	be.mu.Unlock()

	lists := be.count("list")
	require.True(t, s.Undo())
	require.Eventually(t, func() bool { return be.count("list") > lists }, time.Second, time.Millisecond)

	done := make(chan api.Tile, 1)
	go func() {
		tl, err := s.Create(ctx, textInput(500, 500, "B"))
		assert.NoError(t, err)
		done <- tl
	}()
	require.Eventually(t, func() bool { return len(s.Tiles()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, be.count("create"), "create waits for the pass")

	be.mu.Lock()
	be.listGate = nil
	be.mu.Unlock()
	close(gate)
	b := <-done
	settle(t, s)

	server := be.serverTiles()
	assert.ElementsMatch(t, []string{a.ID, b.ID}, tileIDs(server))
	assert.ElementsMatch(t, tileIDs(server), tileIDs(s.Tiles()))
}

func TestOnChange(t *testing.T) {
	s := open(t, newFakeBackend())
	var (
		mu   sync.Mutex
		seen []int
	)
	stop := s.OnChange(func(ts []api.Tile) {
		mu.Lock()
		seen = append(seen, len(ts))
		mu.Unlock()
	})

	_, err := s.Create(context.Background(), textInput(0, 0, "x"))
	require.NoError(t, err)
	stop()
	_, err = s.Create(context.Background(), textInput(0, 0, "y"))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 1}, seen, "placeholder then confirmed")
}

func TestClosedSession(t *testing.T) {
	s := open(t, newFakeBackend())
	s.Close()
	_, err := s.Create(context.Background(), textInput(0, 0, "x"))
	assert.ErrorIs(t, err, canvas.ErrClosed)
	assert.False(t, s.Undo())
}

func tileIDs(ts []api.Tile) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}
