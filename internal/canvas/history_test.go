package canvas

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinned/internal/api"
)

func tiles(ids ...string) []api.Tile {
	out := make([]api.Tile, 0, len(ids))
	for _, id := range ids {
		out = append(out, api.Tile{ID: id, Type: api.TileText})
	}
	return out
}

func ids(ts []api.Tile) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

func TestHistory_CursorStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	h := NewHistory(nil, 10)
	var live []api.Tile

	for i := 0; i < 2000; i++ {
		switch rng.Intn(3) {
		case 0:
			live = append(clone(live), api.Tile{ID: fmt.Sprint(i)})
			h.Record(live)
		case 1:
			if ts, ok := h.Undo(); ok {
				live = ts
			}
		case 2:
			if ts, ok := h.Redo(); ok {
				live = ts
			}
		}
		require.GreaterOrEqual(t, h.Index(), 0)
		require.Less(t, h.Index(), h.Len())
		require.LessOrEqual(t, h.Len(), 10)
		require.Equal(t, ids(live), ids(h.Current()))
	}
}

func TestHistory_RecordTruncatesRedo(t *testing.T) {
	h := NewHistory(nil, DefaultHistoryLimit)
	h.Record(tiles("a"))
	h.Record(tiles("a", "b"))

	_, ok := h.Undo()
	require.True(t, ok)
	assert.True(t, h.CanRedo())

	h.Record(tiles("a", "c"))
	assert.False(t, h.CanRedo())
	_, ok = h.Redo()
	assert.False(t, ok)
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []string{"a", "c"}, ids(h.Current()))
}

func TestHistory_SnapshotsAreCopies(t *testing.T) {
	live := tiles("a")
	h := NewHistory(nil, DefaultHistoryLimit)
	h.Record(live)

	live[0].Position = api.Position{X: 99}
	live[0].Data.Text = "changed"
	assert.Zero(t, h.Current()[0].Position.X)
	assert.Empty(t, h.Current()[0].Data.Text)

	cur := h.Current()
	cur[0].ID = "mutated"
	assert.Equal(t, "a", h.Current()[0].ID)
}

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(nil, DefaultHistoryLimit)
	var live []api.Tile
	for i := 0; i < 60; i++ {
		live = append(live, api.Tile{ID: fmt.Sprint(i)})
		h.Record(live)
	}
	assert.Equal(t, DefaultHistoryLimit, h.Len())
	assert.Equal(t, DefaultHistoryLimit-1, h.Index())
	assert.Len(t, h.At(0), 11)

	undos := 0
	for h.CanUndo() {
		_, _ = h.Undo()
		undos++
	}
	assert.Equal(t, DefaultHistoryLimit-1, undos)
	assert.Len(t, h.Current(), 11)
}

func TestHistory_ReplaceTracksEntryAcrossEviction(t *testing.T) {
	h := NewHistory(nil, 3)
	h.Record(tiles("a"))
	target := h.Record(tiles("a", "b"))
	h.Record(tiles("a", "b", "c"))

	assert.True(t, h.Replace(target, tiles("x")))
	assert.Equal(t, []string{"x"}, ids(h.At(1)))

	h.Record(tiles("d"))
	h.Record(tiles("e"))
	assert.False(t, h.Replace(target, tiles("y")), "evicted")
}

func TestHistory_DropTop(t *testing.T) {
	h := NewHistory(tiles("a"), DefaultHistoryLimit)
	assert.False(t, h.DropTop(h.CurrentSeq()), "initial entry stays")

	first := h.Record(tiles("a", "b"))
	second := h.Record(tiles("a", "b", "c"))
	assert.False(t, h.DropTop(first), "not the newest")

	assert.True(t, h.DropTop(second))
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 1, h.Index())

	_, _ = h.Undo()
	assert.False(t, h.DropTop(first), "cursor moved away")
}

func TestHistory_RemapID(t *testing.T) {
	h := NewHistory(nil, DefaultHistoryLimit)
	h.Record(tiles("tmp-1"))
	h.Record(tiles("tmp-1", "b"))
	h.RemapID("tmp-1", "srv-9")

	for i := 0; i < h.Len(); i++ {
		assert.NotContains(t, ids(h.At(i)), "tmp-1")
	}
	assert.Equal(t, []string{"srv-9", "b"}, ids(h.Current()))
}
