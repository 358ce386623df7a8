package canvas

import "pinned/internal/api"

// DefaultHistoryLimit is how many snapshots a board keeps for undo.
const DefaultHistoryLimit = 50

type entry struct {
	seq   uint64
	tiles []api.Tile
}

// History is a bounded undo/redo log of full tile-list snapshots. The cursor
// always points at a valid entry. History is not safe for concurrent use;
// Session serialises access.
type History struct {
	entries []entry
	cursor  int
	limit   int
	nextSeq uint64
}

// NewHistory starts a history holding a single snapshot of initial. Limits
// below 2 are raised to 2.
func NewHistory(initial []api.Tile, limit int) *History {
	if limit < 2 {
		limit = 2
	}
	h := &History{limit: limit}
	h.entries = []entry{{seq: h.seq(), tiles: clone(initial)}}
	return h
}

func (h *History) seq() uint64 {
	h.nextSeq++
	return h.nextSeq
}

// Record discards the redo branch, appends a copy of tiles and moves the
// cursor onto it. The oldest entry is evicted past the limit. It returns
// the sequence number of the new entry.
func (h *History) Record(tiles []api.Tile) uint64 {
	h.entries = h.entries[:h.cursor+1]
	e := entry{seq: h.seq(), tiles: clone(tiles)}
	h.entries = append(h.entries, e)
	if len(h.entries) > h.limit {
		h.entries[0] = entry{}
		h.entries = h.entries[1:]
	}
	h.cursor = len(h.entries) - 1
	return e.seq
}

// Undo steps the cursor back and returns a copy of the snapshot there.
func (h *History) Undo() ([]api.Tile, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.cursor--
	return h.Current(), true
}

// Redo steps the cursor forward and returns a copy of the snapshot there.
func (h *History) Redo() ([]api.Tile, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.cursor++
	return h.Current(), true
}

func (h *History) CanUndo() bool { return h.cursor > 0 }
func (h *History) CanRedo() bool { return h.cursor < len(h.entries)-1 }
func (h *History) Len() int      { return len(h.entries) }
func (h *History) Index() int    { return h.cursor }

// Current returns a copy of the snapshot under the cursor.
func (h *History) Current() []api.Tile {
	return clone(h.entries[h.cursor].tiles)
}

// CurrentSeq identifies the entry under the cursor.
func (h *History) CurrentSeq() uint64 {
	return h.entries[h.cursor].seq
}

// At returns a copy of snapshot i.
func (h *History) At(i int) []api.Tile {
	return clone(h.entries[i].tiles)
}

func (h *History) indexOf(seq uint64) int {
	for i := range h.entries {
		if h.entries[i].seq == seq {
			return i
		}
	}
	return -1
}

// Replace swaps the snapshot of entry seq. It reports false when the entry
// has been evicted or truncated.
func (h *History) Replace(seq uint64, tiles []api.Tile) bool {
	i := h.indexOf(seq)
	if i < 0 {
		return false
	}
	h.entries[i].tiles = clone(tiles)
	return true
}

// DropTop removes entry seq if it is both the newest entry and the one under
// the cursor, moving the cursor back by one. The initial entry is never
// dropped.
func (h *History) DropTop(seq uint64) bool {
	last := len(h.entries) - 1
	if last == 0 || h.cursor != last || h.entries[last].seq != seq {
		return false
	}
	h.entries[last] = entry{}
	h.entries = h.entries[:last]
	h.cursor = last - 1
	return true
}

// AmendCurrent overwrites the snapshot under the cursor.
func (h *History) AmendCurrent(tiles []api.Tile) {
	h.entries[h.cursor].tiles = clone(tiles)
}

// RemapID renames a tile id in every snapshot.
func (h *History) RemapID(from, to string) {
	for i := range h.entries {
		for j := range h.entries[i].tiles {
			if h.entries[i].tiles[j].ID == from {
				h.entries[i].tiles[j].ID = to
			}
		}
	}
}

// clone copies a tile list. api.Tile holds no references, so this is a
// deep copy.
func clone(tiles []api.Tile) []api.Tile {
	out := make([]api.Tile, len(tiles))
	copy(out, tiles)
	return out
}
