package leaderboard

import (
	"github.com/repeale/fp-go"
)

// Row is a detached snapshot of one ranked entry.
type Row struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type entry struct {
	id    string
	name  string
	value float64
	color string
}

// Board is a ranked registry of participants, ascending by sort value
// (lower is better). It owns no game logic, only ordering, and is only
// ever touched from the session controller's event loop, so it carries
// no locking of its own.
type Board struct {
	entries map[string]*entry
	ordered []*entry

	fullscreen bool

	// OnChange fires whenever the visible order changes. Score updates
	// that do not move an entry do not fire it.
	OnChange func()
}

func New() *Board {
	return &Board{
		entries: make(map[string]*entry),
	}
}

func (b *Board) changed() {
	if b.OnChange != nil {
		b.OnChange()
	}
}

// Add inserts a participant at the position its sort value dictates. If
// the id is already present the call behaves exactly like Update.
func (b *Board) Add(id string, name string, value float64, color string) {
	if existing, ok := b.entries[id]; ok {
		existing.name = name
		existing.color = color
		b.Update(id, value)
		return
	}

	e := &entry{id: id, name: name, value: value, color: color}
	b.entries[id] = e
	b.ordered = append(b.ordered, e)
	b.moveToRank(e, len(b.ordered)-1)
	b.changed()
}

// Update assigns a new sort value and re-ranks the entry. Unknown ids are
// ignored; late updates for players that already left are expected and
// harmless. An optional name replaces the display name (used to append
// the finish time to finished players).
func (b *Board) Update(id string, value float64, name ...string) {
	e, ok := b.entries[id]
	if !ok {
		return
	}

	e.value = value
	if len(name) > 0 {
		e.name = name[0]
	}

	from := b.indexOf(e)
	if b.moveToRank(e, from) {
		b.changed()
	}
}

// Remove excises a participant. Unknown ids are ignored.
func (b *Board) Remove(id string) {
	e, ok := b.entries[id]
	if !ok {
		return
	}

	index := b.indexOf(e)
	b.ordered = append(b.ordered[:index], b.ordered[index+1:]...)
	delete(b.entries, id)
	b.changed()
}

// Len returns the number of ranked participants.
func (b *Board) Len() int {
	return len(b.ordered)
}

// Contains reports whether the id is currently ranked.
func (b *Board) Contains(id string) bool {
	_, ok := b.entries[id]
	return ok
}

// Color returns the display color recorded for the id, or "" if absent.
func (b *Board) Color(id string) string {
	if e, ok := b.entries[id]; ok {
		return e.color
	}
	return ""
}

// Ordered produces a fresh ordered sequence of row snapshots, never
// aliasing internal entries.
func (b *Board) Ordered() []Row {
	return fp.Map(func(e *entry) Row {
		return Row{ID: e.id, Name: e.name, Score: e.value}
	})(b.ordered)
}

// SetFullscreen stores the display-mode flag. It has no effect on
// ranking; rendering collaborators read it back via Fullscreen.
func (b *Board) SetFullscreen(fullscreen bool) {
	b.fullscreen = fullscreen
}

func (b *Board) Fullscreen() bool {
	return b.fullscreen
}

func (b *Board) indexOf(e *entry) int {
	for i, other := range b.ordered {
		if other == e {
			return i
		}
	}
	return -1
}

// moveToRank removes the entry from position `from` and reinserts it
// before the first remaining entry whose value is strictly greater.
// Equal values keep their existing relative order. Reports whether the
// position actually changed.
func (b *Board) moveToRank(e *entry, from int) bool {
	rest := make([]*entry, 0, len(b.ordered)-1)
	rest = append(rest, b.ordered[:from]...)
	rest = append(rest, b.ordered[from+1:]...)

	to := len(rest)
	for i, other := range rest {
		if e.value < other.value {
			to = i
			break
		}
	}

	b.ordered = append(rest[:to:to], append([]*entry{e}, rest[to:]...)...)
	return to != from
}
