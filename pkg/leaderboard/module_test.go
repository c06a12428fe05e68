package leaderboard

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(rows []Row) []string {
	result := make([]string, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.ID)
	}
	return result
}

func TestOrdering(t *testing.T) {
	b := New()

	b.Add("a", "Alice", math.Inf(1), "white")
	b.Add("b", "Bob", math.Inf(1), "white")
	b.Add("c", "Carol", math.Inf(1), "white")

	b.Update("b", 120)
	b.Update("a", 80)
	b.Update("c", 100)

	assert.Equal(t, []string{"a", "c", "b"}, ids(b.Ordered()))

	// Worsening a score re-ranks downward.
	b.Update("a", 500)
	assert.Equal(t, []string{"c", "b", "a"}, ids(b.Ordered()))
}

func TestStableTies(t *testing.T) {
	b := New()

	// A newcomer with an equal value ranks after the entries already
	// holding it; existing entries never shuffle among themselves.
	b.Add("first", "One", 50, "white")
	b.Add("second", "Two", 50, "white")
	b.Add("third", "Three", 50, "white")
	assert.Equal(t, []string{"first", "second", "third"}, ids(b.Ordered()))

	// The same rule governs reinsertion: an updated entry lands after
	// the entries whose value equals its new one.
	b.Update("first", 50)
	assert.Equal(t, []string{"second", "third", "first"}, ids(b.Ordered()))
}

func TestAddDuplicateBehavesAsUpdate(t *testing.T) {
	b := New()

	b.Add("a", "Alice", 100, "white")
	b.Add("b", "Bob", 50, "white")
	b.Add("a", "Alicia", 10, "red")

	require.Equal(t, 2, b.Len())
	rows := b.Ordered()
	assert.Equal(t, []string{"a", "b"}, ids(rows))
	assert.Equal(t, "Alicia", rows[0].Name)
	assert.Equal(t, "red", b.Color("a"))
}

func TestSilentIgnores(t *testing.T) {
	b := New()
	b.Add("a", "Alice", 1, "white")

	// Neither may panic or change anything.
	b.Update("ghost", 10)
	b.Remove("ghost")

	require.Equal(t, 1, b.Len())
	assert.True(t, b.Contains("a"))
}

func TestChangeNotification(t *testing.T) {
	b := New()

	changes := 0
	b.OnChange = func() { changes++ }

	b.Add("a", "Alice", 100, "white")
	b.Add("b", "Bob", 200, "white")
	require.Equal(t, 2, changes)

	// Score moves but rank does not: no notification.
	b.Update("a", 150)
	assert.Equal(t, 2, changes)

	// Rank flips: notification.
	b.Update("a", 300)
	assert.Equal(t, 3, changes)

	b.Remove("b")
	assert.Equal(t, 4, changes)
}

func TestOrderedSnapshotsDetached(t *testing.T) {
	b := New()
	b.Add("a", "Alice", 10, "white")

	rows := b.Ordered()
	rows[0].Score = 9999
	rows[0].Name = "mutated"

	fresh := b.Ordered()
	assert.Equal(t, 10.0, fresh[0].Score)
	assert.Equal(t, "Alice", fresh[0].Name)
}

func TestFinishedRanksAboveActive(t *testing.T) {
	b := New()

	b.Add("racing", "Racing", 12.5, "white")
	b.Add("done", "Done", 90000, "white")

	// A finished player's sort value is negative, beating any distance.
	b.Update("done", -1.0/42.0)
	assert.Equal(t, []string{"done", "racing"}, ids(b.Ordered()))
}

func TestFullscreen(t *testing.T) {
	b := New()
	assert.False(t, b.Fullscreen())
	b.SetFullscreen(true)
	assert.True(t, b.Fullscreen())
}
