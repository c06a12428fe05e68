package session

import (
	"fmt"
	"time"

	"github.com/marmat/mapracer/pkg/protocol"
)

// State is the top-level session state. One lifecycle of a race runs
// INIT -> LOAD -> RACE -> SCORES -> INIT.
type State string

const (
	StateInit   State = "init"
	StateLoad   State = "load"
	StateRace   State = "race"
	StateScores State = "scores"
)

// PlayerState is a single player's race state. Transitions are monotonic
// within one race: waiting -> active -> finished.
type PlayerState string

const (
	PlayerWaiting  PlayerState = "waiting"
	PlayerActive   PlayerState = "active"
	PlayerFinished PlayerState = "finished"
)

// Transport delivers outbound messages to sender devices. The websocket
// ingress implements it; tests substitute a recorder.
type Transport interface {
	// SendTo addresses one connection. Messages to connections that are
	// gone are dropped, not queued.
	SendTo(senderID string, message protocol.Message)
	Broadcast(message protocol.Message)
}

// Options tunes the session controller. Zero values fall back to the
// original receiver's constants.
type Options struct {
	// MinPlayers is the number of non-suspended players required before
	// a race may leave INIT.
	MinPlayers int
	// CountdownSeconds is the LOAD countdown duration.
	CountdownSeconds int
	// ScoresDuration is how long the SCORES screen stays up before the
	// session resets to INIT.
	ScoresDuration time.Duration
	// WinThreshold is the radius in meters around the target that counts
	// as having arrived. A distance strictly below it finishes a player.
	WinThreshold float64
	// ElapsedInterval is the period of the race clock published while in
	// RACE.
	ElapsedInterval time.Duration
	// CountdownInterval is the period of one countdown tick. Tests
	// shrink it; real senders always see one tick per second.
	CountdownInterval time.Duration
	// ResolveRadius is handed to the location resolver.
	ResolveRadius float64
}

func (o Options) withDefaults() Options {
	if o.MinPlayers == 0 {
		o.MinPlayers = 1
	}
	if o.CountdownSeconds == 0 {
		o.CountdownSeconds = 5
	}
	if o.ScoresDuration == 0 {
		o.ScoresDuration = 10 * time.Second
	}
	if o.WinThreshold == 0 {
		o.WinThreshold = 50
	}
	if o.ElapsedInterval == 0 {
		o.ElapsedInterval = 100 * time.Millisecond
	}
	if o.CountdownInterval == 0 {
		o.CountdownInterval = time.Second
	}
	if o.ResolveRadius == 0 {
		o.ResolveRadius = o.WinThreshold
	}
	return o
}

// defaultPlayerName names players that log in without one. The counter
// is owned by the controller, not the package.
func defaultPlayerName(number int) string {
	return fmt.Sprintf("Player %d", number)
}

// formatDuration renders a finish time the way the scoreboard shows it,
// minutes:seconds.centiseconds.
func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	centis := int(d.Milliseconds()/10) % 100
	return fmt.Sprintf("%d:%02d.%02d", minutes, seconds, centis)
}
