package session

import (
	"fmt"
	"math"
	"time"

	"github.com/marmat/mapracer/pkg/geo"
	"github.com/marmat/mapracer/pkg/leaderboard"
	"github.com/marmat/mapracer/pkg/protocol"
	"github.com/marmat/mapracer/pkg/race"

	"github.com/rs/zerolog/log"
)

// Game is the slice of the session a player needs to apply its own side
// effects: the ranking it mutates, the race it measures itself against,
// and the channel back to its sender device.
type Game interface {
	Board() *leaderboard.Board
	Race() *race.Race
	WinThreshold() float64
	SendTo(senderID string, message protocol.Message)
	// PlayerFinished is called after a player enters the finished state
	// so the session can decide whether the race is over.
	PlayerFinished(player *Player)
}

// Player is the per-connection state machine layered over a stable
// player identity. The identity (ID) survives reconnects; the sender id
// does not.
type Player struct {
	ID   string
	Name string

	// Hue is assigned once and stays stable for the player's lifetime.
	Hue          int
	colorRegular string
	colorLight   string

	game     Game
	senderID string

	state      PlayerState
	suspended  bool
	preSuspend PlayerState

	finishTime time.Duration
	position   *geo.Coordinate
}

// NewPlayer creates a player in the waiting state and announces it to
// the given sender connection, if any.
func NewPlayer(id string, game Game, name string, senderID string, hue int) *Player {
	p := &Player{
		ID:           id,
		Name:         name,
		Hue:          hue,
		colorRegular: fmt.Sprintf("hsl(%d, 80%%, 45%%)", hue),
		colorLight:   fmt.Sprintf("hsl(%d, 80%%, 65%%)", hue),
		game:         game,
		senderID:     senderID,
	}
	p.SetState(PlayerWaiting)
	return p
}

// Dispose removes every trace of the player. Only an explicit logout
// gets here; transport disconnects merely suspend.
func (p *Player) Dispose() {
	p.game.Board().Remove(p.ID)
}

// Suspend freezes the externally visible state at waiting while
// remembering the real one. Progress is preserved for a reconnect.
func (p *Player) Suspend() {
	if p.suspended {
		return
	}
	last := p.state
	p.SetState(PlayerWaiting)
	p.suspended = true
	p.preSuspend = last
}

// Resume restores the remembered state and re-triggers its entry side
// effects.
func (p *Player) Resume() {
	if !p.suspended {
		return
	}
	last := p.preSuspend
	p.suspended = false
	p.preSuspend = ""
	p.SetState(last)
}

func (p *Player) IsSuspended() bool {
	return p.suspended
}

// IsActive reports whether the player is racing, using the true
// remembered state: a suspended player whose remembered state is active
// still reads as active here.
func (p *Player) IsActive() bool {
	return p.state == PlayerActive || (p.suspended && p.preSuspend == PlayerActive)
}

// State returns the externally visible state, which is always waiting
// while suspended.
func (p *Player) State() PlayerState {
	return p.state
}

func (p *Player) SenderID() string {
	return p.senderID
}

// FinishTime returns how long the player took, or zero if they have not
// finished.
func (p *Player) FinishTime() time.Duration {
	return p.finishTime
}

// Position returns the player's last reported location, or nil.
func (p *Player) Position() *geo.Coordinate {
	if p.position == nil {
		return nil
	}
	position := *p.position
	return &position
}

// SetStartPosition pins the player to the race's starting line.
func (p *Player) SetStartPosition(position geo.Coordinate) {
	p.position = &position
}

// SetSenderID records the player's new connection and re-sends its state
// so the reconnected device has the right data.
func (p *Player) SetSenderID(senderID string) {
	p.senderID = senderID
	p.game.SendTo(p.senderID, protocol.PlayerState{State: string(p.state)})
}

// OnPosition feeds a streamed location into the scoring rule. Only an
// active player moves on the leaderboard; a distance strictly below the
// win threshold finishes the race for this player.
func (p *Player) OnPosition(position geo.Coordinate) {
	if p.state != PlayerActive {
		return
	}
	p.position = &position

	current := p.game.Race()
	if current == nil || current.Target == nil {
		return
	}

	distance := geo.Distance(position, *current.Target)
	p.game.Board().Update(p.ID, distance)
	if distance < p.game.WinThreshold() {
		log.Info().Str("player", p.ID).Float64("distance", distance).Msg("player finished")
		p.SetState(PlayerFinished)
	}
}

// SetState applies a transition and its side effects. While suspended,
// the new state is only remembered; side effects wait for the resume.
func (p *Player) SetState(state PlayerState) {
	if p.state == state {
		return
	}

	if p.suspended {
		p.preSuspend = state
		return
	}

	p.state = state
	switch state {
	case PlayerWaiting:
		p.game.Board().Remove(p.ID)
	case PlayerActive:
		p.game.Board().Add(p.ID, p.Name, math.Inf(1), p.colorLight)
		if current := p.game.Race(); current != nil && current.Start != nil {
			p.SetStartPosition(*current.Start)
		}
	case PlayerFinished:
		p.finishTime = p.game.Race().Elapsed(time.Now())
		p.game.Board().Update(p.ID, finishSortValue(p.finishTime),
			fmt.Sprintf("%s (%s)", p.Name, formatDuration(p.finishTime)))
		p.game.PlayerFinished(p)
	}

	p.game.SendTo(p.senderID, protocol.PlayerState{State: string(p.state)})
}

// finishSortValue ranks a finished player below every still-racing
// distance: the value is negative, and earlier finishers produce more
// negative values than later ones.
func finishSortValue(finishTime time.Duration) float64 {
	seconds := finishTime.Seconds()
	if seconds <= 0 {
		return -math.MaxFloat64
	}
	return -1 / seconds
}
