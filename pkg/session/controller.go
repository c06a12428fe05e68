package session

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/marmat/mapracer/pkg/geo"
	"github.com/marmat/mapracer/pkg/leaderboard"
	"github.com/marmat/mapracer/pkg/protocol"
	"github.com/marmat/mapracer/pkg/race"
	"github.com/marmat/mapracer/pkg/resolver"
	"github.com/marmat/mapracer/pkg/utils"

	"github.com/rs/zerolog/log"
)

// Fallback race endpoints used when a game request does not propose its
// own locations.
var (
	defaultTarget = geo.Coordinate{Lat: 37.420283, Lng: -122.083961}
	defaultStart  = geo.Coordinate{Lat: 37.413084, Lng: -122.069217}
)

// Controller owns the race, the player registry, the leaderboard and the
// top-level state machine. Every external stimulus - connection events,
// inbound messages, timer ticks, resolver results - enters through a
// single event queue and is handled to completion before the next one,
// so none of the state it owns needs locking.
type Controller struct {
	options   Options
	transport Transport
	resolver  resolver.Resolver

	events  chan func()
	stopped chan struct{}

	state   State
	race    *race.Race
	players map[string]*Player
	// senders maps the volatile connection ids onto stable player ids.
	// Many connections can point at one player over its lifetime; only
	// the most recent one is authoritative.
	senders map[string]string
	board   *leaderboard.Board

	countdown   *Countdown
	elapsed     *utils.Topic[time.Duration]
	elapsedStop chan struct{}
	scoresTimer *time.Timer

	playerCounter int
	rng           *rand.Rand
}

// NewController wires a session around the given collaborators. The
// transport is attached separately (SetTransport) because the ingress
// and the controller point at each other; Run must be called before the
// controller handles anything.
func NewController(locations resolver.Resolver, options Options) *Controller {
	options = options.withDefaults()

	c := &Controller{
		options:  options,
		resolver: locations,
		events:   make(chan func(), 256),
		stopped:  make(chan struct{}),
		state:    StateInit,
		race:     race.New(protocol.Request{}),
		players:  make(map[string]*Player),
		senders:  make(map[string]string),
		board:    leaderboard.New(),
		elapsed:  utils.NewTopic[time.Duration](),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	c.countdown = NewCountdown(options.CountdownInterval, c.post)
	c.countdown.AddFinishCallback(func() {
		// A completion arriving when we already left LOAD is a no-op.
		if c.state == StateLoad {
			c.setState(StateRace)
		}
	})

	return c
}

// SetTransport attaches the outbound message path. It must be called
// before Run.
func (c *Controller) SetTransport(transport Transport) {
	c.transport = transport
}

// Run drains the event queue until the context ends. It must be called
// exactly once; everything the controller does happens on this
// goroutine.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.stopped)
	defer c.countdown.Abort()
	defer c.stopElapsedClock()
	defer c.stopScoresTimer()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-c.events:
			event()
		}
	}
}

// post hands an event to the session loop. Events posted after the loop
// stopped are dropped.
func (c *Controller) post(event func()) {
	select {
	case c.events <- event:
	case <-c.stopped:
	}
}

// --- Transport-facing entry points. Safe to call from any goroutine. ---

// HandleConnect records a fresh connection that has not logged in yet.
func (c *Controller) HandleConnect(senderID string) {
	c.post(func() {
		log.Debug().Str("sender", senderID).Msg("sender connected")
		c.senders[senderID] = ""
	})
}

// HandleDisconnect suspends the connection's player, if any. A
// disconnect is not a goodbye: senders drop and reconnect when the
// platform switches views, and the player's progress must survive that.
func (c *Controller) HandleDisconnect(senderID string) {
	c.post(func() {
		playerID, ok := c.senders[senderID]
		delete(c.senders, senderID)
		if !ok {
			return
		}

		player, ok := c.players[playerID]
		if !ok {
			return
		}

		log.Info().Str("sender", senderID).Str("player", playerID).Msg("sender disconnected, suspending player")
		player.Suspend()
		c.broadcastState()
		c.maybeFinish()
	})
}

// HandleMessage decodes and routes one inbound frame. Unknown message
// types and frames from unknown senders are dropped silently; a flaky
// transport makes those an everyday event, not an error.
func (c *Controller) HandleMessage(senderID string, data []byte, binary bool) {
	message, err := protocol.Decode(data, binary)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownType) {
			log.Debug().Str("sender", senderID).Msg("ignoring message of unknown type")
		} else {
			log.Debug().Str("sender", senderID).Err(err).Msg("ignoring malformed message")
		}
		return
	}

	c.post(func() {
		switch m := message.(type) {
		case *protocol.Login:
			c.onLogin(senderID, m)
		case *protocol.Logout:
			c.onLogout(senderID)
		case *protocol.Request:
			c.onGameRequest(m)
		case *protocol.Position:
			c.onPosition(senderID, m)
		default:
			log.Debug().Str("sender", senderID).Str("type", string(message.Type())).Msg("inbound message type not routable")
		}
	})
}

// --- Queries. Safe to call from any goroutine. ---

// Rows returns a detached snapshot of the current standings.
func (c *Controller) Rows() []leaderboard.Row {
	reply := make(chan []leaderboard.Row, 1)
	c.post(func() {
		reply <- c.board.Ordered()
	})
	select {
	case rows := <-reply:
		return rows
	case <-c.stopped:
		return nil
	}
}

// State returns the current session state.
func (c *Controller) State() State {
	reply := make(chan State, 1)
	c.post(func() {
		reply <- c.state
	})
	select {
	case state := <-reply:
		return state
	case <-c.stopped:
		return StateInit
	}
}

// Elapsed exposes the race clock published while a race runs.
func (c *Controller) Elapsed() *utils.Topic[time.Duration] {
	return c.elapsed
}

// --- Game interface for players. Only called from the session loop. ---

func (c *Controller) Board() *leaderboard.Board {
	return c.board
}

func (c *Controller) Race() *race.Race {
	return c.race
}

func (c *Controller) WinThreshold() float64 {
	return c.options.WinThreshold
}

func (c *Controller) SendTo(senderID string, message protocol.Message) {
	if senderID == "" || c.transport == nil {
		return
	}
	c.transport.SendTo(senderID, message)
}

func (c *Controller) PlayerFinished(player *Player) {
	c.maybeFinish()
}

// --- Message handlers. ---

// onLogin creates or resumes the player with the given stable id. The
// sender id cannot identify a player: it changes whenever the device
// switches views.
func (c *Controller) onLogin(senderID string, login *protocol.Login) {
	if player, ok := c.players[login.ID]; ok {
		log.Info().Str("sender", senderID).Str("player", login.ID).Msg("player logged back in")
		player.Resume()
		player.SetSenderID(senderID)
	} else {
		name := login.Name
		if name == "" {
			c.playerCounter++
			name = defaultPlayerName(c.playerCounter)
		}
		log.Info().Str("sender", senderID).Str("player", login.ID).Str("name", name).Msg("player logged in")
		c.players[login.ID] = NewPlayer(login.ID, c, name, senderID, c.rng.Intn(360))
	}

	c.senders[senderID] = login.ID
	c.broadcastState()
	c.maybeStart()
}

// onLogout permanently removes the sender's player; they told us they
// are not coming back.
func (c *Controller) onLogout(senderID string) {
	playerID, ok := c.senders[senderID]
	if !ok {
		return
	}

	player, ok := c.players[playerID]
	if !ok {
		return
	}

	log.Info().Str("player", playerID).Msg("player logged out")
	player.Dispose()
	delete(c.players, playerID)
	c.broadcastState()
	c.maybeFinish()
}

// onGameRequest replaces the pending race with one built from the
// request. Requests arriving after the session left INIT are dropped.
func (c *Controller) onGameRequest(request *protocol.Request) {
	if c.state != StateInit {
		return
	}

	c.race = race.New(*request)
	log.Info().Str("race", c.race.ID).Str("title", c.race.Title).Msg("new race requested")

	// Any endpoint the request left open gets a fallback candidate and a
	// trip through the resolver. Both resolutions may be in flight at
	// once and complete in either order.
	if c.race.Target == nil {
		c.resolve(c.race, defaultTarget, func(r *race.Race, location geo.Coordinate) {
			r.Target = &location
		})
	}
	if c.race.Start == nil {
		c.resolve(c.race, defaultStart, func(r *race.Race, location geo.Coordinate) {
			r.Start = &location
		})
	}

	c.maybeStart()
}

func (c *Controller) onPosition(senderID string, position *protocol.Position) {
	playerID, ok := c.senders[senderID]
	if !ok {
		return
	}

	player, ok := c.players[playerID]
	if !ok {
		return
	}

	player.OnPosition(position.Location.Coordinate())
}

// resolve runs one endpoint through the location resolver off the loop
// and applies the result back on it. A result for a race that has been
// replaced in the meantime is discarded.
func (c *Controller) resolve(pending *race.Race, candidate geo.Coordinate, apply func(*race.Race, geo.Coordinate)) {
	go func() {
		location, err := c.resolver.Resolve(context.Background(), candidate, c.options.ResolveRadius)
		c.post(func() {
			if c.race != pending {
				return
			}

			if err != nil {
				log.Warn().Err(err).Str("race", pending.ID).Msg("location resolution failed")
				if c.transport != nil {
					c.transport.Broadcast(protocol.Info{
						Text: "Warning: the desired game area is not available. Please try a different location.",
					})
				}
				return
			}

			apply(pending, location)
			c.maybeStart()
		})
	}()
}

// --- State machine. ---

// alivePlayerCount counts the players a race could start with; suspended
// ones do not qualify.
func (c *Controller) alivePlayerCount() int {
	count := 0
	for _, player := range c.players {
		if !player.IsSuspended() {
			count++
		}
	}
	return count
}

// maybeStart fires the INIT -> LOAD transition once the race geography
// is resolved and enough players are present.
func (c *Controller) maybeStart() {
	if !c.race.Startable() || c.alivePlayerCount() < c.options.MinPlayers {
		return
	}

	if c.state != StateInit {
		// Already started.
		return
	}

	for _, player := range c.players {
		player.SetState(PlayerActive)
	}

	c.setState(StateLoad)
}

// maybeFinish fires the RACE -> SCORES transition once nobody is racing
// anymore. A suspended player never holds the race open, even when its
// remembered state is active.
func (c *Controller) maybeFinish() {
	if c.state != StateRace {
		return
	}

	for _, player := range c.players {
		if player.IsActive() && !player.IsSuspended() {
			return
		}
	}

	c.setState(StateScores)
}

func (c *Controller) setState(state State) {
	// Leaving a state always clears the timers it owns.
	switch c.state {
	case StateLoad:
		c.countdown.Abort()
	case StateRace:
		c.stopElapsedClock()
	case StateScores:
		c.stopScoresTimer()
	}

	log.Info().Str("from", string(c.state)).Str("to", string(state)).Msg("session state change")
	c.state = state

	switch state {
	case StateInit:
		c.race = race.New(protocol.Request{})
		for _, player := range c.players {
			player.SetState(PlayerWaiting)
		}
		c.board.SetFullscreen(false)
	case StateLoad:
		c.countdown.Start(c.options.CountdownSeconds)
	case StateRace:
		c.race.StartTime = time.Now()
		c.startElapsedClock()
	case StateScores:
		c.board.SetFullscreen(true)
		c.scoresTimer = time.AfterFunc(c.options.ScoresDuration, func() {
			c.post(func() {
				if c.state == StateScores {
					c.setState(StateInit)
				}
			})
		})
	}

	c.broadcastState()
}

func (c *Controller) broadcastState() {
	if c.transport == nil {
		return
	}
	c.transport.Broadcast(protocol.GameState{
		State:   string(c.state),
		Players: c.alivePlayerCount(),
		Race:    c.race.Snapshot(),
	})
}

// startElapsedClock publishes the race clock on a fixed interval while
// the session stays in RACE. Rendering the clock is the display
// collaborator's concern; the session only emits the ticks.
func (c *Controller) startElapsedClock() {
	stop := make(chan struct{})
	c.elapsedStop = stop

	go func() {
		ticker := time.NewTicker(c.options.ElapsedInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.post(func() {
					if c.state == StateRace {
						c.elapsed.Publish(c.race.Elapsed(time.Now()))
					}
				})
			}
		}
	}()
}

func (c *Controller) stopElapsedClock() {
	if c.elapsedStop != nil {
		close(c.elapsedStop)
		c.elapsedStop = nil
	}
}

func (c *Controller) stopScoresTimer() {
	if c.scoresTimer != nil {
		c.scoresTimer.Stop()
		c.scoresTimer = nil
	}
}
