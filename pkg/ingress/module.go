package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmat/mapracer/pkg/leaderboard"
	"github.com/marmat/mapracer/pkg/protocol"
	"github.com/marmat/mapracer/pkg/session"
	"github.com/marmat/mapracer/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

const (
	sendQueueSize = 64
	writeTimeout  = 5 * time.Second

	// Inbound frames per second a single sender may produce. Position
	// streams are the chattiest source and stay well below this.
	messageRate  = 40
	messageBurst = 80
)

// Session is the slice of the session controller the ingress drives.
type Session interface {
	HandleConnect(senderID string)
	HandleDisconnect(senderID string)
	HandleMessage(senderID string, data []byte, binary bool)
	Rows() []leaderboard.Row
	State() session.State
}

type frame struct {
	data   []byte
	binary bool
}

// WSClient is one connected sender device. Its id is freshly minted per
// connection; player identity is established separately via login.
type WSClient struct {
	id      string
	session utils.Session
	send    chan frame

	// Senders speaking CBOR get CBOR back; everyone else gets JSON.
	binary atomic.Bool

	closeSlow func()
}

// Deliver queues an encoded message for the client. Clients too slow to
// keep up are disconnected rather than allowed to stall the session.
func (c *WSClient) Deliver(message protocol.Message) {
	data, err := protocol.Encode(message, c.binary.Load())
	if err != nil {
		log.Error().Err(err).Str("sender", c.id).Msg("failed to encode outbound message")
		return
	}

	select {
	case c.send <- frame{data: data, binary: c.binary.Load()}:
	default:
		c.closeSlow()
	}
}

// WSIngress accepts sender connections over websocket and bridges them
// to the session controller. It implements session.Transport.
type WSIngress struct {
	controller Session

	mutex   sync.Mutex
	clients map[string]*WSClient

	httpServer *http.Server
}

var _ session.Transport = (*WSIngress)(nil)

func NewWSIngress(controller Session) *WSIngress {
	return &WSIngress{
		controller: controller,
		clients:    make(map[string]*WSClient),
	}
}

// SendTo addresses one connection. If it is gone, the message is simply
// undeliverable and dropped.
func (s *WSIngress) SendTo(senderID string, message protocol.Message) {
	s.mutex.Lock()
	client, ok := s.clients[senderID]
	s.mutex.Unlock()
	if !ok {
		return
	}
	client.Deliver(message)
}

// Broadcast delivers a message to every connected sender.
func (s *WSIngress) Broadcast(message protocol.Message) {
	s.mutex.Lock()
	clients := make([]*WSClient, 0, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, client)
	}
	s.mutex.Unlock()

	for _, client := range clients {
		client.Deliver(message)
	}
}

func (s *WSIngress) addClient(client *WSClient) {
	s.mutex.Lock()
	s.clients[client.id] = client
	s.mutex.Unlock()
}

func (s *WSIngress) removeClient(client *WSClient) {
	s.mutex.Lock()
	delete(s.clients, client.id)
	s.mutex.Unlock()
}

func writeWithTimeout(ctx context.Context, c *websocket.Conn, f frame) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	kind := websocket.MessageText
	if f.binary {
		kind = websocket.MessageBinary
	}
	return c.Write(ctx, kind, f.data)
}

// HandleClient owns one connection from accept to close.
func (s *WSIngress) HandleClient(ctx context.Context, c *websocket.Conn, host string) error {
	client := &WSClient{
		id:      uuid.New().String(),
		session: utils.NewSession(ctx),
		send:    make(chan frame, sendQueueSize),
	}
	client.closeSlow = func() {
		c.Close(websocket.StatusPolicyViolation, "connection too slow to keep up with messages")
	}

	s.addClient(client)
	defer s.removeClient(client)

	logger := log.With().Str("sender", client.id).Str("host", host).Logger()
	logger.Info().Msg("sender connected")

	s.controller.HandleConnect(client.id)
	defer func() {
		s.controller.HandleDisconnect(client.id)
		logger.Info().Dur("duration", client.session.Elapsed()).Msg("sender disconnected")
	}()

	defer client.session.Cancel()

	go func() {
		for {
			select {
			case <-client.session.Ctx().Done():
				return
			case f := <-client.send:
				if err := writeWithTimeout(client.session.Ctx(), c, f); err != nil {
					client.session.Cancel()
					return
				}
			}
		}
	}()

	limiter := rate.NewLimiter(rate.Limit(messageRate), messageBurst)
	for {
		if err := limiter.Wait(client.session.Ctx()); err != nil {
			return err
		}

		kind, data, err := c.Read(client.session.Ctx())
		if err != nil {
			return err
		}

		binary := kind == websocket.MessageBinary
		if binary {
			client.binary.Store(true)
		}

		s.controller.HandleMessage(client.id, data, binary)
	}
}

// Router builds the HTTP surface: the websocket endpoint plus small
// read-only views onto the session.
func (s *WSIngress) Router() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)

	router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to accept websocket connection")
			return
		}

		err = s.HandleClient(r.Context(), c, r.RemoteAddr)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Debug().Err(err).Msg("sender connection ended")
		}
		c.Close(websocket.StatusNormalClosure, "")
	})

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"state": string(s.controller.State()),
		})
	})

	router.Get("/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.controller.Rows())
	})

	return router
}

// Serve runs the HTTP server until the context ends.
func (s *WSIngress) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	s.httpServer = server

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("ingress listening")
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
