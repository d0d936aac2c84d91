package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/wishly/internal/config"
	"github.com/iliyamo/wishly/internal/queue"
)

const maxInboundMessage = 4096

// Server upgrades HTTP requests to websocket subscriptions on a Hub.
//
// Liveness is checked twice: the server sends websocket pings every
// PingInterval and drops a connection that stays silent for PongWait,
// and it answers the application heartbeat {"type":"ping"} with
// {"type":"pong"} for browsers, which cannot see protocol pongs.
type Server struct {
	hub      *Hub
	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// NewServer returns a Server.  allowedOrigins lists the browser origins
// accepted by the upgrade; an empty list accepts any origin.
func NewServer(hub *Hub, cfg config.RealtimeConfig, allowedOrigins []string, log *logrus.Entry) *Server {
	allowed := map[string]bool{}
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Server{
		hub: hub,
		cfg: cfg,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed[origin] || allowed["*"]
			},
		},
	}
}

// Serve upgrades the request and pumps events for wishlistID until the
// client goes away.  It blocks for the lifetime of the connection.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, wishlistID string) error {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	sub := s.hub.Subscribe(wishlistID)
	log := s.log.WithField("wishlist_id", wishlistID)
	log.Debug("realtime: subscriber connected")

	pongs := make(chan struct{}, 1)
	done := make(chan struct{})
	go s.writePump(conn, sub, pongs, done)

	s.readPump(conn, pongs)
	sub.Close()
	<-done
	log.Debug("realtime: subscriber disconnected")
	return nil
}

// readPump consumes client frames.  Any frame counts as a sign of life.
func (s *Server) readPump(conn *websocket.Conn, pongs chan<- struct{}) {
	conn.SetReadLimit(maxInboundMessage)
	extend := func() { _ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait)) }
	extend()
	conn.SetPongHandler(func(string) error { extend(); return nil })
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		extend()
		var msg struct {
			Type queue.EventType `json:"type"`
		}
		if json.Unmarshal(data, &msg) == nil && msg.Type == queue.Ping {
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
	}
}

// writePump is the only goroutine writing to conn.
func (s *Server) writePump(conn *websocket.Conn, sub *Subscription, pongs <-chan struct{}, done chan<- struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		close(done)
	}()
	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		return conn.WriteJSON(v)
	}
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(s.cfg.WriteTimeout))
				return
			}
			if err := write(ev); err != nil {
				sub.Close()
				return
			}
		case <-pongs:
			if err := write(queue.Event{Type: queue.Pong, SentAt: time.Now().UTC()}); err != nil {
				sub.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				sub.Close()
				return
			}
		}
	}
}
