package config

import "time"

// RealtimeConfig tunes the websocket side of the wishlist channel.
//
// PingInterval is how often the server sends a websocket ping; PongWait is
// how long it waits for any inbound frame (client heartbeat, pong) before
// dropping the connection.  SendBuffer is the per-subscriber queue length;
// a subscriber whose queue is full misses the event and relies on resync.
type RealtimeConfig struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

func loadRealtime(e *env) RealtimeConfig {
	cfg := RealtimeConfig{
		PingInterval: e.duration("WS_PING_INTERVAL", 25*time.Second),
		PongWait:     e.duration("WS_PONG_WAIT", 60*time.Second),
		WriteTimeout: e.duration("WS_WRITE_TIMEOUT", 10*time.Second),
		SendBuffer:   e.integer("WS_SEND_BUFFER", 32),
	}
	if cfg.PongWait <= cfg.PingInterval {
		cfg.PongWait = cfg.PingInterval * 2
	}
	if cfg.SendBuffer < 1 {
		cfg.SendBuffer = 1
	}
	return cfg
}
