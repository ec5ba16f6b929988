package socket

import (
	"context"

	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog"
)

// PresenceStore flips a user's online flag as sockets come and go.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID string, online bool) error
}

// NewSocketServer initializes the Socket.IO server. Clients send "register"
// with their user id after connecting to join their per-user room; push
// notifications are broadcast to those rooms.
func NewSocketServer(logger zerolog.Logger, presence PresenceStore) *socketio.Server {
	server := socketio.NewServer(nil)

	server.OnConnect("/", func(c socketio.Conn) error {
		logger.Debug().Str("socketId", c.ID()).Msg("socket connected")
		return nil
	})

	server.OnEvent("/", "register", func(c socketio.Conn, userID string) {
		if userID == "" {
			logger.Warn().Str("socketId", c.ID()).Msg("register without userId")
			return
		}
		c.Join("user:" + userID)
		c.SetContext(userID)
		if err := presence.SetOnline(context.Background(), userID, true); err != nil {
			logger.Warn().Err(err).Str("userId", userID).Msg("failed to mark user online")
		}
		logger.Debug().Str("socketId", c.ID()).Str("userId", userID).Msg("socket registered")
	})

	server.OnError("/", func(c socketio.Conn, err error) {
		logger.Warn().Err(err).Msg("socket error")
	})

	server.OnDisconnect("/", func(c socketio.Conn, reason string) {
		if userID, ok := c.Context().(string); ok && userID != "" {
			if err := presence.SetOnline(context.Background(), userID, false); err != nil {
				logger.Warn().Err(err).Str("userId", userID).Msg("failed to mark user offline")
			}
		}
		logger.Debug().Str("socketId", c.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	return server
}
