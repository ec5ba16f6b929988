package services

import (
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog"
)

// MatchNotifier delivers fire-and-forget push events. Failures are logged and
// never block the transaction that triggered them.
type MatchNotifier interface {
	NotifyMatch(userID, otherUserName, matchID string)
	NotifyMessage(userID, senderName, text, conversationID string)
}

// NotificationService broadcasts to per-user Socket.IO rooms. Clients join
// their room with a "register" event on connect.
type NotificationService struct {
	Server *socketio.Server
	Logger zerolog.Logger
}

var _ MatchNotifier = (*NotificationService)(nil)

func userRoom(userID string) string { return "user:" + userID }

func (ns *NotificationService) NotifyMatch(userID, otherUserName, matchID string) {
	delivered := ns.Server.BroadcastToRoom("/", userRoom(userID), "matchCreated", map[string]string{
		"matchId":   matchID,
		"otherName": otherUserName,
	})
	if !delivered {
		ns.Logger.Debug().Str("userId", userID).Str("matchId", matchID).Msg("match notification had no connected listeners")
	}
}

func (ns *NotificationService) NotifyMessage(userID, senderName, text, conversationID string) {
	delivered := ns.Server.BroadcastToRoom("/", userRoom(userID), "newMessage", map[string]string{
		"conversationId": conversationID,
		"senderName":     senderName,
		"text":           text,
	})
	if !delivered {
		ns.Logger.Debug().Str("userId", userID).Str("conversationId", conversationID).Msg("message notification had no connected listeners")
	}
}
