package controllers

import (
	"net/http"
	"strconv"

	"spark_server/services"

	"github.com/gorilla/mux"
)

// ChatController handles conversation reads and message sends.
type ChatController struct {
	Chat *services.ChatService
}

func NewChatController(chat *services.ChatService) *ChatController {
	return &ChatController{Chat: chat}
}

// HandleGetConversation fetches a conversation summary.
func (c *ChatController) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["conversationId"]
	conversation, err := c.Chat.GetConversation(r.Context(), conversationID)
	if err != nil {
		writeError(w, err)
		return
	}
	if conversation == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
		return
	}
	writeJSON(w, http.StatusOK, conversation)
}

// HandleGetMessages fetches messages for a conversation, newest first.
func (c *ChatController) HandleGetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["conversationId"]
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	messages, err := c.Chat.GetMessages(r.Context(), conversationID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// HandleSendMessage stores a message and notifies the recipient.
func (c *ChatController) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ConversationID string `json:"conversationId"`
		SenderID       string `json:"senderId"`
		Content        string `json:"content"`
	}
	if !decodeBody(w, r, &request) {
		return
	}

	message, err := c.Chat.SendMessage(r.Context(), request.ConversationID, request.SenderID, request.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

// HandleMarkRead resets the caller's unread counter.
func (c *ChatController) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ConversationID string `json:"conversationId"`
		UserID         string `json:"userId"`
	}
	if !decodeBody(w, r, &request) {
		return
	}

	if err := c.Chat.MarkConversationRead(r.Context(), request.ConversationID, request.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
