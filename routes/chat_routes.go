package routes

import (
	"spark_server/controllers"
	"spark_server/services"

	"github.com/gorilla/mux"
)

// RegisterChatRoutes sets up routes for conversations under /api/chat
func RegisterChatRoutes(r *mux.Router, chat *services.ChatService) {
	controller := controllers.NewChatController(chat)

	chatRouter := r.PathPrefix("/api/chat").Subrouter()
	chatRouter.HandleFunc("/conversations/{conversationId}", controller.HandleGetConversation).Methods("GET")
	chatRouter.HandleFunc("/conversations/{conversationId}/messages", controller.HandleGetMessages).Methods("GET")
	chatRouter.HandleFunc("/messages", controller.HandleSendMessage).Methods("POST")
	chatRouter.HandleFunc("/markRead", controller.HandleMarkRead).Methods("POST")
}
