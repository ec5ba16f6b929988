package routes

import (
	"spark_server/controllers"
	"spark_server/services"

	"github.com/gorilla/mux"
)

// RegisterInteractionRoutes sets up routes for like/dislike/report under /api/interactions
func RegisterInteractionRoutes(r *mux.Router, interactions *services.InteractionService, matches *services.MatchService) {
	controller := controllers.NewInteractionController(interactions, matches)

	interactionRouter := r.PathPrefix("/api/interactions").Subrouter()
	interactionRouter.HandleFunc("/like", controller.HandleLike).Methods("POST")
	interactionRouter.HandleFunc("/dislike", controller.HandleDislike).Methods("POST")
	interactionRouter.HandleFunc("/report", controller.HandleReport).Methods("POST")
}
