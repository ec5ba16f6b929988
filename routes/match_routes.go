package routes

import (
	"spark_server/controllers"
	"spark_server/services"

	"github.com/gorilla/mux"
)

// RegisterMatchRoutes sets up routes for match operations under /api/matches
func RegisterMatchRoutes(r *mux.Router, matches *services.MatchService) {
	controller := controllers.NewMatchController(matches)

	matchRouter := r.PathPrefix("/api/matches").Subrouter()
	matchRouter.HandleFunc("/{userId}", controller.HandleGetMatches).Methods("GET")
	matchRouter.HandleFunc("/unmatch", controller.HandleUnmatch).Methods("POST")
	matchRouter.HandleFunc("/animationPlayed", controller.HandleAnimationPlayed).Methods("POST")
}
