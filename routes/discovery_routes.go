package routes

import (
	"spark_server/controllers"
	"spark_server/services"

	"github.com/gorilla/mux"
)

// RegisterDiscoveryRoutes sets up routes for candidate discovery under /api/discover
func RegisterDiscoveryRoutes(r *mux.Router, discovery *services.DiscoveryService) {
	controller := controllers.NewDiscoveryController(discovery)

	discoveryRouter := r.PathPrefix("/api/discover").Subrouter()
	discoveryRouter.HandleFunc("", controller.HandleDiscover).Methods("POST")
}
