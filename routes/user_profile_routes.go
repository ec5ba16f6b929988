package routes

import (
	"spark_server/controllers"
	"spark_server/services"

	"github.com/gorilla/mux"
)

// RegisterUserProfileRoutes sets up routes for profile operations under /api/profiles
func RegisterUserProfileRoutes(r *mux.Router, profiles *services.ProfileService) {
	controller := controllers.NewUserProfileController(profiles)

	profileRouter := r.PathPrefix("/api/profiles").Subrouter()
	profileRouter.HandleFunc("", controller.HandleAddUserProfile).Methods("POST")
	profileRouter.HandleFunc("/{userId}", controller.HandleGetUserProfile).Methods("GET")
	profileRouter.HandleFunc("/{userId}", controller.HandleUpdateProfile).Methods("PATCH")
	profileRouter.HandleFunc("/{userId}/location", controller.HandleUpdateLocation).Methods("PUT")
	profileRouter.HandleFunc("/{userId}", controller.HandleDeleteUserProfile).Methods("DELETE")
}
