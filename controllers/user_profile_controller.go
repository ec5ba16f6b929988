package controllers

import (
	"net/http"

	"spark_server/models"
	"spark_server/services"

	"github.com/gorilla/mux"
)

// UserProfileController handles profile CRUD and location updates.
type UserProfileController struct {
	Profiles *services.ProfileService
}

func NewUserProfileController(profiles *services.ProfileService) *UserProfileController {
	return &UserProfileController{Profiles: profiles}
}

// HandleAddUserProfile creates a profile.
func (c *UserProfileController) HandleAddUserProfile(w http.ResponseWriter, r *http.Request) {
	var profile models.UserProfile
	if !decodeBody(w, r, &profile) {
		return
	}

	created, err := c.Profiles.AddUserProfile(r.Context(), profile)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleGetUserProfile fetches a profile by id.
func (c *UserProfileController) HandleGetUserProfile(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	profile, err := c.Profiles.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if profile == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "profile not found"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleUpdateProfile applies a partial profile update.
func (c *UserProfileController) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	var updates map[string]interface{}
	if !decodeBody(w, r, &updates) {
		return
	}

	updated, err := c.Profiles.UpdateProfile(r.Context(), userID, updates)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleUpdateLocation stores fresh coordinates and the derived spatial hash.
func (c *UserProfileController) HandleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	var request struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if !decodeBody(w, r, &request) {
		return
	}

	updated, err := c.Profiles.UpdateLocation(r.Context(), userID, request.Latitude, request.Longitude)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleDeleteUserProfile removes a profile.
func (c *UserProfileController) HandleDeleteUserProfile(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if err := c.Profiles.DeleteUserProfile(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
