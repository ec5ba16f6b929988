package controllers

import (
	"net/http"

	"spark_server/services"

	"github.com/gorilla/mux"
)

// MatchController handles match listing and teardown.
type MatchController struct {
	Matches *services.MatchService
}

func NewMatchController(matches *services.MatchService) *MatchController {
	return &MatchController{Matches: matches}
}

// HandleGetMatches lists the user's live matches.
func (c *MatchController) HandleGetMatches(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	matches, err := c.Matches.ListMatches(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"matches": matches})
}

// HandleUnmatch tears down a match and installs the bilateral cooldown.
func (c *MatchController) HandleUnmatch(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UserID   string `json:"userId"`
		TargetID string `json:"targetId"`
	}
	if !decodeBody(w, r, &request) {
		return
	}

	if err := c.Matches.Unmatch(r.Context(), request.UserID, request.TargetID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// HandleAnimationPlayed marks the match animation as shown.
func (c *MatchController) HandleAnimationPlayed(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UserID   string `json:"userId"`
		TargetID string `json:"targetId"`
	}
	if !decodeBody(w, r, &request) {
		return
	}

	if err := c.Matches.MarkAnimationPlayed(r.Context(), request.UserID, request.TargetID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
