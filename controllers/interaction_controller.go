package controllers

import (
	"net/http"

	"spark_server/services"
)

// InteractionController handles like, dislike, and report requests.
type InteractionController struct {
	Interactions *services.InteractionService
	Matches      *services.MatchService
}

func NewInteractionController(interactions *services.InteractionService, matches *services.MatchService) *InteractionController {
	return &InteractionController{Interactions: interactions, Matches: matches}
}

// HandleLike records a like and reports whether it completed a match.
func (c *InteractionController) HandleLike(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UserID   string `json:"userId"`
		TargetID string `json:"targetId"`
	}
	if !decodeBody(w, r, &request) {
		return
	}

	outcome, err := c.Matches.HandleLike(r.Context(), request.UserID, request.TargetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// HandleDislike records a dislike with its 24h cooldown.
func (c *InteractionController) HandleDislike(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UserID   string `json:"userId"`
		TargetID string `json:"targetId"`
	}
	if !decodeBody(w, r, &request) {
		return
	}

	if err := c.Interactions.Dislike(r.Context(), request.UserID, request.TargetID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// HandleReport records a report and removes the target from the reporter's
// discovery.
func (c *InteractionController) HandleReport(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UserID   string `json:"userId"`
		TargetID string `json:"targetId"`
		Reason   string `json:"reason"`
	}
	if !decodeBody(w, r, &request) {
		return
	}

	if err := c.Interactions.ReportProfile(r.Context(), request.UserID, request.TargetID, request.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
