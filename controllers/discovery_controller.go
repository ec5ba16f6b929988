package controllers

import (
	"net/http"

	"spark_server/models"
	"spark_server/services"
)

// DiscoveryController serves ranked candidate pages.
type DiscoveryController struct {
	Discovery *services.DiscoveryService
}

func NewDiscoveryController(discovery *services.DiscoveryService) *DiscoveryController {
	return &DiscoveryController{Discovery: discovery}
}

// HandleDiscover returns one page of ranked candidates for a user.
func (c *DiscoveryController) HandleDiscover(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UserID  string                  `json:"userId"`
		Filters models.DiscoveryFilters `json:"filters"`
		Page    int                     `json:"page"`
	}
	if !decodeBody(w, r, &request) {
		return
	}

	profiles, err := c.Discovery.GetDiscoverProfiles(r.Context(), request.UserID, request.Filters, request.Page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": profiles, "page": request.Page})
}
