package controllers

import (
	"net/http"

	"spark_server/services"
)

// S3Controller issues presigned photo URLs and records completed uploads.
type S3Controller struct {
	S3       *services.S3Service
	Profiles *services.ProfileService
}

func NewS3Controller(s3 *services.S3Service, profiles *services.ProfileService) *S3Controller {
	return &S3Controller{S3: s3, Profiles: profiles}
}

// HandleGeneratePresignedURL returns a presigned PUT URL for a photo upload.
func (c *S3Controller) HandleGeneratePresignedURL(w http.ResponseWriter, r *http.Request) {
	var request struct {
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
	}
	if !decodeBody(w, r, &request) {
		return
	}

	url, key, err := c.S3.GenerateUploadURL(r.Context(), request.FileName, request.FileType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url, "key": key})
}

// HandleGetReadURL returns a presigned GET URL for a stored photo.
func (c *S3Controller) HandleGetReadURL(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Key string `json:"key"`
	}
	if !decodeBody(w, r, &request) {
		return
	}

	url, err := c.S3.GenerateReadURL(r.Context(), request.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// HandleConfirmUpload records a completed upload on the profile.
func (c *S3Controller) HandleConfirmUpload(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UserID string `json:"userId"`
		Key    string `json:"key"`
	}
	if !decodeBody(w, r, &request) {
		return
	}

	if err := c.Profiles.SetHasPhoto(r.Context(), request.UserID, request.Key); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
