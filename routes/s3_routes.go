package routes

import (
	"spark_server/controllers"
	"spark_server/services"

	"github.com/gorilla/mux"
)

// RegisterS3Routes sets up routes for photo upload/download under /api/s3
func RegisterS3Routes(r *mux.Router, s3 *services.S3Service, profiles *services.ProfileService) {
	controller := controllers.NewS3Controller(s3, profiles)

	s3Router := r.PathPrefix("/api/s3").Subrouter()
	s3Router.HandleFunc("/generate-presigned-url", controller.HandleGeneratePresignedURL).Methods("POST")
	s3Router.HandleFunc("/get-read-url", controller.HandleGetReadURL).Methods("POST")
	s3Router.HandleFunc("/confirm-upload", controller.HandleConfirmUpload).Methods("POST")
}
