package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/hireflow/internal/config"
	"github.com/garnizeh/hireflow/pkg/repository"
)

// Services are the collaborators the HTTP layer calls into.
type Services struct {
	Repo       *repository.Repository
	Intake     Submitter
	Assessment Assessor
	Merger     ResultMerger
	Blobs      BlobOpener
	DB         Pinger
}

func SetupRoutes(cfg *config.Config, version, buildTime string, svc Services) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Create handlers
	systemHandler := &SystemHandler{DB: svc.DB}
	authHandler := NewAuthHandler(cfg.Admin, cfg.JWTSecret, cfg.TokenDuration)
	jobsHandler := NewJobsHandler(svc.Repo.Job)
	appsHandler := NewApplicationsHandler(svc.Intake, svc.Repo.Application, svc.Repo.Job, cfg.MaxUploadMB<<20)
	assessmentHandler := NewAssessmentHandler(svc.Assessment)
	callbacksHandler := NewCallbacksHandler(svc.Merger)
	blobsHandler := NewBlobsHandler(svc.Blobs)

	admin := JWTAuthMiddlewareWithSecret(cfg.JWTSecret)
	analyzer := AnalyzerTokenMiddleware(cfg.Analyzers.Token)
	guard := func(mw mux.MiddlewareFunc, h http.HandlerFunc) http.Handler { return mw(h) }

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.HandleFunc("/api/auth/signin", authHandler.Signin).Methods("POST")

	// Candidate endpoints
	r.HandleFunc("/api/jobs", jobsHandler.ListJobs).Methods("GET")
	r.HandleFunc("/api/jobs/{id}", jobsHandler.GetJob).Methods("GET")
	r.HandleFunc("/api/applications", appsHandler.Submit).Methods("POST")
	r.HandleFunc("/api/jobs/{jobId}/mcqs", assessmentHandler.MCQs).Methods("GET")
	r.HandleFunc("/api/jobs/{jobId}/evaluate-mcqs", assessmentHandler.EvaluateMCQs).Methods("POST")

	// Admin endpoints
	r.Handle("/api/auth/signout", guard(admin, authHandler.Signout)).Methods("POST")
	r.Handle("/api/jobs", guard(admin, jobsHandler.CreateJob)).Methods("POST")
	r.Handle("/api/jobs/{id}", guard(admin, jobsHandler.DeleteJob)).Methods("DELETE")
	r.Handle("/api/jobs/{jobId}/applications", guard(admin, appsHandler.ListByJob)).Methods("GET")
	r.Handle("/api/jobs/{jobId}/applications/export", guard(admin, appsHandler.Export)).Methods("GET")
	r.Handle("/api/applications/{id}", guard(admin, appsHandler.Get)).Methods("GET")

	// Analyzer callbacks
	r.Handle("/api/applications/{id}/match-score", guard(analyzer, callbacksHandler.PutMatchScore)).Methods("PUT")
	r.Handle("/api/applications/{id}/behavioral-score", guard(analyzer, callbacksHandler.PutBehavioralScore)).Methods("PUT")
	r.Handle("/api/applications/{id}/classification", guard(analyzer, callbacksHandler.PutClassification)).Methods("PUT")
	r.Handle("/api/blobs/{ref}", guard(analyzer, blobsHandler.Get)).Methods("GET")

	return r
}
