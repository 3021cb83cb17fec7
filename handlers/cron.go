package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"use60backend/middleware"
	"use60backend/usecases/dispatch"
	"use60backend/usecases/jobs"
	"use60backend/usecases/transcripts"
)

// CronHandler exposes every scheduled job as an authenticated POST endpoint.
// The platform scheduler hits these on a fixed cadence; operators hit them
// manually with a narrowing body.
type CronHandler struct {
	jobsUseCase      *jobs.JobsUseCase
	dispatchUseCase  *dispatch.DispatchUseCase
	transcriptWorker *transcripts.WorkerUseCase
}

func NewCronHandler(
	jobsUseCase *jobs.JobsUseCase,
	dispatchUseCase *dispatch.DispatchUseCase,
	transcriptWorker *transcripts.WorkerUseCase,
) *CronHandler {
	return &CronHandler{
		jobsUseCase:      jobsUseCase,
		dispatchUseCase:  dispatchUseCase,
		transcriptWorker: transcriptWorker,
	}
}

func (h *CronHandler) SetupEndpoints(router *mux.Router, auth *middleware.CronAuthMiddleware) {
	log.Printf("🚀 Registering cron endpoints")

	jobRoutes := map[string]func(context.Context, jobs.JobOptions) (jobs.JobResult, error){
		"/cron/daily-digest":    h.jobsUseCase.RunDailyDigest,
		"/cron/morning-brief":   h.jobsUseCase.RunMorningBrief,
		"/cron/meeting-prep":    h.jobsUseCase.RunMeetingPrep,
		"/cron/deal-momentum":   h.jobsUseCase.RunDealMomentum,
		"/cron/reengagement":    h.jobsUseCase.RunReengagement,
		"/cron/metrics-refresh": h.jobsUseCase.RunMetricsRefresh,
	}
	for path, run := range jobRoutes {
		router.HandleFunc(path, auth.WithAuth(h.jobEndpoint(run))).Methods("POST")
	}

	router.HandleFunc("/cron/drain-queue", auth.WithAuth(h.handleDrainQueue)).Methods("POST")
	router.HandleFunc("/cron/transcripts", auth.WithAuth(h.handleTranscriptTick)).Methods("POST")

	log.Printf("✅ All cron endpoints registered successfully")
}

// jobEndpoint adapts one job runner into an HTTP handler. An optional JSON
// body narrows the run to one target and flags it as a manual trigger.
func (h *CronHandler) jobEndpoint(
	run func(context.Context, jobs.JobOptions) (jobs.JobResult, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := parseJobOptions(r)
		if err != nil {
			writeJSONError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		result, err := run(r.Context(), opts)
		if err != nil {
			log.Printf("❌ Cron job %s failed: %v", r.URL.Path, err)
			writeJSONError(w, "job failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, result)
	}
}

func (h *CronHandler) handleDrainQueue(w http.ResponseWriter, r *http.Request) {
	result, err := h.dispatchUseCase.DrainDueNotifications(r.Context())
	if err != nil {
		log.Printf("❌ Queue drain failed: %v", err)
		writeJSONError(w, "drain failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func (h *CronHandler) handleTranscriptTick(w http.ResponseWriter, r *http.Request) {
	result, err := h.transcriptWorker.RunTick(r.Context())
	if err != nil {
		log.Printf("❌ Transcript worker tick failed: %v", err)
		writeJSONError(w, "transcript tick failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// parseJobOptions reads the optional narrowing body. Any narrowing target
// marks the run manual, which bypasses dedupe downstream.
func parseJobOptions(r *http.Request) (jobs.JobOptions, error) {
	var opts jobs.JobOptions

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return opts, err
	}
	if len(body) == 0 {
		return opts, nil
	}
	if err := json.Unmarshal(body, &opts); err != nil {
		if errors.Is(err, io.EOF) {
			return jobs.JobOptions{}, nil
		}
		return opts, err
	}
	if opts.OrgID != "" || opts.UserID != "" || opts.EntityID != "" {
		opts.Manual = true
	}
	return opts, nil
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		log.Printf("❌ Failed to encode error response: %v", err)
	}
}
