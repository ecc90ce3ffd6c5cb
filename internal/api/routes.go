package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/camtrap/camtrap-agent/internal/analytics"
	"github.com/camtrap/camtrap-agent/internal/catalog"
	"github.com/camtrap/camtrap-agent/internal/config"
	"github.com/camtrap/camtrap-agent/internal/gallery"
	"github.com/camtrap/camtrap-agent/internal/sequence"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/deployments", listDeploymentsHandler(cfg))
		r.Post("/deployments", addDeploymentHandler(cfg))
		r.Delete("/deployments/{id}", deleteDeploymentHandler(cfg))
		r.Post("/scan", scanHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Post("/observations", createObservationsHandler(cfg))
		r.Get("/settings", getSettingsHandler(cfg))
		r.Put("/settings", putSettingsHandler(cfg))
		r.Get("/analytics/species", speciesHandler(cfg))
		r.Get("/analytics/timeseries", timeseriesHandler(cfg))
		r.Get("/analytics/heatmap", heatmapHandler(cfg))
		r.Get("/analytics/activity", activityHandler(cfg))
		r.Get("/gallery", galleryHandler(cfg))
		r.Get("/media/file", mediaFileHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  config.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		deployments, _ := cfg.CatalogService.GetDeployments(ctx)
		mediaCount, _ := cfg.CatalogService.CountMedia(ctx)
		jobs, _ := cfg.Repository.ListJobs(ctx, 10)

		state := "idle"
		var activeJob *JobResponse
		jobsRunning := 0
		lastError := ""

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		for _, j := range jobs {
			if j.Status == catalog.JobStatusRunning {
				state = "scanning"
				resp := JobToResponse(j)
				activeJob = &resp
				jobsRunning++
			}
			if j.Status == catalog.JobStatusFailed && lastError == "" {
				lastError = j.Error
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}

		WriteJSON(w, http.StatusOK, StatusResponse{
			State:            state,
			LastError:        lastError,
			DeploymentsCount: len(deployments),
			MediaCount:       mediaCount,
			JobsRunning:      jobsRunning,
			ActiveJob:        activeJob,
		})
	}
}

func listDeploymentsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deployments, err := cfg.CatalogService.GetDeployments(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list deployments", "INTERNAL_ERROR")
			return
		}

		resp := DeploymentsResponse{Deployments: make([]DeploymentResponse, len(deployments))}
		for i, d := range deployments {
			resp.Deployments[i] = DeploymentToResponse(d)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func addDeploymentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddDeploymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		deployment, err := cfg.CatalogService.AddDeployment(
			r.Context(), req.Path, req.Name, req.Latitude, req.Longitude, req.LocationName)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusCreated, AddDeploymentResponse{DeploymentID: deployment.ID})
	}
}

func deleteDeploymentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "deployment id required", "BAD_REQUEST")
			return
		}

		if err := cfg.CatalogService.RemoveDeployment(r.Context(), id); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func scanHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.DeploymentID == "" {
			deployments, err := cfg.CatalogService.GetDeployments(r.Context())
			if err != nil {
				WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
				return
			}
			if len(deployments) == 0 {
				WriteError(w, http.StatusBadRequest, "no deployments configured", "BAD_REQUEST")
				return
			}
			req.DeploymentID = deployments[0].ID
		}

		job, err := cfg.CatalogService.ScanDeployment(r.Context(), req.DeploymentID)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusAccepted, ScanResponse{JobID: job.ID})
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Repository.ListJobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Repository.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func createObservationsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ObservationsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if len(req.Observations) == 0 {
			WriteError(w, http.StatusBadRequest, "observations are required", "BAD_REQUEST")
			return
		}

		obs := make([]catalog.Observation, len(req.Observations))
		for i, o := range req.Observations {
			obs[i] = catalog.Observation{
				MediaID:        o.MediaID,
				ScientificName: o.ScientificName,
				Count:          o.Count,
				Confidence:     o.Confidence,
			}
		}

		if err := cfg.CatalogService.RecordObservations(r.Context(), obs); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusCreated, ObservationsResponse{Created: len(obs)})
	}
}

func getSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gap, err := cfg.CatalogService.GapSeconds(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, SettingsResponse{GapSeconds: gap})
	}
}

func putSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.GapSeconds == nil {
			WriteError(w, http.StatusBadRequest, "gap_seconds is required", "BAD_REQUEST")
			return
		}

		if err := cfg.CatalogService.SetGapSeconds(r.Context(), *req.GapSeconds); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusOK, SettingsResponse{GapSeconds: *req.GapSeconds})
	}
}

// analyticsQuery resolves the shared analytics query parameters. The gap
// parameter overrides the stored setting for this request only; zero selects
// event-based grouping.
func analyticsQuery(cfg ServerConfig, r *http.Request) (catalog.ObservationFilter, sequence.Grouping, error) {
	q := r.URL.Query()

	filter := catalog.ObservationFilter{
		DeploymentID: q.Get("deployment_id"),
		Species:      q["species"],
	}

	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return filter, sequence.Grouping{}, err
		}
		filter.From = &t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return filter, sequence.Grouping{}, err
		}
		filter.To = &t
	}

	gapSecs, err := cfg.CatalogService.GapSeconds(r.Context())
	if err != nil {
		return filter, sequence.Grouping{}, err
	}
	if g := q.Get("gap"); g != "" {
		secs, err := strconv.Atoi(g)
		if err != nil || secs < 0 {
			return filter, sequence.Grouping{}, errors.New("invalid gap parameter")
		}
		gapSecs = secs
	}

	return filter, sequence.GroupingForGapSeconds(gapSecs), nil
}

func speciesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, grouping, err := analyticsQuery(cfg, r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		obs, err := cfg.Repository.ObservationsFiltered(r.Context(), filter)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		counts := analytics.SpeciesDistribution(obs, grouping)
		WriteJSON(w, http.StatusOK, SpeciesResponse{Species: SpeciesCountsToResponse(counts)})
	}
}

func timeseriesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, grouping, err := analyticsQuery(cfg, r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		obs, err := cfg.Repository.ObservationsFiltered(r.Context(), filter)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		ts := analytics.WeeklyTimeseries(obs, grouping)
		resp := TimeseriesResponse{
			Points:     make([]TimeseriesPointResponse, len(ts.Points)),
			AllSpecies: SpeciesCountsToResponse(ts.AllSpecies),
		}
		for i, p := range ts.Points {
			resp.Points[i] = TimeseriesPointResponse{
				Date:   p.Date.Format("2006-01-02"),
				Counts: p.Counts,
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func heatmapHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, grouping, err := analyticsQuery(cfg, r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		obs, err := cfg.Repository.ObservationsFiltered(r.Context(), filter)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		heatmap := analytics.LocationHeatmap(obs, grouping)
		resp := HeatmapResponse{Species: make(map[string][]HeatPointResponse, len(heatmap))}
		for species, points := range heatmap {
			out := make([]HeatPointResponse, len(points))
			for i, p := range points {
				out[i] = HeatPointResponse{
					Latitude:     p.Latitude,
					Longitude:    p.Longitude,
					Count:        p.Count,
					LocationName: p.LocationName,
				}
			}
			resp.Species[species] = out
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func activityHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, grouping, err := analyticsQuery(cfg, r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		selected := r.URL.Query()["species"]
		obs, err := cfg.Repository.ObservationsFiltered(r.Context(), filter)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		hours := analytics.HourlyActivity(obs, grouping, selected)
		resp := ActivityResponse{Hours: make([]HourActivityResponse, len(hours))}
		for i, h := range hours {
			resp.Hours[i] = HourActivityResponse{Hour: h.Hour, Counts: h.Counts}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func galleryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		limit := gallery.DefaultLimit
		if l := q.Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 1 {
				WriteError(w, http.StatusBadRequest, "invalid limit parameter", "BAD_REQUEST")
				return
			}
			limit = n
		}

		gapSecs, err := cfg.CatalogService.GapSeconds(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if g := q.Get("gap"); g != "" {
			secs, err := strconv.Atoi(g)
			if err != nil || secs < 0 {
				WriteError(w, http.StatusBadRequest, "invalid gap parameter", "BAD_REQUEST")
				return
			}
			gapSecs = secs
		}

		paginator := gallery.NewPaginator(cfg.Repository, sequence.GroupingForGapSeconds(gapSecs))
		page, err := paginator.Page(r.Context(), q.Get("cursor"), limit)
		if err != nil {
			if errors.Is(err, gallery.ErrInvalidCursor) {
				WriteError(w, http.StatusBadRequest, "invalid cursor", "BAD_REQUEST")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		resp := GalleryResponse{
			Sequences:  make([]SequenceResponse, len(page.Sequences)),
			NextCursor: page.NextCursor,
		}
		for i, s := range page.Sequences {
			resp.Sequences[i] = SequenceToResponse(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func mediaFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaID := r.URL.Query().Get("media_id")
		if mediaID == "" {
			WriteError(w, http.StatusBadRequest, "media_id is required", "BAD_REQUEST")
			return
		}

		media, err := cfg.Repository.GetMedia(r.Context(), mediaID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if media == nil {
			WriteError(w, http.StatusNotFound, "media not found", "NOT_FOUND")
			return
		}

		deployment, _ := cfg.CatalogService.GetDeployment(r.Context(), media.DeploymentID)
		if deployment != nil && !deployment.Present {
			WriteError(w, http.StatusNotFound,
				"file not available - deployment folder '"+deployment.Name+"' is disconnected",
				"DEPLOYMENT_DISCONNECTED")
			return
		}

		if err := cfg.PlaybackServer.ServeFile(w, r, media.Path); err != nil {
			cfg.Logger.Error("media serve error", "error", err, "media_id", mediaID)
		}
	}
}
