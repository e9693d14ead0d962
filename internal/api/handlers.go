package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/mkessler/catalog-crawler/internal/crawler"
	"github.com/mkessler/catalog-crawler/internal/fetcher"
	"github.com/mkessler/catalog-crawler/internal/jobs"
	"github.com/mkessler/catalog-crawler/internal/proxy"
)

type Handlers struct {
	fetcher   crawler.PageFetcher
	pool      *proxy.Pool
	fetchOpts fetcher.Options
	jobs      *jobs.Manager
	logger    *slog.Logger
}

func NewHandlers(f crawler.PageFetcher, pool *proxy.Pool, opts fetcher.Options, jobs *jobs.Manager, logger *slog.Logger) *Handlers {
	return &Handlers{
		fetcher:   f,
		pool:      pool,
		fetchOpts: opts,
		jobs:      jobs,
		logger:    logger.With("component", "api"),
	}
}

type FetchRequest struct {
	URL         string `json:"url"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
}

type AttemptInfo struct {
	Proxy     string `json:"proxy"`
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type FetchResponse struct {
	Content  string        `json:"content,omitempty"`
	Proxy    string        `json:"proxy,omitempty"`
	Attempts []AttemptInfo `json:"attempts"`
	Error    string        `json:"error,omitempty"`
}

// Fetch runs one proxy-rotating fetch and returns the content together
// with the attempt log.
func (h *Handlers) Fetch(w http.ResponseWriter, r *http.Request) {
	var req FetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validURL(req.URL) {
		h.respondError(w, http.StatusBadRequest, "url is required and must be absolute")
		return
	}

	opts := h.fetchOpts
	if req.MaxAttempts > 0 {
		opts.MaxAttempts = req.MaxAttempts
	}

	res, err := h.fetcher.Fetch(r.Context(), req.URL, h.pool, opts)
	if err != nil {
		var exhausted *fetcher.ExhaustionError
		if errors.As(err, &exhausted) {
			h.respondJSON(w, http.StatusBadGateway, FetchResponse{
				Attempts: attemptInfos(exhausted.Attempts),
				Error:    exhausted.Error(),
			})
			return
		}
		h.logger.Error("fetch failed", "url", req.URL, "error", err)
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, FetchResponse{
		Content:  res.Content,
		Proxy:    res.Endpoint.Label(),
		Attempts: attemptInfos(res.Attempts),
	})
}

type CrawlRequest struct {
	StartURL string `json:"start_url"`
}

type CrawlResponse struct {
	JobID string `json:"job_id"`
}

// StartCrawl launches an async crawl job.
func (h *Handlers) StartCrawl(w http.ResponseWriter, r *http.Request) {
	var req CrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validURL(req.StartURL) {
		h.respondError(w, http.StatusBadRequest, "start_url is required and must be absolute")
		return
	}

	job := h.jobs.Start(req.StartURL)
	h.respondJSON(w, http.StatusAccepted, CrawlResponse{JobID: job.ID})
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := h.jobs.Get(id)
	if !ok {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	h.respondJSON(w, http.StatusOK, job)
}

func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.jobs.Cancel(id) {
		h.respondError(w, http.StatusConflict, "job not running")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type PoolResponse struct {
	Size    int      `json:"size"`
	Servers []string `json:"servers"`
}

func (h *Handlers) GetPool(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, PoolResponse{
		Size:    h.pool.Len(),
		Servers: h.pool.Servers(),
	})
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func attemptInfos(attempts []fetcher.Attempt) []AttemptInfo {
	out := make([]AttemptInfo, 0, len(attempts))
	for _, a := range attempts {
		info := AttemptInfo{
			Proxy:     a.Endpoint.Label(),
			OK:        a.Err == nil,
			LatencyMS: a.Latency.Milliseconds(),
		}
		if a.Err != nil {
			info.Error = a.Err.Error()
		}
		out = append(out, info)
	}
	return out
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, map[string]string{"error": msg})
}
