// Package server exposes scraping and downloading over a small JSON API
// meant for a browser frontend that polls for progress.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"ytscrape/download"
	"ytscrape/progress"
	"ytscrape/scrape"
	"ytscrape/youtube"
)

// Scraper is the scrape side of the API.
type Scraper interface {
	Start(req scrape.Request) (string, error)
	Snapshot() progress.ScrapeSnapshot
}

// Downloader is the download side of the API.
type Downloader interface {
	Start(ids []string, format download.Format) (string, error)
	Snapshot() progress.DownloadSnapshot
	Files() ([]download.File, error)
	OutputDir() string
}

// Config configures the handler.
type Config struct {
	// AllowedOrigins are answered with CORS headers.
	AllowedOrigins []string
	Logger         *slog.Logger
}

// DefaultOrigins are the local frontend dev servers.
var DefaultOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// Server routes API requests to the scrape and download services.
type Server struct {
	scraper    Scraper
	downloader Downloader
	cfg        Config
	log        *slog.Logger
	mux        *http.ServeMux
}

// New creates a Server.
func New(s Scraper, d Downloader, cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	srv := &Server{scraper: s, downloader: d, cfg: cfg, log: log, mux: http.NewServeMux()}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /api/scrape", s.handleScrape)
	s.mux.HandleFunc("GET /api/scrape-progress", s.handleScrapeProgress)
	s.mux.HandleFunc("POST /api/download", s.handleDownload)
	s.mux.HandleFunc("GET /api/progress", s.handleProgress)
	s.mux.HandleFunc("GET /api/files", s.handleFiles)
	s.mux.HandleFunc("GET /api/output-dir", s.handleOutputDir)
}

// ServeHTTP applies CORS and request logging around the routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	if origin := r.Header.Get("Origin"); origin != "" && slices.Contains(s.cfg.AllowedOrigins, origin) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	s.mux.ServeHTTP(rec, r)
	s.log.Debug("request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", rec.status),
		slog.Duration("took", time.Since(start)))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type scrapeRequest struct {
	ChannelURL     string `json:"channel_url"`
	VideoType      string `json:"video_type"`
	TimeFrame      string `json:"time_frame"`
	ExcludeReplays bool   `json:"exclude_replays"`
}

type downloadRequest struct {
	VideoIDs []string `json:"video_ids"`
	Format   string   `json:"format"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "YouTube channel scraper API",
		"endpoints": map[string]string{
			"scrape":          "POST /api/scrape",
			"scrape_progress": "GET /api/scrape-progress",
			"download":        "POST /api/download",
			"progress":        "GET /api/progress",
			"files":           "GET /api/files",
			"output_dir":      "GET /api/output-dir",
		},
	})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	vt, err := youtube.ParseVideoType(req.VideoType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tf, err := youtube.ParseTimeFrame(req.TimeFrame)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID, err := s.scraper.Start(scrape.Request{
		Channel:        req.ChannelURL,
		Type:           vt,
		Frame:          tf,
		ExcludeReplays: req.ExcludeReplays,
	})
	switch {
	case errors.Is(err, scrape.ErrRunInProgress):
		writeError(w, http.StatusConflict, "scraping already in progress")
		return
	case errors.Is(err, youtube.ErrInvalidReference):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log.Error("start scrape", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Info("scrape requested", slog.String("channel", req.ChannelURL), slog.String("run_id", runID))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Scraping started",
		"status":  string(progress.StatusScraping),
		"run_id":  runID,
	})
}

func (s *Server) handleScrapeProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scraper.Snapshot())
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	format, err := download.ParseFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID, err := s.downloader.Start(req.VideoIDs, format)
	switch {
	case errors.Is(err, download.ErrRunInProgress):
		writeError(w, http.StatusConflict, "download already in progress")
		return
	case errors.Is(err, download.ErrNoVideos):
		writeError(w, http.StatusBadRequest, "no video IDs provided")
		return
	case err != nil:
		s.log.Error("start download", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"message": "Download started",
		"total":   s.downloader.Snapshot().Total,
		"run_id":  runID,
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.downloader.Snapshot())
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.downloader.Files()
	if err != nil {
		s.log.Error("list files", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if files == nil {
		files = []download.File{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files, "total": len(files)})
}

func (s *Server) handleOutputDir(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"output_directory": s.downloader.OutputDir()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
