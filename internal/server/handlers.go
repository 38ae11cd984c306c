package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/ppiankov/glimpse/internal/discover"
	"github.com/ppiankov/glimpse/internal/model"
	"github.com/ppiankov/glimpse/internal/session"
	"github.com/ppiankov/glimpse/internal/settings"
)

const maxRequestBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type preloadRequest struct {
	URL      string          `json:"url"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

type preloadResponse struct {
	Enabled    bool                  `json:"enabled"`
	PageURL    string                `json:"page_url,omitempty"`
	Candidates []model.LinkCandidate `json:"candidates,omitempty"`
	Report     *model.PreloadReport  `json:"report,omitempty"`
}

type statsResponse struct {
	Active   bool                        `json:"active"`
	Cache    *model.CacheStats           `json:"cache,omitempty"`
	Outcomes map[model.OutcomeStatus]int `json:"outcomes,omitempty"`
}

type openSessionRequest struct {
	URL string `json:"url"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(dst)
}

// handlePreview serves the rewritten target page. The page parameter is the
// page the link was found on; links back to it are refused. When origin is
// set the preview is recorded as that origin's session.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("url")
	if !discover.Valid(target, q.Get("page")) {
		writeError(w, http.StatusBadRequest, "not a previewable link")
		return
	}

	start := time.Now()
	_, warm := s.scheduler.GetCachedContent(target)

	preview, err := s.pipeline.Previewer().Preview(r.Context(), target)
	if err != nil {
		s.metrics.RecordPreview("error", warm, time.Since(start))
		s.logger.Debugf("preview %s: %v", target, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("X-Glimpse-Warm", strconv.FormatBool(warm))
	h.Set("X-Glimpse-Cache", cacheState(preview.FromCache))
	h.Set("X-Glimpse-Final-URL", preview.FinalURL)
	if origin := q.Get("origin"); origin != "" {
		h.Set("X-Glimpse-Session", s.sessions.Open(origin, target).ID)
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(preview.HTML))
	s.metrics.RecordPreview("ok", warm, time.Since(start))
}

func cacheState(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// handlePreload loads the page described by the request and starts a fresh
// preload run over it. With ?wait=1 the response carries the finished report.
func (s *Server) handlePreload(w http.ResponseWriter, r *http.Request) {
	var req preloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	var doc discover.Document
	switch {
	case len(req.Snapshot) > 0:
		snap, err := discover.ParseSnapshot(bytes.NewReader(req.Snapshot))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		doc = snap
	case discover.Valid(req.URL, ""):
		d, err := s.pipeline.LoadDocument(r.Context(), req.URL, "")
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		doc = d
	default:
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL, or send a snapshot")
		return
	}

	s.mu.Lock()
	cfg := s.settings.PreloadConfig(s.config.Preload)
	s.doc = doc
	err := s.scheduler.Initialize(r.Context(), cfg, doc)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := preloadResponse{Enabled: cfg.Enabled, PageURL: doc.URL()}
	if !cfg.Enabled {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Candidates = s.scheduler.Candidates()

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		if err := s.scheduler.Wait(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		resp.Report = s.scheduler.Report()
		writeJSON(w, http.StatusOK, resp)
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	stats, ok := s.scheduler.Stats()
	if !ok {
		writeJSON(w, http.StatusOK, statsResponse{})
		return
	}

	resp := statsResponse{Active: true, Cache: &stats}
	if report := s.scheduler.Report(); report != nil {
		resp.Outcomes = report.Counts()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCacheClear stops the current run and empties both caches
func (s *Server) handleCacheClear(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.doc = nil
	s.scheduler.Destroy()
	s.mu.Unlock()

	if err := s.pipeline.Previewer().Purge(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Settings())
}

// handleSettingsPut merges the body over the current settings, saves them
// and restarts preloading for the current page with the new values.
func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	st := s.Settings()
	if err := decodeJSON(w, r, &st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings: "+err.Error())
		return
	}

	saved, err := s.store.Save(st)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.apply(r, saved)
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleSettingsReset(w http.ResponseWriter, r *http.Request) {
	saved, err := s.store.Reset()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.apply(r, saved)
	writeJSON(w, http.StatusOK, saved)
}

// apply makes st current and re-plans preloading for the current page
func (s *Server) apply(r *http.Request, st settings.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = st
	if s.doc == nil {
		return
	}
	if err := s.scheduler.Initialize(r.Context(), st.PreloadConfig(s.config.Preload), s.doc); err != nil {
		s.logger.Warnf("restart preload after settings change: %v", err)
	}
}

func (s *Server) handleSessionList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.List())
}

func (s *Server) handleSessionOpen(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if !discover.Valid(req.URL, "") {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	writeJSON(w, http.StatusCreated, s.sessions.Open(mux.Vars(r)["origin"], req.URL))
}

// handleSessionCloseOrigin always succeeds; closing nothing is not an error
func (s *Server) handleSessionCloseOrigin(w http.ResponseWriter, r *http.Request) {
	s.sessions.CloseOrigin(mux.Vars(r)["origin"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionClose(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !s.sessions.Close(vars["origin"], vars["id"]) {
		writeError(w, http.StatusNotFound, "no such preview")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionExpand(w http.ResponseWriter, r *http.Request) {
	target, err := s.sessions.Expand(mux.Vars(r)["origin"])
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": target})
}
