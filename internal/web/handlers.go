package web

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/imaging"
	"outfit-studio/internal/orchestrator"
	"outfit-studio/internal/session"
)

type (
	StyleResponse struct {
		ID          string           `json:"id"`
		Label       string           `json:"label"`
		Category    catalog.Category `json:"category"`
		Description string           `json:"description,omitempty"`
	}

	SessionResponse struct {
		ID       string                `json:"id"`
		HasImage bool                  `json:"has_image"`
		Run      orchestrator.Snapshot `json:"run"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}
)

func (s *Server) handleListStyles(w http.ResponseWriter, r *http.Request) {
	styles := s.catalog.List()
	if cat := r.URL.Query().Get("category"); cat != "" {
		parsed, ok := catalog.ParseCategory(cat)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "unknown category")
			return
		}
		styles = s.catalog.FilterByCategory(parsed)
	}

	out := make([]StyleResponse, 0, len(styles))
	for _, st := range styles {
		out = append(out, StyleResponse{ID: st.ID, Label: st.Label, Category: st.Category, Description: st.Description})
	}
	render.JSON(w, r, out)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, sessionResponse(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, sessionResponse(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "id")) {
		writeError(w, r, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "missing image")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "failed to read image")
		return
	}

	img, err := imaging.Prepare(raw, header.Header.Get("Content-Type"), s.prepare)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sess.SetImage(img)
	s.logger.Info("image captured", "session_id", sess.ID, "mime", img.MimeType, "bytes", len(img.Data))
	render.JSON(w, r, sessionResponse(sess))
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(s.baseCtx, s.runTimeout)
	results, err := sess.Orchestrator().Start(ctx, sess.Image())
	if err != nil {
		cancel()
		switch {
		case errors.Is(err, orchestrator.ErrNoSourceImage):
			writeError(w, r, http.StatusBadRequest, "upload an image first")
		case errors.Is(err, orchestrator.ErrRunInProgress):
			writeError(w, r, http.StatusConflict, "a run is already in progress")
		default:
			writeError(w, r, http.StatusInternalServerError, err.Error())
		}
		return
	}

	go func(id string) {
		defer cancel()
		res := <-results
		if res.Err != nil && !errors.Is(res.Err, orchestrator.ErrRunReset) {
			s.logger.Error("run failed", "session_id", id, "run_id", res.Snapshot.RunID, "err", res.Err)
			return
		}
		s.logger.Info("run finished",
			"session_id", id,
			"run_id", res.Snapshot.RunID,
			"status", res.Snapshot.Status,
			"artifacts", len(res.Snapshot.Artifacts),
			"total", res.Snapshot.Total,
		)
	}(sess.ID)

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, sessionResponse(sess))
}

func (s *Server) handleResetRun(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Clear()
	render.JSON(w, r, sessionResponse(sess))
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

func sessionResponse(sess *session.Session) SessionResponse {
	return SessionResponse{
		ID:       sess.ID,
		HasImage: !sess.Image().Empty(),
		Run:      sess.Orchestrator().Snapshot(),
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}
