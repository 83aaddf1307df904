package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/CreativeUnicorns/prefer"
)

// prefView is the JSON form of a pref.
type prefView struct {
	Key     string           `json:"key"`
	Kind    prefer.ValueKind `json:"kind"`
	Value   any              `json:"value"`
	Default any              `json:"default"`
	Title   string           `json:"title,omitempty"`
	Summary string           `json:"summary,omitempty"`
}

// groupView is the JSON form of a group.
type groupView struct {
	Type    string     `json:"type"`
	Title   string     `json:"title,omitempty"`
	Summary string     `json:"summary,omitempty"`
	Prefs   []prefView `json:"prefs"`
}

// setPrefRequest is the body of PUT /prefs/{key}.
type setPrefRequest struct {
	Value json.RawMessage `json:"value"`
}

func (s *Server) viewPref(ctx context.Context, pref prefer.Preference) (prefView, error) {
	value, err := pref.AnyValue(ctx)
	if err != nil {
		return prefView{}, err
	}
	meta := pref.Meta()
	return prefView{
		Key:     pref.Key().String(),
		Kind:    pref.Kind(),
		Value:   value,
		Default: pref.AnyDefault(),
		Title:   meta.Title,
		Summary: meta.Summary,
	}, nil
}

func (s *Server) viewGroup(ctx context.Context, g *prefer.PrefGroup) (groupView, error) {
	meta := g.Meta()
	view := groupView{
		Type:    g.KeyType().Name(),
		Title:   meta.Title,
		Summary: meta.Summary,
		Prefs:   []prefView{},
	}
	for _, pref := range g.Prefs() {
		pv, err := s.viewPref(ctx, pref)
		if err != nil {
			return groupView{}, fmt.Errorf("failed to read %s: %w", pref.Key(), err)
		}
		view.Prefs = append(view.Prefs, pv)
	}
	return view, nil
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	views := []groupView{}
	for _, g := range s.prefer.Groups() {
		view, err := s.viewGroup(r.Context(), g)
		if err != nil {
			s.respondWithError(w, r, http.StatusInternalServerError, "Failed to read group", err)
			return
		}
		views = append(views, view)
	}
	s.respondWithJSON(w, r, http.StatusOK, views)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, ok := s.groupParam(w, r)
	if !ok {
		return
	}
	view, err := s.viewGroup(r.Context(), g)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Failed to read group", err)
		return
	}
	s.respondWithJSON(w, r, http.StatusOK, view)
}

// handleGroupEvents streams one server-sent event per change in the group.
func (s *Server) handleGroupEvents(w http.ResponseWriter, r *http.Request) {
	g, ok := s.groupParam(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondWithError(w, r, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	// The stream ends with the request or with server shutdown.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stopOnShutdown := context.AfterFunc(s.streams, cancel)
	defer stopOnShutdown()

	changes, err := g.Observe(ctx)
	if err != nil {
		s.respondWithError(w, r, http.StatusServiceUnavailable, "Failed to observe group", err)
		return
	}

	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for pref := range changes {
		view, err := s.viewPref(r.Context(), pref)
		if err != nil {
			s.logger.Warn("Failed to read changed pref", "key", pref.Key().String(), "error", err)
			continue
		}
		data, err := json.Marshal(view)
		if err != nil {
			s.logger.Error("Failed to marshal pref event", "key", view.Key, "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (s *Server) handleGetPref(w http.ResponseWriter, r *http.Request) {
	pref, ok := s.prefParam(w, r)
	if !ok {
		return
	}
	view, err := s.viewPref(r.Context(), pref)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Failed to read pref", err)
		return
	}
	s.respondWithJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleSetPref(w http.ResponseWriter, r *http.Request) {
	pref, ok := s.prefParam(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var req setPrefRequest
	if err := decoder.Decode(&req); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	text, err := valueText(pref.Kind(), req.Value)
	if err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid pref value", err)
		return
	}

	if err := pref.SetString(r.Context(), text); err != nil {
		if errors.Is(err, prefer.ErrInvalidValue) {
			s.respondWithError(w, r, http.StatusBadRequest, "Invalid pref value", err)
		} else {
			s.respondWithError(w, r, http.StatusInternalServerError, "Failed to store pref", err)
		}
		return
	}

	view, err := s.viewPref(r.Context(), pref)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Failed to read pref", err)
		return
	}
	s.respondWithJSON(w, r, http.StatusOK, view)
}

// handleResetPref removes the stored value so the pref reads its default.
func (s *Server) handleResetPref(w http.ResponseWriter, r *http.Request) {
	pref, ok := s.prefParam(w, r)
	if !ok {
		return
	}
	if err := s.prefer.Remove(r.Context(), pref.Key()); err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Failed to reset pref", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) groupParam(w http.ResponseWriter, r *http.Request) (*prefer.PrefGroup, bool) {
	name, err := url.PathUnescape(chi.URLParam(r, "type"))
	if err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid group name", err)
		return nil, false
	}
	g, ok := s.prefer.FindGroupByName(name)
	if !ok {
		s.respondWithError(w, r, http.StatusNotFound, "Group not found", nil)
		return nil, false
	}
	return g, true
}

func (s *Server) prefParam(w http.ResponseWriter, r *http.Request) (prefer.Preference, bool) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid pref key", err)
		return nil, false
	}
	pref, err := s.prefer.FindPref(key)
	if err != nil {
		if errors.Is(err, prefer.ErrUnknownKey) || errors.Is(err, prefer.ErrNotFound) {
			s.respondWithError(w, r, http.StatusNotFound, "Pref not found", err)
		} else {
			s.respondWithError(w, r, http.StatusInternalServerError, "Failed to find pref", err)
		}
		return nil, false
	}
	return pref, true
}

// valueText converts a JSON value to the text form parsed by Preference.SetString.
// String prefs require a JSON string; other kinds take a bare literal or a string.
func valueText(kind prefer.ValueKind, raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("%w: value is required", prefer.ErrInvalidValue)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %v", prefer.ErrInvalidValue, err)
		}
		return s, nil
	}
	if kind == prefer.KindString {
		return "", fmt.Errorf("%w: %s pref needs a JSON string", prefer.ErrInvalidValue, kind)
	}
	if raw[0] == '{' || raw[0] == '[' {
		return "", fmt.Errorf("%w: %s pref needs a scalar", prefer.ErrInvalidValue, kind)
	}
	return string(raw), nil
}

// respondWithError is a helper to send JSON error responses.
func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	resp := map[string]interface{}{
		"error": map[string]string{
			"message": message,
		},
	}
	if err != nil {
		resp["error"].(map[string]string)["details"] = err.Error()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("API Error", "status", status, "message", message, "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("API Error", "status", status, "message", message, "path", r.URL.Path, "error", err)
	}
	respondWithJSONRaw(w, status, resp)
}

// respondWithJSON is a helper to send JSON responses.
func (s *Server) respondWithJSON(w http.ResponseWriter, _ *http.Request, status int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("Failed to marshal JSON response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"Failed to marshal response"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// respondWithJSONRaw writes an already-built payload.
func respondWithJSONRaw(w http.ResponseWriter, status int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"Critical: Failed to marshal error response"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
