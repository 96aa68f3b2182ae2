package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/RyanBlaney/sonido-chords/acquire"
	"github.com/RyanBlaney/sonido-chords/logging"
	"github.com/RyanBlaney/sonido-chords/pipeline"
)

const (
	maxBodySize = 1 << 16

	msgSuccess           = "Audio processed successfully"
	msgFailed            = "Failed to process audio"
	msgURLRequired       = "URL is required"
	msgInvalidURL        = "Invalid YouTube URL"
	msgInvalidBody       = "Invalid JSON body"
	msgTimeoutSuggestion = "Try a shorter audio clip or use a different approach for long songs"
)

type readChordsRequest struct {
	URL string `json:"url"`
}

type readChordsResponse struct {
	Success     bool      `json:"success"`
	Chords      []string  `json:"chords"`
	Strengths   []float64 `json:"strengths"`
	Key         string    `json:"key"`
	Scale       string    `json:"scale"`
	KeyStrength float64   `json:"keyStrength"`
	BPM         float64   `json:"bpm"`
	Message     string    `json:"message"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadChords(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.WithContext(r.Context())

	var req readChordsRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err == nil && len(body) > 0 {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidBody, Details: err.Error()})
		return
	}

	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgURLRequired})
		return
	}

	if !acquire.IsYouTubeURL(url) {
		// still attempted: the id rules accept bare ids and other hosts
		logger.Warn("Locator is not a recognized YouTube URL", logging.Fields{"url": url})
	}

	res, err := s.processor.Process(r.Context(), url)
	if err != nil {
		status, payload := failure(err)
		if status == http.StatusBadRequest {
			logger.Warn("Rejected locator", logging.Fields{"url": url})
		} else {
			logger.Error(err, "Error processing audio", logging.Fields{"url": url, "status": status})
		}
		writeJSON(w, status, payload)
		return
	}

	writeJSON(w, http.StatusOK, readChordsResponse{
		Success:     true,
		Chords:      nonNil(res.Chords),
		Strengths:   nonNil(res.Strengths),
		Key:         res.Key,
		Scale:       res.Scale,
		KeyStrength: res.KeyStrength,
		BPM:         res.BPM,
		Message:     msgSuccess,
	})
}

// failure maps a pipeline error to a status and payload. Any error whose
// message mentions a timeout is reported as one.
func failure(err error) (int, errorResponse) {
	if errors.Is(err, pipeline.ErrInvalidLocator) {
		return http.StatusBadRequest, errorResponse{Error: msgInvalidURL}
	}

	payload := errorResponse{Error: msgFailed, Details: err.Error()}
	if errors.Is(err, pipeline.ErrTimeout) || strings.Contains(strings.ToLower(err.Error()), "timeout") {
		payload.Suggestion = msgTimeoutSuggestion
		return http.StatusRequestTimeout, payload
	}
	return http.StatusInternalServerError, payload
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
