// Package server exposes the voice design model behind the HTTP surface:
// a liveness endpoint and a synchronous generation endpoint that streams
// back WAV audio.
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/book-expert/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/di-osc/qwen3-design-api/internal/config"
	"github.com/di-osc/qwen3-design-api/internal/core"
	"github.com/di-osc/qwen3-design-api/internal/wav"
)

// Version reported by the liveness endpoint.
const Version = "1.0.0"

const livenessMessage = "voice design API running"

// Response headers and values.
const (
	headerContentType        = "Content-Type"
	headerContentDisposition = "Content-Disposition"
	contentTypeJSON          = "application/json"
	contentTypeWAV           = "audio/wav"
	attachmentWAV            = "attachment; filename=generated_audio.wav"
)

// Machine-readable error codes carried in error responses.
const (
	codeMissingParameter = "MISSING_PARAMETER"
	codeModelNotLoaded   = "MODEL_NOT_LOADED"
	codeGenerationFailed = "GENERATION_FAILED"
)

const logTextPreviewLimit = 50

// StatusResponse is the liveness payload returned by GET /.
type StatusResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// ErrorResponse is the structured error body for failed requests.
type ErrorResponse struct {
	// Detail contains a human-readable error description.
	Detail string `json:"detail"`

	// ErrorCode provides a machine-readable error classification.
	ErrorCode string `json:"error_code,omitempty"`
}

// Server holds the process-wide collaborators for request handlers. It is
// immutable after construction; handlers never mutate it, so no locking
// discipline is needed.
type Server struct {
	engine  core.VoiceDesigner
	archive core.ObjectStore
	log     *logger.Logger
}

// New creates a Server. The archive may be nil, in which case generated
// clips are not retained.
func New(engine core.VoiceDesigner, store core.ObjectStore, log *logger.Logger) *Server {
	return &Server{
		engine:  engine,
		archive: store,
		log:     log,
	}
}

// Router builds the chi router for the service, mirroring the permissive
// CORS policy of the original deployment.
func (s *Server) Router() chi.Router {
	router := chi.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	router.Get("/", s.handleRoot)
	router.Post("/generate_audio", s.handleGenerateAudio)

	return router
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Message: livenessMessage,
		Version: Version,
	})
}

func (s *Server) handleGenerateAudio(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseGenerateRequest(w, r)
	if !ok {
		return
	}

	if s.engine == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Detail:    "model not loaded",
			ErrorCode: codeModelNotLoaded,
		})

		return
	}

	requestID := uuid.NewString()
	s.log.Info("Generating audio [%s] - text: %s, language: %s",
		requestID, textPreview(req.Text), req.Language)

	audio, err := s.engine.GenerateVoiceDesign(r.Context(), req)
	if err != nil {
		s.log.Error("Audio generation failed [%s]: %v", requestID, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Detail:    "audio generation failed: " + err.Error(),
			ErrorCode: codeGenerationFailed,
		})

		return
	}

	data, err := wav.Encode(audio.Samples, audio.SampleRate)
	if err != nil {
		s.log.Error("WAV encoding failed [%s]: %v", requestID, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Detail:    "audio generation failed: " + err.Error(),
			ErrorCode: codeGenerationFailed,
		})

		return
	}

	s.archiveClip(r, requestID, data)

	s.log.Info("Audio generation complete [%s]: %d bytes", requestID, len(data))

	w.Header().Set(headerContentType, contentTypeWAV)
	w.Header().Set(headerContentDisposition, attachmentWAV)
	w.WriteHeader(http.StatusOK)

	_, writeErr := w.Write(data)
	if writeErr != nil {
		s.log.Warn("Failed to write audio response [%s]: %v", requestID, writeErr)
	}
}

// parseGenerateRequest validates the query parameters before the model is
// touched. Reports the failure to the client itself and returns ok=false.
func (s *Server) parseGenerateRequest(w http.ResponseWriter, r *http.Request) (core.Request, bool) {
	query := r.URL.Query()

	text := query.Get("text")
	if strings.TrimSpace(text) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Detail:    "text query parameter is required",
			ErrorCode: codeMissingParameter,
		})

		return core.Request{}, false
	}

	instruct := query.Get("instruct")
	if strings.TrimSpace(instruct) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Detail:    "instruct query parameter is required",
			ErrorCode: codeMissingParameter,
		})

		return core.Request{}, false
	}

	language := query.Get("language")
	if language == "" {
		language = config.DefaultLanguage
	}

	return core.Request{Text: text, Language: language, Instruct: instruct}, true
}

// archiveClip keeps a copy of the generated audio when an archive is
// configured. The clip was already generated, so a failed upload must not
// fail the request.
func (s *Server) archiveClip(r *http.Request, requestID string, data []byte) {
	if s.archive == nil {
		return
	}

	key := requestID + ".wav"

	err := s.archive.Upload(r.Context(), key, data)
	if err != nil {
		s.log.Warn("Failed to archive clip '%s': %v", key, err)

		return
	}

	s.log.Info("Archived clip '%s' (%d bytes)", key, len(data))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}

func textPreview(text string) string {
	runes := []rune(text)
	if len(runes) <= logTextPreviewLimit {
		return text
	}

	return string(runes[:logTextPreviewLimit]) + "..."
}
