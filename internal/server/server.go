package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"medassist/internal/helper"
	"medassist/internal/ingest"
	"medassist/internal/models"
)

// Ingestor handles a batch of saved uploads, one result per document.
type Ingestor interface {
	IngestAll(ctx context.Context, paths []string) []ingest.Result
}

// Answerer runs the full question-answer pipeline.
type Answerer interface {
	Answer(ctx context.Context, question string) (*models.QueryResponse, error)
}

// Server is the thin HTTP layer over the pipeline. It only does transport:
// multipart handling, JSON responses, CORS, logging.
type Server struct {
	ingestor  Ingestor
	answerer  Answerer
	uploadDir string
}

func New(ingestor Ingestor, answerer Answerer, uploadDir string) *Server {
	return &Server{ingestor: ingestor, answerer: answerer, uploadDir: uploadDir}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/upload_pdfs", s.handleUpload)
	mux.HandleFunc("/ask", s.handleAsk)
	return withCORS(withRecovery(withRequestLog(mux)))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

const maxUploadBytes = 64 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	var paths []string
	for _, fh := range files {
		path, err := s.saveUpload(fh.Filename, fh)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, fmt.Errorf("saving %s: %w", fh.Filename, err))
			return
		}
		paths = append(paths, path)
	}

	results := s.ingestor.IngestAll(r.Context(), paths)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "files processed and vectorstore updated",
		"results": results,
	})
}

func (s *Server) saveUpload(name string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	// keep only the base name so uploads can't escape the upload dir
	path := filepath.Join(s.uploadDir, filepath.Base(name))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	question := s.readQuestion(r)
	if question == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("question is required"))
		return
	}

	logger := zerolog.Ctx(r.Context())
	logger.Info().Str("question", question).Msg("user query")
	resp, err := s.answerer.Answer(r.Context(), question)
	if err != nil {
		logger.Error().Err(err).Msg("error processing question")
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// the client sends the question as a form field; JSON bodies work too
func (s *Server) readQuestion(r *http.Request) string {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Question string `json:"question"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return ""
		}
		return strings.TrimSpace(req.Question)
	}
	return strings.TrimSpace(r.FormValue("question"))
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("unhandled panic")
				writeErr(w, http.StatusInternalServerError, fmt.Errorf("internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withRequestLog derives a request-scoped logger carrying the request id and
// puts it on the context, so every log line down the pipeline correlates.
func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := log.With().Str("request_id", helper.RequestID()).Logger()
		r = r.WithContext(logger.WithContext(r.Context()))
		next.ServeHTTP(w, r)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
