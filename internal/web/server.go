// Package web exposes the JSON HTTP API for cards, documents, and
// reviews.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pkeogan/mnemo/internal/domain"
	"github.com/pkeogan/mnemo/internal/due"
	"github.com/pkeogan/mnemo/internal/review"
	"github.com/pkeogan/mnemo/internal/storage"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	db       *storage.DB
	reviews  *review.Service
	identity Identity
	validate *validator.Validate
	router   *http.ServeMux
	handler  http.Handler
	logger   *slog.Logger
}

// NewServer creates and configures a new server. A nil identity falls
// back to HeaderIdentity.
func NewServer(db *storage.DB, identity Identity, logger *slog.Logger) *Server {
	if identity == nil {
		identity = HeaderIdentity{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		db:       db,
		reviews:  review.NewService(db, logger),
		identity: identity,
		validate: validator.New(),
		router:   http.NewServeMux(),
		logger:   logger,
	}
	s.routes()
	s.handler = s.logRequests(s.router)
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth)

	s.router.HandleFunc("POST /api/flashcards/review", s.handleReview)
	s.router.HandleFunc("GET /api/flashcards", s.handleListFlashcards)
	s.router.HandleFunc("POST /api/flashcards", s.handleCreateFlashcard)
	s.router.HandleFunc("DELETE /api/flashcards/{id}", s.handleDeleteFlashcard)

	s.router.HandleFunc("GET /api/documents", s.handleListDocuments)
	s.router.HandleFunc("POST /api/documents", s.handleCreateDocument)
	s.router.HandleFunc("DELETE /api/documents/{id}", s.handleDeleteDocument)
}

// ReviewRequest submits one quality rating for one flashcard.
type ReviewRequest struct {
	FlashcardID string `json:"flashcard_id" validate:"required"`
	Quality     *int   `json:"quality" validate:"required,gte=0,lte=5"`
}

// ReviewResponse returns the updated card, the authoritative next card
// (null when nothing is due), the remaining due count, and a message.
type ReviewResponse struct {
	ReviewedFlashcard *domain.Card `json:"reviewed_flashcard"`
	NextFlashcard     *domain.Card `json:"next_flashcard"`
	DueCount          int          `json:"due_count"`
	Message           string       `json:"message"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req ReviewRequest
	if !s.decodeValid(w, r, &req) {
		return
	}

	res, err := s.reviews.Review(r.Context(), user, req.FlashcardID, *req.Quality)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ReviewResponse{
		ReviewedFlashcard: res.Reviewed,
		NextFlashcard:     res.Next,
		DueCount:          res.DueCount,
		Message:           res.Message,
	})
}

// FlashcardListResponse lists every card in the scope, due-first. The
// due count is advisory, for badges: the card to review next always
// comes from the review response, never from this listing.
type FlashcardListResponse struct {
	Flashcards []domain.Card `json:"flashcards"`
	Total      int           `json:"total"`
	DueCount   int           `json:"due_count"`
}

func (s *Server) handleListFlashcards(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	scope := domain.Scope{OwnerID: user, DocumentID: r.URL.Query().Get("document_id")}

	cards, err := s.db.ListCards(r.Context(), scope)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if cards == nil {
		cards = []domain.Card{}
	}
	s.writeJSON(w, http.StatusOK, FlashcardListResponse{
		Flashcards: cards,
		Total:      len(cards),
		DueCount:   due.CountDue(cards, time.Now().UTC()),
	})
}

// CreateFlashcardRequest creates a card by hand, optionally attached to
// a source document.
type CreateFlashcardRequest struct {
	Question   string `json:"question" validate:"required"`
	Answer     string `json:"answer" validate:"required"`
	DocumentID string `json:"document_id"`
}

func (s *Server) handleCreateFlashcard(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req CreateFlashcardRequest
	if !s.decodeValid(w, r, &req) {
		return
	}

	card, err := s.db.CreateCard(r.Context(), user, req.DocumentID, req.Question, req.Answer, time.Now().UTC())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, card)
}

func (s *Server) handleDeleteFlashcard(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteCard(r.Context(), user, r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateDocumentRequest registers a source document so ingested cards
// can reference it.
type CreateDocumentRequest struct {
	Filename string `json:"filename" validate:"required"`
}

// DocumentListResponse lists an owner's documents, newest first.
type DocumentListResponse struct {
	Documents []domain.Document `json:"documents"`
	Total     int               `json:"total"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	docs, err := s.db.ListDocuments(r.Context(), user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	s.writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Total: len(docs)})
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req CreateDocumentRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	doc, err := s.db.CreateDocument(r.Context(), user, req.Filename, time.Now().UTC())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, doc)
}

// handleDeleteDocument removes a document and all cards referencing it.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteDocument(r.Context(), user, r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, err := s.identity.Requester(r)
	if err != nil {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return "", false
	}
	return user, true
}

// decodeValid decodes the JSON body into req and validates it, writing a
// 422 on failure.
func (s *Server) decodeValid(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid JSON payload"})
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid request: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuality):
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "quality must be between 0 and 5"})
	case errors.Is(err, domain.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found or access denied"})
	case errors.Is(err, domain.ErrDuplicateCard):
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": "a card with this content already exists"})
	case errors.Is(err, domain.ErrConflict):
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": "conflicting update in progress, retry"})
	default:
		s.logger.Error("request failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
		)
	})
}
