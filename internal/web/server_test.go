package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/pkeogan/mnemo/internal/domain"
	"github.com/pkeogan/mnemo/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewServer(db, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, s *Server, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func createCard(t *testing.T, s *Server, user, question, answer, documentID string) domain.Card {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/flashcards", user, CreateFlashcardRequest{
		Question: question, Answer: answer, DocumentID: documentID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create card: status %d body %s", rec.Code, rec.Body.String())
	}
	return decode[domain.Card](t, rec)
}

func TestReviewEndpoint(t *testing.T) {
	s := newTestServer(t)
	first := createCard(t, s, "alice", "Q1", "A1", "")
	second := createCard(t, s, "alice", "Q2", "A2", "")

	quality := 5
	rec := do(t, s, http.MethodPost, "/api/flashcards/review", "alice", ReviewRequest{
		FlashcardID: first.ID, Quality: &quality,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	res := decode[ReviewResponse](t, rec)
	if res.ReviewedFlashcard == nil || res.ReviewedFlashcard.ID != first.ID {
		t.Errorf("unexpected reviewed card: %+v", res.ReviewedFlashcard)
	}
	if res.ReviewedFlashcard.Repetitions != 1 || res.ReviewedFlashcard.Interval != 1 {
		t.Errorf("unexpected schedule: %+v", res.ReviewedFlashcard)
	}
	if res.NextFlashcard == nil || res.NextFlashcard.ID != second.ID {
		t.Errorf("unexpected next card: %+v", res.NextFlashcard)
	}
	if res.DueCount != 1 || res.Message != "Review again in 1 day" {
		t.Errorf("due_count=%d message=%q", res.DueCount, res.Message)
	}

	// Review the remaining card: the queue empties.
	rec = do(t, s, http.MethodPost, "/api/flashcards/review", "alice", ReviewRequest{
		FlashcardID: second.ID, Quality: &quality,
	})
	res = decode[ReviewResponse](t, rec)
	if res.NextFlashcard != nil || res.DueCount != 0 || res.Message != "No more flashcards due" {
		t.Errorf("expected empty queue, got %+v", res)
	}
}

func TestReviewEndpointErrors(t *testing.T) {
	s := newTestServer(t)
	card := createCard(t, s, "alice", "Q1", "A1", "")
	quality := 5

	cases := []struct {
		name string
		user string
		body any
		want int
	}{
		{"no auth", "", ReviewRequest{FlashcardID: card.ID, Quality: &quality}, http.StatusUnauthorized},
		{"missing quality", "alice", map[string]string{"flashcard_id": card.ID}, http.StatusUnprocessableEntity},
		{"quality too high", "alice", map[string]any{"flashcard_id": card.ID, "quality": 6}, http.StatusUnprocessableEntity},
		{"quality negative", "alice", map[string]any{"flashcard_id": card.ID, "quality": -1}, http.StatusUnprocessableEntity},
		{"unknown card", "alice", ReviewRequest{FlashcardID: "nope", Quality: &quality}, http.StatusNotFound},
		{"not owner", "bob", ReviewRequest{FlashcardID: card.ID, Quality: &quality}, http.StatusNotFound},
	}
	for _, c := range cases {
		if rec := do(t, s, http.MethodPost, "/api/flashcards/review", c.user, c.body); rec.Code != c.want {
			t.Errorf("%s: status %d, want %d (body %s)", c.name, rec.Code, c.want, rec.Body.String())
		}
	}

	// Failed validation must leave the card untouched.
	list := decode[FlashcardListResponse](t, do(t, s, http.MethodGet, "/api/flashcards", "alice", nil))
	if list.Flashcards[0].Repetitions != 0 {
		t.Errorf("card mutated by rejected review: %+v", list.Flashcards[0])
	}
}

func TestQualityZeroIsValid(t *testing.T) {
	s := newTestServer(t)
	card := createCard(t, s, "alice", "Q1", "A1", "")

	quality := 0
	rec := do(t, s, http.MethodPost, "/api/flashcards/review", "alice", ReviewRequest{
		FlashcardID: card.ID, Quality: &quality,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("quality 0 must be accepted: status %d body %s", rec.Code, rec.Body.String())
	}
	res := decode[ReviewResponse](t, rec)
	if res.ReviewedFlashcard.Repetitions != 0 || res.ReviewedFlashcard.Interval != 1 {
		t.Errorf("blackout must reset the schedule: %+v", res.ReviewedFlashcard)
	}
}

func TestCreateFlashcardDuplicate(t *testing.T) {
	s := newTestServer(t)
	createCard(t, s, "alice", "Q1", "A1", "")

	rec := do(t, s, http.MethodPost, "/api/flashcards", "alice", CreateFlashcardRequest{
		Question: " q1 ", Answer: "A1",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate content: status %d, want 409", rec.Code)
	}
}

func TestListFlashcardsScoping(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/documents", "alice", CreateDocumentRequest{Filename: "notes.pdf"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create document: %d", rec.Code)
	}
	doc := decode[domain.Document](t, rec)

	createCard(t, s, "alice", "Q doc", "A", doc.ID)
	createCard(t, s, "alice", "Q manual", "A", "")
	createCard(t, s, "bob", "Q bob", "A", "")

	all := decode[FlashcardListResponse](t, do(t, s, http.MethodGet, "/api/flashcards", "alice", nil))
	if all.Total != 2 || all.DueCount != 2 {
		t.Errorf("owner scope: total=%d due=%d, want 2 and 2", all.Total, all.DueCount)
	}

	narrowed := decode[FlashcardListResponse](t, do(t, s, http.MethodGet, "/api/flashcards?document_id="+doc.ID, "alice", nil))
	if narrowed.Total != 1 || narrowed.Flashcards[0].Question != "Q doc" {
		t.Errorf("document scope: %+v", narrowed)
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	s := newTestServer(t)

	doc := decode[domain.Document](t, do(t, s, http.MethodPost, "/api/documents", "alice", CreateDocumentRequest{Filename: "notes.pdf"}))
	createCard(t, s, "alice", "Q doc", "A", doc.ID)
	keeper := createCard(t, s, "alice", "Q manual", "A", "")

	if rec := do(t, s, http.MethodDelete, "/api/documents/"+doc.ID, "alice", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete document: status %d", rec.Code)
	}

	list := decode[FlashcardListResponse](t, do(t, s, http.MethodGet, "/api/flashcards", "alice", nil))
	if list.Total != 1 || list.Flashcards[0].ID != keeper.ID {
		t.Errorf("cascade failed: %+v", list)
	}

	if rec := do(t, s, http.MethodDelete, "/api/documents/"+doc.ID, "alice", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status %d, want 404", rec.Code)
	}
}

func TestDeleteFlashcard(t *testing.T) {
	s := newTestServer(t)
	card := createCard(t, s, "alice", "Q1", "A1", "")

	if rec := do(t, s, http.MethodDelete, "/api/flashcards/"+card.ID, "bob", nil); rec.Code != http.StatusNotFound {
		t.Errorf("not-owned delete: status %d, want 404", rec.Code)
	}
	if rec := do(t, s, http.MethodDelete, "/api/flashcards/"+card.ID, "alice", nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete: status %d, want 204", rec.Code)
	}
}

func TestListDocuments(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 2; i++ {
		rec := do(t, s, http.MethodPost, "/api/documents", "alice", CreateDocumentRequest{Filename: fmt.Sprintf("doc-%d.pdf", i)})
		if rec.Code != http.StatusCreated {
			t.Fatal(rec.Code)
		}
	}
	list := decode[DocumentListResponse](t, do(t, s, http.MethodGet, "/api/documents", "alice", nil))
	if list.Total != 2 {
		t.Errorf("total=%d, want 2", list.Total)
	}
	if bob := decode[DocumentListResponse](t, do(t, s, http.MethodGet, "/api/documents", "bob", nil)); bob.Total != 0 {
		t.Errorf("bob sees %d documents, want 0", bob.Total)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: status %d", rec.Code)
	}
}
