package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/database"
	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/extraction"
	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/search"
)

// memStore is an in-memory BookStore (and search.BookReader) for handler
// tests.
type memStore struct {
	order []string
	books map[string]database.Book
	pages map[string][]string
}

func newMemStore() *memStore {
	return &memStore{
		books: map[string]database.Book{},
		pages: map[string][]string{},
	}
}

func (m *memStore) CreateBook(ctx context.Context, book database.Book) error {
	book.ExtractionStatus = database.StatusPending
	m.books[book.ID] = book
	m.order = append(m.order, book.ID)
	return nil
}

func (m *memStore) GetBook(ctx context.Context, id string) (database.Book, error) {
	book, ok := m.books[id]
	if !ok {
		return database.Book{}, database.ErrNotFound
	}
	return book, nil
}

func (m *memStore) ListBooks(ctx context.Context) ([]database.Book, error) {
	books := make([]database.Book, 0, len(m.order))
	for _, id := range m.order {
		books = append(books, m.books[id])
	}
	return books, nil
}

func (m *memStore) DeleteBook(ctx context.Context, id string) error {
	if _, ok := m.books[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.books, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memStore) GetPages(ctx context.Context, bookID string) ([]string, error) {
	return m.pages[bookID], nil
}

func (m *memStore) addCompleted(id, title string, pages []string) {
	m.books[id] = database.Book{
		ID: id, Title: title, PDFLocation: "/books/" + id + ".pdf",
		ExtractionStatus: database.StatusCompleted, TotalPages: len(pages),
	}
	m.order = append(m.order, id)
	m.pages[id] = pages
}

type noopEnqueuer struct {
	enqueued []string
	err      error
}

func (n *noopEnqueuer) Enqueue(bookID, pdfLocation string) error {
	if n.err != nil {
		return n.err
	}
	n.enqueued = append(n.enqueued, bookID)
	return nil
}

func newTestMux(t *testing.T, store *memStore, enq Enqueuer) *http.ServeMux {
	t.Helper()
	logger := zap.NewNop()
	coordinator := search.NewCoordinator(store, logger, 4)

	mux := http.NewServeMux()
	SetupRoutes(mux, store, coordinator, enq, t.TempDir(), logger)
	return mux
}

func doRequest(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSearchBookHandler(t *testing.T) {
	store := newMemStore()
	store.addCompleted("b1", "First", []string{"the cat sat", "nothing", "cat here"})
	mux := newTestMux(t, store, &noopEnqueuer{})

	rec := doRequest(mux, httptest.NewRequest("GET", "/search?bookId=b1&q=cat", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results []search.Match `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 2)
	assert.Equal(t, 1, body.Results[0].Page)
	assert.Equal(t, 3, body.Results[1].Page)
}

func TestSearchBookHandlerBadRequest(t *testing.T) {
	mux := newTestMux(t, newMemStore(), &noopEnqueuer{})

	rec := doRequest(mux, httptest.NewRequest("GET", "/search?q=cat", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(mux, httptest.NewRequest("GET", "/search?bookId=b1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchBookHandlerNotFound(t *testing.T) {
	mux := newTestMux(t, newMemStore(), &noopEnqueuer{})

	rec := doRequest(mux, httptest.NewRequest("GET", "/search?bookId=ghost&q=cat", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchBookHandlerNotIndexed(t *testing.T) {
	store := newMemStore()
	store.books["b1"] = database.Book{ID: "b1", Title: "t", ExtractionStatus: database.StatusPending}
	store.order = append(store.order, "b1")
	mux := newTestMux(t, store, &noopEnqueuer{})

	rec := doRequest(mux, httptest.NewRequest("GET", "/search?bookId=b1&q=cat", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, database.StatusPending, body["extractionStatus"])
}

func TestSearchBookHandlerZeroMatches(t *testing.T) {
	store := newMemStore()
	store.addCompleted("b1", "First", []string{"nothing relevant"})
	mux := newTestMux(t, store, &noopEnqueuer{})

	rec := doRequest(mux, httptest.NewRequest("GET", "/search?bookId=b1&q=zebra", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results": []}`, rec.Body.String())
}

func TestSearchGlobalHandler(t *testing.T) {
	store := newMemStore()
	store.addCompleted("b1", "First", []string{"the cat sat"})
	store.addCompleted("b2", "Second", []string{"another cat"})
	mux := newTestMux(t, store, &noopEnqueuer{})

	rec := doRequest(mux, httptest.NewRequest("GET", "/search/global?q=cat", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results []search.BookMatch `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 2)
	assert.Equal(t, "b1", body.Results[0].BookID)
	assert.Equal(t, "First", body.Results[0].BookTitle)
	assert.Equal(t, "b2", body.Results[1].BookID)
}

func TestSearchGlobalHandlerSelectedBooks(t *testing.T) {
	store := newMemStore()
	store.addCompleted("b1", "First", []string{"cat"})
	store.addCompleted("b2", "Second", []string{"cat"})
	mux := newTestMux(t, store, &noopEnqueuer{})

	rec := doRequest(mux, httptest.NewRequest("GET", "/search/global?q=cat&bookIds=b2,ghost", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results []search.BookMatch `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 1, "unknown id skipped, no error")
	assert.Equal(t, "b2", body.Results[0].BookID)
}

func TestSearchGlobalHandlerMissingQuery(t *testing.T) {
	mux := newTestMux(t, newMemStore(), &noopEnqueuer{})

	rec := doRequest(mux, httptest.NewRequest("GET", "/search/global", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func uploadRequest(t *testing.T, title, sections string, withFile bool) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if title != "" {
		require.NoError(t, mw.WriteField("title", title))
	}
	if sections != "" {
		require.NoError(t, mw.WriteField("sections", sections))
	}
	if withFile {
		fw, err := mw.CreateFormFile("pdf", "book.pdf")
		require.NoError(t, err)
		_, err = io.WriteString(fw, "%PDF-1.4 fake content")
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/books", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestCreateBookHandler(t *testing.T) {
	store := newMemStore()
	enq := &noopEnqueuer{}
	mux := newTestMux(t, store, enq)

	rec := doRequest(mux, uploadRequest(t, "صحيح مسلم", `[{"name":"الجزء الأول","page":1}]`, true))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created database.Book
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "صحيح مسلم", created.Title)
	assert.Equal(t, database.StatusPending, created.ExtractionStatus)
	require.Len(t, created.Sections, 1)

	require.Len(t, enq.enqueued, 1)
	assert.Equal(t, created.ID, enq.enqueued[0])
}

func TestCreateBookHandlerValidation(t *testing.T) {
	mux := newTestMux(t, newMemStore(), &noopEnqueuer{})

	rec := doRequest(mux, uploadRequest(t, "", "", true))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing title")

	rec = doRequest(mux, uploadRequest(t, "Title", "", false))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing pdf file")

	rec = doRequest(mux, uploadRequest(t, "Title", "not json", true))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "bad sections")
}

func TestCreateBookHandlerQueueFull(t *testing.T) {
	store := newMemStore()
	mux := newTestMux(t, store, &noopEnqueuer{err: extraction.ErrQueueFull})

	rec := doRequest(mux, uploadRequest(t, "Title", "", true))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, store.books, "rejected upload leaves no record behind")
}

func TestGetAndDeleteBookHandlers(t *testing.T) {
	store := newMemStore()
	store.addCompleted("b1", "First", []string{"x"})
	mux := newTestMux(t, store, &noopEnqueuer{})

	rec := doRequest(mux, httptest.NewRequest("GET", "/books/b1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(mux, httptest.NewRequest("GET", "/books/ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(mux, httptest.NewRequest("DELETE", "/books/b1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(mux, httptest.NewRequest("DELETE", "/books/b1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBooksHandler(t *testing.T) {
	store := newMemStore()
	store.addCompleted("b1", "First", []string{"x"})
	store.addCompleted("b2", "Second", []string{"y"})
	mux := newTestMux(t, store, &noopEnqueuer{})

	rec := doRequest(mux, httptest.NewRequest("GET", "/books", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Books []database.Book `json:"books"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Books, 2)
	assert.Equal(t, "b1", body.Books[0].ID)
}
