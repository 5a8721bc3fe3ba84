// Package routes holds the HTTP handlers for the library's JSON API.
package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/database"
	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/extraction"
	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/search"
)

// Accepts up to ~200MB uploads; multi-volume scanned books run large.
const maxUploadBytes = 200 << 20

// BookStore is the store surface the handlers need.
type BookStore interface {
	CreateBook(ctx context.Context, book database.Book) error
	GetBook(ctx context.Context, id string) (database.Book, error)
	ListBooks(ctx context.Context) ([]database.Book, error)
	DeleteBook(ctx context.Context, id string) error
	GetPages(ctx context.Context, bookID string) ([]string, error)
}

// Enqueuer hands a created book to the extraction pipeline.
type Enqueuer interface {
	Enqueue(bookID, pdfLocation string) error
}

// Searcher runs a query across many books.
type Searcher interface {
	SearchBooks(ctx context.Context, bookIDs []string, query string) ([]search.BookMatch, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// SearchBook handles GET /search?bookId=<id>&q=<text>.
//
// A book whose extraction is pending or failed answers 409 with the status,
// so clients can tell "not searchable yet" from "searched, found nothing".
func SearchBook(store BookStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID := r.URL.Query().Get("bookId")
		query := r.URL.Query().Get("q")

		if bookID == "" || query == "" {
			writeError(w, http.StatusBadRequest, "bookId and q are required")
			return
		}

		book, err := store.GetBook(r.Context(), bookID)
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		if err != nil {
			logger.Error("book lookup failed", zap.String("book_id", bookID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "book lookup failed")
			return
		}

		if !book.Searchable() {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":            "book is not indexed yet",
				"extractionStatus": book.ExtractionStatus,
			})
			return
		}

		pages, err := store.GetPages(r.Context(), bookID)
		if err != nil {
			logger.Error("page read failed", zap.String("book_id", bookID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "unable to read extracted pages")
			return
		}

		matches, err := search.SearchPages(pages, query)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"results": matches})
	}
}

// SearchGlobal handles GET /search/global?q=<text>&bookIds=a,b,c.
// Omitted bookIds searches the whole store.
func SearchGlobal(searcher Searcher, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			writeError(w, http.StatusBadRequest, "q is required")
			return
		}

		var bookIDs []string
		if raw := r.URL.Query().Get("bookIds"); raw != "" {
			for _, id := range strings.Split(raw, ",") {
				if id = strings.TrimSpace(id); id != "" {
					bookIDs = append(bookIDs, id)
				}
			}
		}

		results, err := searcher.SearchBooks(r.Context(), bookIDs, query)
		if err != nil {
			logger.Error("global search failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "search failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	}
}

// CreateBook handles POST /books: a multipart form with the pdf file, a
// title, and optional sections JSON. The created record returns immediately
// with extraction pending; extraction itself runs on the pipeline.
func CreateBook(store BookStore, pipeline Enqueuer, booksDir string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}

		title := strings.TrimSpace(r.FormValue("title"))
		if title == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}

		var sections []database.Section
		if raw := r.FormValue("sections"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &sections); err != nil {
				writeError(w, http.StatusBadRequest, "sections must be a JSON array of {name, page}")
				return
			}
		}

		file, _, err := r.FormFile("pdf")
		if err != nil {
			writeError(w, http.StatusBadRequest, "pdf file is required")
			return
		}
		defer file.Close()

		id := uuid.NewString()
		location := filepath.Join(booksDir, id+".pdf")

		dst, err := os.Create(location)
		if err != nil {
			logger.Error("unable to store upload", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "unable to store upload")
			return
		}
		if _, err := io.Copy(dst, file); err != nil {
			dst.Close()
			os.Remove(location)
			writeError(w, http.StatusInternalServerError, "unable to store upload")
			return
		}
		dst.Close()

		book := database.Book{
			ID:          id,
			Title:       title,
			PDFLocation: location,
			Sections:    sections,
		}
		if err := store.CreateBook(r.Context(), book); err != nil {
			os.Remove(location)
			logger.Error("create book failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "unable to create book")
			return
		}

		// Extraction runs in the same process as storage, so the worker gets
		// the local path rather than a URL it would have to fetch back.
		if err := pipeline.Enqueue(id, location); err != nil {
			store.DeleteBook(r.Context(), id)
			os.Remove(location)
			logger.Warn("extraction queue rejected upload", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "extraction queue is full, try again later")
			return
		}

		created, err := store.GetBook(r.Context(), id)
		if err != nil {
			created = book
			created.ExtractionStatus = database.StatusPending
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// ListBooks handles GET /books.
func ListBooks(store BookStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		books, err := store.ListBooks(r.Context())
		if err != nil {
			logger.Error("list books failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "unable to list books")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"books": books})
	}
}

// GetBook handles GET /books/{book_id}. Clients poll this to observe the
// extraction status transitions after an upload.
func GetBook(store BookStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("book_id")

		book, err := store.GetBook(r.Context(), id)
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		if err != nil {
			logger.Error("book lookup failed", zap.String("book_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "book lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, book)
	}
}

// DeleteBook handles DELETE /books/{book_id}, removing the record and the
// stored file.
func DeleteBook(store BookStore, booksDir string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("book_id")

		book, err := store.GetBook(r.Context(), id)
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "book lookup failed")
			return
		}

		if err := store.DeleteBook(r.Context(), id); err != nil {
			logger.Error("delete book failed", zap.String("book_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "unable to delete book")
			return
		}

		// Only remove files we manage; books registered by URL have nothing
		// on disk.
		if strings.HasPrefix(book.PDFLocation, booksDir+string(os.PathSeparator)) {
			if err := os.Remove(book.PDFLocation); err != nil && !os.IsNotExist(err) {
				logger.Warn("unable to remove stored pdf",
					zap.String("path", book.PDFLocation), zap.Error(err))
			}
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

var _ Enqueuer = (*extraction.Pipeline)(nil)
