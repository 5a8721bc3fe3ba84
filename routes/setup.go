package routes

import (
	"net/http"

	"go.uber.org/zap"
)

// SetupRoutes connects the API handlers to the mux.
func SetupRoutes(mux *http.ServeMux, store BookStore, searcher Searcher, pipeline Enqueuer, booksDir string, logger *zap.Logger) {
	// Search endpoints.
	mux.HandleFunc("GET /search", SearchBook(store, logger))
	mux.HandleFunc("GET /search/global", SearchGlobal(searcher, logger))

	// Book catalogue.
	mux.HandleFunc("POST /books", CreateBook(store, pipeline, booksDir, logger))
	mux.HandleFunc("GET /books", ListBooks(store, logger))
	mux.HandleFunc("GET /books/{book_id}", GetBook(store, logger))
	mux.HandleFunc("DELETE /books/{book_id}", DeleteBook(store, booksDir, logger))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}
