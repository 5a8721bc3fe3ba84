package database

import "time"

// Extraction status of a book. A book is created pending and moves to
// completed or failed exactly once.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// A named sub-part of a book pointing at a page in its PDF.
type Section struct {
	Name string `json:"name"`
	Page int    `json:"page"`
}

// Book is a catalogued PDF document with, once extraction has run, its
// per-page text stored alongside.
type Book struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	PDFLocation      string    `json:"pdfLocation"`
	Sections         []Section `json:"sections"`
	ExtractionStatus string    `json:"extractionStatus"`
	ExtractionError  string    `json:"extractionError,omitempty"`
	TotalPages       int       `json:"totalPages,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Searchable reports whether the book's pages can be queried.
func (b Book) Searchable() bool {
	return b.ExtractionStatus == StatusCompleted
}
