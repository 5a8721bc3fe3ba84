// Package database persists books, their sections, and their extracted page
// text in sqlite.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a book id does not resolve.
	ErrNotFound = errors.New("book not found")

	// ErrAlreadyExtracted is returned when an extraction result is written
	// for a book that is no longer pending.
	ErrAlreadyExtracted = errors.New("extraction already recorded")
)

// Store is the book store. All components receive it explicitly; there is no
// package-level handle.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open connects to the sqlite database at path, creating the schema if
// needed. Use ":memory:" for an ephemeral store.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Foreign keys for cascading page deletes, WAL so extraction writes do
	// not block search reads.
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragma: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) createTables() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS books(
		id TEXT NOT NULL PRIMARY KEY,
		title TEXT NOT NULL,
		pdf_location TEXT NOT NULL,
		extraction_status TEXT NOT NULL DEFAULT 'pending',
		extraction_error TEXT NOT NULL DEFAULT '',
		total_pages INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sections(
		book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		name TEXT NOT NULL,
		page INTEGER NOT NULL,
		PRIMARY KEY (book_id, seq)
	);

	CREATE TABLE IF NOT EXISTS pages(
		book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		page_num INTEGER NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (book_id, page_num)
	);
	`)
	return err
}

// CreateBook inserts a new book with its sections. The caller sets the id;
// extraction status starts as pending.
func (s *Store) CreateBook(ctx context.Context, book Book) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO books (id, title, pdf_location, extraction_status, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		book.ID, book.Title, book.PDFLocation, StatusPending, book.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert book %s: %w", book.ID, err)
	}

	for i, section := range book.Sections {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sections (book_id, seq, name, page) VALUES ($1, $2, $3, $4)`,
			book.ID, i, section.Name, section.Page)
		if err != nil {
			return fmt.Errorf("insert section %d of %s: %w", i, book.ID, err)
		}
	}
	return tx.Commit()
}

// GetBook fetches one book with its sections. Returns ErrNotFound for an
// unknown id.
func (s *Store) GetBook(ctx context.Context, id string) (Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, pdf_location, extraction_status, extraction_error, total_pages, created_at
		 FROM books WHERE id = $1`, id)

	var book Book
	err := row.Scan(&book.ID, &book.Title, &book.PDFLocation,
		&book.ExtractionStatus, &book.ExtractionError, &book.TotalPages, &book.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, ErrNotFound
	}
	if err != nil {
		return Book{}, err
	}

	book.Sections, err = s.getSections(ctx, id)
	if err != nil {
		return Book{}, err
	}
	return book, nil
}

func (s *Store) getSections(ctx context.Context, bookID string) ([]Section, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, page FROM sections WHERE book_id = $1 ORDER BY seq`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sections := []Section{}
	for rows.Next() {
		var section Section
		if err := rows.Scan(&section.Name, &section.Page); err != nil {
			return nil, err
		}
		sections = append(sections, section)
	}
	return sections, rows.Err()
}

// ListBooks returns all books in creation order, without sections.
func (s *Store) ListBooks(ctx context.Context) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, pdf_location, extraction_status, extraction_error, total_pages, created_at
		 FROM books ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []Book{}
	for rows.Next() {
		var book Book
		err := rows.Scan(&book.ID, &book.Title, &book.PDFLocation,
			&book.ExtractionStatus, &book.ExtractionError, &book.TotalPages, &book.CreatedAt)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// DeleteBook removes a book with its sections and pages.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPages returns the extracted page text of a book in page order, so that
// index+1 is the page number. A book without extracted pages yields an empty
// slice; callers decide searchability from the book's status.
func (s *Store) GetPages(ctx context.Context, bookID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT text FROM pages WHERE book_id = $1 ORDER BY page_num`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pages := []string{}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		pages = append(pages, text)
	}
	return pages, rows.Err()
}

// CompleteExtraction stores the extracted pages and marks the book completed
// in a single transaction. Only a pending book can be completed; the write
// happens at most once per book.
func (s *Store) CompleteExtraction(ctx context.Context, bookID string, pages []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.claimPending(ctx, tx, bookID, StatusCompleted, "", len(pages)); err != nil {
		return err
	}

	// Insert pages in batches to stay clear of the sqlite variable limit.
	const batchSize = 500
	for start := 0; start < len(pages); start += batchSize {
		end := min(start+batchSize, len(pages))
		batch := pages[start:end]

		placeholders, args := pageValueTuple(bookID, start+1, batch)
		query := fmt.Sprintf("INSERT INTO pages (book_id, page_num, text) VALUES %s", placeholders)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert pages of %s: %w", bookID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Info("extraction stored",
		zap.String("book_id", bookID),
		zap.Int("total_pages", len(pages)))
	return nil
}

// FailExtraction marks a pending book failed with the given message.
func (s *Store) FailExtraction(ctx context.Context, bookID string, message string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.claimPending(ctx, tx, bookID, StatusFailed, message, 0); err != nil {
		return err
	}
	return tx.Commit()
}

// claimPending flips a pending book to its terminal status. The WHERE clause
// on the current status makes the transition single-shot even under
// concurrent writers.
func (s *Store) claimPending(ctx context.Context, tx *sql.Tx, bookID, status, message string, totalPages int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE books SET extraction_status = $1, extraction_error = $2, total_pages = $3
		 WHERE id = $4 AND extraction_status = $5`,
		status, message, totalPages, bookID, StatusPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM books WHERE id = $1`, bookID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrAlreadyExtracted
	}
	return nil
}

func pageValueTuple(bookID string, firstPage int, pages []string) (string, []interface{}) {
	var sb strings.Builder
	args := make([]interface{}, 0, len(pages)*3)
	for i, text := range pages {
		sb.WriteString("(?, ?, ?),")
		args = append(args, bookID, firstPage+i, text)
	}
	return strings.TrimSuffix(sb.String(), ","), args
}
