package search

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/database"
)

// BookReader is the slice of the book store the coordinator needs.
type BookReader interface {
	GetBook(ctx context.Context, id string) (database.Book, error)
	ListBooks(ctx context.Context) ([]database.Book, error)
	GetPages(ctx context.Context, bookID string) ([]string, error)
}

// BookMatch is a Match tagged with the book it came from.
type BookMatch struct {
	BookID    string `json:"bookId"`
	BookTitle string `json:"bookTitle"`
	Page      int    `json:"page"`
	Snippet   string `json:"snippet"`
}

// Coordinator fans a query out over a set of books.
type Coordinator struct {
	store       BookReader
	logger      *zap.Logger
	concurrency int
}

func NewCoordinator(store BookReader, logger *zap.Logger, concurrency int) *Coordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coordinator{store: store, logger: logger, concurrency: concurrency}
}

// SearchBooks searches every book in bookIDs, or the whole store when the
// list is empty. Results keep enumeration order (explicit list order, or
// store listing order), with each book's matches in page/offset order.
//
// The corpus search is best effort by contract: unknown ids and books whose
// extraction has not completed are skipped silently, so partially indexed
// libraries still answer.
func (c *Coordinator) SearchBooks(ctx context.Context, bookIDs []string, query string) ([]BookMatch, error) {
	books, err := c.resolve(ctx, bookIDs)
	if err != nil {
		return nil, err
	}

	// Books are independent, so the fan-out is parallel; index-addressed
	// result slots keep the enumeration order regardless of completion order.
	perBook := make([][]BookMatch, len(books))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, book := range books {
		i, book := i, book
		g.Go(func() error {
			pages, err := c.store.GetPages(ctx, book.ID)
			if err != nil {
				c.logger.Warn("skipping book: pages unreadable",
					zap.String("book_id", book.ID), zap.Error(err))
				return nil
			}

			matches, err := SearchPages(pages, query)
			if err != nil {
				return nil
			}

			tagged := make([]BookMatch, len(matches))
			for j, m := range matches {
				tagged[j] = BookMatch{
					BookID:    book.ID,
					BookTitle: book.Title,
					Page:      m.Page,
					Snippet:   m.Snippet,
				}
			}
			perBook[i] = tagged
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := []BookMatch{}
	for _, matches := range perBook {
		results = append(results, matches...)
	}
	return results, nil
}

// resolve turns the requested id list into searchable books, preserving the
// requested order. An empty list means every book in the store.
func (c *Coordinator) resolve(ctx context.Context, bookIDs []string) ([]database.Book, error) {
	var candidates []database.Book

	if len(bookIDs) == 0 {
		all, err := c.store.ListBooks(ctx)
		if err != nil {
			return nil, err
		}
		candidates = all
	} else {
		for _, id := range bookIDs {
			book, err := c.store.GetBook(ctx, id)
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, book)
		}
	}

	books := candidates[:0]
	for _, book := range candidates {
		if book.Searchable() {
			books = append(books, book)
		}
	}
	return books, nil
}
