// Package search finds literal, case- and diacritic-insensitive occurrences
// of a query in extracted page text and materializes bounded-context snippets
// with page numbers.
package search

import (
	"errors"

	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/normalize"
)

// ErrNotIndexed distinguishes "this book has no searchable pages yet" from a
// search that ran and found nothing.
var ErrNotIndexed = errors.New("book has not been indexed")

const (
	// maxMatchesPerPage caps the output on pages with pathological
	// repetition. Once hit, the scan moves to the next page.
	maxMatchesPerPage = 15

	// snippetContext is the number of runes of surrounding page text kept on
	// each side of a match.
	snippetContext = 40
)

// Match is one occurrence of the query on a page.
type Match struct {
	// Page is the 1-based physical page number.
	Page int `json:"page"`
	// Snippet is original-case page text around the match.
	Snippet string `json:"snippet"`
	// StartOffset is the rune offset of the match in the page text.
	StartOffset int `json:"startOffset"`
}

// SearchPages scans pages in order for all non-overlapping occurrences of
// query. Matching folds both sides (case, Arabic diacritics and letter
// variants); snippets are cut from the original text, so they keep their
// case and diacritics.
//
// A nil pages slice means the book was never extracted and yields
// ErrNotIndexed. An empty query yields an empty result, not an error. The
// query is always treated as a literal string; no pattern syntax exists.
func SearchPages(pages []string, query string) ([]Match, error) {
	if pages == nil {
		return nil, ErrNotIndexed
	}

	q, _ := normalize.Fold(query)
	matches := []Match{}
	if len(q) == 0 {
		return matches, nil
	}

	for i, page := range pages {
		matches = append(matches, scanPage(page, q, i+1)...)
	}
	return matches, nil
}

// scanPage finds up to maxMatchesPerPage occurrences on one page, left to
// right. Results come out ordered by offset because the scan is sequential.
func scanPage(page string, q []rune, pageNum int) []Match {
	folded, index := normalize.Fold(page)
	if len(folded) < len(q) {
		return nil
	}

	orig := []rune(page)
	var matches []Match

	for pos := 0; pos+len(q) <= len(folded) && len(matches) < maxMatchesPerPage; {
		if !runesEqual(folded[pos:pos+len(q)], q) {
			pos++
			continue
		}

		// Map the folded hit back to rune offsets in the original text. The
		// end maps through the last matched rune so stripped diacritics
		// inside the match stay inside the snippet.
		start := index[pos]
		end := index[pos+len(q)-1] + 1

		from := max(0, start-snippetContext)
		to := min(len(orig), end+snippetContext)

		matches = append(matches, Match{
			Page:        pageNum,
			Snippet:     string(orig[from:to]),
			StartOffset: start,
		})
		pos += len(q) // non-overlapping
	}
	return matches
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
