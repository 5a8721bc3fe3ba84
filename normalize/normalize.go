// Package normalize folds text for diacritic-insensitive matching of Arabic
// script, while keeping enough bookkeeping to map matches back to the
// original text.
package normalize

import "unicode"

// Arabic letter variants folded to a canonical form. The library catalogue is
// dominated by classical Arabic texts where hamza seats and final-form letters
// are written inconsistently between editions.
var variants = map[rune]rune{
	'أ': 'ا', // أ -> ا
	'إ': 'ا', // إ -> ا
	'آ': 'ا', // آ -> ا
	'ٱ': 'ا', // ٱ -> ا
	'ى': 'ي', // ى -> ي
	'ئ': 'ي', // ئ -> ي
	'ؤ': 'و', // ؤ -> و
	'ة': 'ه', // ة -> ه
}

// isTashkeel reports whether r is an Arabic diacritic (or the tatweel
// elongation mark) that carries no lexical meaning for search purposes.
func isTashkeel(r rune) bool {
	switch {
	case r >= 'ؐ' && r <= 'ؚ':
		return true
	case r >= 'ً' && r <= 'ٟ':
		return true
	case r == 'ٰ' || r == 'ـ':
		return true
	case r >= 'ۖ' && r <= 'ۜ':
		return true
	case r >= '۟' && r <= 'ۨ':
		return true
	case r >= '۪' && r <= 'ۭ':
		return true
	}
	return false
}

// Fold returns the folded runes of s together with an index slice mapping
// each folded rune to the rune offset in s that produced it.
//
// Folding lower-cases, strips tashkeel and tatweel, and unifies Arabic letter
// variants. Diacritics are dropped outright, so len(folded) <= rune count of
// s; every surviving rune keeps its original offset, and the index slice is
// strictly increasing.
func Fold(s string) (folded []rune, index []int) {
	folded = make([]rune, 0, len(s))
	index = make([]int, 0, len(s))

	pos := 0
	for _, r := range s {
		if isTashkeel(r) {
			pos++
			continue
		}
		if v, ok := variants[r]; ok {
			r = v
		}
		folded = append(folded, unicode.ToLower(r))
		index = append(index, pos)
		pos++
	}
	return folded, index
}

// Clean returns the folded form of s as a string. Used for queries, where
// offsets back into the original are irrelevant.
func Clean(s string) string {
	folded, _ := Fold(s)
	return string(folded)
}
