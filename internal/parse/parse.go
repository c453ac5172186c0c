// Package parse converts the human-readable fragments found on detail pages
// (relative times, byte sizes, file listings, counters) into typed values.
package parse

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/catalog-harvester/internal/catalog"
)

// ErrInvalid is returned for any fragment that does not match the expected shape.
var ErrInvalid = errors.New("invalid value")

const day = 86400

var timeUnits = map[string]int64{
	"second": 1,
	"minute": 60,
	"hour":   3600,
	"day":    day,
	"week":   7 * day,
	"month":  30 * day,
	"year":   365 * day,
	"decade": 3650 * day,
}

var sizeUnits = map[string]float64{
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
}

func invalid(kind, text string) error {
	return fmt.Errorf("%w %s: %q", ErrInvalid, kind, text)
}

// RelativeTime resolves text of the form "<n> <unit> ago" against now.
func RelativeTime(now time.Time, text string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(text), " ")
	if len(parts) != 3 || parts[2] != "ago" {
		return time.Time{}, invalid("relative time", text)
	}
	count, err := strconv.ParseUint(parts[0], 10, 63)
	if err != nil {
		return time.Time{}, invalid("relative time", text)
	}
	factor, ok := timeUnits[strings.TrimSuffix(parts[1], "s")]
	if !ok {
		return time.Time{}, invalid("relative time", text)
	}
	offset := int64(count)
	if offset > now.Unix()/factor {
		return time.Time{}, invalid("relative time", text)
	}
	return now.Add(-time.Duration(offset*factor) * time.Second), nil
}

// Size converts text of the form "<number> <unit>" into a byte count.
func Size(text string) (uint64, error) {
	parts := strings.Split(strings.TrimSpace(text), " ")
	if len(parts) != 2 {
		return 0, invalid("size", text)
	}
	digits := strings.ReplaceAll(parts[0], ",", "")
	if !isDecimal(digits) {
		return 0, invalid("size", text)
	}
	number, err := strconv.ParseFloat(digits, 64)
	if err != nil || math.IsInf(number, 0) {
		return 0, invalid("size", text)
	}
	scale, ok := sizeUnits[strings.TrimSuffix(parts[1], "s")]
	if !ok {
		return 0, invalid("size", text)
	}
	bytes := number * scale
	if bytes >= math.MaxUint64 {
		return 0, invalid("size", text)
	}
	return uint64(bytes), nil
}

// isDecimal accepts plain decimal numerals: digits with at most one point.
// strconv.ParseFloat alone would also take signs, exponents, hex floats and
// Inf/NaN.
func isDecimal(s string) bool {
	seenDigit, seenPoint := false, false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
		case r == '.' && !seenPoint:
			seenPoint = true
		default:
			return false
		}
	}
	return seenDigit
}

// FileEntry parses a listing line such as "Movie (Part 1) (1.2 GB)". The size
// annotation is the text inside the last pair of parentheses.
func FileEntry(text string) (catalog.File, error) {
	text = strings.TrimSpace(text)
	if !strings.HasSuffix(text, ")") {
		return catalog.File{}, invalid("file entry", text)
	}
	open := strings.LastIndexByte(text, '(')
	if open < 0 {
		return catalog.File{}, invalid("file entry", text)
	}
	name := strings.TrimSpace(text[:open])
	if name == "" {
		return catalog.File{}, invalid("file entry", text)
	}
	size, err := Size(text[open+1 : len(text)-1])
	if err != nil {
		return catalog.File{}, invalid("file entry", text)
	}
	return catalog.File{Name: name, Size: size}, nil
}

// Count parses a non-negative integer counter, ignoring grouping commas.
func Count(text string) (uint64, error) {
	n, err := strconv.ParseUint(strings.ReplaceAll(strings.TrimSpace(text), ",", ""), 10, 64)
	if err != nil {
		return 0, invalid("count", text)
	}
	return n, nil
}
