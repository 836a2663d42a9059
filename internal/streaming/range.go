package streaming

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidRange reports a Range header that does not follow
	// "bytes=<start>-[<end>]".
	ErrInvalidRange = errors.New("malformed range header")
	// ErrUnsatisfiableRange reports a well-formed range starting past the end of the file.
	ErrUnsatisfiableRange = errors.New("range not satisfiable")
)

const rangeUnitPrefix = "bytes="

// ByteRange is an inclusive byte span.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Length() int64 { return r.End - r.Start + 1 }

// ContentRange renders the Content-Range header value for a file of size bytes.
func (r ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// ParseRange parses a single-span Range header against a file size.
//
// Only the first span of a multi-range header is honoured; the rest is
// ignored and the response is a plain 206 for that span. An end beyond the
// file is clamped to the last byte. Suffix ranges ("bytes=-500") are
// rejected as malformed.
func ParseRange(header string, size int64) (ByteRange, error) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, rangeUnitPrefix) {
		return ByteRange{}, ErrInvalidRange
	}
	span := strings.TrimPrefix(header, rangeUnitPrefix)
	if first, _, multi := strings.Cut(span, ","); multi {
		span = first
	}
	span = strings.TrimSpace(span)

	startStr, endStr, ok := strings.Cut(span, "-")
	if !ok || startStr == "" {
		return ByteRange{}, ErrInvalidRange
	}
	startStr = strings.TrimSpace(startStr)
	if !isDigits(startStr) {
		return ByteRange{}, ErrInvalidRange
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		// All digits, so only overflow is possible: past any real file.
		return ByteRange{}, ErrUnsatisfiableRange
	}

	end := size - 1
	if endStr = strings.TrimSpace(endStr); endStr != "" {
		if !isDigits(endStr) {
			return ByteRange{}, ErrInvalidRange
		}
		if end, err = strconv.ParseInt(endStr, 10, 64); err != nil {
			end = size - 1
		} else if end < start {
			return ByteRange{}, ErrInvalidRange
		}
	}

	if start >= size {
		return ByteRange{}, ErrUnsatisfiableRange
	}
	if end >= size {
		end = size - 1
	}
	return ByteRange{Start: start, End: end}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
