package domain

import (
	"encoding/base64"
	"strconv"
)

// Page size bounds for run listings.
const (
	DefaultMaxResults = 50
	MaxMaxResults     = 500
)

// PageRequest is an offset page over a newest-first listing. PageToken is
// opaque to callers.
type PageRequest struct {
	MaxResults int
	PageToken  string
}

// Offset decodes the page token. Empty, malformed and negative tokens all
// mean the first page.
func (p PageRequest) Offset() int {
	if p.PageToken == "" {
		return 0
	}
	raw, err := base64.RawURLEncoding.DecodeString(p.PageToken)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Limit returns MaxResults clamped to [1, MaxMaxResults], with
// DefaultMaxResults for unset values.
func (p PageRequest) Limit() int {
	switch {
	case p.MaxResults <= 0:
		return DefaultMaxResults
	case p.MaxResults > MaxMaxResults:
		return MaxMaxResults
	default:
		return p.MaxResults
	}
}

// EncodePageToken returns the token for offset, or "" for the first page.
func EncodePageToken(offset int) string {
	if offset <= 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

// NextPageToken returns the token for the page after [offset, offset+limit),
// or "" once total is exhausted.
func NextPageToken(offset, limit int, total int64) string {
	if next := offset + limit; int64(next) < total {
		return EncodePageToken(next)
	}
	return ""
}
