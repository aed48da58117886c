package domain

import (
	"encoding/base64"
	"strconv"
)

// Page size bounds for run history listings.
const (
	DefaultMaxResults = 100
	MaxMaxResults     = 1000
)

// PageRequest holds pagination parameters for list operations. PageToken is
// opaque to callers; it carries the row offset of the next page.
type PageRequest struct {
	MaxResults int
	PageToken  string
}

// Offset returns the row offset encoded in the page token, or 0 when the
// token is empty or malformed.
func (p PageRequest) Offset() int {
	raw, err := base64.RawURLEncoding.DecodeString(p.PageToken)
	if err != nil || len(raw) == 0 {
		return 0
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Limit returns the effective page size, clamped to [1, MaxMaxResults].
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

// EncodePageToken returns the token for offset; "" for the first page.
func EncodePageToken(offset int) string {
	if offset <= 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

// NextPageToken returns the token following a page of limit rows starting at
// offset, or "" once total rows have been covered.
func NextPageToken(offset, limit int, total int64) string {
	if int64(offset+limit) >= total {
		return ""
	}
	return EncodePageToken(offset + limit)
}
