package service

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/akave-ai/servicelogs/internal/model"
	"github.com/akave-ai/servicelogs/internal/repository"
)

const (
	DefaultLimit  = 10
	MaxLimit      = 100
	DefaultOffset = 0
	MaxOffset     = 100
)

// SearchParams holds the raw search query parameters.
type SearchParams struct {
	Level     string
	Module    string
	RequestID string
	VisitorID string
	Limit     string
	Offset    string
	StartDate string
	EndDate   string
}

// ClampLimit maps a negative limit to DefaultLimit and caps it at MaxLimit.
// Zero is kept: it asks for no results.
func ClampLimit(limit int) int {
	if limit < 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// ClampOffset resets an out-of-range offset to the first page.
func ClampOffset(offset int) int {
	if offset < 0 || offset > MaxOffset {
		return DefaultOffset
	}
	return offset
}

// BuildQuery turns raw parameters into a storage filter and pagination.
// Limit and offset are read from their leading integer ("20.5" is 20); absent
// or non-numeric values fall back to their defaults.
func BuildQuery(appID string, p SearchParams) (repository.Filter, repository.FindOptions, error) {
	f := repository.Filter{
		AppID:     appID,
		Level:     strings.TrimSpace(p.Level),
		Module:    strings.TrimSpace(p.Module),
		RequestID: strings.TrimSpace(p.RequestID),
		VisitorID: strings.TrimSpace(p.VisitorID),
	}

	if p.StartDate != "" {
		start, err := model.ParseTime(p.StartDate)
		if err != nil {
			return f, repository.FindOptions{}, invalid("start_date", err.Error())
		}
		f.CreatedAfter = &start
	}
	if p.EndDate != "" {
		end, err := model.ParseTime(p.EndDate)
		if err != nil {
			return f, repository.FindOptions{}, invalid("end_date", err.Error())
		}
		f.CreatedBefore = &end
	}

	opts := repository.FindOptions{
		Limit:  DefaultLimit,
		Offset: DefaultOffset,
	}
	if n, ok := parseLeadingInt(p.Limit); ok {
		opts.Limit = ClampLimit(n)
	}
	if n, ok := parseLeadingInt(p.Offset); ok {
		opts.Offset = ClampOffset(n)
	}
	return f, opts, nil
}

// parseLeadingInt reads an optional sign and the digits after it, ignoring
// whatever follows. Values outside the int range saturate.
func parseLeadingInt(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if errors.Is(err, strconv.ErrRange) {
		n = math.MaxInt
	}
	if neg {
		n = -n
	}
	return n, true
}
