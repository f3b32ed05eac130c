package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"expenso/internal/core"
	"expenso/internal/report"
)

// maxBodyBytes bounds request bodies; a full replacement list is the
// largest thing a client sends.
const maxBodyBytes = 4 << 20

// bodyError is a malformed request body. It maps to 400.
type bodyError struct {
	msg string
}

func (e *bodyError) Error() string { return e.msg }

// decodeJSON reads exactly one JSON value from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return &bodyError{msg: "request body is required"}
		case errors.As(err, &maxErr):
			return &bodyError{msg: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)}
		case errors.As(err, &syntaxErr):
			return &bodyError{msg: fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)}
		case errors.As(err, &typeErr):
			return &bodyError{msg: fmt.Sprintf("field %q has the wrong type", typeErr.Field)}
		default:
			return &bodyError{msg: "malformed JSON body"}
		}
	}
	if dec.More() {
		return &bodyError{msg: "request body must hold a single JSON value"}
	}
	return nil
}

// parseReplaceBody accepts either a bare array of records or an object
// with an "expenses" array.
func parseReplaceBody(w http.ResponseWriter, r *http.Request) ([]core.RawExpense, error) {
	var raw json.RawMessage
	if err := decodeJSON(w, r, &raw); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(raw))

	var records []core.RawExpense
	switch {
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, &bodyError{msg: "expenses must be an array of objects"}
		}
	case strings.HasPrefix(trimmed, "{"):
		var wrapped struct {
			Expenses []core.RawExpense `json:"expenses"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, &bodyError{msg: "expenses must be an array of objects"}
		}
		if wrapped.Expenses == nil {
			return nil, &bodyError{msg: `missing "expenses" array`}
		}
		records = wrapped.Expenses
	default:
		return nil, &bodyError{msg: "expenses must be an array of objects"}
	}
	return records, nil
}

// parseTrendOptions reads category, days and window from the reports query.
func parseTrendOptions(q url.Values) (report.TrendOptions, error) {
	opts := report.TrendOptions{Category: strings.TrimSpace(q.Get("category"))}

	var err error
	if opts.LookbackDays, err = positiveInt(q, "days"); err != nil {
		return report.TrendOptions{}, err
	}
	if opts.WindowDays, err = positiveInt(q, "window"); err != nil {
		return report.TrendOptions{}, err
	}
	return opts, nil
}

// positiveInt returns 0 for a missing key so the caller's default applies.
func positiveInt(q url.Values, key string) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", report.ErrInvalidParams, key, v)
	}
	return n, nil
}

// trendCacheKey identifies a reports response. The user id prefix lets a
// write drop every cached view of that user at once.
func trendCacheKey(userID string, opts report.TrendOptions) string {
	return userCachePrefix(userID) + fmt.Sprintf("%s|%d|%d",
		strings.ToLower(opts.Category), opts.LookbackDays, opts.WindowDays)
}

func userCachePrefix(userID string) string {
	return userID + "|"
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
