package http

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"borsa/internal/core"
)

// RequireMethod checks the request method against the allowed set and
// returns an error response builder on mismatch, nil when it matches.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

func RequireGET(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodGet)
}

// RequireUpdateOrDelete admits the methods htmx uses for row actions.
// POST stands in for PUT on forms that cannot send it.
func RequireUpdateOrDelete(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPut, http.MethodPost, http.MethodDelete)
}

// ParseFormOrFail parses the request form and returns an error response on
// failure, nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Formato richiesta non valido")
	}
	return nil
}

// PathID extracts the {id} segment as an int64. Zero and negative ids are
// rejected alongside garbage.
func PathID(r *http.Request) (int64, *HTMXResponseBuilder) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, BadRequestError("Identificativo non valido")
	}
	return id, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// formValue reads one sanitized form field.
func formValue(r *http.Request, key string) string {
	return sanitizeInput(r.Form.Get(key))
}

// formInt64 reads an optional numeric field; empty or unparsable means 0.
func formInt64(r *http.Request, key string) int64 {
	v := strings.TrimSpace(r.Form.Get(key))
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// formChecked reports whether a checkbox-style field was submitted on.
func formChecked(r *http.Request, key string) bool {
	switch strings.ToLower(strings.TrimSpace(r.Form.Get(key))) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// parseAmountField turns a decimal amount and a direction selector into
// signed cents. Direction "out" stores the amount negative.
func parseAmountField(amount, direction string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(strings.TrimSpace(amount))
	if err != nil {
		return core.Money{}, err
	}
	if direction != "in" {
		cents = -cents
	}
	return core.Money{Cents: cents}, nil
}

// parseTimeField accepts the datetime-local input format with a date-only
// fallback. Empty input returns the zero time so callers can default it.
func parseTimeField(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04", v, time.Local); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", v, time.Local)
}

// parseExpandedIDs decodes the comma separated expanded-node list that the
// tree fragment round-trips through its query string.
func parseExpandedIDs(raw string) core.IDSet {
	set := core.NewIDSet()
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil && id > 0 {
			set.Toggle(id)
		}
	}
	return set
}

// encodeExpandedIDs is the inverse of parseExpandedIDs. Output is sorted so
// the same set always encodes to the same string.
func encodeExpandedIDs(set core.IDSet) string {
	ids := set.IDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// queryInt64 reads an optional numeric query parameter.
func queryInt64(r *http.Request, key string) int64 {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
