package http

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"

	"borsa/internal/core"
	"borsa/internal/log"
)

// render executes a template into a buffer before writing, so a failed
// execution never leaks half a fragment to the client.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	s.renderStatus(w, r, http.StatusOK, name, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	body, err := s.execute(name, data)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			"template", name, log.FieldError, err.Error())
		InternalServerError("Errore di rendering").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) execute(name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, errors.New("templates not loaded")
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderCached memoizes the rendered fragment under key. Keys embed the
// snapshot version, so entries for superseded snapshots are never served;
// they age out of the LRU or go with the purge on the next change.
func (s *Server) renderCached(w http.ResponseWriter, r *http.Request, key, name string, data func() any) {
	if body, ok := s.fragments.Get(key); ok {
		s.cacheHits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(body)
		return
	}
	s.cacheMisses.Add(1)
	body, err := s.execute(name, data())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			"template", name, log.FieldError, err.Error())
		InternalServerError("Errore di rendering").Write(w)
		return
	}
	s.fragments.Set(key, body)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}

// fragmentKey builds a cache key from the fragment name, the snapshot
// version and whatever request parameters shape the output.
func fragmentKey(name string, version uint64, params ...string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(version, 10))
	for _, p := range params {
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// fmtMoney renders signed cents in the configured display currency.
func (s *Server) fmtMoney(m core.Money) string {
	return money.New(m.Cents, s.currency).Display()
}

func amountClass(m core.Money) string {
	if m.Cents < 0 {
		return "amount-out"
	}
	return "amount-in"
}

// fmtDay labels a day-group header. The zero time marks rows that carry no
// usable timestamp at all.
func fmtDay(t time.Time) string {
	if t.IsZero() {
		return "Senza data"
	}
	return t.Format("02/01/2006")
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("15:04")
}

// fmtInputTime formats a time for a datetime-local input value.
func fmtInputTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02T15:04")
}
