package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseAmountField(t *testing.T) {
	tests := []struct {
		name      string
		amount    string
		direction string
		want      int64
		wantErr   bool
	}{
		{"expense stored negative", "12.50", "out", -1250, false},
		{"income stored positive", "12.50", "in", 1250, false},
		{"comma decimal", "7,5", "out", -750, false},
		{"whole euros", "100", "in", 10000, false},
		{"zero rejected", "0.00", "out", 0, true},
		{"sign rejected", "-5", "out", 0, true},
		{"garbage rejected", "dodici", "out", 0, true},
		{"empty rejected", "", "in", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAmountField(tt.amount, tt.direction)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAmountField(%q, %q) error = %v, wantErr %v", tt.amount, tt.direction, err, tt.wantErr)
			}
			if err == nil && got.Cents != tt.want {
				t.Errorf("parseAmountField(%q, %q) = %d, want %d", tt.amount, tt.direction, got.Cents, tt.want)
			}
		})
	}
}

func TestParseTimeField(t *testing.T) {
	got, err := parseTimeField("2026-03-14T09:30")
	if err != nil {
		t.Fatalf("datetime-local: %v", err)
	}
	want := time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("datetime-local = %v, want %v", got, want)
	}

	got, err = parseTimeField("2026-03-14")
	if err != nil {
		t.Fatalf("date only: %v", err)
	}
	if got.Hour() != 0 || got.Day() != 14 {
		t.Errorf("date only = %v, want midnight on the 14th", got)
	}

	got, err = parseTimeField("  ")
	if err != nil || !got.IsZero() {
		t.Errorf("blank = (%v, %v), want zero time and no error", got, err)
	}

	if _, err := parseTimeField("domani"); err == nil {
		t.Error("garbage input parsed without error")
	}
}

func TestExpandedIDsRoundTrip(t *testing.T) {
	set := parseExpandedIDs("5, 1,assorted,0,-3,12")
	for _, id := range []int64{1, 5, 12} {
		if !set.Has(id) {
			t.Errorf("id %d missing after parse", id)
		}
	}
	if set.Has(0) || set.Has(-3) {
		t.Error("non-positive ids kept")
	}

	if got := encodeExpandedIDs(set); got != "1,5,12" {
		t.Errorf("encode = %q, want sorted %q", got, "1,5,12")
	}
	if got := encodeExpandedIDs(parseExpandedIDs("")); got != "" {
		t.Errorf("encode of empty set = %q, want empty", got)
	}
}

func TestPathID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/things/42", nil)
	req.SetPathValue("id", "42")
	if id, resp := PathID(req); resp != nil || id != 42 {
		t.Errorf("PathID = (%d, %v), want (42, nil)", id, resp)
	}

	for _, raw := range []string{"0", "-7", "abc", ""} {
		req := httptest.NewRequest(http.MethodGet, "/things/x", nil)
		req.SetPathValue("id", raw)
		if _, resp := PathID(req); resp == nil {
			t.Errorf("PathID(%q) accepted, want rejection", raw)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  caffè \x00al\x1f bar  "); got != "caffè al bar" {
		t.Errorf("sanitizeInput = %q", got)
	}
	if got := sanitizeInput("riga1\nriga2"); got != "riga1\nriga2" {
		t.Errorf("newline stripped: %q", got)
	}
}

func TestRequireUpdateOrDelete(t *testing.T) {
	for _, m := range []string{http.MethodPut, http.MethodPost, http.MethodDelete} {
		req := httptest.NewRequest(m, "/things/1", nil)
		if resp := RequireUpdateOrDelete(req); resp != nil {
			t.Errorf("%s rejected", m)
		}
	}
	req := httptest.NewRequest(http.MethodGet, "/things/1", nil)
	resp := RequireUpdateOrDelete(req)
	if resp == nil {
		t.Fatal("GET accepted")
	}
	rec := httptest.NewRecorder()
	resp.Write(rec)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow == "" {
		t.Error("Allow header missing")
	}
}
