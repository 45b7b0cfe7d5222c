package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneySign(t *testing.T) {
	m := Money{Cents: -1234}
	if m.Abs().Cents != 1234 {
		t.Fatalf("abs expected 1234, got %d", m.Abs().Cents)
	}
	if m.Negated().Cents != 1234 {
		t.Fatalf("negated expected 1234, got %d", m.Negated().Cents)
	}
	if (Money{Cents: 50}).Negated().Cents != -50 {
		t.Fatalf("negating a positive amount must flip the sign")
	}
}

func TestMoneyJSONIsBareCents(t *testing.T) {
	b, err := json.Marshal(Money{Cents: -250})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "-250" {
		t.Fatalf("expected -250, got %s", b)
	}
	var m Money
	if err := json.Unmarshal([]byte("1299"), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Cents != 1299 {
		t.Fatalf("expected 1299, got %d", m.Cents)
	}
	if err := json.Unmarshal([]byte(`"12.99"`), &m); err == nil {
		t.Fatalf("expected error for non-integer amount")
	}
}
