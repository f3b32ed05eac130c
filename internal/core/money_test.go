package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
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
		{"12.344", 1234, true},
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1e3", 0, false},
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

func TestParseMoneyAcceptsZero(t *testing.T) {
	m, err := ParseMoney("0.00")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if !m.IsZero() {
		t.Fatalf("expected zero, got %v", m)
	}
}

func TestMoneyFromDecimalRoundsHalfUp(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"20", 2000},
		{"6.665", 667},
		{"6.664", 666},
		{"33.333333", 3333},
		{"-1.005", -101},
	}
	for _, tc := range cases {
		m, err := MoneyFromDecimal(decimal.RequireFromString(tc.in))
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if m.Cents != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.in, tc.want, m.Cents)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Money `json:"a"`
	}{A: Cents(1230)})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"a":12.30}` {
		t.Fatalf("unexpected json %s", b)
	}

	var got struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":45.5,"b":"7,25"}`), &got); err == nil {
		t.Fatalf("comma decimal in JSON should be rejected")
	}
	if err := json.Unmarshal([]byte(`{"a":45.5,"b":"7.25"}`), &got); err != nil {
		t.Fatal(err)
	}
	if got.A.Cents != 4550 || got.B.Cents != 725 {
		t.Fatalf("unexpected values %+v", got)
	}

	var bad Money
	if err := json.Unmarshal([]byte(`"NaN"`), &bad); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for NaN, got %v", err)
	}
}

func TestMoneyString(t *testing.T) {
	if s := Cents(-505).String(); s != "-5.05" {
		t.Fatalf("expected -5.05, got %s", s)
	}
	if s := Cents(0).Add(Cents(7)).String(); s != "0.07" {
		t.Fatalf("expected 0.07, got %s", s)
	}
}
