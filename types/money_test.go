package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyDisplay(t *testing.T) {
	tests := []struct {
		name    string
		money   Money
		display string
	}{
		{"RUB", RUB(19900), "199.00 ₽"},
		{"USD", USD(499), "$4.99"},
		{"EUR", EUR(1050), "€10.50"},
		{"Zero RUB", Zero("RUB"), "0.00 ₽"},
		{"Negative", USD(-250), "$-2.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.String(); got != tt.display {
				t.Errorf("String: got %q, want %q", got, tt.display)
			}
		})
	}
}

func TestParseMajor(t *testing.T) {
	tests := []struct {
		in       string
		currency string
		want     Money
		wantErr  bool
	}{
		{"199.00", "RUB", RUB(19900), false},
		{"4.5", "usd", USD(450), false},
		{"0", "rub", RUB(0), false},
		{"", "rub", RUB(0), false},
		{"12", "jpy", Money{Amount: 12, Currency: "jpy"}, false},
		{"1.234", "usd", Money{}, true},
		{"abc", "usd", Money{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in+"/"+tt.currency, func(t *testing.T) {
			got, err := ParseMajor(tt.in, tt.currency)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMoneyCompare(t *testing.T) {
	if RUB(100).Compare(RUB(200)) != -1 {
		t.Error("expected 100 < 200")
	}
	if RUB(200).Compare(RUB(100)) != 1 {
		t.Error("expected 200 > 100")
	}
	if Zero("usd").Compare(RUB(0)) != 0 {
		t.Error("zero amounts should compare equal across currencies")
	}
	if Zero("usd").Compare(RUB(100)) != -1 {
		t.Error("zero should sort before any positive price")
	}
}

func TestMoneyCompareCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for currency mismatch")
		}
	}()
	_ = USD(100).Compare(RUB(100))
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(RUB(49900))
	if err != nil {
		t.Fatal(err)
	}

	var got Money
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if !got.Equal(RUB(49900)) {
		t.Errorf("got %+v", got)
	}
}
