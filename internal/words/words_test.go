package words

import "testing"

func TestAmountInWords(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{0, "Zero Only"},
		{1, "One Only"},
		{19, "Nineteen Only"},
		{20, "Twenty Only"},
		{45, "Forty Five Only"},
		{100, "One Hundred Only"},
		{105, "One Hundred Five Only"},
		{999, "Nine Hundred Ninety Nine Only"},
		{1000, "One Thousand Only"},
		{85500, "Eighty Five Thousand Five Hundred Only"},
		{350000, "Three Lakh Fifty Thousand Only"},
		{1234567, "Twelve Lakh Thirty Four Thousand Five Hundred Sixty Seven Only"},
		{10000000, "One Crore Only"},
		{123456789, "Twelve Crore Thirty Four Lakh Fifty Six Thousand Seven Hundred Eighty Nine Only"},
	}
	for _, tc := range cases {
		got, err := AmountInWords(tc.n)
		if err != nil {
			t.Fatalf("AmountInWords(%d) unexpected error: %v", tc.n, err)
		}
		if got != tc.want {
			t.Errorf("AmountInWords(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestAmountInWordsNegative(t *testing.T) {
	if _, err := AmountInWords(-1); err == nil {
		t.Error("expected error for negative amount")
	}
}
