// Package words converts non-negative amounts into English words using the
// Indian numbering system (crore, lakh, thousand).
package words

import (
	"fmt"
	"strings"
)

var ones = []string{
	"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
	"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen",
	"Sixteen", "Seventeen", "Eighteen", "Nineteen",
}

var tens = []string{
	"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety",
}

var groups = []struct {
	div  int64
	name string
}{
	{10000000, "Crore"},
	{100000, "Lakh"},
	{1000, "Thousand"},
}

func two(n int64) string {
	if n < 20 {
		return ones[n]
	}
	if n%10 == 0 {
		return tens[n/10]
	}
	return tens[n/10] + " " + ones[n%10]
}

func three(n int64) string {
	if n < 100 {
		return two(n)
	}
	s := ones[n/100] + " Hundred"
	if n%100 != 0 {
		s += " " + two(n%100)
	}
	return s
}

// AmountInWords renders n in words with an " Only" suffix, e.g.
// 350000 -> "Three Lakh Fifty Thousand Only". Zero renders as "Zero Only".
func AmountInWords(n int64) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("amount must be non-negative, got %d", n)
	}
	if n == 0 {
		return "Zero Only", nil
	}
	var parts []string
	for _, g := range groups {
		if n >= g.div {
			parts = append(parts, three(n/g.div), g.name)
			n %= g.div
		}
	}
	if n > 0 {
		parts = append(parts, three(n))
	}
	return strings.Join(parts, " ") + " Only", nil
}
