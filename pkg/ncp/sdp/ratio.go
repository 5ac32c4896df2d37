package sdp

import (
	"fmt"
	"strconv"
	"strings"
)

// formatRational encodes r the way ST 2110-20 section 7.2/7.3 requires:
// reduced to lowest terms, an integer when the denominator is unset or
// reduces to 1, otherwise "<numerator>/<denominator>".
func formatRational(r Rational) string {
	if r.Denominator == 0 || r.Denominator == 1 {
		return strconv.FormatUint(r.Numerator, 10)
	}
	g, b := r.Numerator, r.Denominator
	for b != 0 {
		g, b = b, g%b
	}
	n, d := r.Numerator/g, r.Denominator/g
	if d == 1 {
		return strconv.FormatUint(n, 10)
	}
	return fmt.Sprintf("%d/%d", n, d)
}

// parseRational parses an integer-or-ratio string; a missing denominator
// defaults to 1.
func parseRational(s string) (Rational, error) {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	if !found {
		return Rational{Numerator: n, Denominator: 1}, nil
	}
	d, err := strconv.ParseUint(den, 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	return Rational{Numerator: n, Denominator: d}, nil
}
