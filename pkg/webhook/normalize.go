package webhook

import "strings"

// NormalizeDateToDdMmYyyy turns D-M-Y, D.M.Y or D/M/Y into zero-padded
// DD/MM/YYYY. Input without exactly three non-empty segments is returned
// unchanged.
func NormalizeDateToDdMmYyyy(date string) string {
	cleaned := strings.NewReplacer(".", "-", "/", "-").Replace(date)
	parts := strings.Split(cleaned, "-")
	if len(parts) != 3 {
		return date
	}
	d, m, y := parts[0], parts[1], parts[2]
	if d == "" || m == "" || y == "" {
		return date
	}
	return padTwo(d) + "/" + padTwo(m) + "/" + y
}

func padTwo(s string) string {
	if len(s) < 2 {
		return strings.Repeat("0", 2-len(s)) + s
	}
	return s
}

// NormalizePhone keeps only the digits of phone. A phone with no digits at
// all is returned as given.
func NormalizePhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return phone
	}
	return digits
}
