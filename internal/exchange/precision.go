package exchange

import "strings"

// PrecisionFromStep converts an exchange step/tick size string into a decimal
// place count: "0.00100000" -> 3, "0.01" -> 2, "1" -> 0. Unparseable or zero
// steps yield the fallback.
func PrecisionFromStep(step string, fallback int32) int32 {
	s := strings.TrimSpace(step)
	if s == "" {
		return fallback
	}
	dot := strings.IndexByte(s, '.')
	intPart := s
	fracPart := ""
	if dot >= 0 {
		intPart = s[:dot]
		fracPart = s[dot+1:]
	}
	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return fallback
		}
	}
	fracPart = strings.TrimRight(fracPart, "0")
	if fracPart == "" {
		// Whole-number step, e.g. "1". A zero step means no metadata.
		if strings.Trim(intPart, "0") == "" {
			return fallback
		}
		return 0
	}
	return int32(len(fracPart))
}
