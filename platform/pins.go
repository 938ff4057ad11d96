package platform

import (
	"strconv"
	"strings"
)

// headerLines maps Arduino header digital pins D0..D13 to the Linux GPIO numbers wired to them.
// Level shifters and pin muxes are left as the board's firmware sets them up.
var headerLines = map[Platform][14]int{
	GalileoGen1: {50, 51, 14, 15, 28, 17, 24, 27, 26, 19, 16, 25, 38, 39},
	GalileoGen2: {11, 12, 13, 14, 6, 0, 1, 38, 40, 4, 10, 5, 15, 7},
	// Edison on the Arduino breakout.
	EdisonFabC: {130, 131, 128, 12, 129, 13, 182, 48, 49, 183, 41, 43, 42, 40},
}

// HeaderLine resolves an Arduino header pin name such as "D2" or "IO2" to the Linux GPIO number
// it is wired to on `p`. ok is false when `pin` is not a header name or `p` has no header table;
// such pins are used as given.
func HeaderLine(p Platform, pin string) (line string, ok bool) {
	idx, isHeader := headerIndex(pin)
	if !isHeader {
		return "", false
	}
	lines, known := headerLines[p]
	if !known || idx >= len(lines) {
		return "", false
	}
	return strconv.Itoa(lines[idx]), true
}

func headerIndex(pin string) (int, bool) {
	upper := strings.ToUpper(strings.TrimSpace(pin))
	var digits string
	switch {
	case strings.HasPrefix(upper, "IO"):
		digits = upper[2:]
	case strings.HasPrefix(upper, "D"):
		digits = upper[1:]
	default:
		return 0, false
	}
	idx, err := strconv.Atoi(digits)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
