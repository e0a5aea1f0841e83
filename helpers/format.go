package helpers

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\{(\d+)\}`)

// PadNumber left-pads n with zeros up to size digits (2 when size <= 0).
func PadNumber(n int, size int) string {
	if size <= 0 {
		size = 2
	}
	s := strconv.Itoa(n)
	for len(s) < size {
		s = "0" + s
	}
	return s
}

// FormatTime renders seconds as mm:ss. Seconds are rounded, not truncated,
// so 59.6 renders as 00:60.
func FormatTime(seconds float64) string {
	if seconds >= 60 {
		return PadNumber(int(math.Floor(seconds/60)), 2) + ":" + PadNumber(int(math.Round(math.Mod(seconds, 60))), 2)
	}
	return "00:" + PadNumber(int(math.Round(seconds)), 2)
}

// FormatString replaces {0}, {1}, ... with the matching argument. Placeholders
// without an argument are left as they are.
func FormatString(format string, args ...string) string {
	return placeholder.ReplaceAllStringFunc(format, func(m string) string {
		n, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || n >= len(args) {
			return m
		}
		return args[n]
	})
}

// ReplaceParameter sets name=value in the query of rawURL, appending the
// parameter when it is not present yet.
func ReplaceParameter(rawURL, name, value string) string {
	pattern := regexp.MustCompile(`\b(` + regexp.QuoteMeta(name) + `=).*?(&|$)`)
	if pattern.MatchString(rawURL) {
		return pattern.ReplaceAllString(rawURL, "${1}"+value+"${2}")
	}
	sep := "?"
	if strings.Index(rawURL, "?") > 0 {
		sep = "&"
	}
	return rawURL + sep + name + "=" + value
}

// TrimToken strips trailing slashes that browsers and shells tend to append
// to a pasted session token.
func TrimToken(token string) string {
	return strings.TrimRight(token, "/")
}
