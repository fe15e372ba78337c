// Package region maps an IANA time zone to the coarse region used to pick
// default bookmarks.
//
// The mapping is a prefix heuristic: America/* is reported as US even for
// Canada or Latin America, since no better signal is available client-side.
package region

import (
	"os"
	"strings"
	"time"
)

// Code is a region tag of the default bookmark set.
type Code string

const (
	US     Code = "US"
	EU     Code = "EU"
	AU     Code = "AU"
	JP     Code = "JP"
	CN     Code = "CN"
	TW     Code = "TW"
	KR     Code = "KR"
	Other  Code = "Other"
	Global Code = "Global"
)

type rule struct {
	prefixes []string
	code     Code
}

// Evaluated in order; the first match wins.
var rules = []rule{
	{prefixes: []string{"Asia/Taipei"}, code: TW},
	{prefixes: []string{"Asia/Shanghai", "Asia/Chongqing", "Asia/Urumqi"}, code: CN},
	{prefixes: []string{"Asia/Tokyo"}, code: JP},
	{prefixes: []string{"America/"}, code: US},
	{prefixes: []string{"Europe/"}, code: EU},
	{prefixes: []string{"Australia/"}, code: AU},
	{prefixes: []string{"Asia/Seoul"}, code: KR},
}

// Detect returns the region for tz, or Other when nothing matches.
func Detect(tz string) Code {
	for _, r := range rules {
		for _, p := range r.prefixes {
			if strings.HasPrefix(tz, p) {
				return r.code
			}
		}
	}
	return Other
}

// Local detects the region of the running process. TZ wins over
// time.Local, whose name is often just "Local".
func Local() Code {
	if tz := os.Getenv("TZ"); tz != "" {
		return Detect(tz)
	}
	return Detect(time.Local.String())
}

// Parse accepts a region code case-insensitively. ok is false for unknown
// codes.
func Parse(s string) (Code, bool) {
	s = strings.TrimSpace(s)
	for _, c := range []Code{US, EU, AU, JP, CN, TW, KR, Other, Global} {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}
