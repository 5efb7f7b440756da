package garden

import (
	"regexp"
	"strings"
)

var defaultPests = map[Species][]string{
	Carrot:    {"aphid", "caterpillar"},
	Cherry:    {"bird", "weevil"},
	Corn:      {"locust"},
	Pumpkin:   {"squashBug"},
	Sunflower: {"aphid"},
	Empty:     {},
}

var waterRequirement = map[Species]int{
	Carrot:    10,
	Cherry:    12,
	Corn:      15,
	Pumpkin:   20,
	Sunflower: 8,
}

// DefaultPests returns the pest kinds a species is vulnerable to.
// The returned slice is a copy.
func DefaultPests(s Species) []string {
	return append([]string(nil), defaultPests[s]...)
}

// Vulnerable reports whether species s can host pest kind.
func Vulnerable(s Species, kind string) bool {
	for _, k := range defaultPests[s] {
		if k == kind {
			return true
		}
	}
	return false
}

// KnownPest reports whether any species can host kind.
func KnownPest(kind string) bool {
	for _, s := range Planted {
		if Vulnerable(s, kind) {
			return true
		}
	}
	return false
}

// WaterRequirement returns the nominal water need for a species.
func WaterRequirement(s Species) int {
	return waterRequirement[s]
}

var camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)

// FormatPestName turns a camelCase pest kind into Title Case ("squashBug" → "Squash Bug").
func FormatPestName(kind string) string {
	if kind == "" {
		return kind
	}
	words := strings.Fields(camelBoundary.ReplaceAllString(kind, "$1 $2"))
	for i, w := range words {
		w = strings.ToLower(w)
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
