package events

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	// " at Cosm", " @ Cosm", " - Cosm"
	venueSeparator = regexp.MustCompile(`(?i)(?:\s+(at|-|–|—)\s+|\s*@\s*)\S`)
	// " in Shared Reality"; only before a capitalized word so "Singin' in the Rain" survives.
	venueIn = regexp.MustCompile(`\s+in\s+\p{Lu}`)

	parenthetical = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
)

var streetAbbreviations = map[string]string{
	"boulevard":  "blvd",
	"street":     "st",
	"avenue":     "ave",
	"road":       "rd",
	"drive":      "dr",
	"parkway":    "pkwy",
	"highway":    "hwy",
	"freeway":    "fwy",
	"expressway": "expy",
	"lane":       "ln",
	"place":      "pl",
	"court":      "ct",
	"circle":     "cir",
	"suite":      "ste",
	"north":      "n",
	"south":      "s",
	"east":       "e",
	"west":       "w",
}

// Hash returns the content hash used as the storage key: 32 hex characters
// over the suffix-stripped title, venue plus address block, start date and
// start time. The time keeps a matinee and an evening show apart.
func Hash(ev Event) string {
	key := strings.Join([]string{
		normalizeText(stripVenueClause(deQuote(ev.Title), ev.Venue)),
		strings.TrimSpace(normalizeText(ev.Venue) + " " + blockAddress(ev.Address)),
		ev.StartDate,
		hashClock(ev.StartTime),
	}, "|")

	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// StripVenueSuffix drops a trailing venue clause from a title, so
// "Concert at Venue" and "Concert" compare equal.
func StripVenueSuffix(title string) string {
	return stripVenueClause(title, "")
}

// stripVenueClause cuts title at its last venue separator. A clause opened by
// " at " is only cut when it names venue (or venue is unknown), so "Night at
// the Museum" and "Night at the Opera" stay apart.
func stripVenueClause(title, venue string) string {
	title = strings.TrimSpace(title)
	cut, clause := -1, -1
	for _, m := range venueSeparator.FindAllStringSubmatchIndex(title, -1) {
		if m[0] <= 0 || m[0] <= cut {
			continue
		}
		cut, clause = m[0], -1
		if m[2] >= 0 && strings.EqualFold(title[m[2]:m[3]], "at") {
			clause = m[3]
		}
	}
	for _, m := range venueIn.FindAllStringIndex(title, -1) {
		if m[0] > 0 && m[0] > cut {
			cut, clause = m[0], -1
		}
	}
	if cut <= 0 {
		return title
	}
	if clause >= 0 && venue != "" && !namesVenue(title[clause:], venue) {
		return title
	}
	return strings.TrimSpace(title[:cut])
}

func namesVenue(clause, venue string) bool {
	c := strings.TrimPrefix(normalizeText(clause), "the ")
	v := strings.TrimPrefix(normalizeText(venue), "the ")
	if c == "" || v == "" {
		return false
	}
	return strings.Contains(c, v) || strings.Contains(v, c)
}

// normalizeText lowercases s and reduces it to words separated by single spaces.
func normalizeText(s string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// streetTokens returns the normalized words of the street line (before the
// first comma) with common suffixes abbreviated.
func streetTokens(address string) []string {
	if i := strings.IndexByte(address, ','); i >= 0 {
		address = address[:i]
	}
	tokens := strings.Fields(normalizeText(address))
	for i, t := range tokens {
		if abbr, ok := streetAbbreviations[t]; ok {
			tokens[i] = abbr
		}
	}
	return tokens
}

// blockAddress rounds the house number down to its hundred block so that
// 5776 and 5752 Grandscape Blvd land on the same key.
func blockAddress(address string) string {
	tokens := streetTokens(address)
	if len(tokens) > 0 {
		if n, err := strconv.Atoi(tokens[0]); err == nil {
			tokens[0] = strconv.Itoa(n / 100 * 100)
		}
	}
	return strings.Join(tokens, " ")
}

func hashClock(s string) string {
	if start, _ := parseTime(s); start != "" {
		return start
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func stripParentheticals(s string) string {
	return collapse(parenthetical.ReplaceAllString(s, " "))
}
