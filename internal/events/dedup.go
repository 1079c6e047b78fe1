package events

import (
	"strings"
	"unicode/utf8"
)

// Dedupe collapses near-duplicates within one discovery batch: events whose
// title (without parentheticals or venue clause), first two street words, start
// date and start time agree. Each group keeps its highest-impact member, ties going to
// the shortest title. Groups stay in order of first appearance.
func Dedupe(events []Event) (kept []Event, dropped int) {
	index := make(map[string]int, len(events))
	for _, ev := range events {
		key := groupKey(ev)
		i, seen := index[key]
		if !seen {
			index[key] = len(kept)
			kept = append(kept, ev)
			continue
		}
		dropped++
		if better(ev, kept[i]) {
			kept[i] = ev
		}
	}
	return kept, dropped
}

func groupKey(ev Event) string {
	title := normalizeText(stripVenueClause(stripParentheticals(deQuote(ev.Title)), ev.Venue))
	street := firstTwoStreetWords(ev.Address)
	if street == "" {
		street = normalizeText(ev.Venue)
	}
	return title + "|" + street + "|" + ev.StartDate + "|" + hashClock(ev.StartTime)
}

// firstTwoStreetWords skips the house number: "5776 Grandscape Blvd, Frisco"
// gives "grandscape blvd".
func firstTwoStreetWords(address string) string {
	var words []string
	for _, t := range streetTokens(address) {
		if len(words) == 0 && isNumber(t) {
			continue
		}
		words = append(words, t)
		if len(words) == 2 {
			break
		}
	}
	return strings.Join(words, " ")
}

func isNumber(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func better(candidate, current Event) bool {
	if candidate.Impact.rank() != current.Impact.rank() {
		return candidate.Impact.rank() > current.Impact.rank()
	}
	return utf8.RuneCountInString(candidate.Title) < utf8.RuneCountInString(current.Title)
}
