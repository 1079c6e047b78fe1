package events

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const maxDescriptionRunes = 500

var (
	whitespace = regexp.MustCompile(`\s+`)

	isoDate   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[t ](\d{1,2}):(\d{2}))?`)
	slashDate = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?$`)

	monthNames = `(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\.?`
	monthFirst = regexp.MustCompile(`\b` + monthNames + `\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4}))?`)
	dayFirst   = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?` + monthNames + `(?:,?\s+(\d{4}))?`)

	clockToken = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?(?:\s*(am|pm)\b)?`)

	meridiemForms = strings.NewReplacer(
		"a.m.", "am", "p.m.", "pm",
		"a. m.", "am", "p. m.", "pm",
		"noon", "12:00pm", "midnight", "12:00am",
	)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// Field aliases seen across providers, most specific first.
var (
	titleKeys     = []string{"title", "name", "event_name", "event_title"}
	venueKeys     = []string{"venue", "venue_name", "location_name", "place"}
	addressKeys   = []string{"address", "venue_address", "formatted_address", "street_address", "location"}
	startDateKeys = []string{"date", "start_date", "event_date", "startDate", "start"}
	endDateKeys   = []string{"end_date", "endDate", "end"}
	startTimeKeys = []string{"time", "start_time", "event_time", "startTime"}
	endTimeKeys   = []string{"end_time", "endTime"}
	categoryKeys  = []string{"category", "subtype", "type", "event_type", "genre"}
	impactKeys    = []string{"expected_attendance", "attendance", "impact", "crowd"}
	descKeys      = []string{"description", "summary", "details"}
	urlKeys       = []string{"url", "link", "ticket_url", "website"}
)

// Normalize maps one raw provider event onto the canonical Event. It never
// fails: fields that cannot be read or parsed come back empty.
func Normalize(raw any, loc Location) Event {
	ev := Event{Category: CategoryOther, Impact: ImpactMedium}

	obj, ok := raw.(map[string]any)
	if !ok {
		return ev
	}

	ev.Title = deQuote(field(obj, titleKeys...))

	// Some providers nest venue details in an object.
	for _, key := range []string{"venue", "location"} {
		if nested, ok := obj[key].(map[string]any); ok {
			if ev.Venue == "" {
				ev.Venue = field(nested, "name", "venue_name", "title")
			}
			if ev.Address == "" {
				ev.Address = field(nested, "address", "street", "formatted_address")
			}
		}
	}
	if ev.Venue == "" {
		ev.Venue = field(obj, venueKeys...)
	}
	if ev.Address == "" {
		ev.Address = field(obj, addressKeys...)
	}

	ev.City = firstNonEmpty(field(obj, "city"), loc.City)
	ev.State = firstNonEmpty(field(obj, "state"), loc.State)

	rawStart := field(obj, startDateKeys...)
	ev.StartDate = parseDate(rawStart, loc)

	ev.StartTime, ev.EndTime = parseTime(field(obj, startTimeKeys...))
	if ev.StartTime == "" {
		ev.StartTime = clockFromISO(rawStart)
	}
	if end, _ := parseTime(field(obj, endTimeKeys...)); end != "" {
		ev.EndTime = end
	}

	// Single-day unless a later end date is given.
	ev.EndDate = ev.StartDate
	if end := parseDate(field(obj, endDateKeys...), loc); end != "" && ev.StartDate != "" && end > ev.StartDate {
		ev.EndDate = end
	}
	// "10 pm - 2 am" ends the next morning.
	if ev.EndDate == ev.StartDate && crossesMidnight(ev.StartTime, ev.EndTime) {
		if next := shiftDate(ev.StartDate, 1); next != "" {
			ev.EndDate = next
		}
	}

	ev.Category = parseCategory(field(obj, categoryKeys...))
	ev.Impact = parseImpact(firstPresent(obj, impactKeys...))
	ev.Description = truncateRunes(field(obj, descKeys...), maxDescriptionRunes)
	ev.URL = field(obj, urlKeys...)

	return ev
}

// field returns the first non-empty scalar value found under keys.
func field(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := scalar(obj[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstPresent(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return collapse(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// deQuote drops double quotes anywhere in the title and single quotes
// wrapping it.
func deQuote(s string) string {
	s = strings.NewReplacer(`"`, "", "“", "", "”", "", "„", "").Replace(s)
	s = strings.Trim(collapse(s), "'‘’ ")
	return collapse(s)
}

func parseDate(s string, loc Location) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	switch s {
	case "today", "tonight", "this evening":
		return shiftDate(loc.Date, 0)
	case "tomorrow", "tomorrow night":
		return shiftDate(loc.Date, 1)
	}

	if m := isoDate.FindStringSubmatch(s); m != nil {
		return makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := slashDate.FindStringSubmatch(s); m != nil {
		return makeDate(yearOr(m[3], loc), atoi(m[1]), atoi(m[2]))
	}
	if m := monthFirst.FindStringSubmatch(s); m != nil {
		return makeDate(yearOr(m[3], loc), int(months[m[1][:3]]), atoi(m[2]))
	}
	if m := dayFirst.FindStringSubmatch(s); m != nil {
		return makeDate(yearOr(m[3], loc), int(months[m[2][:3]]), atoi(m[1]))
	}
	return ""
}

// crossesMidnight reports whether an "HH:MM" end falls before its start.
func crossesMidnight(start, end string) bool {
	return start != "" && end != "" && end < start
}

func shiftDate(date string, days int) string {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return ""
	}
	return d.AddDate(0, 0, days).Format(dateLayout)
}

func yearOr(s string, loc Location) int {
	switch len(s) {
	case 0:
		return loc.Year()
	case 2:
		return 2000 + atoi(s)
	default:
		return atoi(s)
	}
}

func makeDate(y, m, d int) string {
	if y <= 0 || m < 1 || m > 12 || d < 1 || d > 31 {
		return ""
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(m) || t.Day() != d {
		return ""
	}
	return t.Format(dateLayout)
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func clockFromISO(s string) string {
	m := isoDate.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil || m[4] == "" {
		return ""
	}
	return formatClock(atoi(m[4]), atoi(m[5]), "")
}

type clock struct {
	hour, minute int
	meridiem     string
	hasMinutes   bool
}

// parseTime reads a start time and an optional end time from free text such
// as "3:30 PM", "15:30", "7-9 p.m." or "noon". Both come back as 24h HH:MM.
func parseTime(s string) (start, end string) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || isPlaceholder(s) {
		return "", ""
	}
	s = meridiemForms.Replace(s)

	var clocks []clock
	for _, m := range clockToken.FindAllStringSubmatch(s, -1) {
		c := clock{hour: atoi(m[1]), meridiem: m[3], hasMinutes: m[2] != ""}
		if c.hasMinutes {
			c.minute = atoi(m[2])
		}
		clocks = append(clocks, c)
	}

	// "7-9 pm": the start borrows the end's meridiem.
	for i := 0; i+1 < len(clocks); i++ {
		if clocks[i].meridiem == "" && clocks[i+1].meridiem != "" && clocks[i].hour <= 12 {
			clocks[i].meridiem = clocks[i+1].meridiem
		}
	}

	var found []string
	for _, c := range clocks {
		// Bare numbers are ambiguous (years, counts).
		if !c.hasMinutes && c.meridiem == "" {
			continue
		}
		if v := formatClock(c.hour, c.minute, c.meridiem); v != "" {
			found = append(found, v)
		}
		if len(found) == 2 {
			break
		}
	}

	switch len(found) {
	case 0:
		return "", ""
	case 1:
		return found[0], ""
	default:
		return found[0], found[1]
	}
}

func formatClock(h, m int, meridiem string) string {
	if m < 0 || m > 59 {
		return ""
	}
	switch meridiem {
	case "am", "pm":
		if h < 1 || h > 12 {
			return ""
		}
		if meridiem == "pm" && h != 12 {
			h += 12
		}
		if meridiem == "am" && h == 12 {
			h = 0
		}
	default:
		if h < 0 || h > 23 {
			return ""
		}
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// categoryRules map free-text kinds to the closed enum; first match wins.
var categoryRules = []struct {
	category Category
	needles  []string
}{
	{CategoryComedy, []string{"comedy", "comedian", "stand-up", "standup", "improv"}},
	{CategorySports, []string{"sport", "game", "baseball", "basketball", "football", "soccer", "hockey", "mlb", "nba", "nfl", "nhl", "mls", "tournament", "match", "marathon", "rodeo"}},
	{CategoryTheater, []string{"theater", "theatre", "musical", "broadway", "opera", "ballet", "cirque", "drama"}},
	{CategoryConcert, []string{"concert", "music", "band", "symphony", "orchestra", "tour", "gig"}},
	{CategoryFestival, []string{"festival", "fest", "fair", "parade", "carnival"}},
	{CategoryConference, []string{"conference", "expo", "convention", "summit", "seminar", "workshop", "meetup"}},
	{CategoryNightlife, []string{"nightlife", "club", "dj", "party", "lounge"}},
	{CategoryFamily, []string{"family", "kids", "children", "zoo"}},
	{CategoryCommunity, []string{"community", "market", "volunteer", "charity", "fundraiser", "library"}},
}

func parseCategory(s string) Category {
	s = strings.ToLower(s)
	if s == "" {
		return CategoryOther
	}
	for _, rule := range categoryRules {
		if s == string(rule.category) {
			return rule.category
		}
	}
	for _, rule := range categoryRules {
		for _, needle := range rule.needles {
			if strings.Contains(s, needle) {
				return rule.category
			}
		}
	}
	return CategoryOther
}

func parseImpact(v any) Impact {
	switch t := v.(type) {
	case float64:
		return impactFromCount(t)
	case int:
		return impactFromCount(float64(t))
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		switch {
		case strings.Contains(s, "high"), strings.Contains(s, "large"), strings.Contains(s, "major"):
			return ImpactHigh
		case strings.Contains(s, "medium"), strings.Contains(s, "moderate"):
			return ImpactMedium
		case strings.Contains(s, "low"), strings.Contains(s, "small"), strings.Contains(s, "minor"):
			return ImpactLow
		}
		if n, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			return impactFromCount(n)
		}
	}
	return ImpactMedium
}

func impactFromCount(n float64) Impact {
	switch {
	case n >= 10000:
		return ImpactHigh
	case n >= 1000:
		return ImpactMedium
	default:
		return ImpactLow
	}
}
