package events

import "testing"

var testLoc = Location{City: "Frisco", State: "TX", Timezone: "America/Chicago", Date: "2026-10-17"}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2026-10-18", "2026-10-18"},
		{"2026-10-18T19:30:00", "2026-10-18"},
		{"10/18/2026", "2026-10-18"},
		{"10/18/26", "2026-10-18"},
		{"10/18", "2026-10-18"},
		{"Saturday, October 18", "2026-10-18"},
		{"Oct. 18th, 2027", "2027-10-18"},
		{"18 October 2026", "2026-10-18"},
		{"today", "2026-10-17"},
		{"Tonight", "2026-10-17"},
		{"tomorrow", "2026-10-18"},
		{"February 30", ""},
		{"sometime soon", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := parseDate(tt.in, testLoc); got != tt.want {
			t.Errorf("parseDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in        string
		wantStart string
		wantEnd   string
	}{
		{"3:30 PM", "15:30", ""},
		{"15:30", "15:30", ""},
		{"7:05 p.m.", "19:05", ""},
		{"8pm", "20:00", ""},
		{"12:15 am", "00:15", ""},
		{"noon", "12:00", ""},
		{"midnight", "00:00", ""},
		{"7-9 PM", "19:00", "21:00"},
		{"3:30 PM - 5:00 PM", "15:30", "17:00"},
		{"TBD", "", ""},
		{"evening", "", ""},
		{"25:00", "", ""},
	}
	for _, tt := range tests {
		start, end := parseTime(tt.in)
		if start != tt.wantStart || end != tt.wantEnd {
			t.Errorf("parseTime(%q) = (%q, %q), want (%q, %q)", tt.in, start, end, tt.wantStart, tt.wantEnd)
		}
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"Theater show", CategoryTheater},
		{"theatre", CategoryTheater},
		{"MLB baseball", CategorySports},
		{"sports", CategorySports},
		{"Stand-up comedy", CategoryComedy},
		{"Live music", CategoryConcert},
		{"Farmers market", CategoryCommunity},
		{"Food & wine festival", CategoryFestival},
		{"", CategoryOther},
		{"miscellaneous", CategoryOther},
	}
	for _, tt := range tests {
		if got := parseCategory(tt.in); got != tt.want {
			t.Errorf("parseCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseImpact(t *testing.T) {
	tests := []struct {
		in   any
		want Impact
	}{
		{"high", ImpactHigh},
		{"Moderate crowds", ImpactMedium},
		{"small", ImpactLow},
		{38000.0, ImpactHigh},
		{"2,500", ImpactMedium},
		{50.0, ImpactLow},
		{nil, ImpactMedium},
		{[]any{"x"}, ImpactMedium},
	}
	for _, tt := range tests {
		if got := parseImpact(tt.in); got != tt.want {
			t.Errorf("parseImpact(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	raw := map[string]any{
		"name": "  “Jazz   Night”  ",
		"venue": map[string]any{
			"name":    "Blue Room",
			"address": "100 Main St, Dallas, TX",
		},
		"start_date": "2026-10-20",
		"start_time": "8:00 PM",
		"subtype":    "Live music",
		"attendance": 1500.0,
		"link":       "https://example.com/jazz",
	}

	ev := Normalize(raw, testLoc)

	want := Event{
		Title:     "Jazz Night",
		Venue:     "Blue Room",
		Address:   "100 Main St, Dallas, TX",
		City:      "Frisco",
		State:     "TX",
		StartDate: "2026-10-20",
		EndDate:   "2026-10-20",
		StartTime: "20:00",
		Category:  CategoryConcert,
		Impact:    ImpactMedium,
		URL:       "https://example.com/jazz",
	}
	if ev != want {
		t.Errorf("Normalize =\n%+v\nwant\n%+v", ev, want)
	}
}

func TestNormalizeEndDate(t *testing.T) {
	multi := Normalize(map[string]any{"title": "Fair", "date": "2026-10-17", "end_date": "2026-10-19"}, testLoc)
	if multi.EndDate != "2026-10-19" {
		t.Errorf("multi-day end = %q, want 2026-10-19", multi.EndDate)
	}

	backwards := Normalize(map[string]any{"title": "Fair", "date": "2026-10-17", "end_date": "2026-10-10"}, testLoc)
	if backwards.EndDate != "2026-10-17" {
		t.Errorf("end before start = %q, want start date", backwards.EndDate)
	}

	overnight := Normalize(map[string]any{"title": "Late Set", "date": "2026-10-17", "time": "10 pm - 2 am"}, testLoc)
	if overnight.StartTime != "22:00" || overnight.EndTime != "02:00" || overnight.EndDate != "2026-10-18" {
		t.Errorf("overnight range = %s %s to %s %s, want end on 2026-10-18",
			overnight.StartDate, overnight.StartTime, overnight.EndDate, overnight.EndTime)
	}
}

func TestNormalizeTimeFromISODate(t *testing.T) {
	ev := Normalize(map[string]any{"title": "Show", "start": "2026-10-18T19:30:00-05:00"}, testLoc)
	if ev.StartDate != "2026-10-18" || ev.StartTime != "19:30" {
		t.Errorf("got date=%q time=%q", ev.StartDate, ev.StartTime)
	}
}

func TestNormalizeNeverFails(t *testing.T) {
	inputs := []any{
		nil,
		"just a string",
		42.0,
		[]any{"a", "b"},
		map[string]any{},
		map[string]any{"title": 42.0, "date": true, "time": []any{}},
		map[string]any{"title": map[string]any{"text": "x"}, "venue": []any{1.0}},
	}
	for i, in := range inputs {
		ev := Normalize(in, testLoc)
		if ev.Category == "" || ev.Impact == "" {
			t.Errorf("input %d: enums must always be set, got %+v", i, ev)
		}
	}

	ev := Normalize(map[string]any{"title": 42.0}, testLoc)
	if ev.Title != "42" {
		t.Errorf("numeric title = %q, want 42", ev.Title)
	}
}
