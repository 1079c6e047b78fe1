package providers

import (
	"context"
	"fmt"
	"time"
)

// StubProvider returns canned payloads for local development.
type StubProvider struct {
	name     string
	category Category
	priority int
	delay    time.Duration
	payload  []byte
}

// NewStubProvider creates a stub for category. A nil payload uses the built-in sample.
func NewStubProvider(name string, category Category, priority int, delay time.Duration, payload []byte) *StubProvider {
	if payload == nil {
		payload = stubPayloads[category]
	}
	return &StubProvider{
		name:     name,
		category: category,
		priority: priority,
		delay:    delay,
		payload:  payload,
	}
}

func (p *StubProvider) Name() string       { return p.name }
func (p *StubProvider) Category() Category { return p.category }
func (p *StubProvider) Priority() int      { return p.priority }

// Fetch returns the canned payload after the simulated delay.
func (p *StubProvider) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.payload == nil {
		return nil, fmt.Errorf("no stub payload for %s", p.category)
	}
	return p.payload, nil
}

var stubPayloads = map[Category][]byte{
	CategoryTraffic: []byte(`{
		"congestion": "moderate",
		"summary": "Slowdowns on the northbound interstate near downtown exits.",
		"incidents": [
			{"type": "construction", "description": "Right lane closed at Main St", "severity": "minor"}
		]
	}`),
	CategoryWeatherCurrent: []byte(`{
		"temperature_f": 72,
		"condition": "Partly Cloudy",
		"humidity_pct": 48,
		"wind_mph": 9
	}`),
	CategoryWeatherForecast: []byte(`{
		"hours": [
			{"time": "15:00", "temperature_f": 74, "condition": "Partly Cloudy", "precip_pct": 10},
			{"time": "18:00", "temperature_f": 69, "condition": "Clear", "precip_pct": 0}
		]
	}`),
	CategoryNews: []byte("```json\n" + `[
		{"title": "City council approves transit expansion", "source": "local-news", "url": "https://example.com/transit"},
		{"title": "Stadium renovation opens new gates", "source": "local-news", "url": "https://example.com/stadium"}
	]` + "\n```"),
	CategorySchoolClosures: []byte(`{"closures": [
		{"district": "Central ISD", "status": "open", "note": "Early release Friday"}
	]}`),
	CategoryAirport: []byte(`{
		"airports": [
			{"code": "DFW", "delay_minutes": 15, "status": "minor delays"}
		]
	}`),
	CategoryEvents: []byte(`Here are the events I found:
	[
		{"title": "\"O\" by Cirque du Soleil in Shared Reality", "venue": "Cosm", "address": "5776 Grandscape Blvd", "date": "today", "time": "3:30 PM", "category": "Theater show", "expected_attendance": "medium"},
		{"title": "O by Cirque du Soleil at Cosm", "venue": "Cosm", "address": "5752 Grandscape Blvd", "date": "today", "time": "15:30", "category": "theatre", "expected_attendance": "high"},
		{"title": "Rangers vs. Astros", "venue": "Globe Life Field", "address": "734 Stadium Dr, Arlington, TX", "date": "today", "time": "7:05 PM", "subtype": "MLB baseball", "expected_attendance": 38000},
		{"title": "Comedy Night TBD", "venue": "Various Locations", "date": "today", "time": "TBD"}
	]`),
}
