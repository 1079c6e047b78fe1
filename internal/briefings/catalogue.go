package briefings

import (
	"time"

	"github.com/jimdaga/localbrief/internal/models"
	"github.com/jimdaga/localbrief/internal/providers"
	"github.com/jimdaga/localbrief/internal/staleness"
)

// categoryDef binds a provider category to its briefing column and freshness rule.
type categoryDef struct {
	category providers.Category
	column   string
	policy   staleness.Policy
	core     bool
}

// catalogue lists every briefing category. Events are read back from the
// event catalogue rather than fetched live.
func catalogue(eventsTTL time.Duration) []categoryDef {
	return []categoryDef{
		{providers.CategoryTraffic, models.ColumnTrafficConditions, staleness.Policy{Kind: staleness.AlwaysFresh}, true},
		{providers.CategoryEvents, models.ColumnEvents, staleness.Policy{Kind: staleness.DBSourced, TTL: eventsTTL}, true},
		{providers.CategoryNews, models.ColumnNews, staleness.Policy{Kind: staleness.CalendarDay}, true},
		{providers.CategorySchoolClosures, models.ColumnSchoolClosures, staleness.Policy{Kind: staleness.CalendarDay}, true},
		{providers.CategoryWeatherCurrent, models.ColumnWeatherCurrent, staleness.Policy{Kind: staleness.AlwaysFresh}, false},
		{providers.CategoryWeatherForecast, models.ColumnWeatherForecast, staleness.Policy{Kind: staleness.ShortTTL, TTL: time.Hour}, false},
		{providers.CategoryAirport, models.ColumnAirportConditions, staleness.Policy{Kind: staleness.AlwaysFresh}, false},
	}
}
