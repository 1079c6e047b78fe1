package models

import (
	"testing"

	"gorm.io/datatypes"
)

func TestBriefingMissingCounts(t *testing.T) {
	b := &Briefing{
		Events:         datatypes.JSON(`[{"title":"x"}]`),
		SchoolClosures: datatypes.JSON(`[]`),
		WeatherCurrent: datatypes.JSON(`null`),
	}

	core, optional := b.MissingCounts()
	if core != 2 {
		t.Errorf("core missing = %d, want 2 (traffic, news)", core)
	}
	if optional != 3 {
		t.Errorf("optional missing = %d, want 3", optional)
	}

	b.SetColumn(ColumnTrafficConditions, datatypes.JSON(`{}`))
	b.SetColumn(ColumnNews, datatypes.JSON(`[]`))
	if core, _ := b.MissingCounts(); core != 0 {
		t.Errorf("core missing after fill = %d, want 0", core)
	}
	if string(b.Column(ColumnNews)) != `[]` {
		t.Errorf("Column(news) = %s", b.Column(ColumnNews))
	}
	if b.Column("unknown") != nil {
		t.Error("unknown column should be nil")
	}
}
