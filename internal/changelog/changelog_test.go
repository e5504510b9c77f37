package changelog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/changelogged/internal/model"
)

func TestBuildTimelineOrdersByTimeIndex(t *testing.T) {
	tl := BuildTimeline([]model.VersionRecord{
		{Label: "Alpha v1.2", TimeIndex: 3},
		{Label: "Alpha v1.0", TimeIndex: 1},
		{Label: "Alpha v1.1", TimeIndex: 2},
	})

	require.Equal(t, 3, tl.Len())
	assert.Equal(t, []model.Version{
		{Label: "Alpha v1.0", Ordinal: 0},
		{Label: "Alpha v1.1", Ordinal: 1},
		{Label: "Alpha v1.2", Ordinal: 2},
	}, tl.Versions())

	latest, ok := tl.Latest()
	require.True(t, ok)
	assert.Equal(t, "Alpha v1.2", latest.Label)

	ord, ok := tl.Ordinal("Alpha v1.1")
	require.True(t, ok)
	assert.Equal(t, 1, ord)

	_, ok = tl.Ordinal("Beta v9.9")
	assert.False(t, ok)
}

func TestBuildTimelineStableTies(t *testing.T) {
	records := []model.VersionRecord{
		{Label: "B v1.0", TimeIndex: 5},
		{Label: "A v1.0", TimeIndex: 5},
		{Label: "C v1.0", TimeIndex: 1},
		{Label: "D v1.0", TimeIndex: 5},
	}
	for i := 0; i < 10; i++ {
		tl := BuildTimeline(records)
		var labels []string
		for _, v := range tl.Versions() {
			labels = append(labels, v.Label)
		}
		assert.Equal(t, []string{"C v1.0", "B v1.0", "A v1.0", "D v1.0"}, labels)
	}
}

func TestBuildTimelineEmpty(t *testing.T) {
	tl := BuildTimeline(nil)
	assert.Equal(t, 0, tl.Len())
	_, ok := tl.Latest()
	assert.False(t, ok)
}

func TestBuildTimelineDoesNotMutateInput(t *testing.T) {
	records := []model.VersionRecord{
		{Label: "b", TimeIndex: 2},
		{Label: "a", TimeIndex: 1},
	}
	BuildTimeline(records)
	assert.Equal(t, "b", records[0].Label)
}

func TestAggregateGroupsByPageAndOrdinal(t *testing.T) {
	tl := BuildTimeline([]model.VersionRecord{
		{Label: "Alpha v1.0", TimeIndex: 0},
		{Label: "Alpha v1.1", TimeIndex: 1},
	})
	pages, err := Aggregate([]model.ChangeRecord{
		{Version: "Alpha v1.1", Page: "Castle", Text: "Added moat"},
		{Version: "Alpha v1.0", Page: "Castle", Text: "Added walls"},
		{Version: "Alpha v1.1", Page: "Castle", Text: "Added drawbridge"},
		{Version: "Alpha v1.0", Page: "Archer", Text: "Added archers"},
	}, tl)
	require.NoError(t, err)

	assert.Equal(t, []string{"Archer", "Castle"}, pages.Names())

	castle := pages["Castle"]
	assert.Equal(t, []string{"Added walls"}, castle.Changes[0])
	assert.Equal(t, []string{"Added moat", "Added drawbridge"}, castle.Changes[1])
	assert.Equal(t, 3, castle.Count())
	assert.Equal(t, 1, castle.MaxOrdinal())
	assert.Equal(t, []int{0, 1}, castle.Ordinals())

	assert.Equal(t, 0, pages["Archer"].MaxOrdinal())
}

func TestAggregateUnknownVersion(t *testing.T) {
	tl := BuildTimeline([]model.VersionRecord{{Label: "Alpha v1.0", TimeIndex: 0}})
	_, err := Aggregate([]model.ChangeRecord{
		{Version: "Alpha v1.0", Page: "Castle", Text: "ok"},
		{Version: "Alpha v2.0", Page: "Keep", Text: "orphan"},
	}, tl)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownVersion))

	var uv *UnknownVersionError
	require.True(t, errors.As(err, &uv))
	assert.Equal(t, "Alpha v2.0", uv.Label)
	assert.Contains(t, err.Error(), "Alpha v2.0")
}

func TestAggregateOnlyReferencedPages(t *testing.T) {
	tl := BuildTimeline([]model.VersionRecord{{Label: "Alpha v1.0", TimeIndex: 0}})
	pages, err := Aggregate(nil, tl)
	require.NoError(t, err)
	assert.Empty(t, pages)
}
