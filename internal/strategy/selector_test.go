package strategy

import (
	"testing"

	"srtrader/internal/model"
	"srtrader/internal/pivot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func supports(prices ...float64) pivot.PivotSet {
	var set pivot.PivotSet
	for _, p := range prices {
		set.Supports = append(set.Supports, pivot.Pivot{
			Role: pivot.RoleSupport,
			Bar:  model.Bar{Low: p, High: p + 1},
		})
	}
	return set
}

func TestNearestSupport_PicksHighestBelowLow(t *testing.T) {
	sel := NewNearestSupport()
	latest := model.Bar{Series: "6003", Low: 105, High: 107}

	cand, ok := sel.Select(supports(90, 100, 104, 110), latest)
	require.True(t, ok)
	assert.Equal(t, 104.0, cand.Price)
	assert.Equal(t, model.SeriesID("6003"), cand.Series)
	assert.Equal(t, "nearest_support", cand.Strategy)
}

func TestNearestSupport_StrictlyBelow(t *testing.T) {
	sel := NewNearestSupport()
	cand, ok := sel.Select(supports(100, 95), model.Bar{Low: 100, High: 101})
	require.True(t, ok)
	assert.Equal(t, 95.0, cand.Price, "a level equal to the low is not below it")
}

func TestNearestSupport_NoneQualifies(t *testing.T) {
	sel := NewNearestSupport()

	_, ok := sel.Select(pivot.PivotSet{}, model.Bar{Low: 10, High: 11})
	assert.False(t, ok)

	_, ok = sel.Select(supports(50, 60), model.Bar{Low: 40, High: 45})
	assert.False(t, ok, "price below every known support")
}

func TestNearestSupport_NeverAtOrAboveLow(t *testing.T) {
	sel := NewNearestSupport()
	levels := supports(1, 3, 5, 7, 9, 11)
	for low := 0.0; low <= 12; low += 0.5 {
		cand, ok := sel.Select(levels, model.Bar{Low: low, High: low + 1})
		if ok {
			assert.Less(t, cand.Price, low)
		}
	}
}

func TestNearestSupport_DoesNotReorderInput(t *testing.T) {
	set := supports(1, 2, 3)
	NewNearestSupport().Select(set, model.Bar{Low: 10, High: 11})
	assert.Equal(t, 1.0, set.Supports[0].Price())
	assert.Equal(t, 3.0, set.Supports[2].Price())
}
