package proverapi

import "testing"

func TestWireValueCapsLocalOnlyLevels(t *testing.T) {
	cases := []struct {
		level Difficulty
		want  int32
	}{
		{DifficultySmall, 0},
		{DifficultySmallMedium, 1},
		{DifficultyMedium, 5},
		{DifficultyLarge, 10},
		{DifficultyExtraLarge, 10},
		{DifficultyExtraLarge5, 10},
	}
	for _, c := range cases {
		if got := c.level.WireValue(); got != c.want {
			t.Fatalf("%s.WireValue() = %d, want %d", c.level, got, c.want)
		}
	}
}
