package popularity

import (
	"math"
	"testing"
)

func TestWeightedAverageExcludesUnknowns(t *testing.T) {
	v := 0.6

	// an unknown never drags the average toward zero
	got := WeightedAverage(WeightedValue{nil, 1}, WeightedValue{&v, 1})
	if got == nil || *got != 0.6 {
		t.Errorf("got %v, want 0.6", got)
	}

	if got := WeightedAverage(WeightedValue{nil, 1}, WeightedValue{nil, 2}); got != nil {
		t.Errorf("all unknown = %v, want nil", got)
	}

	if got := WeightedAverage(); got != nil {
		t.Errorf("no input = %v, want nil", got)
	}
}

func TestWeightedAverageRenormalises(t *testing.T) {
	a, b := 1.0, 0.0

	got := WeightedAverage(WeightedValue{&a, 0.5}, WeightedValue{&b, 0.3}, WeightedValue{nil, 0.2})
	want := (1.0 * 0.5) / 0.8
	if got == nil || math.Abs(*got-want) > 1e-9 {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWeightedAverageIgnoresZeroWeight(t *testing.T) {
	a, b := 1.0, 0.0

	got := WeightedAverage(WeightedValue{&a, 1}, WeightedValue{&b, 0})
	if got == nil || *got != 1 {
		t.Errorf("got %v, want 1", got)
	}
}

func TestGradeOf(t *testing.T) {
	cases := []struct {
		score *float64
		want  Grade
	}{
		{nil, GradeNA},
		{ptr(0.95), GradeS},
		{ptr(0.8), GradeS},
		{ptr(0.7999), GradeA},
		{ptr(0.65), GradeA},
		{ptr(0.5), GradeB},
		{ptr(0.4999), GradeC},
		{ptr(0.35), GradeC},
		{ptr(0.3499), GradeD},
		{ptr(0), GradeD},
	}

	for _, c := range cases {
		if got := GradeOf(c.score); got != c.want {
			t.Errorf("GradeOf(%v) = %s, want %s", c.score, got, c.want)
		}
	}
}
