package popularity

// WeightedValue pairs an optional score with its weight. A nil value means
// "unknown" and is excluded from averaging entirely; it never counts as 0.
type WeightedValue struct {
	Value  *float64
	Weight float64
}

// WeightedAverage averages the non-nil values, renormalising over the
// weights that remain. All-nil input yields nil.
func WeightedAverage(values ...WeightedValue) *float64 {
	var sum, weight float64

	for _, v := range values {
		if v.Value == nil || v.Weight <= 0 {
			continue
		}
		sum += *v.Value * v.Weight
		weight += v.Weight
	}

	if weight == 0 {
		return nil
	}

	avg := sum / weight
	return &avg
}

func ptr(v float64) *float64 { return &v }
