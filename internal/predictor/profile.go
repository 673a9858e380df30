package predictor

// HourlyProfile holds the mean price for each UTC hour of day.
// A slot with no observations is 0.
type HourlyProfile [24]float64

// BuildHourlyProfile averages historical prices by UTC hour.
func BuildHourlyProfile(pairs []HistoricalPair) HourlyProfile {
	var buckets [24][]float64
	for _, p := range pairs {
		h := p.Timestamp.UTC().Hour()
		buckets[h] = append(buckets[h], p.Price)
	}

	var profile HourlyProfile
	for h := range buckets {
		profile[h] = Mean(buckets[h])
	}
	return profile
}

// At returns the profile value for hour, or fallback when that slot has
// no usable (positive, finite) mean.
func (p HourlyProfile) At(hour int, fallback float64) float64 {
	if hour < 0 || hour > 23 {
		return fallback
	}
	v := p[hour]
	if v > 0 && isFinite(v) {
		return v
	}
	return fallback
}
