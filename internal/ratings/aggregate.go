package ratings

// AggregatePosition computes position averages over a pre-filtered player
// slice. A player missing a given attribute is excluded from that
// attribute's denominator only, never from the whole aggregate.
func AggregatePosition(position string, players []Player) PositionAverages {
	out := PositionAverages{
		Position:       position,
		MeanAttributes: map[string]float64{},
	}
	if len(players) == 0 {
		return out
	}

	var overallSum int
	attrSums := map[string]int{}
	attrCounts := map[string]int{}
	for _, p := range players {
		out.PlayerCount++
		overallSum += p.Overall
		for name, value := range p.Attributes {
			attrSums[name] += value
			attrCounts[name]++
		}
	}

	out.MeanOverall = float64(overallSum) / float64(out.PlayerCount)
	for name, sum := range attrSums {
		out.MeanAttributes[name] = float64(sum) / float64(attrCounts[name])
	}
	return out
}
