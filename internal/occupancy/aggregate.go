package occupancy

import (
	"math"
	"sort"
)

// HourlyAverage groups logs by hour-of-day only, merging readings from
// different dates, and returns the mean available spaces per hour rounded to
// two decimals.
func HourlyAverage(logs []StationLog) HourlyStats {
	if len(logs) == 0 {
		return HourlyStats{}
	}

	type acc struct {
		sum   int
		count int
	}
	buckets := make(map[int]*acc)
	for _, l := range logs {
		h := l.Timestamp.Hour()
		b, ok := buckets[h]
		if !ok {
			b = &acc{}
			buckets[h] = b
		}
		b.sum += l.AvailableSpaces
		b.count++
	}

	out := make(HourlyStats, len(buckets))
	for h, b := range buckets {
		out[h] = round2(float64(b.sum) / float64(b.count))
	}
	return out
}

// HourlyDelta measures the flow of a station: within each (date, hour) bucket
// the absolute difference between the chronologically last and first reading,
// summed per hour-of-day across dates. Buckets holding a single reading
// contribute nothing, so an hour only appears once some date had at least two
// readings in it.
func HourlyDelta(logs []StationLog) HourlyStats {
	if len(logs) < 2 {
		return HourlyStats{}
	}

	sorted := make([]StationLog, len(logs))
	copy(sorted, logs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	type bucketKey struct {
		year int
		yday int
		hour int
	}
	type span struct {
		first int
		last  int
		count int
	}

	// Bucket keys in first-seen order keep the accumulation deterministic.
	var order []bucketKey
	buckets := make(map[bucketKey]*span)
	for _, l := range sorted {
		ts := l.Timestamp
		k := bucketKey{year: ts.Year(), yday: ts.YearDay(), hour: ts.Hour()}
		b, ok := buckets[k]
		if !ok {
			b = &span{first: l.AvailableSpaces}
			buckets[k] = b
			order = append(order, k)
		}
		b.last = l.AvailableSpaces
		b.count++
	}

	flow := make(map[int]float64)
	for _, k := range order {
		b := buckets[k]
		if b.count < 2 {
			continue
		}
		flow[k.hour] += math.Abs(float64(b.last - b.first))
	}

	out := make(HourlyStats, len(flow))
	for h, v := range flow {
		out[h] = round2(v)
	}
	return out
}

// round2 rounds half to even at two decimal places.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
