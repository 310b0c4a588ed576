package flowaggregator

import (
	"math"
	"sort"

	"NetGauntlet/internal/model"
)

// finalizeFlow derives the immutable flow record from an accumulated flow.
// Timestamps are sorted first so capture reordering cannot produce negative
// inter-arrival times. Rates are zero for flows with zero duration, and the
// inter-arrival deviation is zero when fewer than two intervals exist.
func finalizeFlow(f *activeFlow) model.FlowRecord {
	ts := make([]float64, len(f.timestamps))
	copy(ts, f.timestamps)
	sort.Float64s(ts)

	n := len(ts)
	start := ts[0]
	end := ts[n-1]
	duration := end - start

	rec := model.FlowRecord{
		SrcIP:         f.key.SrcIP,
		DstIP:         f.key.DstIP,
		SrcPort:       f.key.SrcPort,
		DstPort:       f.key.DstPort,
		Protocol:      f.key.Protocol,
		StartTime:     start,
		EndTime:       end,
		Duration:      duration,
		PacketCount:   uint64(n),
		TotalBytes:    f.byteCount,
		AvgPacketSize: float64(f.byteCount) / float64(n),
	}

	if duration > 0 {
		rec.BytesPerSecond = float64(f.byteCount) / duration
		rec.PacketsPerSecond = float64(n) / duration
	}

	intervals := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		intervals = append(intervals, ts[i]-ts[i-1])
	}
	rec.IATMean = mean(intervals)
	rec.IATStd = sampleStdDev(intervals)
	return rec
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev returns the sample standard deviation (n-1 denominator), or 0
// when fewer than two values exist.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
