package sim

import (
	"sort"
	"time"

	"bringup-go/types"

	"gonum.org/v1/gonum/stat"
)

// PinStat summarises the waveform on one pin. Period and Duty are averaged
// over complete rising-to-rising cycles; they are zero when fewer than one
// cycle was recorded.
type PinStat struct {
	Pin          types.PinID
	Name         string
	Edges        int
	Cycles       int
	Period       time.Duration
	PeriodStdDev time.Duration
	Duty         float64 // high fraction of a period, 0..1
}

// UARTStat summarises the frames written on one UART.
type UARTStat struct {
	Bus            string
	Frames         int
	Bytes          int
	Interval       time.Duration // mean gap between frame ends
	IntervalStdDev time.Duration
}

// PinStats returns one entry per recorded pin, in Pins order.
func (r Report) PinStats() []PinStat {
	var out []PinStat
	for _, pin := range r.Pins() {
		tl := r.Timelines[pin]
		ps := PinStat{Pin: pin}
		if len(tl) > 0 {
			ps.Name = tl[0].Name
			ps.Edges = len(tl) - 1
		}

		var rises, falls []int64
		for i := 1; i < len(tl); i++ {
			if tl[i].Level == types.High {
				rises = append(rises, tl[i].TSns)
			} else {
				falls = append(falls, tl[i].TSns)
			}
		}
		var periods, duties []float64
		for i := 1; i < len(rises); i++ {
			start, end := rises[i-1], rises[i]
			period := float64(end - start)
			if period <= 0 {
				continue
			}
			// first fall inside the cycle
			j := sort.Search(len(falls), func(k int) bool { return falls[k] > start })
			high := period
			if j < len(falls) && falls[j] < end {
				high = float64(falls[j] - start)
			}
			periods = append(periods, period)
			duties = append(duties, high/period)
		}
		ps.Cycles = len(periods)
		if ps.Cycles > 0 {
			mean, std := meanStd(periods)
			ps.Period, ps.PeriodStdDev = time.Duration(mean), time.Duration(std)
			ps.Duty = stat.Mean(duties, nil)
		}
		out = append(out, ps)
	}
	return out
}

// UARTStats returns one entry per UART that produced frames, sorted by id.
func (r Report) UARTStats() []UARTStat {
	byBus := make(map[string][]types.SerialFrame)
	for _, f := range r.Frames {
		byBus[f.Bus] = append(byBus[f.Bus], f)
	}
	ids := make([]string, 0, len(byBus))
	for id := range byBus {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]UARTStat, 0, len(ids))
	for _, id := range ids {
		frames := byBus[id]
		us := UARTStat{Bus: id, Frames: len(frames)}
		gaps := make([]float64, 0, len(frames))
		for i, f := range frames {
			us.Bytes += len(f.Data)
			if i > 0 {
				gaps = append(gaps, float64(f.TSns-frames[i-1].TSns))
			}
		}
		if len(gaps) > 0 {
			mean, std := meanStd(gaps)
			us.Interval, us.IntervalStdDev = time.Duration(mean), time.Duration(std)
		}
		out = append(out, us)
	}
	return out
}

// meanStd is stat.MeanStdDev with a zero deviation for single samples.
func meanStd(x []float64) (mean, std float64) {
	if len(x) == 1 {
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}
