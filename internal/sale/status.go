package sale

import (
	"math/big"
	"time"
)

// Status is the lifecycle stage of an offering derived from block height.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusComingSoon Status = "coming_soon"
	StatusLive       Status = "live"
	StatusFinished   Status = "finished"
)

func (s Status) String() string { return string(s) }

// DefaultBlockTime is the BSC block interval used for countdowns.
const DefaultBlockTime = 3 * time.Second

// Resolve maps a block height onto the sale window [start, end].
// A zero height means the chain has not been read yet.
func Resolve(current, start, end uint64) Status {
	switch {
	case current == 0:
		return StatusIdle
	case current < start:
		return StatusComingSoon
	case current <= end:
		return StatusLive
	default:
		return StatusFinished
	}
}

// Progress is the fill ratio of the sale once it has started. Before that
// it is the block distance to the start relative to the window length,
// which is negative until the start block.
func Progress(current, start, end uint64, raised, saleCap *big.Int) float64 {
	if current > start {
		if raised == nil || saleCap == nil || saleCap.Sign() == 0 {
			return 0
		}
		r := new(big.Rat).SetFrac(raised, saleCap)
		r.Mul(r, big.NewRat(100, 1))
		f, _ := r.Float64()
		return f
	}
	if end == start {
		return 0
	}
	num := new(big.Int).Sub(new(big.Int).SetUint64(current), new(big.Int).SetUint64(start))
	den := new(big.Int).Sub(new(big.Int).SetUint64(end), new(big.Int).SetUint64(start))
	r := new(big.Rat).SetFrac(num, den)
	r.Mul(r, big.NewRat(100, 1))
	f, _ := r.Float64()
	return f
}

// Timing holds the block countdowns of a sale window. Values go negative
// once the corresponding block has passed.
type Timing struct {
	BlocksRemaining   int64
	SecondsUntilStart int64
	SecondsUntilEnd   int64
}

// ComputeTiming converts block distances into seconds using blockTime.
func ComputeTiming(current, start, end uint64, blockTime time.Duration) Timing {
	if blockTime <= 0 {
		blockTime = DefaultBlockTime
	}
	secs := int64(blockTime / time.Second)
	if secs == 0 {
		secs = 1
	}
	remaining := int64(end) - int64(current)
	return Timing{
		BlocksRemaining:   remaining,
		SecondsUntilStart: (int64(start) - int64(current)) * secs,
		SecondsUntilEnd:   remaining * secs,
	}
}
