package sale

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name                string
		current, start, end uint64
		want                Status
	}{
		{"unfetched", 0, 100, 200, StatusIdle},
		{"unfetched zero window", 0, 0, 0, StatusIdle},
		{"before start", 50, 100, 200, StatusComingSoon},
		{"one before start", 99, 100, 200, StatusComingSoon},
		{"at start", 100, 100, 200, StatusLive},
		{"middle", 150, 100, 200, StatusLive},
		{"at end", 200, 100, 200, StatusLive},
		{"after end", 201, 100, 200, StatusFinished},
		{"single block window", 7, 7, 7, StatusLive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.current, tt.start, tt.end))
			// stateless
			assert.Equal(t, tt.want, Resolve(tt.current, tt.start, tt.end))
		})
	}
}

func TestResolve_Partition(t *testing.T) {
	const s, e = 10, 20
	for b := uint64(0); b < 30; b++ {
		got := Resolve(b, s, e)
		switch {
		case b == 0:
			assert.Equal(t, StatusIdle, got)
		case b < s:
			assert.Equal(t, StatusComingSoon, got, b)
		case b <= e:
			assert.Equal(t, StatusLive, got, b)
		default:
			assert.Equal(t, StatusFinished, got, b)
		}
	}
}

func TestProgress_Walkthrough(t *testing.T) {
	saleCap := big.NewInt(1000)

	assert.InDelta(t, -50.0, Progress(50, 100, 200, big.NewInt(0), saleCap), 1e-9)
	assert.InDelta(t, 40.0, Progress(150, 100, 200, big.NewInt(400), saleCap), 1e-9)
	assert.InDelta(t, 0.0, Progress(100, 100, 200, big.NewInt(400), saleCap), 1e-9, "at start block the countdown formula applies")
}

func TestProgress_MonotonicInRaised(t *testing.T) {
	saleCap := big.NewInt(1000)
	prev := -1.0
	for raised := int64(0); raised <= 1200; raised += 50 {
		p := Progress(150, 100, 200, big.NewInt(raised), saleCap)
		assert.GreaterOrEqual(t, p, prev)
		prev = p
	}
}

func TestProgress_Degenerate(t *testing.T) {
	assert.Equal(t, 0.0, Progress(150, 100, 200, big.NewInt(5), big.NewInt(0)))
	assert.Equal(t, 0.0, Progress(150, 100, 200, nil, nil))
	assert.Equal(t, 0.0, Progress(5, 10, 10, nil, nil))
}

func TestComputeTiming(t *testing.T) {
	tm := ComputeTiming(50, 100, 200, 3*time.Second)
	assert.Equal(t, int64(150), tm.BlocksRemaining)
	assert.Equal(t, int64(150), tm.SecondsUntilStart)
	assert.Equal(t, int64(450), tm.SecondsUntilEnd)

	tm = ComputeTiming(250, 100, 200, 0)
	assert.Equal(t, int64(-50), tm.BlocksRemaining)
	assert.Equal(t, int64(-450), tm.SecondsUntilStart)
}
