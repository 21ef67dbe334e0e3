package audiohost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterleaveChannelsZeroFillsMissingChannels(t *testing.T) {
	channels := [][]float32{{1, 2}, {3, 4}}
	dst := make([]float32, 6)

	// three endpoint channels but the device only has two from startChan 1
	got := interleaveChannels(dst, channels, 1, 3, 2)
	assert.Equal(t, []float32{3, 0, 0, 4, 0, 0}, got)
}

func TestDeinterleaveAndClearCoversIntersection(t *testing.T) {
	channels := [][]float32{
		{9, 9, 9, 9},
		{9, 9, 9, 9},
	}

	// two frames of performer output into a four frame block
	deinterleaveAndClear(channels, 0, 2, 4, []float32{1, -1, 2, -2})
	assert.Equal(t, []float32{1, 2, 0, 0}, channels[0])
	assert.Equal(t, []float32{-1, -2, 0, 0}, channels[1])
}

func TestDeinterleaveAndClearStopsAtDeviceChannels(t *testing.T) {
	channels := [][]float32{{9, 9}}

	// endpoint wants two channels but the device has one
	deinterleaveAndClear(channels, 0, 2, 2, []float32{1, -1, 2, -2})
	assert.Equal(t, []float32{1, 2}, channels[0])
}

func TestDeinterleaveAndClearEmptyOutput(t *testing.T) {
	channels := [][]float32{{9, 9}}

	deinterleaveAndClear(channels, 0, 1, 2, nil)
	assert.Equal(t, []float32{0, 0}, channels[0])
}
