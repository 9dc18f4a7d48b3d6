package buffer

import (
	"math"
	"sync"
)

type Average float64
type Maximum float64

// SampleBuffer keeps the last size foreground samples (battery volts, wind
// speed) for smoothing. The first sample fills the whole buffer so averages
// are sane straight after boot.
type SampleBuffer struct {
	position int
	size     int
	data     []float64
	lock     sync.Mutex
	first    bool
}

func NewBuffer(size int) *SampleBuffer {
	if size < 1 {
		size = 1
	}
	return &SampleBuffer{
		size:  size,
		data:  make([]float64, size),
		first: true,
	}
}

func (b *SampleBuffer) AddItem(val float64) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.first {
		for i := range b.data {
			b.data[i] = val
		}
		b.first = false
	}
	b.data[b.position] = val
	b.position++
	if b.position == b.size {
		b.position = 0
	}
}

func (b *SampleBuffer) Average() Average {
	b.lock.Lock()
	defer b.lock.Unlock()
	sum := 0.0
	for _, x := range b.data {
		sum += x
	}
	return Average(sum / float64(b.size))
}

// MaxLast returns the largest of the newest n samples.
func (b *SampleBuffer) MaxLast(n int) Maximum {
	b.lock.Lock()
	defer b.lock.Unlock()
	if n > b.size {
		n = b.size
	}
	index := b.position - n
	if index < 0 {
		// reverse wrap
		index += b.size
	}
	max := -math.MaxFloat64
	for ; n > 0; n-- {
		if b.data[index] > max {
			max = b.data[index]
		}
		index++
		if index == b.size {
			index = 0
		}
	}
	if max == -math.MaxFloat64 {
		return 0
	}
	return Maximum(max)
}

// GetLast is the newest sample.
func (b *SampleBuffer) GetLast() float64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	index := b.position - 1
	if index < 0 {
		index += b.size
	}
	return b.data[index]
}
