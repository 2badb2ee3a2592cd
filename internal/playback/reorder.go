package playback

import (
	"container/heap"
	"io"
)

// defaultReorderWindow bounds how far out of presentation order frames may
// arrive from a parallel decode pipeline.
const defaultReorderWindow = 8

// frameHeap is a min-heap keyed on raw stream-time-base PTS.
type frameHeap []*Frame

func (h frameHeap) Len() int            { return len(h) }
func (h frameHeap) Less(i, j int) bool  { return h[i].RawPTS < h[j].RawPTS }
func (h frameHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *frameHeap) Push(x interface{}) { *h = append(*h, x.(*Frame)) }

func (h *frameHeap) Pop() interface{} {
	old := *h
	n := len(old)
	f := old[n-1]
	*h = old[:n-1]
	return f
}

// frameReorderer restores a total presentation order over a decoder's
// output. Decode workers may deliver frames out of order; this window is the
// single synchronization point that makes the downstream assembly
// deterministic.
type frameReorderer struct {
	dec    Decoder
	window int
	heap   frameHeap
	err    error
}

func newFrameReorderer(dec Decoder, window int) *frameReorderer {
	if window <= 0 {
		window = defaultReorderWindow
	}
	r := &frameReorderer{dec: dec, window: window}
	heap.Init(&r.heap)
	return r
}

// Next returns the next frame in ascending RawPTS order, or io.EOF once the
// decoder is exhausted and the window has drained.
func (r *frameReorderer) Next() (*Frame, error) {
	for r.err == nil && r.heap.Len() < r.window {
		f, err := r.dec.NextFrame()
		if err != nil {
			r.err = err
			break
		}
		heap.Push(&r.heap, f)
	}

	if r.heap.Len() == 0 {
		if r.err != nil {
			return nil, r.err
		}
		return nil, io.EOF
	}
	return heap.Pop(&r.heap).(*Frame), nil
}
