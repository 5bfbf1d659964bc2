package solver

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// SwapEvent is one applied hill-climbing swap
type SwapEvent struct {
	Restart   int     `json:"restart"`
	Iteration int     `json:"iteration"`
	I         int     `json:"i"`
	K         int     `json:"k"`
	FromJ     int     `json:"from_j"`
	FromL     int     `json:"from_l"`
	Gain      float64 `json:"gain"`
	Score     float64 `json:"score"`
	Timestamp int64   `json:"timestamp"`
}

// SwapTracker writes swap events as JSON lines. A nil tracker discards events.
type SwapTracker struct {
	mu      sync.Mutex
	closer  io.Closer
	encoder *json.Encoder
}

// NewSwapTracker writes events to w
func NewSwapTracker(w io.Writer) *SwapTracker {
	t := &SwapTracker{encoder: json.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		t.closer = c
	}
	return t
}

// OpenSwapTracker creates (truncates) filename and tracks into it
func OpenSwapTracker(filename string) (*SwapTracker, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("opening swap tracking file: %w", err)
	}
	return NewSwapTracker(file), nil
}

// LogSwap records one swap of i->j, k->l into i->l, k->j
func (t *SwapTracker) LogSwap(restart, iteration, i, k, j, l int, gain, score float64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.encoder.Encode(SwapEvent{
		Restart:   restart,
		Iteration: iteration,
		I:         i,
		K:         k,
		FromJ:     j,
		FromL:     l,
		Gain:      gain,
		Score:     score,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Close closes the underlying writer if it is closable
func (t *SwapTracker) Close() error {
	if t == nil || t.closer == nil {
		return nil
	}
	return t.closer.Close()
}
