package download

import (
	"io"
	"sync"
)

// ProgressSink receives download progress as a fraction in [0,1].
type ProgressSink interface {
	Progress(fraction float64)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(float64)

func (f ProgressFunc) Progress(fraction float64) { f(fraction) }

// ProgressReader reports how much of an underlying reader has been
// consumed. Reported fractions never decrease and never exceed 1. With an
// unknown total (<= 0) nothing is reported until Done.
type ProgressReader struct {
	r     io.Reader
	total int64
	sink  ProgressSink

	mu   sync.Mutex
	read int64
	last float64
	done bool
}

// NewProgressReader wraps r. total is the expected byte count.
func NewProgressReader(r io.Reader, total int64, sink ProgressSink) *ProgressReader {
	return &ProgressReader{r: r, total: total, sink: sink}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.read += int64(n)
		if p.total > 0 {
			p.reportLocked(float64(p.read) / float64(p.total))
		}
		p.mu.Unlock()
	}
	return n, err
}

// Done reports completion. It is safe to call more than once.
func (p *ProgressReader) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.done = true
	if p.last < 1 && p.sink != nil {
		p.last = 1
		p.sink.Progress(1)
	}
}

// BytesRead returns the number of bytes consumed so far.
func (p *ProgressReader) BytesRead() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.read
}

func (p *ProgressReader) reportLocked(f float64) {
	f = min(f, 1)
	if f <= p.last || p.sink == nil {
		return
	}
	p.last = f
	p.sink.Progress(f)
}
