package gps

// DefaultCapacity is the default line buffer size. NMEA caps sentences at
// 82 bytes; receivers with proprietary extensions run longer.
const DefaultCapacity = 256

// LineHandler consumes framed lines from a Reader.
type LineHandler interface {
	// HandleLine receives one complete line including its '\n'. The slice
	// is reused as soon as HandleLine returns.
	HandleLine(line []byte)
	// HandleOverflow is called once for every line that was discarded
	// because it did not fit the buffer, when its terminator is seen.
	HandleOverflow()
}

// Reader reassembles newline-terminated sentences from arbitrary chunks.
//
// Memory is bounded by the capacity given to NewReader. A line that does not
// fit is dropped whole and framing resumes after its '\n'. A Reader is not
// safe for concurrent use; callers feeding it from several goroutines must
// serialize Append.
type Reader struct {
	buf      []byte
	pos      int
	overflow bool

	h     LineHandler
	hooks Hooks
}

// NewReader returns a Reader that hands lines to h. A capacity <= 0 selects
// DefaultCapacity. hooks may be nil.
func NewReader(capacity int, h LineHandler, hooks Hooks) *Reader {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if hooks == nil {
		hooks = NopHooks{}
	}
	return &Reader{buf: make([]byte, capacity), h: h, hooks: hooks}
}

// Append feeds chunk into the framer. Complete lines are dispatched
// synchronously, in order, before Append returns.
func (r *Reader) Append(chunk []byte) {
	for _, b := range chunk {
		if r.overflow {
			// Scan the whole remainder for the terminator; bytes before it
			// belong to the discarded line.
			if b == '\n' {
				r.overflow = false
				r.hooks.OverflowClear()
				r.h.HandleOverflow()
			}
			continue
		}

		if r.pos == len(r.buf) {
			r.pos = 0
			r.hooks.OverflowEnter()
			if b == '\n' {
				// The oversized line ends right here; do not swallow the next one.
				r.hooks.OverflowClear()
				r.h.HandleOverflow()
				continue
			}
			r.overflow = true
			continue
		}

		r.buf[r.pos] = b
		r.pos++
		if b == '\n' {
			r.h.HandleLine(r.buf[:r.pos])
			r.pos = 0
		}
	}
}

// Write implements io.Writer so a Reader can sit behind io.Copy or
// io.MultiWriter. It never fails.
func (r *Reader) Write(p []byte) (int, error) {
	r.Append(p)
	return len(p), nil
}

// Buffered returns the length of the partial line held.
func (r *Reader) Buffered() int { return r.pos }

// Overflowed reports whether the Reader is discarding an oversized line.
func (r *Reader) Overflowed() bool { return r.overflow }

// Reset drops any partial line and leaves overflow recovery.
func (r *Reader) Reset() {
	r.pos = 0
	r.overflow = false
}
