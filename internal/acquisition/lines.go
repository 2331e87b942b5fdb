package acquisition

import "bytes"

const defaultMaxLineBytes = 1024

// lineAssembler turns arbitrary read chunks into complete lines.
type lineAssembler struct {
	pending []byte
	maxLine int

	// resync drops the first segment seen, which may be the tail of a line
	// whose head was discarded by an input buffer reset.
	resync bool
}

func newLineAssembler(maxLine int) *lineAssembler {
	if maxLine <= 0 {
		maxLine = defaultMaxLineBytes
	}
	return &lineAssembler{maxLine: maxLine}
}

// markReset is called after the port input buffer has been discarded.
func (a *lineAssembler) markReset() {
	a.pending = a.pending[:0]
	a.resync = true
}

// feed appends chunk and returns the complete, trimmed, non-empty lines it
// finished, oldest first. Returned slices do not alias internal storage.
func (a *lineAssembler) feed(chunk []byte) [][]byte {
	a.pending = append(a.pending, chunk...)

	last := bytes.LastIndexByte(a.pending, '\n')
	if last < 0 {
		if len(a.pending) > a.maxLine {
			// No newline in sight: garbage or wrong baud rate.
			a.pending = a.pending[:0]
			a.resync = true
		}
		return nil
	}

	segments := bytes.Split(a.pending[:last], []byte{'\n'})
	if a.resync {
		segments = segments[1:]
		a.resync = false
	}

	var out [][]byte
	for _, seg := range segments {
		seg = bytes.TrimSpace(seg)
		if len(seg) == 0 || len(seg) > a.maxLine {
			continue
		}
		out = append(out, append([]byte(nil), seg...))
	}

	rest := a.pending[last+1:]
	a.pending = append(a.pending[:0], rest...)
	return out
}
