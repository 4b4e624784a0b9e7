package manager

import "io"

///////////////////////////////////////////////////////////////////////////////
// CONSTANTS

// progressChunk is the number of bytes sent to the gateway between
// successive progress notifications.
const progressChunk int64 = 64 * 1024 // 64 KiB

///////////////////////////////////////////////////////////////////////////////
// TYPES

// progressReader calls emit after every progressChunk bytes, and once more
// at EOF with the final count if that was not already reported.
type progressReader struct {
	r       io.Reader
	written int64
	emitted int64
	emit    func(written int64)
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func newProgressReader(r io.Reader, emit func(written int64)) *progressReader {
	return &progressReader{r: r, emit: emit}
}

///////////////////////////////////////////////////////////////////////////////
// io.Reader

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.written += int64(n)
		for p.written-p.emitted >= progressChunk {
			p.emitted += progressChunk
			p.emit(p.emitted)
		}
	}
	if err == io.EOF && p.written > p.emitted {
		p.emitted = p.written
		p.emit(p.written)
	}
	return n, err
}
