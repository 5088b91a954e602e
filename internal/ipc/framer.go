package ipc

import "bytes"

const (
	recordDelimiter = '\n'

	// DefaultMaxRecordSize bounds how much an unterminated record may buffer.
	DefaultMaxRecordSize = 16 * 1024 * 1024
)

// Framer splits a byte stream into newline-delimited records. It is
// independent of the payload format: a record may arrive in any number of
// pieces, split at any byte, and one chunk may carry several records.
type Framer struct {
	// MaxRecordSize caps the buffered partial record; 0 means DefaultMaxRecordSize.
	MaxRecordSize int

	buf      []byte
	skipping bool // discarding an oversized record until its delimiter
}

// Feed appends p and returns every record completed by it, without the
// delimiter. Blank records are skipped. Returned slices are owned by the caller.
func (f *Framer) Feed(p []byte) [][]byte {
	limit := f.MaxRecordSize
	if limit <= 0 {
		limit = DefaultMaxRecordSize
	}

	var records [][]byte
	for len(p) > 0 {
		i := bytes.IndexByte(p, recordDelimiter)
		if i < 0 {
			if !f.skipping {
				f.buf = append(f.buf, p...)
				if len(f.buf) > limit {
					f.buf = f.buf[:0]
					f.skipping = true
				}
			}
			break
		}

		if f.skipping {
			f.skipping = false
		} else {
			f.buf = append(f.buf, p[:i]...)
			if len(bytes.TrimSpace(f.buf)) > 0 && len(f.buf) <= limit {
				records = append(records, append([]byte(nil), f.buf...))
			}
		}
		f.buf = f.buf[:0]
		p = p[i+1:]
	}
	return records
}

// Buffered returns the size of the pending partial record.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Reset drops any partial record.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.skipping = false
}
