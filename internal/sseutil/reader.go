package sseutil

import (
	"errors"
	"io"
)

// DefaultChunkSize is the read size used when NewReader receives a non-positive size.
const DefaultChunkSize = 4096

// Reader pulls complete events out of an io.Reader, one transport read at a time.
type Reader struct {
	src      io.Reader
	buf      Buffer
	chunk    []byte
	queue    []Event
	eof      bool
	finished bool
}

// NewReader wraps src. chunkSize bounds a single Read call.
func NewReader(src io.Reader, chunkSize int) *Reader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Reader{src: src, chunk: make([]byte, chunkSize)}
}

// Next returns the next complete event. After a [DONE] event or the end of the source it
// returns io.EOF. Read errors other than io.EOF are returned as-is; events completed before
// the failing read are still delivered first.
func (r *Reader) Next() (Event, error) {
	for {
		if len(r.queue) > 0 {
			ev := r.queue[0]
			r.queue = r.queue[1:]
			if ev.Done {
				r.finished = true
				r.queue = nil
			}
			return ev, nil
		}
		if r.finished || r.eof {
			return Event{}, io.EOF
		}

		n, err := r.src.Read(r.chunk)
		if n > 0 {
			r.queue = append(r.queue, r.buf.Feed(r.chunk[:n])...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.eof = true
				r.queue = append(r.queue, r.buf.Finish()...)
				continue
			}
			if len(r.queue) > 0 {
				// deliver what we have; the error resurfaces on the next read attempt
				r.pendingErr(err)
				continue
			}
			return Event{}, err
		}
	}
}

func (r *Reader) pendingErr(err error) {
	r.src = errReader{err: err}
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
