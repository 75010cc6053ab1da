// Package link carries the line protocol between a host and a node.
//
// Every transport delivers complete lines on a channel. Lines longer than
// command.MaxLineLength are cut at that length and the remainder of the line is discarded.
package link

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/dyluth/tremor/internal/command"
)

// Source delivers inbound command lines. The channel is closed when the source ends.
type Source interface {
	Lines() <-chan []byte
}

// ReaderSource reads newline-terminated lines from an io.Reader (stdin, a serial device, a pipe).
type ReaderSource struct {
	lines chan []byte
	err   error
	done  chan struct{}
	once  sync.Once
	close func() error
}

// NewReaderSource starts reading r until EOF, a read error, or ctx cancellation.
func NewReaderSource(ctx context.Context, r io.Reader) *ReaderSource {
	s := &ReaderSource{
		lines: make(chan []byte, 8),
		done:  make(chan struct{}),
	}
	go s.run(ctx, bufio.NewReader(r))
	return s
}

// OpenSerial opens a serial device (or any character device or FIFO) as a line source.
// The device must already be configured for the right baud rate.
func OpenSerial(ctx context.Context, path string) (*ReaderSource, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial device %s: %w", path, err)
	}
	s := NewReaderSource(ctx, f)
	s.close = f.Close
	return s, nil
}

func (s *ReaderSource) Lines() <-chan []byte {
	return s.lines
}

// Err returns the error that ended the source, or nil after a clean EOF.
// It is only meaningful once Lines has been closed.
func (s *ReaderSource) Err() error {
	<-s.done
	return s.err
}

// Close releases the underlying device, if the source owns one.
func (s *ReaderSource) Close() error {
	var err error
	s.once.Do(func() {
		if s.close != nil {
			err = s.close()
		}
	})
	return err
}

func (s *ReaderSource) run(ctx context.Context, r *bufio.Reader) {
	defer close(s.done)
	defer close(s.lines)

	for {
		line, err := ReadLine(r)
		if len(line) > 0 {
			select {
			case s.lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = err
				log.Printf("[WARN] Line source ended: %v", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// ReadLine reads one line, without its terminator, keeping at most
// command.MaxLineLength bytes. The rest of an over-long line is consumed and dropped.
// A final unterminated line is returned together with io.EOF.
func ReadLine(r *bufio.Reader) ([]byte, error) {
	line := make([]byte, 0, 64)
	for {
		chunk, err := r.ReadSlice('\n')
		if err == nil {
			chunk = chunk[:len(chunk)-1]
		}
		if room := command.MaxLineLength - len(line); room > 0 {
			line = append(line, chunk[:min(len(chunk), room)]...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		return line, err
	}
}
