package vst3

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// MemoryStream is a growable, seekable in-memory byte buffer implementing
// the plugin storage Stream. It backs state snapshot and restore; it
// never touches the file system.
type MemoryStream struct {
	data []byte
	pos  int64
}

// NewMemoryStream returns an empty stream positioned at zero.
func NewMemoryStream() *MemoryStream {
	return &MemoryStream{}
}

// MemoryStreamFrom returns a stream over a copy of data, positioned at
// zero, ready for the plugin to read.
func MemoryStreamFrom(data []byte) *MemoryStream {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &MemoryStream{data: buf}
}

// Read copies bytes from the current position. Reading at or past the end
// returns 0 bytes and no error.
func (s *MemoryStream) Read(p []byte) (int, error) {
	if s.pos >= int64(len(s.data)) {
		return 0, nil
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

// Write copies bytes at the current position, growing the buffer as
// needed. Writing past the current end zero-fills the gap first.
func (s *MemoryStream) Write(p []byte) (int, error) {
	end := s.pos + int64(len(p))
	if end > int64(len(s.data)) {
		grown := make([]byte, end)
		copy(grown, s.data)
		s.data = grown
	}
	copy(s.data[s.pos:end], p)
	s.pos = end
	return len(p), nil
}

// Seek moves the position. Whence follows the io package constants. A
// resulting negative position is an error; seeking past the end is
// allowed and only materializes on the next write.
func (s *MemoryStream) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = s.pos
	case io.SeekEnd:
		base = int64(len(s.data))
	default:
		return s.pos, fmt.Errorf("invalid seek whence %d", whence)
	}
	next := base + offset
	if next < 0 {
		return s.pos, fmt.Errorf("seek before start of stream (offset %d)", offset)
	}
	s.pos = next
	return next, nil
}

// Tell returns the current position.
func (s *MemoryStream) Tell() int64 {
	return s.pos
}

// Len returns the number of bytes written so far.
func (s *MemoryStream) Len() int {
	return len(s.data)
}

// Bytes returns the stream's contents. The slice aliases the stream's
// buffer; callers that retain it must copy.
func (s *MemoryStream) Bytes() []byte {
	return s.data
}

// Rewind seeks back to the start.
func (s *MemoryStream) Rewind() {
	s.pos = 0
}

// Little-endian scalar helpers over any Stream, for plugins and tests
// that frame their state themselves.

// WriteUint32 writes v little-endian.
func WriteUint32(s Stream, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := s.Write(buf[:])
	return err
}

// ReadUint32 reads a little-endian uint32, failing on a short read.
func ReadUint32(s Stream) (uint32, error) {
	var buf [4]byte
	n, err := s.Read(buf[:])
	if err != nil {
		return 0, err
	}
	if n != 4 {
		return 0, io.ErrUnexpectedEOF
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteFloat64 writes v little-endian.
func WriteFloat64(s Stream, v float64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	_, err := s.Write(buf[:])
	return err
}

// ReadFloat64 reads a little-endian float64, failing on a short read.
func ReadFloat64(s Stream) (float64, error) {
	var buf [8]byte
	n, err := s.Read(buf[:])
	if err != nil {
		return 0, err
	}
	if n != 8 {
		return 0, io.ErrUnexpectedEOF
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
}
