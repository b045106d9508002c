// Package replay runs recorded landmark streams through the engine and
// uploads the resulting sessions.
package replay

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/claude/formcoach/internal/coach"
)

// Extension of recording files.
const Extension = ".jsonl"

// maxLine bounds one JSON line; a frame with 33 landmarks is ~3 KiB.
const maxLine = 1 << 20

// ErrEmptyRecording is returned for a recording without a header line.
var ErrEmptyRecording = errors.New("empty recording")

// Header is the first line of a recording.
type Header struct {
	ExerciseKey string    `json:"exercise_key"`
	StartedAt   time.Time `json:"started_at"`
}

// FrameLine is one recorded frame. T is in seconds.
type FrameLine struct {
	T         float64                   `json:"t"`
	Landmarks map[string]coach.Landmark `json:"landmarks"`
}

// Reader streams the frames of a recording.
type Reader struct {
	sc     *bufio.Scanner
	line   int
	Header Header
}

// NewReader reads the header line. Blank lines are skipped throughout.
func NewReader(r io.Reader) (*Reader, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	rd := &Reader{sc: sc}

	b, err := rd.next()
	if err == io.EOF {
		return nil, ErrEmptyRecording
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &rd.Header); err != nil {
		return nil, fmt.Errorf("line %d: parsing header: %w", rd.line, err)
	}
	if rd.Header.ExerciseKey == "" {
		return nil, fmt.Errorf("line %d: header has no exercise_key", rd.line)
	}
	return rd, nil
}

// Next returns the next frame, or io.EOF after the last one.
func (rd *Reader) Next() (FrameLine, error) {
	var fl FrameLine
	b, err := rd.next()
	if err != nil {
		return fl, err
	}
	if err := json.Unmarshal(b, &fl); err != nil {
		return fl, fmt.Errorf("line %d: parsing frame: %w", rd.line, err)
	}
	return fl, nil
}

func (rd *Reader) next() ([]byte, error) {
	for rd.sc.Scan() {
		rd.line++
		if b := rd.sc.Bytes(); len(b) > 0 {
			return b, nil
		}
	}
	if err := rd.sc.Err(); err != nil {
		return nil, fmt.Errorf("reading recording: %w", err)
	}
	return nil, io.EOF
}

// Writer produces recordings in the format Reader accepts.
type Writer struct {
	enc *json.Encoder
}

// NewWriter writes the header and returns a Writer for the frames.
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	enc := json.NewEncoder(w)
	if err := enc.Encode(h); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	return &Writer{enc: enc}, nil
}

// WriteFrame appends one frame.
func (w *Writer) WriteFrame(t float64, f coach.Frame) error {
	return w.enc.Encode(FrameLine{T: t, Landmarks: f})
}
