// Package sse decodes completion streams framed as server-sent-event
// records of the form "data: <json>" and extracts incremental text deltas.
package sse

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"

	// deltaPath is the location of the text fragment inside each record.
	deltaPath = "choices.0.delta.content"
)

// ErrNoStreamBody is returned when the transport produced no stream at all.
var ErrNoStreamBody = errors.New("response carries no stream body")

// Decoder pulls text deltas out of a completion stream. Records may be split
// arbitrarily across reads of the underlying reader.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	r      *bufio.Reader
	err    error
	logger *slog.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger used to report skipped records.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) { d.logger = l }
}

// NewDecoder returns a decoder reading from r. A nil r yields a decoder
// whose Next always fails with ErrNoStreamBody.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	d := &Decoder{logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	if r == nil {
		d.err = ErrNoStreamBody
		return d
	}
	d.r = bufio.NewReader(r)
	return d
}

// Next returns the next non-empty delta. It returns io.EOF once the stream
// closed or the [DONE] record was seen, and keeps returning it afterwards.
// A read error from the underlying reader is returned as-is and is sticky.
func (d *Decoder) Next() (string, error) {
	for d.err == nil {
		line, err := d.r.ReadString('\n')
		if err != nil {
			// A final unterminated line is still processed below.
			d.err = err
		}

		delta, done := d.record(line)
		if done {
			d.err = io.EOF
			break
		}
		if delta != "" {
			return delta, nil
		}
	}
	return "", d.err
}

// record interprets one candidate line. done reports the [DONE] sentinel.
func (d *Decoder) record(line string) (delta string, done bool) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	payload, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return "", false
	}
	payload = strings.TrimSpace(payload)

	switch payload {
	case "":
		return "", false
	case doneMarker:
		return "", true
	}

	if !gjson.Valid(payload) {
		d.logger.Warn("skipping malformed stream record", "payload", truncate(payload, 120))
		return "", false
	}

	v := gjson.Get(payload, deltaPath)
	if v.Type != gjson.String {
		return "", false
	}
	return v.String(), false
}

// Fold drains dec into sink one delta at a time, in stream order. It stops
// at the end of the stream (returning nil), on the first sink or read error,
// or when ctx is cancelled.
func Fold(ctx context.Context, dec *Decoder, sink func(delta string) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delta, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := sink(delta); err != nil {
			return err
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
