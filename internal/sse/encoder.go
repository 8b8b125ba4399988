package sse

import (
	"encoding/json"
	"fmt"
	"io"
)

type deltaRecord struct {
	Choices []deltaChoice `json:"choices"`
}

type deltaChoice struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
}

// Encoder writes deltas in the framing Decoder reads.
type Encoder struct {
	w     io.Writer
	flush func()
}

// NewEncoder returns an encoder writing to w. When w implements
// http.Flusher-style Flush(), every record is flushed immediately.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w, flush: func() {}}
	if f, ok := w.(interface{ Flush() }); ok {
		e.flush = f.Flush
	}
	return e
}

// Delta writes one data record carrying text.
func (e *Encoder) Delta(text string) error {
	var rec deltaRecord
	rec.Choices = make([]deltaChoice, 1)
	rec.Choices[0].Delta.Content = text

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "%s%s\n\n", dataPrefix, b); err != nil {
		return err
	}
	e.flush()
	return nil
}

// Done writes the terminating record.
func (e *Encoder) Done() error {
	if _, err := fmt.Fprintf(e.w, "%s%s\n\n", dataPrefix, doneMarker); err != nil {
		return err
	}
	e.flush()
	return nil
}
