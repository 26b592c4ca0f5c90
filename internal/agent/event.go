// Package agent feeds decoded agent-side events into a session. The transport
// that produces them is not part of jprof; events arrive as JSON values, one
// per line, in the order the agent emitted them.
package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mabhi256/jprof/internal/session"
)

type Kind string

const (
	KindClass        Kind = "class"
	KindClasses      Kind = "classes"
	KindClassesTotal Kind = "classes_total"
	KindMethodBatch  Kind = "method_batch"
	KindMethod       Kind = "method"
	KindInvoked      Kind = "invoked"
	KindAllocation   Kind = "allocation"
	KindLoaderID     Kind = "loader_id"
	KindTimers       Kind = "timers"
	KindScheme       Kind = "scheme"
	KindRunning      Kind = "running"
	KindReset        Kind = "reset"
)

// Event is one decoded agent notification. Only the fields relevant to Kind
// are set.
type Event struct {
	Kind Kind `json:"kind"`

	Class     string   `json:"class,omitempty"`
	Classes   []string `json:"classes,omitempty"`
	Total     int      `json:"total,omitempty"`
	LoaderID  int      `json:"loader_id,omitempty"`
	Method    string   `json:"method,omitempty"`
	Signature string   `json:"signature,omitempty"`

	Batch *session.MethodBatch `json:"batch,omitempty"`

	// method id for invoked/loader_id, class id for allocation
	Index int `json:"index,omitempty"`
	Delta int `json:"delta,omitempty"`

	Absolute  bool   `json:"absolute,omitempty"`
	ThreadCPU bool   `json:"thread_cpu,omitempty"`
	Scheme    string `json:"scheme,omitempty"`
	Running   bool   `json:"running,omitempty"`
}

// cellUpdate reports whether the event only changes cells of already
// registered slots, and may therefore run concurrently with its peers.
func (e Event) cellUpdate() bool {
	switch e.Kind {
	case KindInvoked, KindAllocation, KindLoaderID:
		return true
	default:
		return false
	}
}

func (e Event) String() string {
	switch e.Kind {
	case KindClass, KindMethod:
		return fmt.Sprintf("%s %s.%s", e.Kind, e.Class, e.Method)
	case KindInvoked, KindAllocation, KindLoaderID:
		return fmt.Sprintf("%s #%d", e.Kind, e.Index)
	default:
		return string(e.Kind)
	}
}

// Decoder reads a stream of JSON events.
type Decoder struct {
	dec  *json.Decoder
	line int
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

// Next returns the next event, or io.EOF at the end of the stream.
func (d *Decoder) Next() (Event, error) {
	var ev Event
	if err := d.dec.Decode(&ev); err != nil {
		if errors.Is(err, io.EOF) {
			return ev, io.EOF
		}
		return ev, fmt.Errorf("event %d: %w", d.line+1, err)
	}
	d.line++

	if ev.Kind == "" {
		return ev, fmt.Errorf("event %d: missing kind", d.line)
	}
	return ev, nil
}
