package lot

import "fmt"

// Stream identifies one of the three child record collections of a lot.
type Stream string

const (
	StreamProduction Stream = "production"
	StreamInspection Stream = "inspection"
	StreamShipping   Stream = "shipping"
)

// Streams lists every stream in a fixed order. The order is used for
// deterministic existence checks and output.
var Streams = []Stream{StreamProduction, StreamInspection, StreamShipping}

// Valid reports whether s is one of the known streams.
func (s Stream) Valid() bool {
	switch s {
	case StreamProduction, StreamInspection, StreamShipping:
		return true
	}
	return false
}

// ParseStream converts a name into a Stream.
func ParseStream(name string) (Stream, error) {
	s := Stream(name)
	if !s.Valid() {
		return "", fmt.Errorf("unknown stream %q: must be one of %v", name, Streams)
	}
	return s, nil
}

// Operation is the kind of mutation applied to a child record.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}
