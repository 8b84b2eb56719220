package graph

import (
	"fmt"

	"github.com/google/uuid"
)

// IDSource mints fresh record ids.
type IDSource interface {
	NewID() ID
}

// UUIDSource mints random 128-bit ids. It is safe for concurrent use, so
// independently lowered units never need renumbering when merged.
type UUIDSource struct{}

func (UUIDSource) NewID() ID { return ID(uuid.NewString()) }

// SequenceSource mints deterministic ids ("<prefix>-1", "<prefix>-2", ...).
// Not safe for concurrent use.
type SequenceSource struct {
	Prefix string
	n      int
}

func (s *SequenceSource) NewID() ID {
	s.n++
	prefix := s.Prefix
	if prefix == "" {
		prefix = "id"
	}
	return ID(fmt.Sprintf("%s-%d", prefix, s.n))
}
