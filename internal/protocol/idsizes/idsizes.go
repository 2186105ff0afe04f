// Package idsizes holds the per-session identifier widths reported by the
// debuggee's IDSizes reply.
package idsizes

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/jdwpctl/internal/protocol"
)

const maxWidth = 8

var (
	ErrAlreadySet   = errors.New("idsizes: sizes already set to different values")
	ErrInvalidWidth = errors.New("idsizes: invalid width")
)

// Category names one identifier family whose width is negotiated.
type Category uint8

const (
	FieldID Category = iota + 1
	MethodID
	ObjectID
	ReferenceTypeID
	FrameID
)

func (c Category) String() string {
	switch c {
	case FieldID:
		return "fieldID"
	case MethodID:
		return "methodID"
	case ObjectID:
		return "objectID"
	case ReferenceTypeID:
		return "referenceTypeID"
	case FrameID:
		return "frameID"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// Sizes is a complete set of widths, in IDSizes reply order.
type Sizes struct {
	FieldID         int
	MethodID        int
	ObjectID        int
	ReferenceTypeID int
	FrameID         int
}

// Validate checks every width is one the codec can decode.
func (s Sizes) Validate() error {
	for _, c := range []Category{FieldID, MethodID, ObjectID, ReferenceTypeID, FrameID} {
		w := s.get(c)
		if w < 1 || w > maxWidth {
			return fmt.Errorf("%w: %s=%d", ErrInvalidWidth, c, w)
		}
	}
	return nil
}

// Width returns the width for c. A zero Sizes reports ErrCodecState.
func (s Sizes) Width(c Category) (int, error) {
	w := s.get(c)
	if w == 0 {
		return 0, fmt.Errorf("%w: %s", protocol.ErrCodecState, c)
	}
	if w < 0 || w > maxWidth {
		return 0, fmt.Errorf("%w: %s=%d", ErrInvalidWidth, c, w)
	}
	return w, nil
}

func (s Sizes) get(c Category) int {
	switch c {
	case FieldID:
		return s.FieldID
	case MethodID:
		return s.MethodID
	case ObjectID:
		return s.ObjectID
	case ReferenceTypeID:
		return s.ReferenceTypeID
	case FrameID:
		return s.FrameID
	default:
		return 0
	}
}

// Registry is written once per session and read for the rest of it.
// The zero value is unpopulated.
type Registry struct {
	mu    sync.RWMutex
	sizes Sizes
	ready bool
}

// Set populates the registry. Repeating Set with identical sizes is a no-op;
// different sizes fail with ErrAlreadySet.
func (r *Registry) Set(s Sizes) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		if r.sizes != s {
			return fmt.Errorf("%w: have=%+v got=%+v", ErrAlreadySet, r.sizes, s)
		}
		return nil
	}
	r.sizes = s
	r.ready = true
	return nil
}

// Ready returns the populated sizes or ErrCodecState.
func (r *Registry) Ready() (Sizes, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.ready {
		return Sizes{}, fmt.Errorf("%w: registry empty", protocol.ErrCodecState)
	}
	return r.sizes, nil
}

func (r *Registry) Width(c Category) (int, error) {
	s, err := r.Ready()
	if err != nil {
		return 0, err
	}
	return s.Width(c)
}
