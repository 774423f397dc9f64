package binding

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned when a parameter index does not exist.
var ErrIndexOutOfRange = errors.New("parameter index out of range")

// Store is the ordered list of parameters edited by the user. Order is
// insertion order. The zero value is ready to use.
type Store struct {
	params []Parameter
}

// NewStore creates a store holding a copy of params.
func NewStore(params ...Parameter) *Store {
	s := &Store{}
	s.params = append(s.params, params...)
	return s
}

// Add appends a parameter and returns its index.
func (s *Store) Add(p Parameter) int {
	s.params = append(s.params, p)
	return len(s.params) - 1
}

// Set replaces the parameter at index i.
func (s *Store) Set(i int, p Parameter) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.params[i] = p
	return nil
}

// Remove deletes the parameter at index i, shifting later parameters down.
func (s *Store) Remove(i int) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.params = append(s.params[:i:i], s.params[i+1:]...)
	return nil
}

// Len returns the number of parameters.
func (s *Store) Len() int {
	return len(s.params)
}

// List returns a copy of the parameters in order.
func (s *Store) List() []Parameter {
	out := make([]Parameter, len(s.params))
	copy(out, s.params)
	return out
}

// Clone returns an independent copy of the store.
func (s *Store) Clone() *Store {
	return NewStore(s.params...)
}

func (s *Store) check(i int) error {
	if i < 0 || i >= len(s.params) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, i, len(s.params))
	}
	return nil
}
