// Package lifecycle holds the status state machines used by the domain
// packages. Each machine is a fixed table built at package init and is safe
// for concurrent use.
package lifecycle

import (
	"sort"

	"github.com/medichannel/channeling/internal/platform/apperr"
)

// Machine is a table of allowed status moves for one entity.
type Machine[S ~string] struct {
	entity  string
	initial S
	edges   map[S]map[S]struct{}
}

// New builds a machine. Every status that appears as a source or target is
// considered valid; a status with no outgoing edges is terminal.
func New[S ~string](entity string, initial S, edges map[S][]S) *Machine[S] {
	m := &Machine[S]{entity: entity, initial: initial, edges: make(map[S]map[S]struct{})}
	m.edges[initial] = map[S]struct{}{}
	for from, tos := range edges {
		if m.edges[from] == nil {
			m.edges[from] = map[S]struct{}{}
		}
		for _, to := range tos {
			m.edges[from][to] = struct{}{}
			if m.edges[to] == nil {
				m.edges[to] = map[S]struct{}{}
			}
		}
	}
	return m
}

// Initial is the status a new entity starts in.
func (m *Machine[S]) Initial() S { return m.initial }

func (m *Machine[S]) Valid(s S) bool {
	_, ok := m.edges[s]
	return ok
}

func (m *Machine[S]) CanTransition(from, to S) bool {
	_, ok := m.edges[from][to]
	return ok
}

func (m *Machine[S]) IsTerminal(s S) bool {
	return m.Valid(s) && len(m.edges[s]) == 0
}

// Transition validates a move and returns the target status. Unknown targets
// are validation errors; known but disallowed moves are invalid transitions.
func (m *Machine[S]) Transition(from, to S) (S, error) {
	if !m.Valid(to) {
		return from, apperr.Invalid("status", "unknown "+m.entity+" status "+string(to))
	}
	if !m.CanTransition(from, to) {
		return from, apperr.InvalidTransition(m.entity, string(from), string(to))
	}
	return to, nil
}

// Next lists the statuses reachable from s in a stable order.
func (m *Machine[S]) Next(s S) []S {
	out := make([]S, 0, len(m.edges[s]))
	for to := range m.edges[s] {
		out = append(out, to)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
