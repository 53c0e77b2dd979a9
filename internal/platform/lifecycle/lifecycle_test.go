package lifecycle

import (
	"errors"
	"testing"

	"github.com/medichannel/channeling/internal/platform/apperr"
)

type light string

const (
	red    light = "RED"
	green  light = "GREEN"
	yellow light = "YELLOW"
	broken light = "BROKEN"
)

func newLight() *Machine[light] {
	return New("light", red, map[light][]light{
		red:    {green, broken},
		green:  {yellow, broken},
		yellow: {red, broken},
	})
}

func TestMachine_Valid(t *testing.T) {
	m := newLight()
	for _, s := range []light{red, green, yellow, broken} {
		if !m.Valid(s) {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if m.Valid("BLUE") {
		t.Error("expected BLUE to be invalid")
	}
}

func TestMachine_Transition(t *testing.T) {
	m := newLight()

	got, err := m.Transition(red, green)
	if err != nil || got != green {
		t.Fatalf("Transition(red, green) = %s, %v", got, err)
	}

	got, err = m.Transition(red, yellow)
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if got != red {
		t.Errorf("expected status to stay %s, got %s", red, got)
	}

	_, err = m.Transition(red, "BLUE")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestMachine_Terminal(t *testing.T) {
	m := newLight()
	if !m.IsTerminal(broken) {
		t.Error("expected BROKEN to be terminal")
	}
	if m.IsTerminal(red) {
		t.Error("RED is not terminal")
	}
	if _, err := m.Transition(broken, red); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("expected no way out of a terminal status, got %v", err)
	}
}

func TestMachine_SelfLoopOnlyWhenDeclared(t *testing.T) {
	m := New("doc", "DRAFT", map[string][]string{
		"DRAFT":   {"DRAFT", "FINAL"},
		"FINAL":   {},
		"ARCHIVE": nil,
	})
	if !m.CanTransition("DRAFT", "DRAFT") {
		t.Error("expected declared self loop")
	}
	if m.CanTransition("FINAL", "FINAL") {
		t.Error("undeclared self loop must be rejected")
	}
	if m.Initial() != "DRAFT" {
		t.Errorf("unexpected initial %s", m.Initial())
	}
}

func TestMachine_NextSorted(t *testing.T) {
	next := newLight().Next(red)
	if len(next) != 2 || next[0] != broken || next[1] != green {
		t.Errorf("unexpected Next(red): %v", next)
	}
}
