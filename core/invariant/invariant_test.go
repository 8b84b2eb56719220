package invariant_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stellify/stellify/core/invariant"
)

// expectPanic runs fn and returns the recovered panic message.
func expectPanic(t *testing.T, fn func()) (msg string) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		msg = fmt.Sprintf("%v", r)
	}()
	fn()
	return ""
}

func TestPreconditionPass(t *testing.T) {
	invariant.Precondition(true, "this should pass")
	invariant.Precondition(len("clause") > 0, "text not empty")
}

func TestPreconditionFail(t *testing.T) {
	msg := expectPanic(t, func() {
		invariant.Precondition(false, "clause id must not be empty")
	})
	if !strings.Contains(msg, "PRECONDITION VIOLATION") {
		t.Errorf("expected PRECONDITION VIOLATION, got: %s", msg)
	}
	if !strings.Contains(msg, "clause id must not be empty") {
		t.Errorf("expected custom message, got: %s", msg)
	}
	if !strings.Contains(msg, "invariant_test.go") {
		t.Errorf("expected call site of the violation, got: %s", msg)
	}
}

func TestPostconditionFail(t *testing.T) {
	msg := expectPanic(t, func() {
		invariant.Postcondition(false, "body must grow")
	})
	if !strings.Contains(msg, "POSTCONDITION VIOLATION: body must grow") {
		t.Errorf("unexpected message: %s", msg)
	}
}

func TestInvariantFormatsArguments(t *testing.T) {
	msg := expectPanic(t, func() {
		invariant.Invariant(1 > 2, "scanner stuck at offset %d of %s", 42, "welcome.blade.php")
	})
	if !strings.Contains(msg, "INVARIANT VIOLATION: scanner stuck at offset 42 of welcome.blade.php") {
		t.Errorf("unexpected message: %s", msg)
	}
}

func TestNotNil(t *testing.T) {
	type store struct{}
	invariant.NotNil(&store{}, "store")

	var typed *store
	msg := expectPanic(t, func() { invariant.NotNil(typed, "store") })
	if !strings.Contains(msg, "store must not be nil") {
		t.Errorf("typed nil not caught: %s", msg)
	}

	msg = expectPanic(t, func() { invariant.NotNil(nil, "logger") })
	if !strings.Contains(msg, "logger must not be nil") {
		t.Errorf("untyped nil not caught: %s", msg)
	}
}

func TestExpectNoError(t *testing.T) {
	invariant.ExpectNoError(nil, "validate graph")

	msg := expectPanic(t, func() {
		invariant.ExpectNoError(errors.New("dangling reference"), "validate graph")
	})
	if !strings.Contains(msg, "validate graph must not fail: dangling reference") {
		t.Errorf("unexpected message: %s", msg)
	}
}
