package fsa

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     ErrorKind
		user     bool
		internal bool
	}{
		{"user", userError("select device", ErrNoPlatform), KindUser, true, false},
		{"internal", internalError("finish", errors.New("lost")), KindInternal, false, true},
		{"wrapped", fmt.Errorf("file.txt: %w", userError("validate", ErrInvalidAutomaton)), KindUser, true, false},
		{"plain", errors.New("other"), 0, false, false},
		{"nil", nil, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf() = %v, want %v", got, tt.kind)
			}
			if got := IsUserError(tt.err); got != tt.user {
				t.Errorf("IsUserError() = %v, want %v", got, tt.user)
			}
			if got := IsInternalError(tt.err); got != tt.internal {
				t.Errorf("IsInternalError() = %v, want %v", got, tt.internal)
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	err := userError("select device", ErrNoDevice)
	if got, want := err.Error(), "fsa: select device: no compute devices found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrNoDevice) {
		t.Error("errors.Is(err, ErrNoDevice) = false")
	}
}

func TestErrorKind_String(t *testing.T) {
	for kind, want := range map[ErrorKind]string{KindUser: "user", KindInternal: "internal", 9: "ErrorKind(9)"} {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}
