package apperror

import (
	"errors"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "UnsupportedLanguage wraps ErrUnsupportedLanguage",
			err:       UnsupportedLanguage("fortran"),
			target:    ErrUnsupportedLanguage,
			wantMatch: true,
		},
		{
			name:      "Staging wraps ErrStaging",
			err:       Staging("/tmp/work/abc.py", errors.New("disk full")),
			target:    ErrStaging,
			wantMatch: true,
		},
		{
			name:      "Staging preserves the cause",
			err:       Staging("/tmp/work/abc.py", errors.New("disk full")),
			target:    ErrUnsupportedLanguage,
			wantMatch: false,
		},
		{
			name:      "ImagePull wraps ErrImagePull",
			err:       ImagePull("python:3-slim", errors.New("dial unix: no such file")),
			target:    ErrImagePull,
			wantMatch: true,
		},
		{
			name:      "ContainerStart wraps ErrContainerStart",
			err:       ContainerStart("python:3-slim", errors.New("port in use")),
			target:    ErrContainerStart,
			wantMatch: true,
		},
		{
			name:      "Cancelled wraps ErrCancelled",
			err:       Cancelled(),
			target:    ErrCancelled,
			wantMatch: true,
		},
		{
			name:      "Teardown wraps ErrTeardown",
			err:       Teardown("container abc123", errors.New("already removed")),
			target:    ErrTeardown,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("code", "code is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("run", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "UnsupportedLanguage names the language",
			err:         UnsupportedLanguage("fortran"),
			wantMessage: `no command mapping for language "fortran"`,
		},
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("run", "abc123"),
			wantMessage: "run not found with id abc123",
		},
		{
			name:        "Cancelled has a fixed message",
			err:         Cancelled(),
			wantMessage: "execution cancelled by caller",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestDetailField(t *testing.T) {
	err := UnsupportedLanguage("cobol")
	if err.Detail != "cobol" {
		t.Errorf("Detail = %q, want %q", err.Detail, "cobol")
	}

	err = ImagePull("alpine:edge", errors.New("network down"))
	if err.Detail != "alpine:edge" {
		t.Errorf("Detail = %q, want %q", err.Detail, "alpine:edge")
	}
}

func TestCancelledDistinctFromCauses(t *testing.T) {
	// A wrapped staging error must not be mistaken for a cancellation.
	err := error(Staging("/tmp/x.py", errors.New("permission denied")))
	if errors.Is(err, ErrCancelled) {
		t.Error("staging error should not match ErrCancelled")
	}
}
