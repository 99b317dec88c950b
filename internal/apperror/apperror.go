package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")

	// Execution taxonomy. Provisioning and staging errors abort a call
	// before any code block runs; cancellation aborts the running block.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrStaging             = errors.New("staging failed")
	ErrImagePull           = errors.New("image pull failed")
	ErrContainerStart      = errors.New("container start failed")
	ErrCancelled           = errors.New("execution cancelled")
	ErrTeardown            = errors.New("teardown failed")
)

type AppError struct {
	Err     error  // sentinel the error wraps
	Message string // human-readable error message
	Detail  string // optional: offending value (language tag, image ref, path)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Detail:  field,
	}
}

// UnsupportedLanguage reports a language tag with no registered
// extension/interpreter mapping. Fatal to the whole call: no block runs.
func UnsupportedLanguage(language string) *AppError {
	return &AppError{
		Err:     ErrUnsupportedLanguage,
		Message: fmt.Sprintf("no command mapping for language %q", language),
		Detail:  language,
	}
}

func Staging(path string, err error) *AppError {
	return &AppError{
		Err:     errors.Join(ErrStaging, err),
		Message: fmt.Sprintf("staging code to %s: %v", path, err),
		Detail:  path,
	}
}

func ImagePull(image string, err error) *AppError {
	return &AppError{
		Err:     errors.Join(ErrImagePull, err),
		Message: fmt.Sprintf("pulling image %s: %v", image, err),
		Detail:  image,
	}
}

func ContainerStart(image string, err error) *AppError {
	return &AppError{
		Err:     errors.Join(ErrContainerStart, err),
		Message: fmt.Sprintf("starting container for image %s: %v", image, err),
		Detail:  image,
	}
}

// Cancelled marks a call that was interrupted by its cancellation handle.
// The running process has been terminated by the time this is returned.
func Cancelled() *AppError {
	return &AppError{
		Err:     ErrCancelled,
		Message: "execution cancelled by caller",
	}
}

func Teardown(resource string, err error) *AppError {
	return &AppError{
		Err:     errors.Join(ErrTeardown, err),
		Message: fmt.Sprintf("tearing down %s: %v", resource, err),
		Detail:  resource,
	}
}
