package plant

import (
	"errors"
	"fmt"

	"github.com/dukerupert/plantcare/internal/docstore"
)

var (
	ErrNotFound            = docstore.ErrNotFound
	ErrBlankName           = errors.New("plant name is required")
	ErrInvalidWateringDays = errors.New("watering days must be greater than zero")
	ErrOwnership           = errors.New("plant must have exactly one of owner or household")
	ErrTooEarly            = errors.New("too early to water this plant")
)

// StepError reports a watering that was saved but whose follow-up write
// failed. It matches docstore.ErrPartial.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{docstore.ErrPartial, e.Err}
}
