package household

import (
	"errors"
	"fmt"

	"github.com/dukerupert/plantcare/internal/docstore"
)

var (
	ErrNotFound          = docstore.ErrNotFound
	ErrBlankName         = errors.New("household name is required")
	ErrInvalidJoinCode   = errors.New("invalid join code")
	ErrNotMember         = errors.New("not a member of this household")
	ErrJoinCodeExhausted = errors.New("could not generate a unique join code")
)

// StepError reports a sequence of writes that failed part way. Writes made
// before Step are left in place. It matches docstore.ErrPartial.
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
