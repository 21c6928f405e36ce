package handler

import (
	"errors"
	"regexp"

	"github.com/planloop/chatgate/internal/ierr"
)

// IdValidator checks project and message ids before they reach the store.
type IdValidator struct {
	idRegex *regexp.Regexp
}

func NewIdValidator() *IdValidator {
	return &IdValidator{
		idRegex: regexp.MustCompile(`^[\w-]{1,64}$`),
	}
}

func (v *IdValidator) Validate(id string) error {
	valid := v.idRegex.MatchString(id)
	if !valid {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("malformed id"))
	}

	return nil
}
