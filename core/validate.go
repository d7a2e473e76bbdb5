package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs the struct tag rules on v and folds any failure into ErrValidation.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, "; "))
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
