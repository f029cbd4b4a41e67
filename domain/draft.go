package domain

import (
	"chat-broker/errors"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Draft is a submission that has not been persisted yet.
// The store turns it into a Message by assigning ID and CreatedAt.
type Draft struct {
	Channel  Channel
	AuthorID string       `validate:"required"`
	Content  string       `validate:"required,max=2000"`
	Code     *CodeSnippet // nil when the message carries no snippet
}

type codeRules struct {
	Language string `validate:"required,max=32"`
	Content  string `validate:"required,max=10000"`
}

// Validate checks the channel first, then the content rules.
// Content made of whitespace only is treated as empty.
func (d Draft) Validate() error {
	if !d.Channel.IsValid() {
		return fmt.Errorf("%w: %q", errors.ErrUnknownChannel, d.Channel)
	}
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrContentInvalid, describe(err))
	}
	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("%w: content is blank", errors.ErrContentInvalid)
	}
	if d.Code != nil {
		if err := validate.Struct(codeRules(*d.Code)); err != nil {
			return fmt.Errorf("%w: code %s", errors.ErrContentInvalid, describe(err))
		}
	}
	return nil
}

func describe(err error) string {
	var fieldErrors validator.ValidationErrors
	if ok := stderrors.As(err, &fieldErrors); !ok || len(fieldErrors) == 0 {
		return err.Error()
	}
	fe := fieldErrors[0]
	if fe.Param() != "" {
		return fmt.Sprintf("%s must satisfy %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s is %s", strings.ToLower(fe.Field()), fe.Tag())
}
