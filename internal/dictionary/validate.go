package dictionary

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/glossa/internal/apperr"
)

// MaxText bounds heads, bodies and notes, in characters.
const MaxText = 2048

var (
	ErrNotOwner = fmt.Errorf("%w: you are not the owner of this entry", apperr.ErrForbidden)
	ErrUpvoted  = fmt.Errorf("%w: this entry has a positive amount of votes", apperr.ErrForbidden)
)

var (
	idPattern    = regexp.MustCompile(`^[0-9A-Za-z_-]{6,}$`)
	scopePattern = regexp.MustCompile(`^[a-z-]{1,24}$`)
)

var textRules = []validation.Rule{validation.Required, validation.RuneLength(1, MaxText)}

type createInput struct {
	Head  string
	Body  string
	Scope string
}

func (in createInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Head, textRules...),
		validation.Field(&in.Body, textRules...),
		validation.Field(&in.Scope, validation.Required,
			validation.Match(scopePattern).Error("scope must match [a-z-]{1,24}")),
	)
}

type voteInput struct {
	ID   string
	Vote int
}

func (in voteInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.ID, validation.Required, validation.Match(idPattern).Error("not a valid ID")),
		validation.Field(&in.Vote, validation.In(-1, 0, 1)),
	)
}

type noteInput struct {
	ID      string
	Content string
}

func (in noteInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.ID, validation.Required, validation.Match(idPattern).Error("not a valid ID")),
		validation.Field(&in.Content, textRules...),
	)
}

func validateID(id string) error {
	return validation.Validate(id, validation.Required, validation.Match(idPattern).Error("not a valid ID"))
}

func validateQuery(q string) error {
	return validation.Validate(q, validation.Required)
}
