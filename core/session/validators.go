package session

import (
	"sort"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/nageo/backend/core"
)

var (
	levelTag  = "level"
	levelText = "invalid level"
)

// InitValidators registers the session domain validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(levelTag, levelValidation)
	core.RegisterCustomTranslation(validate, translator, levelTag, levelText)
}

// levelValidation checks that the provided level is in AllLevels.
func levelValidation(fl validator.FieldLevel) bool {
	level := fl.Field().String()
	sort.Strings(AllLevels)
	if idx := sort.SearchStrings(AllLevels, level); idx < len(AllLevels) {
		return AllLevels[idx] == level
	}
	return false
}
