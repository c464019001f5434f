package notify

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/usajili/core"
)

var (
	kindTag  = "notifykind"
	kindText = "{0} must be one of success, error or info"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(kindTag, kindValidation)
	core.RegisterCustomTranslation(validate, translator, kindTag, kindText)
}

func kindValidation(fl validator.FieldLevel) bool {
	_, err := ParseKind(fl.Field().String())
	return err == nil
}

// NewItem is the payload used to push a notification to a recipient.
type NewItem struct {
	Recipient     string `json:"recipient" validate:"required"`
	Message       string `json:"message" validate:"notblank"`
	Kind          string `json:"kind" validate:"omitempty,notifykind"`
	AutoDismissMs *int64 `json:"auto_dismiss_ms" validate:"omitempty,min=0"`
}

func (ni *NewItem) Validate(validate *validator.Validate) error {
	ni.Recipient = core.CleanString(ni.Recipient)
	return validate.Struct(ni)
}

// Notification converts ni. A missing auto_dismiss_ms gets DefaultAutoDismiss.
func (ni NewItem) Notification() Notification {
	kind, err := ParseKind(ni.Kind)
	if err != nil {
		kind = KindInfo
	}
	n := New(ni.Message, kind)
	if ni.AutoDismissMs != nil {
		n.AutoDismiss = time.Duration(*ni.AutoDismissMs) * time.Millisecond
	}
	return n
}
