package notify

import (
	"strings"
	"time"

	"github.com/trezcool/usajili/core"
)

const DefaultAutoDismiss = 3000 * time.Millisecond

// Notification is a transient message shown to a recipient. The zero Kind is KindSuccess.
// The zero AutoDismiss never expires; use New to get the default delay.
type Notification struct {
	Message     string
	Kind        Kind
	AutoDismiss time.Duration
	// OnDismiss is invoked exactly once when the toast is dismissed, by timeout or by hand.
	OnDismiss func()
}

// New returns a Notification of the given kind that auto-dismisses after DefaultAutoDismiss,
// unless autoDismiss is provided.
func New(msg string, kind Kind, autoDismiss ...time.Duration) Notification {
	n := Notification{Message: msg, Kind: kind.OrDefault(), AutoDismiss: DefaultAutoDismiss}
	if len(autoDismiss) > 0 {
		n.AutoDismiss = autoDismiss[0]
	}
	return n
}

func (n Notification) Validate() error {
	var flds []core.FieldError
	if strings.TrimSpace(n.Message) == "" {
		flds = append(flds, core.FieldError{Field: "message", Error: "this field is required"})
	}
	if !n.Kind.Valid() {
		flds = append(flds, core.FieldError{Field: "kind", Error: ErrInvalidKind.Error()})
	}
	if n.AutoDismiss < 0 {
		flds = append(flds, core.FieldError{Field: "auto_dismiss_ms", Error: "must be greater than or equal to 0"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}
