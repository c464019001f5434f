package notify

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind is the visual category of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Icons
const (
	IconCheck = "check"
	IconAlert = "alert"
)

var (
	ErrInvalidKind = errors.New("invalid notification kind")

	AllKinds = []Kind{KindSuccess, KindError, KindInfo}

	styles = map[Kind]Style{
		KindSuccess: {Class: "toast-success", Icon: IconCheck},
		KindError:   {Class: "toast-error", Icon: IconAlert},
		KindInfo:    {Class: "toast-info", Icon: IconAlert},
	}
)

// Style is how a Kind is rendered by clients.
type Style struct {
	Class string `json:"class"`
	Icon  string `json:"icon"`
}

// ParseKind validates s against the known kinds. An empty s defaults to KindSuccess.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KindSuccess, nil
	}
	if k := Kind(s); k.Valid() {
		return k, nil
	}
	return "", errors.Wrapf(ErrInvalidKind, "%q", s)
}

// OrDefault returns KindSuccess for the zero Kind and k otherwise.
func (k Kind) OrDefault() Kind {
	if k == "" {
		return KindSuccess
	}
	return k
}

// Valid reports whether k is a known kind. The zero Kind is valid and means KindSuccess.
func (k Kind) Valid() bool {
	_, ok := styles[k.OrDefault()]
	return ok
}

// Style returns the styling of k. The zero Kind gets the success styling, unknown kinds the info styling.
func (k Kind) Style() Style {
	if st, ok := styles[k.OrDefault()]; ok {
		return st
	}
	return styles[KindInfo]
}
