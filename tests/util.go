package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/usajili/core"
	"github.com/trezcool/usajili/core/notify"
	"github.com/trezcool/usajili/core/student"
)

// NewValidator returns a validator with every custom validation and translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	notify.InitValidators(validate, translator)
	student.LoadCommonPasswords(nil)
	return validate, translator
}

func CreateStudent(
	t *testing.T,
	repo student.Repository,
	name, email, course, pwd string,
	isActive, isAdmin bool,
	createdAt ...time.Time,
) student.Student {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	st := student.Student{
		Name:      name,
		Email:     email,
		Course:    course,
		IsActive:  isActive,
		IsAdmin:   isAdmin,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := st.SetPassword(pwd); err != nil {
			t.Fatalf("CreateStudent(): %v", err)
		}
	}
	st, err := repo.Create(context.Background(), st)
	if err != nil {
		t.Fatalf("CreateStudent(): %v", err)
	}
	return st
}
