package student

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/usajili/core"
)

// OrderingFields are the fields students can be ordered by.
var OrderingFields = map[string]bool{
	"name":        true,
	"email":       true,
	"course":      true,
	"roll_number": true,
	"created_at":  true,
	"last_login":  true,
}

type Student struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Course       string    `json:"course"`
	RollNumber   string    `json:"roll_number"`
	IsActive     bool      `json:"is_active"`
	IsAdmin      bool      `json:"is_admin"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (st *Student) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	st.PasswordHash = hash
	return nil
}

func (st *Student) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(st.PasswordHash, []byte(pwd))
}

// NewStudent is the registration form.
type NewStudent struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"omitempty,e164"`
	Course          string `json:"course" validate:"required"`
	RollNumber      string `json:"roll_number" validate:"omitempty,max=50,alphanum_"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	IsAdmin         bool   `json:"-"`
}

func (ns *NewStudent) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = cleanPhone(ns.Phone)
	ns.Course = core.CleanString(ns.Course)
	ns.RollNumber = core.CleanString(ns.RollNumber, true /* lower */)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, ns.Email, ns.RollNumber)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Empty fields are left untouched.
type UpdateStudent struct {
	Name            string `json:"name"`
	Phone           string `json:"phone" validate:"omitempty,e164"`
	Course          string `json:"course"`
	IsActive        *bool  `json:"is_active"`
	IsAdmin         *bool  `json:"is_admin"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`

	// set from the original student for the password policy
	email      string
	rollNumber string
}

func (us *UpdateStudent) Validate(orig Student, validate *validator.Validate) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	if course := core.CleanString(us.Course); course != "" {
		us.Course = course
	} else {
		us.Course = orig.Course
	}
	if phone := cleanPhone(us.Phone); phone != "" {
		us.Phone = phone
	} else {
		us.Phone = orig.Phone
	}
	us.email = orig.Email
	us.rollNumber = orig.RollNumber
	return validate.Struct(us)
}

type GetFilter struct {
	ID         string
	Email      string
	RollNumber string
}

type QueryFilter struct {
	Search      string
	Courses     []string
	IsActive    *bool
	CreatedFrom time.Time
	CreatedTo   time.Time
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && len(qf.Courses) == 0 && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	courses := make([]string, 0, len(qf.Courses))
	for _, c := range qf.Courses {
		if c = core.CleanString(c); c != "" {
			courses = append(courses, c)
		}
	}
	qf.Courses = courses
}

// cleanPhone drops the separators people type in phone numbers.
func cleanPhone(phone string) string {
	phone = core.CleanString(phone)
	b := make([]rune, 0, len(phone))
	for _, r := range phone {
		switch r {
		case ' ', '-', '.', '(', ')':
			continue
		}
		b = append(b, r)
	}
	return string(b)
}
