package student

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/usajili/core"
	"github.com/trezcool/usajili/core/notify"
)

const RegisteredMessage = "Registration successful"

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound         = errors.New("student not found")
	ErrEmailExists      = errors.New("a student with this email already exists")
	ErrRollNumberExists = errors.New("a student with this roll number already exists")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrEmailExists or ErrRollNumberExists if another student,
		// not in excluded, already uses the email or the roll number.
		CheckUniqueness(ctx context.Context, email, rollNumber string, excluded ...Student) error
		Create(ctx context.Context, st Student) (Student, error)
		// Query applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Name, Email or RollNumber.
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		Get(ctx context.Context, filter GetFilter) (Student, error)
		Update(ctx context.Context, st Student) (Student, error)
		Delete(ctx context.Context, ids ...string) (int, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, email, rollNumber string, excluded ...Student) error
		// Register creates the student, sends the welcome email and notifies the student.
		Register(ctx context.Context, ns NewStudent) (Student, notify.Item, error)
		Create(ctx context.Context, ns NewStudent) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		GetByID(ctx context.Context, id string) (Student, error)
		GetByEmail(ctx context.Context, email string) (Student, error)
		Update(ctx context.Context, id string, us UpdateStudent) (Student, error)
		SetLastLogin(ctx context.Context, st Student) (Student, error)
		ResetPassword(ctx context.Context, id, pwd string) error
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo        Repository
		mailSvc     core.EmailService
		tray        *notify.Tray
		autoDismiss time.Duration
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, tray *notify.Tray) Service {
	autoDismiss := notify.DefaultAutoDismiss
	if core.Conf != nil && core.Conf.Notify.AutoDismiss > 0 {
		autoDismiss = core.Conf.Notify.AutoDismiss
	}
	return &service{
		repo:        repo,
		mailSvc:     mailSvc,
		tray:        tray,
		autoDismiss: autoDismiss,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, email, rollNumber string, excluded ...Student) error {
	return uniquenessError(svc.repo.CheckUniqueness(ctx, email, rollNumber, excluded...), "checking student uniqueness")
}

// uniquenessError turns ErrEmailExists and ErrRollNumberExists into field validation errors.
func uniquenessError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var field string
	switch errors.Cause(err) {
	case ErrEmailExists:
		field = "email"
	case ErrRollNumberExists:
		field = "roll_number"
	default:
		return errors.Wrap(err, msg)
	}
	return core.NewValidationError(err, core.FieldError{Field: field, Error: errors.Cause(err).Error()})
}

func (svc *service) Register(ctx context.Context, ns NewStudent) (Student, notify.Item, error) {
	ns.IsAdmin = false
	st, err := svc.Create(ctx, ns)
	if err != nil {
		return Student{}, notify.Item{}, err
	}

	svc.sendWelcomeMail(st)

	item, err := svc.tray.Push(st.ID, notify.New(RegisteredMessage, notify.KindSuccess, svc.autoDismiss))
	if err != nil {
		return st, notify.Item{}, errors.Wrap(err, "pushing registration notification")
	}
	return st, item, nil
}

func (svc *service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	now := NowFunc().UTC()
	st := Student{
		Name:       ns.Name,
		Email:      ns.Email,
		Phone:      ns.Phone,
		Course:     ns.Course,
		RollNumber: ns.RollNumber,
		IsActive:   true,
		IsAdmin:    ns.IsAdmin,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := st.SetPassword(ns.Password); err != nil {
		return Student{}, errors.Wrap(err, "setting password")
	}
	// a concurrent registration may have taken the email since CheckUniqueness
	st, err := svc.repo.Create(ctx, st)
	if err != nil {
		return Student{}, uniquenessError(err, "creating student")
	}
	return st, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.Query(ctx, filter, core.CleanOrdering(ordering, OrderingFields))
}

func (svc *service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.Get(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (Student, error) {
	return svc.repo.Get(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	st, err := svc.GetByID(ctx, id)
	if err != nil {
		return Student{}, err
	}

	st.Name = us.Name
	st.Phone = us.Phone
	st.Course = us.Course
	if us.IsActive != nil {
		st.IsActive = *us.IsActive
	}
	if us.IsAdmin != nil {
		st.IsAdmin = *us.IsAdmin
	}
	if us.Password != "" {
		if err = st.SetPassword(us.Password); err != nil {
			return Student{}, errors.Wrap(err, "setting password")
		}
	}
	st.UpdatedAt = NowFunc().UTC()
	return svc.repo.Update(ctx, st)
}

func (svc *service) SetLastLogin(ctx context.Context, st Student) (Student, error) {
	st.LastLogin = NowFunc().UTC()
	return svc.repo.Update(ctx, st)
}

func (svc *service) ResetPassword(ctx context.Context, id, pwd string) error {
	st, err := svc.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err = st.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	st.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.Update(ctx, st)
	return err
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := svc.repo.Delete(ctx, ids...)
	return err
}

func (svc *service) sendWelcomeMail(st Student) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: st.Name, Address: st.Email}},
		Subject:      "Welcome!",
		TemplateName: "welcome",
		TemplateData: st,
	})
}
