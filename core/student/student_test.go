package student_test

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/usajili/core"
	"github.com/trezcool/usajili/core/notify"
	"github.com/trezcool/usajili/core/student"
	"github.com/trezcool/usajili/services/email"
	"github.com/trezcool/usajili/storage/database/dummy"
	"github.com/trezcool/usajili/tests"
)

const goodPwd = "Zq8#mT4!vw"

type fixture struct {
	repo       student.Repository
	svc        student.Service
	tray       *notify.Tray
	validate   *validator.Validate
	translator ut.Translator
}

func setup(t *testing.T) fixture {
	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := dummydb.NewStudentRepository(db)
	tray := notify.NewTray(notify.NewMemStore(), nil, 0)
	t.Cleanup(tray.Shutdown)
	emailsvc.ResetSentMessages()

	validate, translator := testutil.NewValidator()
	return fixture{
		repo:       repo,
		svc:        student.NewService(repo, emailsvc.NewConsoleServiceMock(core.Conf), tray),
		tray:       tray,
		validate:   validate,
		translator: translator,
	}
}

// fieldErrors flattens validation errors into {field: message}.
func fieldErrors(t *testing.T, err error, translator ut.Translator) map[string]string {
	flds := make(map[string]string)
	switch e := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, fe := range e {
			flds[fe.Field()] = fe.Translate(translator)
		}
	case *core.ValidationError:
		for _, fe := range e.Fields {
			flds[fe.Field] = fe.Error
		}
	default:
		t.Fatalf("unexpected error: %v", err)
	}
	return flds
}

func validStudent() student.NewStudent {
	return student.NewStudent{
		Name:            "  Jane Doe ",
		Email:           " Jane@Test.CD",
		Phone:           "+243 810-000-000",
		Course:          "Computer Science",
		RollNumber:      "CS2024001",
		Password:        goodPwd,
		PasswordConfirm: goodPwd,
	}
}

func TestNewStudent_Validate(t *testing.T) {
	f := setup(t)
	testutil.CreateStudent(t, f.repo, "John Smith", "john@test.cd", "Law", goodPwd, true, false)

	tests := []struct {
		name     string
		mutate   func(ns *student.NewStudent)
		wantErrs map[string]string
	}{
		{
			name:   "valid",
			mutate: func(ns *student.NewStudent) {},
		},
		{
			name: "required fields",
			mutate: func(ns *student.NewStudent) {
				*ns = student.NewStudent{}
			},
			wantErrs: map[string]string{
				"name":             "this field is required",
				"email":            "this field is required",
				"course":           "this field is required",
				"password":         "this field is required",
				"password_confirm": "this field is required",
			},
		},
		{
			name: "invalid formats",
			mutate: func(ns *student.NewStudent) {
				ns.Email = "not-an-email"
				ns.Phone = "0810000000"
				ns.RollNumber = "cs/2024"
			},
			wantErrs: map[string]string{
				"email":       "email must be a valid email address",
				"phone":       "phone must be a valid E.164 formatted phone number",
				"roll_number": "only alphanumeric characters and underscores are allowed",
			},
		},
		{
			name: "password mismatch",
			mutate: func(ns *student.NewStudent) {
				ns.PasswordConfirm = goodPwd + "x"
			},
			wantErrs: map[string]string{"password_confirm": "password_confirm must be equal to Password"},
		},
		{
			name:     "email taken",
			mutate:   func(ns *student.NewStudent) { ns.Email = "JOHN@test.cd" },
			wantErrs: map[string]string{"email": "a student with this email already exists"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ns := validStudent()
			tc.mutate(&ns)
			err := ns.Validate(context.Background(), f.validate, f.svc)
			if tc.wantErrs == nil {
				require.NoError(t, err)
				assert.Equal(t, "Jane Doe", ns.Name)
				assert.Equal(t, "jane@test.cd", ns.Email)
				assert.Equal(t, "+243810000000", ns.Phone)
				assert.Equal(t, "cs2024001", ns.RollNumber)
				return
			}
			assert.Equal(t, tc.wantErrs, fieldErrors(t, err, f.translator))
		})
	}
}

func TestNewStudent_PasswordPolicy(t *testing.T) {
	f := setup(t)

	tests := []struct {
		pwd     string
		wantErr string
	}{
		{pwd: "Sh0rt!", wantErr: "password must contain at least 8 characters"},
		{pwd: "Has Space1!", wantErr: "password must not contain whitespace"},
		{pwd: "1234567890", wantErr: "password cannot be entirely numeric"},
		{pwd: "alllowercase1!", wantErr: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"},
		{pwd: "JaneDoe@1", wantErr: "password cannot be similar to student attributes"},
		{pwd: "P@ssw0rd", wantErr: "password is too common"},
		{pwd: goodPwd},
	}

	for _, tc := range tests {
		t.Run(tc.pwd, func(t *testing.T) {
			ns := validStudent()
			ns.Password = tc.pwd
			ns.PasswordConfirm = tc.pwd
			err := ns.Validate(context.Background(), f.validate, f.svc)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, map[string]string{"password": tc.wantErr}, fieldErrors(t, err, f.translator))
		})
	}
}

func TestService_Register(t *testing.T) {
	f := setup(t)

	ns := validStudent()
	require.NoError(t, ns.Validate(context.Background(), f.validate, f.svc))
	ns.IsAdmin = true // cannot self-register as admin

	st, item, err := f.svc.Register(context.Background(), ns)
	require.NoError(t, err)

	assert.NotEmpty(t, st.ID)
	assert.Equal(t, "jane@test.cd", st.Email)
	assert.True(t, st.IsActive)
	assert.False(t, st.IsAdmin)
	assert.NoError(t, st.CheckPassword(goodPwd))

	assert.Equal(t, student.RegisteredMessage, item.Message)
	assert.Equal(t, notify.KindSuccess, item.Kind)
	assert.Equal(t, core.Conf.Notify.AutoDismiss.Milliseconds(), item.AutoDismissMs)
	active := f.tray.Active(st.ID)
	require.Len(t, active, 1)
	assert.Equal(t, item.ID, active[0].ID)

	sent := emailsvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "jane@test.cd", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "Computer Science")

	// same email again
	again := validStudent()
	err = again.Validate(context.Background(), f.validate, f.svc)
	assert.Equal(t, map[string]string{"email": "a student with this email already exists"}, fieldErrors(t, err, f.translator))

	// same roll number, other email
	again = validStudent()
	again.Email = "other@test.cd"
	err = again.Validate(context.Background(), f.validate, f.svc)
	assert.Equal(t, map[string]string{"roll_number": "a student with this roll number already exists"}, fieldErrors(t, err, f.translator))
}

func TestService_RegisterDuplicateWithoutCheck(t *testing.T) {
	f := setup(t)

	ns := validStudent()
	require.NoError(t, ns.Validate(context.Background(), f.validate, f.svc))
	// both requests passed validation before either was stored
	dup := ns
	dup.RollNumber = "cs2024002"

	_, _, err := f.svc.Register(context.Background(), ns)
	require.NoError(t, err)

	_, _, err = f.svc.Register(context.Background(), dup)
	require.Error(t, err)
	assert.Equal(t, map[string]string{"email": "a student with this email already exists"}, fieldErrors(t, err, f.translator))

	sts, err := f.svc.Query(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, sts, 1)
	assert.Len(t, emailsvc.SentMessages(), 1)
}

func TestService_QueryAndUpdate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now()

	jane := testutil.CreateStudent(t, f.repo, "Jane Doe", "jane@test.cd", "Computer Science", "", true, false, now.Add(-2*time.Hour))
	john := testutil.CreateStudent(t, f.repo, "John Smith", "john@test.cd", "Law", "", true, false, now.Add(-time.Hour))
	ndog := testutil.CreateStudent(t, f.repo, "N Dog", "ndog@test.cd", "law", "", false, false, now)

	bPtr := func(b bool) *bool { return &b }
	tests := []struct {
		name     string
		filter   *student.QueryFilter
		ordering []core.DBOrdering
		want     []student.Student
	}{
		{name: "all", want: []student.Student{jane, john, ndog}},
		{name: "search", filter: &student.QueryFilter{Search: "JOHN"}, want: []student.Student{john}},
		{name: "courses", filter: &student.QueryFilter{Courses: []string{"LAW"}}, want: []student.Student{john, ndog}},
		{name: "inactive", filter: &student.QueryFilter{IsActive: bPtr(false)}, want: []student.Student{ndog}},
		{name: "created from", filter: &student.QueryFilter{CreatedFrom: now.Add(-90 * time.Minute)}, want: []student.Student{john, ndog}},
		{name: "created to", filter: &student.QueryFilter{CreatedTo: now.Add(-90 * time.Minute)}, want: []student.Student{jane}},
		{
			name:     "ordering",
			ordering: []core.DBOrdering{{Field: "name", Ascending: false}},
			want:     []student.Student{ndog, john, jane},
		},
		{
			name:     "unknown ordering field is ignored",
			ordering: []core.DBOrdering{{Field: "password_hash", Ascending: false}},
			want:     []student.Student{jane, john, ndog},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.svc.Query(ctx, tc.filter, tc.ordering)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	us := student.UpdateStudent{IsActive: bPtr(true), IsAdmin: bPtr(true), Password: goodPwd, PasswordConfirm: goodPwd}
	require.NoError(t, us.Validate(ndog, f.validate))
	updated, err := f.svc.Update(ctx, ndog.ID, us)
	require.NoError(t, err)
	assert.Equal(t, "N Dog", updated.Name)
	assert.Equal(t, "law", updated.Course)
	assert.True(t, updated.IsActive)
	assert.True(t, updated.IsAdmin)
	assert.NoError(t, updated.CheckPassword(goodPwd))

	_, err = f.svc.Update(ctx, "unknown", us)
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))

	require.NoError(t, f.svc.Delete(ctx, jane.ID, john.ID))
	_, err = f.svc.GetByID(ctx, jane.ID)
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))
	got, err := f.svc.GetByEmail(ctx, " NDOG@test.cd ")
	require.NoError(t, err)
	assert.Equal(t, ndog.ID, got.ID)
}
