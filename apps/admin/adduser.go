package main

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/usajili/core"
	"github.com/trezcool/usajili/core/student"
)

const defaultCourse = "Staff"

// addUser updates or creates an active student.Student
func (cli *commandLine) addUser(name, email, course, pwd string, isAdmin bool) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)
	course = core.CleanString(course)

	st, err := cli.studentSvc.GetByEmail(ctx, email)
	switch errors.Cause(err) {
	case nil:
		active := true
		us := student.UpdateStudent{
			Name:     st.Name,
			Phone:    st.Phone,
			Course:   st.Course,
			IsActive: &active,
			Password: pwd,
		}
		if name != "" {
			us.Name = name
		}
		if course != "" {
			us.Course = course
		}
		if isAdmin {
			us.IsAdmin = &isAdmin
		}
		if st, err = cli.studentSvc.Update(ctx, st.ID, us); err != nil {
			return errors.Wrap(err, "updating student")
		}
		cli.printf("updated %s <%s>\n", st.Name, st.Email)
	case student.ErrNotFound:
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		if course == "" {
			course = defaultCourse
		}
		st, err = cli.studentSvc.Create(ctx, student.NewStudent{
			Name:            name,
			Email:           email,
			Course:          course,
			Password:        pwd,
			PasswordConfirm: pwd,
			IsAdmin:         isAdmin,
		})
		if err != nil {
			return errors.Wrap(err, "creating student")
		}
		cli.printf("created %s <%s>\n", st.Name, st.Email)
	default:
		return errors.Wrap(err, "finding student by email")
	}
	return nil
}
