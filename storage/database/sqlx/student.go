package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/usajili/core"
	"github.com/trezcool/usajili/core/student"
)

const (
	uniqueViolation = "23505"

	emailConstraint      = "student_email_key"
	rollNumberConstraint = "student_roll_number_key"
)

const studentColumns = "id, name, email, phone, course, roll_number, is_active, is_admin, password_hash, created_at, updated_at, last_login"

type studentRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Email        string      `db:"email"`
	Phone        null.String `db:"phone"`
	Course       string      `db:"course"`
	RollNumber   null.String `db:"roll_number"`
	IsActive     bool        `db:"is_active"`
	IsAdmin      bool        `db:"is_admin"`
	PasswordHash []byte      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo studentRepository) toRow(st student.Student) studentRow {
	return studentRow{
		ID:           st.ID,
		Name:         st.Name,
		Email:        st.Email,
		Phone:        null.NewString(st.Phone, st.Phone != ""),
		Course:       st.Course,
		RollNumber:   null.NewString(st.RollNumber, st.RollNumber != ""),
		IsActive:     st.IsActive,
		IsAdmin:      st.IsAdmin,
		PasswordHash: st.PasswordHash,
		CreatedAt:    st.CreatedAt.UTC(),
		UpdatedAt:    st.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(st.LastLogin.UTC(), !st.LastLogin.IsZero()),
	}
}

func (repo studentRepository) fromRow(row studentRow) student.Student {
	return student.Student{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		Phone:        row.Phone.String,
		Course:       row.Course,
		RollNumber:   row.RollNumber.String,
		IsActive:     row.IsActive,
		IsAdmin:      row.IsAdmin,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
}

// trapNoRowsErr maps psql "no rows" err to student.ErrNotFound
func (repo studentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return student.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) CheckUniqueness(ctx context.Context, email, rollNumber string, excluded ...student.Student) error {
	q := "SELECT email, roll_number FROM student WHERE (email = ? OR roll_number = ?)"
	args := []interface{}{email, null.NewString(rollNumber, rollNumber != "")}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, st := range excluded {
			ids = append(ids, st.ID)
		}
		q += " AND id NOT IN (?)"
		args = append(args, ids)
	}
	q += " LIMIT 1"

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}

	var row studentRow
	err = repo.db.GetContext(ctx, &row, repo.db.Rebind(q), args...)
	if err == sql.ErrNoRows {
		return nil
	} else if err != nil {
		return errors.Wrap(err, "checking student uniqueness")
	}
	if email != "" && row.Email == email {
		return student.ErrEmailExists
	}
	return student.ErrRollNumberExists
}

func (repo studentRepository) Create(ctx context.Context, st student.Student) (student.Student, error) {
	st.ID = uuid.New().String()
	q := `INSERT INTO student (` + studentColumns + `)
		VALUES (:id, :name, :email, :phone, :course, :roll_number, :is_active, :is_admin, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, repo.toRow(st)); err != nil {
		return student.Student{}, trapUniqueViolation(err, "inserting student")
	}
	return st, nil
}

// trapUniqueViolation maps violations of the student unique constraints to
// student.ErrEmailExists and student.ErrRollNumberExists.
func trapUniqueViolation(err error, msg string) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		switch pqErr.Constraint {
		case emailConstraint:
			return student.ErrEmailExists
		case rollNumberConstraint:
			return student.ErrRollNumberExists
		}
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) Query(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter != nil {
		// students with Name, Email or RollNumber matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where = append(where, "(name ILIKE ? OR email ILIKE ? OR roll_number ILIKE ?)")
			args = append(args, val, val, val)
		}
		if len(filter.Courses) > 0 {
			lower := make([]string, 0, len(filter.Courses))
			for _, c := range filter.Courses {
				lower = append(lower, strings.ToLower(c))
			}
			where = append(where, "LOWER(course) IN (?)")
			args = append(args, lower)
		}
		if filter.IsActive != nil {
			where = append(where, "is_active = ?")
			args = append(args, *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			where = append(where, "created_at >= ?")
			args = append(args, filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			where = append(where, "created_at <= ?")
			args = append(args, filter.CreatedTo.UTC())
		}
	}

	q := "SELECT " + studentColumns + " FROM student"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}

	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range core.CleanOrdering(ordering, student.OrderingFields) {
		orderList = append(orderList, ord.String())
	}
	orderList = append(orderList, "created_at ASC")
	q += " ORDER BY " + strings.Join(orderList, ", ")

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building students query")
	}

	var rows []studentRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, repo.fromRow(row))
	}
	return students, nil
}

func (repo studentRepository) Get(ctx context.Context, filter student.GetFilter) (student.Student, error) {
	var (
		row studentRow
		err error
	)
	q := "SELECT " + studentColumns + " FROM student WHERE "

	switch {
	case filter.ID != "":
		if _, err = uuid.Parse(filter.ID); err != nil {
			return student.Student{}, student.ErrNotFound
		}
		err = repo.db.GetContext(ctx, &row, q+"id = $1", filter.ID)
	case filter.Email != "":
		err = repo.db.GetContext(ctx, &row, q+"email = $1", filter.Email)
	case filter.RollNumber != "":
		err = repo.db.GetContext(ctx, &row, q+"roll_number = $1", filter.RollNumber)
	default:
		return student.Student{}, student.ErrNotFound
	}
	if err != nil {
		return student.Student{}, repo.trapNoRowsErr(err, "finding student")
	}
	return repo.fromRow(row), nil
}

func (repo studentRepository) Update(ctx context.Context, st student.Student) (student.Student, error) {
	q := `UPDATE student SET
		name = :name, phone = :phone, course = :course, roll_number = :roll_number,
		is_active = :is_active, is_admin = :is_admin, password_hash = :password_hash,
		updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, repo.toRow(st))
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return st, nil
}

func (repo studentRepository) Delete(ctx context.Context, ids ...string) (int, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	q, args, err := sqlx.In("DELETE FROM student WHERE id IN (?)", valid)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "counting deleted students")
}
