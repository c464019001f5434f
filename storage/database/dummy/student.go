package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/usajili/core"
	"github.com/trezcool/usajili/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) query() []student.Student {
	students := make([]student.Student, 0, len(repo.db.table))
	for _, st := range repo.db.table {
		students = append(students, *st)
	}
	return students
}

func (repo *studentRepository) CheckUniqueness(_ context.Context, email, rollNumber string, excluded ...student.Student) error {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.checkUniqueness(email, rollNumber, excluded...)
}

// checkUniqueness must be called with repo.db locked.
func (repo *studentRepository) checkUniqueness(email, rollNumber string, excluded ...student.Student) error {
	isExcluded := func(st student.Student) bool {
		for _, ex := range excluded {
			if ex.ID == st.ID {
				return true
			}
		}
		return false
	}

	for _, st := range repo.query() {
		if isExcluded(st) {
			continue
		}
		if email != "" && st.Email == email {
			return student.ErrEmailExists
		}
		if rollNumber != "" && st.RollNumber == rollNumber {
			return student.ErrRollNumberExists
		}
	}
	return nil
}

func (repo *studentRepository) Create(_ context.Context, st student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// same guarantee as the database unique constraints
	if err := repo.checkUniqueness(st.Email, st.RollNumber); err != nil {
		return student.Student{}, err
	}
	st.ID = uuid.New().String()
	repo.db.table[st.ID] = &st
	return st, nil
}

func (repo *studentRepository) Get(_ context.Context, filter student.GetFilter) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if st, ok := repo.db.table[filter.ID]; ok {
			return *st, nil
		}
		return student.Student{}, student.ErrNotFound
	}
	for _, st := range repo.db.table {
		if (filter.Email != "" && st.Email == filter.Email) ||
			(filter.RollNumber != "" && st.RollNumber == filter.RollNumber) {
			return *st, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) Query(_ context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := repo.query()
	if filter != nil {
		filtered := make([]student.Student, 0, len(students))
		for _, st := range students {
			if matches(st, filter) {
				filtered = append(filtered, st)
			}
		}
		students = filtered
	}

	// default ordering keeps results stable
	ords := make([]core.DBOrdering, 0, len(ordering)+2)
	ords = append(ords, ordering...)
	ords = append(ords, core.DBOrdering{Field: "created_at", Ascending: true}, core.DBOrdering{Field: "id", Ascending: true})
	sort.SliceStable(students, func(i, j int) bool {
		for _, ord := range ords {
			if c := compare(students[i], students[j], ord.Field); c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return false
	})
	return students, nil
}

func (repo *studentRepository) Update(_ context.Context, st student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[st.ID]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	repo.db.table[st.ID] = &st
	return st, nil
}

func (repo *studentRepository) Delete(_ context.Context, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			cnt++
		}
	}
	return cnt, nil
}

func matches(st student.Student, filter *student.QueryFilter) bool {
	// search keyword matching any Name, Email or RollNumber
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !(strings.Contains(strings.ToLower(st.Name), search) ||
			strings.Contains(strings.ToLower(st.Email), search) ||
			strings.Contains(strings.ToLower(st.RollNumber), search)) {
			return false
		}
	}
	// any of the specified courses
	if len(filter.Courses) > 0 {
		var found bool
		for _, c := range filter.Courses {
			if strings.EqualFold(st.Course, c) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && st.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && st.CreatedAt.Before(filter.CreatedFrom.UTC()) {
		return false
	}
	if !filter.CreatedTo.IsZero() && st.CreatedAt.After(filter.CreatedTo.UTC()) {
		return false
	}
	return true
}

func compare(a, b student.Student, field string) int {
	switch field {
	case "id":
		return strings.Compare(a.ID, b.ID)
	case "name":
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "course":
		return strings.Compare(strings.ToLower(a.Course), strings.ToLower(b.Course))
	case "roll_number":
		return strings.Compare(a.RollNumber, b.RollNumber)
	case "created_at":
		return compareTime(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	case "last_login":
		return compareTime(a.LastLogin.UnixNano(), b.LastLogin.UnixNano())
	}
	return 0
}

func compareTime(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
