package sqlxrepos

import (
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/usajili/core/student"
)

func TestTrapUniqueViolation(t *testing.T) {
	other := errors.New("connection refused")

	tests := []struct {
		name    string
		err     error
		want    error
		wantMsg string
	}{
		{name: "email", err: &pq.Error{Code: uniqueViolation, Constraint: emailConstraint}, want: student.ErrEmailExists},
		{name: "roll number", err: &pq.Error{Code: uniqueViolation, Constraint: rollNumberConstraint}, want: student.ErrRollNumberExists},
		{
			name:    "other constraint",
			err:     &pq.Error{Code: uniqueViolation, Constraint: "student_pkey", Message: "duplicate key"},
			wantMsg: "inserting student: pq: duplicate key",
		},
		{name: "other error", err: other, wantMsg: "inserting student: connection refused"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := trapUniqueViolation(tc.err, "inserting student")
			if tc.want != nil {
				assert.Equal(t, tc.want, got)
				return
			}
			assert.EqualError(t, got, tc.wantMsg)
		})
	}
}
