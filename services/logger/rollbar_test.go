package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/usajili/core"
	"github.com/trezcool/usajili/core/student"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "API : ", 0), core.Conf)
	logger.Enable(false)

	st := student.Student{ID: "42", Name: "Jane Doe", Email: "jane@test.cd"}
	args := logger.prepare("boom", []interface{}{errors.New("db is down"), st, map[string]interface{}{"path": "/"}})

	// the student is set as the rollbar person, not sent as an arg
	assert.Len(t, args, 3)
	assert.Equal(t, "boom", args[0])

	logger.Error("boom", errors.New("db is down"))
	assert.Equal(t, "API : boom\nAPI : db is down\n", buf.String())
}
