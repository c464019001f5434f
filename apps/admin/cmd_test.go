package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/usajili/core"
	"github.com/trezcool/usajili/core/notify"
	"github.com/trezcool/usajili/core/student"
	"github.com/trezcool/usajili/services/email"
	"github.com/trezcool/usajili/services/genai"
	"github.com/trezcool/usajili/storage/database"
	"github.com/trezcool/usajili/storage/database/dummy"
	"github.com/trezcool/usajili/tests"
)

const goodPwd = "Zq8#mT4!vw"

var studentRepo student.Repository

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	// set up DB & repos
	db, err := dummydb.Open()
	require.NoError(t, err)
	studentRepo = dummydb.NewStudentRepository(db)

	tray := notify.NewTray(nil, nil, 0)
	t.Cleanup(tray.Shutdown)

	// start CLI
	out := new(bytes.Buffer)
	return &commandLine{
		conf:       core.Conf,
		out:        out,
		db:         sqlx.NewDb(nil, "postgres"), // only handed to the mocked funcs
		studentSvc: student.NewService(studentRepo, emailsvc.NewConsoleServiceMock(core.Conf), tray),
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		assert.EqualError(t, err, tt.wantErrStr)
	default:
		assert.NoError(t, err)
	}
}

func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

func Test_commandLine_run(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "migrate: no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "smoke: no subcommand", args: []string{"smoke"}, wantErr: errHelp},
		{name: "smoke: unknown subcommand", args: []string{"smoke", "lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			tt.check(t, cli.run(args))
			assert.Contains(t, out.String(), "Usage:")
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })
	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, _ := setup(t)
	ctx := context.Background()
	jane := testutil.CreateStudent(t, studentRepo, "Jane", "jane@test.cd", "Physics", goodPwd, false, false)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"adduser", "-email", "new@test.cd"}, wantErr: errHelp},
		{name: "create admin", args: []string{"adduser", "-email", " NEW@test.cd", "-admin"}, extra: "n3w-Pa$$word"},
		{name: "update existing", args: []string{"adduser", "-email", jane.Email, "-name", "Jane Doe", "-admin"}, extra: "n3w-Pa$$word"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			pwd, _ := tt.extra.(string)
			mockPassword(t, pwd)
			tt.check(t, cli.run(args))
		})
	}

	created, err := cli.studentSvc.GetByEmail(ctx, "new@test.cd")
	require.NoError(t, err)
	assert.Equal(t, "new", created.Name)
	assert.Equal(t, "Staff", created.Course)
	assert.True(t, created.IsActive)
	assert.True(t, created.IsAdmin)
	assert.NoError(t, created.CheckPassword("n3w-Pa$$word"))

	updated, err := cli.studentSvc.GetByID(ctx, jane.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", updated.Name)
	assert.Equal(t, "Physics", updated.Course)
	assert.True(t, updated.IsActive)
	assert.True(t, updated.IsAdmin)
	assert.NoError(t, updated.CheckPassword("n3w-Pa$$word"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)
	jane := testutil.CreateStudent(t, studentRepo, "Jane", "jane@test.cd", "Physics", goodPwd, true, false)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "student not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: "lol", wantErr: student.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", "JANE@test.cd"}, extra: "lmao"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			pwd, _ := tt.extra.(string)
			mockPassword(t, pwd)
			tt.check(t, cli.run(args))
		})
	}

	refreshed, err := cli.studentSvc.GetByID(context.Background(), jane.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("lmao"))
}

func Test_commandLine_fixIndex(t *testing.T) {
	cli, out := setup(t)

	var dropped []string
	origList, origDrop := listIndexesFunc, dropIndexFunc
	t.Cleanup(func() { listIndexesFunc, dropIndexFunc = origList, origDrop })
	listIndexesFunc = func(_ context.Context, _ *sqlx.DB, table string) ([]database.Index, error) {
		if table != "student" {
			return nil, errors.Errorf("listing indexes of %q: no such table", table)
		}
		return []database.Index{
			{Name: "student_pkey", Table: "student", Definition: "CREATE UNIQUE INDEX student_pkey ON public.student USING btree (id)"},
			{Name: "student_roll_number_key", Table: "student", Definition: "CREATE UNIQUE INDEX student_roll_number_key ON public.student USING btree (roll_number)"},
		}, nil
	}
	dropIndexFunc = func(_ context.Context, _ *sqlx.DB, name string) error {
		dropped = append(dropped, name)
		return nil
	}

	tests := []cliTest{
		{name: "drop without index", args: []string{"fixindex", "-drop"}, wantErr: errHelp},
		{name: "unknown table", args: []string{"fixindex", "-table", "lol"}, wantErrStr: `listing indexes of "lol": no such table`},
		{name: "list", args: []string{"fixindex"}, extra: "student.student_pkey: CREATE UNIQUE INDEX"},
		{name: "index not found", args: []string{"fixindex", "-index", "lol", "-drop"}, extra: `index "lol" not found on "student": nothing to do`},
		{name: "index found", args: []string{"fixindex", "-index", "student_roll_number_key"}, extra: "use -drop to drop it"},
		{name: "index dropped", args: []string{"fixindex", "-index", "student_roll_number_key", "-drop"}, extra: `index "student_roll_number_key" dropped`},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			tt.check(t, cli.run(args))
			if want, ok := tt.extra.(string); ok {
				assert.Contains(t, out.String(), want)
			}
		})
	}

	assert.Equal(t, []string{"student_roll_number_key"}, dropped)
}

func Test_commandLine_smokeRegister(t *testing.T) {
	cli, out := setup(t)

	origNow := nowFunc
	t.Cleanup(func() { nowFunc = origNow })
	nowFunc = func() time.Time { return time.Unix(1700000000, 0) }

	var gotEmails []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/students/register", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var ns student.NewStudent
		data, err := ioutil.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(data, &ns))
		gotEmails = append(gotEmails, ns.Email)

		w.Header().Set("Content-Type", "application/json")
		if ns.Email == "taken@test.cd" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"email": "a student with this email already exists"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"notification": {"message": "Registration successful", "kind": "success"}}`))
	}))
	t.Cleanup(srv.Close)
	cli.httpClient = srv.Client()

	tests := []cliTest{
		{name: "registered", args: []string{"smoke", "register", "-url", srv.URL + "/"}, extra: "201 Created"},
		{
			name: "rejected", args: []string{"smoke", "register", "-url", srv.URL, "-email", "taken@test.cd"},
			wantErrStr: "registering: unexpected status 400", extra: "a student with this email already exists",
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			tt.check(t, cli.run(args))
			assert.Contains(t, out.String(), tt.extra.(string))
		})
	}

	assert.Equal(t, []string{"smoke+1700000000@test.cd", "taken@test.cd"}, gotEmails)
}

func Test_commandLine_smokeGenAI(t *testing.T) {
	cli, out := setup(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1beta/models":
			_, _ = w.Write([]byte(`{"models": [{"name": "models/gemini-test", "displayName": "Gemini Test", "supportedGenerationMethods": ["generateContent", "countTokens"]}]}`))
		case "/v1beta/models/gemini-test:generateContent":
			_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "Hello!"}]}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": {"code": 404, "message": "model not found", "status": "NOT_FOUND"}}`))
		}
	}))
	t.Cleanup(srv.Close)
	cli.genai = genai.New(core.GenAIConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "gemini-test"}, srv.Client())

	tests := []cliTest{
		{name: "models", args: []string{"smoke", "genai-models"}, extra: "models/gemini-test\tGemini Test\tgenerateContent,countTokens"},
		{name: "no prompt", args: []string{"smoke", "genai"}, wantErr: errHelp},
		{name: "default model", args: []string{"smoke", "genai", "-prompt", "Say hello"}, extra: "[gemini-test]\nHello!"},
		{
			name: "unknown model", args: []string{"smoke", "genai", "-prompt", "Say hello", "-model", "lol"},
			wantErrStr: "generating content: genai: 404 NOT_FOUND: model not found",
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			tt.check(t, cli.run(args))
			if want, ok := tt.extra.(string); ok {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}
