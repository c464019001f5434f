package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/usajili/apps/api/echo"
	"github.com/trezcool/usajili/core"
	"github.com/trezcool/usajili/core/notify"
	"github.com/trezcool/usajili/core/student"
	"github.com/trezcool/usajili/services/email"
	"github.com/trezcool/usajili/services/logger"
	"github.com/trezcool/usajili/storage/database/dummy"
	"github.com/trezcool/usajili/tests"
)

const goodPwd = "Zq8#mT4!vw"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*echoapi.Server
	repo  student.Repository
	tray  *notify.Tray
	store *notify.MemStore
}

func setup(t *testing.T, confOpts ...func(conf *core.Config)) testApp {
	conf := *core.Conf
	conf.Debug = false
	conf.TestMode = true
	for _, opt := range confOpts {
		opt(&conf)
	}

	// set up DB & repos
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	repo := dummydb.NewStudentRepository(db)

	// set up services
	logger := logsvc.New("TEST : ", &conf)
	store := notify.NewMemStore()
	tray := notify.NewTray(store, logger, conf.Notify.MaxToasts)
	t.Cleanup(tray.Shutdown)
	emailsvc.ResetSentMessages()
	mailSvc := emailsvc.NewConsoleServiceMock(&conf)
	validate, translator := testutil.NewValidator()

	// set up server
	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           &conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		StudentSvc:     student.NewService(repo, mailSvc, tray),
		Tray:           tray,
		DisableReqLogs: true,
	})
	return testApp{Server: server, repo: repo, tray: tray, store: store}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, st student.Student) string {
	claims := echoapi.GetStudentClaims(st)
	token, err := echoapi.GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code)
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if assert.NoError(t, err) {
		assert.Truef(t, ok, "data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
