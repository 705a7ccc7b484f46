package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	echoapi "github.com/masomo/lms/apps/api/echo"
	"github.com/masomo/lms/core"
	"github.com/masomo/lms/core/course"
	"github.com/masomo/lms/core/enrollment"
	"github.com/masomo/lms/core/user"
	inmemdb "github.com/masomo/lms/storage/database/inmem"
	sqlxrepos "github.com/masomo/lms/storage/database/sqlx"
	"github.com/masomo/lms/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

type testApp struct {
	echoapi.Server
	conf *core.Config
	db   *sqlx.DB
}

func setup(t *testing.T, courses ...course.Course) testApp {
	db := testutil.OpenDB(t)
	svc := enrollment.NewService(
		db,
		sqlxrepos.NewEnrollmentRepository(db),
		sqlxrepos.NewProgressRepository(db),
		inmemdb.NewCatalogReader(courses...),
		testutil.NewLogger(),
	)

	conf := testutil.NewConfig()
	validate, translator := testutil.NewValidator()
	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         testutil.NewLogger(),
		EnrollmentSvc:  svc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	return testApp{Server: server, conf: conf, db: db}
}

func (app testApp) getToken(t *testing.T, actor user.Actor) string {
	token, err := echoapi.GenerateToken(app.conf, echoapi.GetUserClaims(app.conf, actor))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// do serves the request and returns the recorded response.
func (app testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
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

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
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
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHttpTests(t *testing.T, app testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			checkCodeAndData(t, tt, app.do(method, tt.path, tt.token, tt.body))
		})
	}
}
