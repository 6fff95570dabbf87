package tests

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/nageo/backend/apps/api/echo"
	"github.com/nageo/backend/core"
	"github.com/nageo/backend/core/booking"
	"github.com/nageo/backend/core/session"
	"github.com/nageo/backend/core/user"
	bussvc "github.com/nageo/backend/services/bus"
	emailsvc "github.com/nageo/backend/services/email"
	logsvc "github.com/nageo/backend/services/logger"
	inmemdb "github.com/nageo/backend/storage/database/inmem"
	testutil "github.com/nageo/backend/tests"
)

var (
	db       *inmemdb.DB
	app      Server
	bus      *bussvc.InProcBus
	usrRepo  user.Repository
	sessRepo session.Repository
	bkgRepo  booking.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func TestMain(m *testing.M) {
	conf := testutil.NewTestConfig()

	// set up DB & repos
	db, _ = inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	sessRepo = inmemdb.NewSessionRepository(db)
	bkgRepo = inmemdb.NewBookingRepository(db)

	// set up services
	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	bus = bussvc.NewInProcBus()
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, conf)
	sessSvc := session.NewService(sessRepo, bus)
	bkgSvc := booking.NewService(bkgRepo, sessSvc, mailSvc, bus, conf)

	// set up validation
	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	session.InitValidators(validate, translator)

	// set up server
	app = NewServer(
		ServerDeps{
			Conf:       conf,
			Logger:     logger,
			UserSvc:    usrSvc,
			SessionSvc: sessSvc,
			BookingSvc: bkgSvc,
			Validate:   validate,
			Translator: translator,
		},
	)

	os.Exit(m.Run())
}

func resetDB(t *testing.T) {
	t.Helper()
	db.Reset()
	bus.Reset()
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

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
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
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return false, nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
