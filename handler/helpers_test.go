package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/AnTengye/creditreport/config"
	"github.com/AnTengye/creditreport/middleware"
	"github.com/AnTengye/creditreport/model"
	"github.com/AnTengye/creditreport/pkg/metrics"
	"github.com/AnTengye/creditreport/service"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<INProfileResponse>
  <Header><ReportDate>20240115</ReportDate></Header>
  <Current_Application><Current_Application_Details><Current_Applicant_Details>
    <First_Name>Jane</First_Name><Last_Name>Doe</Last_Name>
  </Current_Applicant_Details></Current_Application_Details></Current_Application>
  <CAIS_Account>
    <CAIS_Account_DETAILS><Account_Status>11</Account_Status><Current_Balance>1000</Current_Balance></CAIS_Account_DETAILS>
    <CAIS_Account_DETAILS><Account_Status>13</Account_Status><Current_Balance>2500</Current_Balance></CAIS_Account_DETAILS>
  </CAIS_Account>
  <SCORE><BureauScore>712</BureauScore></SCORE>
</INProfileResponse>`

type testEnv struct {
	router  *gin.Engine
	cfg     *config.Config
	users   *service.UserService
	reports *service.ReportService
	store   *service.MemoryReportStore
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{MaxUploadMB: 1, RateLimit: 1000, RateWindowSeconds: 60},
		Auth:   config.AuthConfig{JWTSecret: "test-secret", TokenExpireHours: 24, MinPasswordLength: 6},
	}
	m := metrics.New()
	store := service.NewMemoryReportStore(&config.StoreConfig{})
	reports := service.NewReportService(store, nil, service.DefaultCodeTables(), m)
	users := service.NewUserService(service.NewMemoryUserStore(), &cfg.Auth)

	return &testEnv{
		router: NewRouter(RouterDeps{
			Config:  cfg,
			Reports: reports,
			Users:   users,
			Metrics: m,
		}),
		cfg:     cfg,
		users:   users,
		reports: reports,
		store:   store,
		metrics: m,
	}
}

// signup registers a user and returns it with a bearer token
func (e *testEnv) signup(t *testing.T, email, role string) (*model.User, string) {
	t.Helper()
	err := e.users.SeedUsers(context.Background(), []config.User{
		{Name: "Test User", Email: email, Password: "secret123", Role: role},
	})
	if err != nil {
		t.Fatalf("SeedUsers failed: %v", err)
	}
	user, err := e.users.Authenticate(context.Background(), email, "secret123")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	token, _, err := middleware.GenerateToken(user, &e.cfg.Auth)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	return user, token
}

func (e *testEnv) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// uploadRequest builds a multipart request with one file part
func uploadRequest(t *testing.T, path, field, fileName, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+fileName+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart failed: %v", err)
	}
	io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// decodeResponse parses the envelope; data is decoded into out when given
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, out any) Response {
	t.Helper()
	var raw struct {
		Response
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
	if out != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, out); err != nil {
			t.Fatalf("Failed to parse data: %v", err)
		}
	}
	return raw.Response
}
