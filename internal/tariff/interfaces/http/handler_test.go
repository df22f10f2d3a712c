package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wyfcoding/cargotariff/internal/tariff/application"
	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
	"github.com/wyfcoding/cargotariff/internal/tariff/infrastructure/persistence/mysql"
	"github.com/wyfcoding/cargotariff/pkg/config"
	"github.com/wyfcoding/cargotariff/pkg/db"
	"github.com/wyfcoding/cargotariff/pkg/middleware"
)

const testSecret = "test-secret"

type stubPublisher struct {
	events []domain.TariffAuditEvent
	err    error
}

func (p *stubPublisher) Publish(_ context.Context, e domain.TariffAuditEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

type envelope struct {
	Detail string          `json:"detail"`
	Error  any             `json:"error"`
	Result json.RawMessage `json:"result"`
}

type testServer struct {
	router *gin.Engine
	repo   *mysql.TariffRepository
	pub    *stubPublisher
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	d, err := db.Init(config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "api.db")}, db.Options{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := mysql.AutoMigrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := mysql.NewTariffRepository(d)
	pub := &stubPublisher{}
	app := application.NewTariffService(repo, mysql.NewAuditLogRepository(d), pub, nil, nil)

	router := gin.New()
	NewTariffHandler(app, middleware.JWTAuth(testSecret), 1<<20).RegisterRoutes(router)

	token, err := middleware.SignToken(testSecret, "test", "operator-1", time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	return &testServer{router: router, repo: repo, pub: pub, token: token}
}

func (s *testServer) do(t *testing.T, method, path string, body []byte, contentType string, auth bool) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func (s *testServer) load(t *testing.T, table string) {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/api/v1/cargos/load", []byte(table), "application/json", true)
	if w.Code != http.StatusOK {
		t.Fatalf("load: %d %s", w.Code, w.Body.String())
	}
	if env.Detail != "Cargo tariffs successfully uploaded." {
		t.Fatalf("load detail: %q", env.Detail)
	}
}

func (s *testServer) firstTariffID(t *testing.T) string {
	t.Helper()
	tariffs, err := s.repo.ListTariffs(context.Background())
	if err != nil || len(tariffs) == 0 {
		t.Fatalf("no tariffs: %v", err)
	}
	return tariffs[0].ID.String()
}

func TestLoadRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(t, http.MethodPost, "/api/v1/cargos/load", []byte(`{}`), "application/json", false)
	if w.Code != http.StatusUnauthorized || env.Detail != "Not authenticated" {
		t.Fatalf("got %d %q", w.Code, env.Detail)
	}
}

func TestLoadRawJSONReturnsSummary(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(t, http.MethodPost, "/api/v1/cargos/load",
		[]byte(`{"2024-01-01": [{"cargo_type": "Electronics", "rate": 0.02}]}`), "application/json", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var summary domain.ChangeSummary
	if err := json.Unmarshal(env.Result, &summary); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary != (domain.ChangeSummary{CreatedTypes: 1, CreatedTariffs: 1}) {
		t.Fatalf("summary: %+v", summary)
	}
	if env.Error != nil {
		t.Fatalf("error must be null: %v", env.Error)
	}
}

func TestLoadMultipartUpload(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("upload_file", "rates.json")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write([]byte(`{"2024-01-01": [{"cargo_type": "Glass", "rate": 0.04}, {"cargo_type": "Other", "rate": 0.01}]}`))
	_ = mw.Close()

	w, env := s.do(t, http.MethodPost, "/api/v1/cargos/load", buf.Bytes(), mw.FormDataContentType(), true)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var summary domain.ChangeSummary
	_ = json.Unmarshal(env.Result, &summary)
	if summary.CreatedTariffs != 2 {
		t.Fatalf("summary: %+v", summary)
	}
}

func TestLoadMultipartOverLimit(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("upload_file", "rates.json")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write(bytes.Repeat([]byte(" "), 2<<20))
	_ = mw.Close()

	w, env := s.do(t, http.MethodPost, "/api/v1/cargos/load", buf.Bytes(), mw.FormDataContentType(), true)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if env.Detail != "Upload was failed." {
		t.Fatalf("detail: %q", env.Detail)
	}
}

func TestLoadMultipartMissingField(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "x")
	_ = mw.Close()

	w, _ := s.do(t, http.MethodPost, "/api/v1/cargos/load", buf.Bytes(), mw.FormDataContentType(), true)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}

func TestLoadFailureHasNoPartialCounts(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"2024-01-01": [`},
		{"negative rate", `{"2024-01-01": [{"cargo_type": "A", "rate": 0.1}, {"cargo_type": "B", "rate": -1}]}`},
		{"bad date", `{"2024/01/01": [{"cargo_type": "A", "rate": 0.1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, http.MethodPost, "/api/v1/cargos/load", []byte(tt.body), "application/json", true)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status %d: %s", w.Code, w.Body.String())
			}
			if env.Detail != "Upload was failed." || env.Error == nil || string(env.Result) != "null" {
				t.Fatalf("envelope: %+v", env)
			}
		})
	}
	if tariffs, _ := s.repo.ListTariffs(context.Background()); len(tariffs) != 0 {
		t.Fatalf("failed uploads wrote %d tariffs", len(tariffs))
	}
}

func TestCalculate(t *testing.T) {
	s := newTestServer(t)
	s.load(t, `{"2024-01-01": [{"cargo_type": "Electronics", "rate": 0.5}]}`)

	w, env := s.do(t, http.MethodPost, "/api/v1/cargos/calculate",
		[]byte(`{"tariff_date": "2024-01-01", "cargo_type_name": "Electronics", "total_price": 1000}`), "application/json", false)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var result float64
	if err := json.Unmarshal(env.Result, &result); err != nil || result != 500 {
		t.Fatalf("result: %s %v", env.Result, err)
	}

	w, env = s.do(t, http.MethodPost, "/api/v1/cargos/calculate",
		[]byte(`{"tariff_date": "2024-01-02", "cargo_type_name": "Electronics", "total_price": 1000}`), "application/json", false)
	if w.Code != http.StatusNotFound || env.Detail != "Cargo tariff was not found" {
		t.Fatalf("missing tariff: %d %q", w.Code, env.Detail)
	}

	w, _ = s.do(t, http.MethodPost, "/api/v1/cargos/calculate",
		[]byte(`{"tariff_date": "01.01.2024", "cargo_type_name": "Electronics", "total_price": 1000}`), "application/json", false)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad date: %d", w.Code)
	}

	w, _ = s.do(t, http.MethodPost, "/api/v1/cargos/calculate",
		[]byte(`{"tariff_date": "2024-01-01", "cargo_type_name": "Electronics", "total_price": -5}`), "application/json", false)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative price: %d", w.Code)
	}
}

func TestGetAndListTariffs(t *testing.T) {
	s := newTestServer(t)
	s.load(t, `{"2024-01-01": [{"cargo_type": "A", "rate": 0.1}, {"cargo_type": "B", "rate": 0.2}]}`)

	w, _ := s.do(t, http.MethodGet, "/api/v1/cargos", nil, "", false)
	var list []application.TariffDTO
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list) != 2 {
		t.Fatalf("list: %d %v %s", len(list), err, w.Body.String())
	}

	w, _ = s.do(t, http.MethodGet, "/api/v1/cargos/"+list[0].UID, nil, "", false)
	var one application.TariffDTO
	if err := json.Unmarshal(w.Body.Bytes(), &one); err != nil || one.UID != list[0].UID || one.ToCargoTypeUID == "" {
		t.Fatalf("get: %+v %v", one, err)
	}
	if one.TariffDate != "2024-01-01" {
		t.Fatalf("tariff_date: %q", one.TariffDate)
	}

	w, env := s.do(t, http.MethodGet, "/api/v1/cargos/"+uuid.NewString(), nil, "", false)
	if w.Code != http.StatusNotFound || env.Detail != "Cargo tariff not found" {
		t.Fatalf("unknown uid: %d %q", w.Code, env.Detail)
	}
	w, _ = s.do(t, http.MethodGet, "/api/v1/cargos/not-a-uuid", nil, "", false)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid uid: %d", w.Code)
	}
}

func TestUpdateAndDeleteTariff(t *testing.T) {
	s := newTestServer(t)
	s.load(t, `{"2024-01-01": [{"cargo_type": "Glass", "rate": 0.04}]}`)
	id := s.firstTariffID(t)

	w, _ := s.do(t, http.MethodPut, "/api/v1/cargos/"+id, []byte(`{"rate": 0.07}`), "application/json", false)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated update: %d", w.Code)
	}

	w, _ = s.do(t, http.MethodPut, "/api/v1/cargos/"+id, []byte(`{"rate": 0.07}`), "application/json", true)
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}
	var updated application.TariffDTO
	_ = json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.Rate != 0.07 {
		t.Fatalf("rate: %v", updated.Rate)
	}
	if len(s.pub.events) != 1 || s.pub.events[0].UserID != "operator-1" || s.pub.events[0].Action != domain.AuditActionUpdate {
		t.Fatalf("events: %+v", s.pub.events)
	}

	w, _ = s.do(t, http.MethodPut, "/api/v1/cargos/"+id, []byte(`{"rate": -1}`), "application/json", true)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative rate: %d", w.Code)
	}

	w, env := s.do(t, http.MethodDelete, "/api/v1/cargos/"+id, nil, "", true)
	if w.Code != http.StatusOK || env.Detail != "Cargo tariff deleted successfully." {
		t.Fatalf("delete: %d %q", w.Code, env.Detail)
	}
	w, env = s.do(t, http.MethodDelete, "/api/v1/cargos/"+id, nil, "", true)
	if w.Code != http.StatusNotFound || env.Detail != "Cargo tariff not found" {
		t.Fatalf("second delete: %d %q", w.Code, env.Detail)
	}
}

func TestUpdateNotificationFailure(t *testing.T) {
	s := newTestServer(t)
	s.load(t, `{"2024-01-01": [{"cargo_type": "Glass", "rate": 0.04}]}`)
	id := s.firstTariffID(t)
	s.pub.err = errors.New("broker unreachable")

	w, env := s.do(t, http.MethodPut, "/api/v1/cargos/"+id, []byte(`{"rate": 0.09}`), "application/json", true)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: %d", w.Code)
	}
	if env.Detail != "Error sending message: broker unreachable" {
		t.Fatalf("detail: %q", env.Detail)
	}
	var committed application.TariffDTO
	if err := json.Unmarshal(env.Result, &committed); err != nil || committed.Rate != 0.09 {
		t.Fatalf("committed result: %s %v", env.Result, err)
	}
}

func TestCargoTypesAndDirectCreate(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodPost, "/api/v1/cargos",
		[]byte(`{"tariff_date": "2024-02-01", "cargo_type_name": "Glass", "rate": 0.04}`), "application/json", true)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown cargo type: %d %s", w.Code, w.Body.String())
	}

	w, _ = s.do(t, http.MethodPost, "/api/v1/cargo-types", []byte(`{"name": "Glass"}`), "application/json", true)
	if w.Code != http.StatusCreated {
		t.Fatalf("create type: %d %s", w.Code, w.Body.String())
	}
	w, _ = s.do(t, http.MethodPost, "/api/v1/cargo-types", []byte(`{"name": "Glass"}`), "application/json", true)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate type: %d", w.Code)
	}

	w, _ = s.do(t, http.MethodPost, "/api/v1/cargos",
		[]byte(`{"tariff_date": "2024-02-01", "cargo_type_name": "Glass", "rate": 0.04}`), "application/json", true)
	if w.Code != http.StatusCreated {
		t.Fatalf("create tariff: %d %s", w.Code, w.Body.String())
	}
	w, _ = s.do(t, http.MethodPost, "/api/v1/cargos",
		[]byte(`{"tariff_date": "2024-02-01", "cargo_type_name": "Glass", "rate": 0.05}`), "application/json", true)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate tariff: %d", w.Code)
	}

	w, _ = s.do(t, http.MethodGet, "/api/v1/cargo-types", nil, "", false)
	var types []application.CargoTypeDTO
	if err := json.Unmarshal(w.Body.Bytes(), &types); err != nil || len(types) != 1 || types[0].Name != "Glass" {
		t.Fatalf("types: %+v %v", types, err)
	}
}

func TestListAuditLogsValidatesLimit(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/api/v1/audit-logs?limit=0", nil, "", true)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("limit=0: %d", w.Code)
	}
	w, _ = s.do(t, http.MethodGet, "/api/v1/audit-logs", nil, "", true)
	if w.Code != http.StatusOK || w.Body.String() != "[]" {
		t.Fatalf("empty audit log: %d %s", w.Code, w.Body.String())
	}
}
