package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/labengine/internal/config"
	"github.com/ehr/labengine/internal/labengine"
	"github.com/ehr/labengine/internal/platform/metrics"
)

func testServer(t *testing.T, cfg *config.Config) *echo.Echo {
	t.Helper()
	table, err := labengine.DefaultTable()
	if err != nil {
		t.Fatalf("DefaultTable: %v", err)
	}
	jc, err := jwtConfig(cfg)
	if err != nil {
		t.Fatalf("jwtConfig: %v", err)
	}
	return newServer(serverDeps{
		cfg:     cfg,
		logger:  zerolog.Nop(),
		engine:  labengine.New(table),
		metrics: metrics.New(),
		jwt:     jc,
	})
}

func devConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            "development",
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   50,
		RateLimitBurst: 100,
	}
}

func serve(e *echo.Echo, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	e := testServer(t, devConfig())

	rec := serve(e, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestServer_NoDatabaseRoutes(t *testing.T) {
	e := testServer(t, devConfig())

	if rec := serve(e, http.MethodGet, "/health/db", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected /health/db to be absent without a database, got %d", rec.Code)
	}
	rec := serve(e, http.MethodGet, "/api/v1/patients/"+"00000000-0000-0000-0000-000000000001"+"/lab-analysis", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestServer_InterpretDevIdentity(t *testing.T) {
	e := testServer(t, devConfig())

	rec := serve(e, http.MethodPost, "/api/v1/labs/interpret", `{"test_name":"HbA1c","value":"6.1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "borderline_high" || body["test_key"] != "hba1c" {
		t.Errorf("unexpected result %v", body)
	}
}

func TestServer_Metrics(t *testing.T) {
	e := testServer(t, devConfig())
	serve(e, http.MethodGet, "/api/v1/labs/guidelines", "", nil)

	rec := serve(e, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `lab_engine_http_requests_total{method="GET",path="/api/v1/labs/guidelines",status="200"} 1`) {
		t.Errorf("expected request counter in exposition, got:\n%s", rec.Body.String())
	}
}

func TestServer_JWTRequired(t *testing.T) {
	cfg := devConfig()
	cfg.Env = "production"
	cfg.AuthSigningKey = "server-test-key"
	e := testServer(t, cfg)

	if rec := serve(e, http.MethodGet, "/api/v1/labs/guidelines", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("expected public health check, got %d", rec.Code)
	}
}

func TestJWTConfig_PublicKeyMissing(t *testing.T) {
	cfg := devConfig()
	cfg.AuthPublicKeyFile = filepath.Join(t.TempDir(), "missing.pem")
	if _, err := jwtConfig(cfg); err == nil {
		t.Fatal("expected error for unreadable public key")
	}
}

func TestJWTConfig_SigningKey(t *testing.T) {
	cfg := devConfig()
	cfg.AuthSigningKey = "k"
	jc, err := jwtConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(jc.SigningKey) != "k" || jc.PublicKey != nil {
		t.Errorf("unexpected jwt config %+v", jc)
	}
	if jc.Skipper == nil {
		t.Error("expected public paths to be skipped")
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GUIDELINES_FILE", "")
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_Interpret(t *testing.T) {
	out, err := runCLI(t, "interpret", "--test", "K+", "--value", "7.2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res labengine.SpecificTestResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if !res.Success || res.Status != labengine.StatusCriticalHigh {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestCLI_InterpretUnknown(t *testing.T) {
	out, err := runCLI(t, "interpret", "--test", "Unobtainium", "--value", "1")
	if err == nil {
		t.Fatal("expected error for unknown test")
	}
	if !strings.Contains(out, "No reference guidelines found") {
		t.Errorf("expected not-found message in output, got %s", out)
	}
}

func TestCLI_GuidelinesList(t *testing.T) {
	out, err := runCLI(t, "guidelines", "list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 33 {
		t.Fatalf("expected header plus 32 rows, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[1], "glucose") || !strings.Contains(lines[1], "70–100 mg/dL") {
		t.Errorf("unexpected first row %q", lines[1])
	}
}

func TestCLI_GuidelinesValidate(t *testing.T) {
	out, err := runCLI(t, "guidelines", "validate")
	if err != nil {
		t.Fatalf("embedded table should validate: %v", err)
	}
	if !strings.HasPrefix(out, "ok: 32 guidelines") {
		t.Errorf("unexpected output %q", out)
	}

	bad := `
guidelines:
  - key: sample
    name: Sample
    normal: {min: 5, max: 1}
    interpretation: {normal: ok}
aliases:
  - {alias: "p", key: missing}
`
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte(bad), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err = runCLI(t, "guidelines", "validate", "--file", path)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(out, "normal min 5 > max 1") || !strings.Contains(out, `unknown key "missing"`) {
		t.Errorf("expected every problem listed, got:\n%s", out)
	}
}

const customTable = `
guidelines:
  - key: sample
    name: Sample
    unit: u
    normal: {min: 1, max: 2}
    interpretation: {normal: ok}
`

func writeTable(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte(customTable), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestCLI_GuidelinesFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTable(t, dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GUIDELINES_FILE="+path+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	out, err := runCLI(t, "guidelines", "list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "sample") {
		t.Errorf("expected the .env table to be listed, got:\n%s", out)
	}

	out, err = runCLI(t, "guidelines", "validate")
	if err != nil || !strings.HasPrefix(out, "ok: 1 guidelines") {
		t.Errorf("expected validate to use the .env table, got %q (%v)", out, err)
	}
}

func TestCLI_GuidelinesFlagOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GUIDELINES_FILE="+filepath.Join(dir, "missing.yaml")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path := writeTable(t, dir)
	chdir(t, dir)

	out, err := runCLI(t, "--guidelines", path, "interpret", "--test", "sample", "--value", "1.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"test_key": "sample"`) || !strings.Contains(out, `"status": "normal"`) {
		t.Errorf("expected the flag table to be used, got:\n%s", out)
	}
}
