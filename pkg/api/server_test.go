package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/psaab/metconf/pkg/configstore"
	"github.com/psaab/metconf/pkg/logging"
)

const testConfig = `daemon d1 { command "paradynd"; host "node1"; flavor x86 }
daemon d2 { command "paradynd"; host "node2"; flavor sparc }
process p1 { command "app"; args ["-n", "4"]; host "node1"; daemon d1 }
visi v1 { command "terrain"; host "node1" }
tunable sampleRate 0.2;
`

func newTestServer(t *testing.T, src string) (*Server, *configstore.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.pcl")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	store := configstore.New(path, 4)
	eb := logging.NewEventBuffer(16)
	store.SetEventBuffer(eb)
	return NewServer(Config{Store: store, EventBuf: eb}), store
}

func do(t *testing.T, s *Server, method, path, body string) (int, Response) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: decode response: %v\n%s", method, path, err, w.Body.String())
	}
	return w.Code, resp
}

// decodeData re-decodes the envelope's data field into v.
func decodeData(t *testing.T, resp Response, v any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatal(err)
	}
}

func TestStatusBeforeLoad(t *testing.T) {
	s, _ := newTestServer(t, testConfig)

	code, resp := do(t, s, "GET", "/api/v1/status", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var st StatusResponse
	decodeData(t, resp, &st)
	if st.ConfigLoaded || st.Generation != "" {
		t.Errorf("expected nothing loaded, got %+v", st)
	}

	if code, _ := do(t, s, "GET", "/api/v1/config", ""); code != http.StatusServiceUnavailable {
		t.Errorf("config before load: status = %d, want 503", code)
	}
}

func TestReloadAndViews(t *testing.T) {
	s, store := newTestServer(t, testConfig)

	code, resp := do(t, s, "POST", "/api/v1/config/reload", "")
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("reload: status = %d, error = %q", code, resp.Error)
	}
	var st StatusResponse
	decodeData(t, resp, &st)
	if !st.ConfigLoaded || st.Daemons != 2 || st.Processes != 1 || st.Visis != 1 || st.Tunables != 1 {
		t.Errorf("unexpected status %+v", st)
	}
	gen, _ := store.Generation()
	if st.Generation != gen.String() {
		t.Errorf("generation = %s, want %s", st.Generation, gen)
	}

	_, resp = do(t, s, "GET", "/api/v1/config/daemons", "")
	var daemons []struct {
		Name   string `json:"name"`
		Flavor string `json:"flavor"`
	}
	decodeData(t, resp, &daemons)
	if len(daemons) != 2 || daemons[0].Name != "d1" || daemons[1].Flavor != "sparc" {
		t.Errorf("unexpected daemons %+v", daemons)
	}

	_, resp = do(t, s, "GET", "/api/v1/config/processes", "")
	var procs []struct {
		Name   string   `json:"name"`
		Args   []string `json:"args"`
		Flavor string   `json:"flavor"`
	}
	decodeData(t, resp, &procs)
	if len(procs) != 1 || procs[0].Flavor != "x86" || len(procs[0].Args) != 2 {
		t.Errorf("unexpected processes %+v", procs)
	}

	_, resp = do(t, s, "GET", "/api/v1/config/tunables", "")
	var tunables []struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}
	decodeData(t, resp, &tunables)
	if len(tunables) != 1 || tunables[0].Value != 0.2 {
		t.Errorf("unexpected tunables %+v", tunables)
	}

	_, resp = do(t, s, "GET", "/api/v1/config/visis", "")
	var visis []struct {
		Name string `json:"name"`
	}
	decodeData(t, resp, &visis)
	if len(visis) != 1 || visis[0].Name != "v1" {
		t.Errorf("unexpected visis %+v", visis)
	}
}

func TestReloadFailure(t *testing.T) {
	s, store := newTestServer(t, testConfig)
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.Path(), []byte("daemon d1 { command pd; host h }\n"), 0644); err != nil {
		t.Fatal(err)
	}

	code, resp := do(t, s, "POST", "/api/v1/config/reload", "")
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", code)
	}
	var le LoadError
	decodeData(t, resp, &le)
	if le.Stage != "parse" || le.Line != 1 {
		t.Errorf("unexpected load error %+v", le)
	}
	if !strings.Contains(resp.Error, "flavor") {
		t.Errorf("error should name the missing field: %q", resp.Error)
	}

	// The previous configuration is still served.
	_, resp = do(t, s, "GET", "/api/v1/status", "")
	var st StatusResponse
	decodeData(t, resp, &st)
	if st.Daemons != 2 || st.Failures != 1 || st.LastError == "" {
		t.Errorf("unexpected status after failed reload %+v", st)
	}
}

func TestConfigExportHandler(t *testing.T) {
	s, store := newTestServer(t, testConfig)
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		format     string
		wantStatus int
		contains   string
	}{
		{"text", 200, `daemon "d1" {`},
		{"json", 200, `"daemons"`},
		{"", 200, `tunable "sampleRate" = 0.2;`}, // default is text
		{"yaml", 400, "unsupported format"},
	}

	for _, tt := range tests {
		t.Run("format="+tt.format, func(t *testing.T) {
			path := "/api/v1/config/export"
			if tt.format != "" {
				path += "?format=" + tt.format
			}
			code, resp := do(t, s, "GET", path, "")
			if code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; error: %s", code, tt.wantStatus, resp.Error)
			}
			checkStr := resp.Error
			if tt.wantStatus == 200 {
				var out TextOutput
				decodeData(t, resp, &out)
				checkStr = out.Output
			}
			if !strings.Contains(checkStr, tt.contains) {
				t.Errorf("response %q does not contain %q", checkStr, tt.contains)
			}
		})
	}
}

func TestHistoryRollbackCompare(t *testing.T) {
	s, store := newTestServer(t, testConfig)
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	first, _ := store.Generation()
	if err := os.WriteFile(store.Path(), []byte(strings.Replace(testConfig, "0.2", "0.4", 1)), 0644); err != nil {
		t.Fatal(err)
	}
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}

	_, resp := do(t, s, "GET", "/api/v1/config/compare?n=1", "")
	var out TextOutput
	decodeData(t, resp, &out)
	if !strings.Contains(out.Output, `+ tunable "sampleRate" = 0.4;`) {
		t.Errorf("unexpected compare output:\n%s", out.Output)
	}

	code, resp := do(t, s, "POST", "/api/v1/config/rollback", `{"n":1}`)
	if code != http.StatusOK {
		t.Fatalf("rollback: status = %d, error = %q", code, resp.Error)
	}
	if gen, _ := store.Generation(); gen != first {
		t.Error("rollback did not reactivate the first load")
	}

	_, resp = do(t, s, "GET", "/api/v1/config/history", "")
	var hist []HistoryInfo
	decodeData(t, resp, &hist)
	if len(hist) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(hist))
	}
	if hist[0].Active || !hist[1].Active || hist[1].ID != first.String() {
		t.Errorf("unexpected history %+v", hist)
	}

	latest := hist[0].ID
	code, resp = do(t, s, "POST", "/api/v1/config/rollback", `{"id":"`+latest+`"}`)
	if code != http.StatusOK {
		t.Fatalf("rollback by id: status = %d, error = %q", code, resp.Error)
	}
	var st StatusResponse
	decodeData(t, resp, &st)
	if st.Generation != latest || st.History != 2 || st.HistoryLimit != 4 {
		t.Errorf("unexpected status after rollback by id: %+v", st)
	}
	if code, _ := do(t, s, "POST", "/api/v1/config/rollback", `{"id":"not-a-uuid"}`); code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", code)
	}
	if code, _ := do(t, s, "POST", "/api/v1/config/rollback", `{"id":"00000000-0000-0000-0000-000000000001"}`); code != http.StatusBadRequest {
		t.Errorf("unknown id: status = %d, want 400", code)
	}
	if code, _ := do(t, s, "POST", "/api/v1/config/rollback", `{"n":7}`); code != http.StatusBadRequest {
		t.Errorf("rollback past history: status = %d, want 400", code)
	}
	if code, _ := do(t, s, "POST", "/api/v1/config/rollback", `{"n":`); code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", code)
	}
}

func TestEventsHandler(t *testing.T) {
	s, store := newTestServer(t, testConfig)
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.Path(), []byte(`daemon d { command "x }`), 0644); err != nil {
		t.Fatal(err)
	}
	store.Load()

	_, resp := do(t, s, "GET", "/api/v1/events", "")
	var events []EventEntry
	decodeData(t, resp, &events)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != logging.EventFailure || events[0].Stage != "lex" {
		t.Errorf("unexpected newest event %+v", events[0])
	}

	_, resp = do(t, s, "GET", "/api/v1/events?type=CONFIG_LOAD", "")
	decodeData(t, resp, &events)
	if len(events) != 1 || events[0].Tunables != 1 {
		t.Errorf("unexpected filtered events %+v", events)
	}
}

func TestMetrics(t *testing.T) {
	s, store := newTestServer(t, testConfig)
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.Path(), []byte("tunable t 1; tunable t 2;"), 0644); err != nil {
		t.Fatal(err)
	}
	store.Load()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`metconf_loads_total{result="success"} 1`,
		`metconf_loads_total{result="failure"} 1`,
		`metconf_load_errors_total{stage="register"} 1`,
		`metconf_load_errors_total{stage="lex"} 0`,
		`metconf_descriptors{kind="daemon"} 2`,
		`metconf_descriptors{kind="process"} 1`,
		`metconf_history_entries 1`,
		`metconf_config_loaded 1`,
		`metconf_last_load_timestamp_seconds`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestAuthGuardsReloadAndRollback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.pcl")
	if err := os.WriteFile(path, []byte(testConfig), 0644); err != nil {
		t.Fatal(err)
	}
	store := configstore.New(path, 2)
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	s := NewServer(Config{Store: store, Auth: &AuthConfig{APIKeys: []string{"k"}}})

	send := func(method, target, key, body string) int {
		var rd io.Reader
		if body != "" {
			rd = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, rd)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		return w.Code
	}

	if code := send("GET", "/health", "", ""); code != http.StatusOK {
		t.Errorf("health: status = %d", code)
	}
	if code := send("GET", "/api/v1/config/daemons", "", ""); code != http.StatusOK {
		t.Errorf("daemons without key: status = %d, want 200", code)
	}
	if code := send("POST", "/api/v1/config/reload", "", ""); code != http.StatusUnauthorized {
		t.Errorf("reload without key: status = %d, want 401", code)
	}
	if store.HistoryLen() != 1 {
		t.Errorf("rejected reload reached the store: history = %d", store.HistoryLen())
	}
	if code := send("POST", "/api/v1/config/reload", "k", ""); code != http.StatusOK {
		t.Errorf("reload with key: status = %d, want 200", code)
	}
	if code := send("POST", "/api/v1/config/rollback", "", `{"n":1}`); code != http.StatusUnauthorized {
		t.Errorf("rollback without key: status = %d, want 401", code)
	}
	if code := send("POST", "/api/v1/config/rollback", "k", `{"n":1}`); code != http.StatusOK {
		t.Errorf("rollback with key: status = %d, want 200", code)
	}
}
