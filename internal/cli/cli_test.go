package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/poldna/internal/model"
	"github.com/ppiankov/poldna/internal/store/memory"
	"github.com/spf13/viper"
)

func TestLoadConfig_Layering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
store:
  driver: postgres
  postgres_dsn: postgres://localhost/poldna
categorization:
  workers: 7
  backoff_base: 250ms
llm:
  provider: openai
engine:
  coalition: [Green, Labour]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("POLDNA_STORE_DRIVER", "memory")
	v := viper.New()
	configureViper(v, path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}

	env := map[string]string{"OPENAI_API_KEY": "sk-test"}
	cfg, err := loadConfig(v, func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Store.Driver != "memory" {
		t.Errorf("env should override file, driver = %q", cfg.Store.Driver)
	}
	if cfg.Store.PostgresDSN != "postgres://localhost/poldna" {
		t.Errorf("dsn = %q", cfg.Store.PostgresDSN)
	}
	if cfg.Categorization.Workers != 7 || cfg.Categorization.BackoffBase != 250*time.Millisecond {
		t.Errorf("categorization = %+v", cfg.Categorization)
	}
	if len(cfg.Engine.Coalition) != 2 || cfg.Engine.Coalition[1] != "Labour" {
		t.Errorf("coalition = %v", cfg.Engine.Coalition)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("api key not taken from OPENAI_API_KEY")
	}
	// Untouched sections keep their defaults
	if cfg.Categorization.CheckpointEvery != model.DefaultConfig().Categorization.CheckpointEvery {
		t.Errorf("checkpoint default lost: %d", cfg.Categorization.CheckpointEvery)
	}
}

func TestApplyProviderEnv(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":    "sk-openai",
		"ANTHROPIC_API_KEY": "sk-ant",
		"OLLAMA_BASE_URL":   "http://gpu-box:11434",
	}
	getenv := func(k string) string { return env[k] }

	tests := []struct {
		in      model.LLMConfig
		wantKey string
		wantURL string
	}{
		{model.LLMConfig{Provider: "openai"}, "sk-openai", ""},
		{model.LLMConfig{Provider: "claude"}, "sk-ant", ""},
		{model.LLMConfig{Provider: "anthropic", APIKey: "explicit"}, "explicit", ""},
		{model.LLMConfig{Provider: "ollama"}, "", "http://gpu-box:11434"},
		{model.LLMConfig{}, "", ""},
	}
	for _, tt := range tests {
		c := tt.in
		applyProviderEnv(&c, getenv)
		if c.APIKey != tt.wantKey || c.BaseURL != tt.wantURL {
			t.Errorf("provider %q: key=%q url=%q", tt.in.Provider, c.APIKey, c.BaseURL)
		}
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"# poldna configuration file", "store:", "categorization:", "OPENAI_API_KEY"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("config missing %q", want)
		}
	}

	// The written file must load back through viper
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}
	cfg, err := loadConfig(v, func(string) string { return "" })
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Categorization.CacheTTL != model.DefaultConfig().Categorization.CacheTTL {
		t.Errorf("cache ttl = %v", cfg.Categorization.CacheTTL)
	}

	if err := writeDefaultConfig(path); err == nil {
		t.Error("expected refusal to overwrite")
	}
}

func TestParseVector(t *testing.T) {
	v, err := parseVector("0.5, -0.2, 0.8, 0, 0.1, -1")
	if err != nil {
		t.Fatalf("parseVector: %v", err)
	}
	if v[model.AxisEconomy] != 0.5 || v[model.AxisSecurity] != -1 {
		t.Errorf("v = %v", v)
	}

	for _, bad := range []string{"1,2,3", "0,0,0,0,0,x", "0,0,0,0,0,1.5"} {
		if _, err := parseVector(bad); err == nil {
			t.Errorf("parseVector(%q): expected error", bad)
		}
	}
}

func TestPartyLine(t *testing.T) {
	if partyLine(nil, nil) != nil {
		t.Error("expected nil overrides")
	}
	line := partyLine([]string{"A"}, []string{"B"})
	if !line["A"] || line["B"] {
		t.Errorf("line = %v", line)
	}
}

func TestOpenStore(t *testing.T) {
	st, err := openStore(model.StoreConfig{Driver: "memory"}, nil)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	if _, ok := st.(*memory.Store); !ok {
		t.Errorf("store = %T", st)
	}

	st, err = openStore(model.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "p.db")}, nil)
	if err != nil {
		t.Fatalf("openStore sqlite: %v", err)
	}
	_ = st.Close()

	if _, err := openStore(model.StoreConfig{Driver: "mongo"}, nil); err == nil {
		t.Error("expected unknown driver error")
	}
}

const chamberYAML = `
legislators:
  - {id: L1, party: A, active: true}
  - {id: L2, party: A, active: true}
  - {id: L3, party: B, active: true}
  - {id: L4, party: B, active: true}
events:
  - {id: e1, title: Tax cut, category: Economy, signed_weight: 0.8, categorized: true, aye_count: 2, nay_count: 2, held_at: 2026-01-10T00:00:00Z}
  - {id: e2, title: Border fund, category: Security, signed_weight: 0.6, categorized: true, aye_count: 3, nay_count: 1, held_at: 2026-01-12T00:00:00Z}
  - {id: e3, title: Wind farms, category: Environment, signed_weight: 0.9, categorized: true, aye_count: 2, nay_count: 2, held_at: 2026-01-14T00:00:00Z}
votes:
  - {legislator_id: L1, event_id: e1, vote_type: aye}
  - {legislator_id: L2, event_id: e1, vote_type: aye}
  - {legislator_id: L3, event_id: e1, vote_type: nay}
  - {legislator_id: L4, event_id: e1, vote_type: nay}
  - {legislator_id: L1, event_id: e2, vote_type: aye}
  - {legislator_id: L2, event_id: e2, vote_type: aye}
  - {legislator_id: L3, event_id: e2, vote_type: aye}
  - {legislator_id: L4, event_id: e2, vote_type: nay}
  - {legislator_id: L1, event_id: e3, vote_type: nay}
  - {legislator_id: L2, event_id: e3, vote_type: nay}
  - {legislator_id: L3, event_id: e3, vote_type: aye}
  - {legislator_id: L4, event_id: e3, vote_type: aye}
responses:
  - {legislator_id: L1, question: q1, response_value: 5, category: Economy, weight: 1}
`

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("poldna %s: %v", strings.Join(args, " "), err)
	}
	return out.Bytes()
}

func TestCommands_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	dataPath := filepath.Join(dir, "chamber.yaml")
	cfgYAML := "log_level: error\nstore:\n  driver: sqlite\n  sqlite_path: " + filepath.Join(dir, "poldna.db") +
		"\ncategorization:\n  cache_enabled: false\nengine:\n  coalition: [A]\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dataPath, []byte(chamberYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	common := []string{"--config", cfgPath, "--format", "json"}

	var imported map[string]any
	if err := json.Unmarshal(run(t, append([]string{"import", dataPath}, common...)...), &imported); err != nil {
		t.Fatalf("import output: %v", err)
	}
	if imported["legislators"] != float64(4) || imported["votes"] != float64(12) {
		t.Errorf("import = %v", imported)
	}

	var pass struct {
		Pending  int `json:"pending_events"`
		Profiles int `json:"profiles"`
		Parties  int `json:"parties"`
		Detect   struct {
			Alerts int `json:"alerts"`
		} `json:"detect"`
	}
	if err := json.Unmarshal(run(t, append([]string{"pass"}, common...)...), &pass); err != nil {
		t.Fatalf("pass output: %v", err)
	}
	if pass.Pending != 0 || pass.Profiles != 4 || pass.Parties != 2 {
		t.Errorf("pass = %+v", pass)
	}
	// L1 promised to oppose the Economy axis (5 = disagree) and voted aye on a pro-Economy bill
	if pass.Detect.Alerts != 1 {
		t.Errorf("alerts = %d, want 1", pass.Detect.Alerts)
	}

	var parties []model.PartyAggregate
	if err := json.Unmarshal(run(t, append([]string{"parties"}, common...)...), &parties); err != nil {
		t.Fatalf("parties output: %v", err)
	}
	if len(parties) != 2 {
		t.Fatalf("parties = %+v", parties)
	}

	var report struct {
		Legislators []struct {
			LegislatorID  string `json:"legislator_id"`
			Compatibility int    `json:"compatibility"`
		} `json:"legislators"`
	}
	if err := json.Unmarshal(run(t, append([]string{"match", "L2", "--limit", "0"}, common...)...), &report); err != nil {
		t.Fatalf("match output: %v", err)
	}
	if len(report.Legislators) != 4 || report.Legislators[0].Compatibility != 100 {
		t.Errorf("match = %+v", report.Legislators)
	}

	var prediction struct {
		Aye       int `json:"aye"`
		Nay       int `json:"nay"`
		Undecided int `json:"undecided"`
	}
	if err := json.Unmarshal(run(t, append([]string{"predict", "e2"}, common...)...), &prediction); err != nil {
		t.Fatalf("predict output: %v", err)
	}
	if prediction.Aye+prediction.Nay+prediction.Undecided != 4 {
		t.Errorf("prediction = %+v", prediction)
	}
}

type stubCategorizer struct {
	c   model.Categorization
	err error
}

func (s stubCategorizer) Categorize(ctx context.Context, ev model.VotingEvent) (model.Categorization, error) {
	return s.c, s.err
}

func TestInferCategory(t *testing.T) {
	ctx := context.Background()
	cfg := model.DefaultConfig()
	cfg.Store.Driver = "memory"
	cfg.LogLevel = "error"
	a, err := newAppWithConfig(cfg, io.Discard, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	pending := model.VotingEvent{ID: "e1", Title: "Coastal patrol", Category: model.CategoryOther}
	if err := a.store.UpsertEvents(ctx, []model.VotingEvent{pending}); err != nil {
		t.Fatal(err)
	}

	failed := a.inferCategory(ctx, stubCategorizer{c: model.FallbackCategorization(), err: errors.New("provider down")}, pending)
	if failed.Category != model.CategoryOther || failed.Weight != nil {
		t.Errorf("failed categorization should leave the event alone: %+v", failed)
	}

	got := a.inferCategory(ctx, stubCategorizer{c: model.Categorization{Category: model.CategorySecurity, Weight: -0.4}}, pending)
	if got.Category != model.CategorySecurity || got.Weight == nil || *got.Weight != -0.4 || !got.Categorized {
		t.Errorf("inferred event = %+v", got)
	}

	stored, err := a.store.Event(ctx, "e1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Category != model.CategorySecurity || !stored.Categorized {
		t.Errorf("category not backfilled: %+v", stored)
	}
}

const pendingYAML = `
legislators:
  - {id: L1, party: A, active: true}
  - {id: L2, party: B, active: true}
  - {id: L3, party: B, active: true}
events:
  - {id: e1, title: Harbour defence, categorized: false, aye_count: 0, nay_count: 0, held_at: 2026-02-01T00:00:00Z}
`

func TestPredict_CategorizesPendingEvent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":    "llama3.1:8b",
			"response": `{"category":"security","weight":0.7}`,
			"done":     true,
		})
	}))
	defer server.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	dataPath := filepath.Join(dir, "pending.yaml")
	cfgYAML := "log_level: error\nstore:\n  driver: sqlite\n  sqlite_path: " + filepath.Join(dir, "poldna.db") +
		"\ncategorization:\n  cache_enabled: false\n  max_retries: 0\nllm:\n  provider: ollama\n  model: llama3.1:8b\n  base_url: " + server.URL + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dataPath, []byte(pendingYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	common := []string{"--config", cfgPath, "--format", "json"}

	run(t, append([]string{"import", dataPath}, common...)...)

	var prediction struct {
		Category  model.Category `json:"category"`
		Aye       int            `json:"aye"`
		Nay       int            `json:"nay"`
		Undecided int            `json:"undecided"`
	}
	for i := 0; i < 2; i++ {
		if err := json.Unmarshal(run(t, append([]string{"predict", "e1"}, common...)...), &prediction); err != nil {
			t.Fatalf("predict output: %v", err)
		}
		if prediction.Category != model.CategorySecurity {
			t.Errorf("run %d: category = %q, want Security", i, prediction.Category)
		}
		if prediction.Aye+prediction.Nay+prediction.Undecided != 3 {
			t.Errorf("run %d: prediction = %+v", i, prediction)
		}
	}
	// the first prediction stored the category, so the second never asked
	if n := calls.Load(); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}
}
