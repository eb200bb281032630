package endpoint

import (
	"errors"
	"reflect"
	"testing"

	"github.com/pario-ai/oracle/pkg/config"
	"github.com/pario-ai/oracle/pkg/models"
)

func newTestDirectory(t *testing.T, cfg *config.Config) *Directory {
	t.Helper()
	d, err := New(cfg, NewKeyLoader(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestResolveBuiltin(t *testing.T) {
	d := newTestDirectory(t, config.Default())

	ep, err := d.Resolve("deepseek-r1-20250120")
	if err != nil {
		t.Fatal(err)
	}
	if ep.Model != "deepseek-reasoner" {
		t.Errorf("expected deepseek-reasoner, got %s", ep.Model)
	}
	if ep.Protocol != models.ProtocolDeepSeek {
		t.Errorf("expected deepseek protocol, got %s", ep.Protocol)
	}
	if ep.MaxTokens != 8192 {
		t.Errorf("expected 8192 max tokens, got %d", ep.MaxTokens)
	}
}

func TestResolveQuotedIsIdentical(t *testing.T) {
	d := newTestDirectory(t, config.Default())

	for _, ep := range d.List() {
		plain, err := d.Resolve(ep.ID)
		if err != nil {
			t.Fatal(err)
		}
		quoted, err := d.Resolve(`"` + ep.ID + `"`)
		if err != nil {
			t.Fatalf("quoted %s: %v", ep.ID, err)
		}
		if !reflect.DeepEqual(plain, quoted) {
			t.Errorf("%s: quoted resolution differs: %+v vs %+v", ep.ID, plain, quoted)
		}
	}
}

func TestResolveUnknown(t *testing.T) {
	d := newTestDirectory(t, config.Default())

	_, err := d.Resolve("gpt-17")
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
	_, err = d.Resolve("")
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("empty id should not fall back to a default, got %v", err)
	}
}

func TestConfigOverridesAndAdditions(t *testing.T) {
	cfg := config.Default()
	cfg.Endpoints = []models.Endpoint{
		{ID: "deepseek-r1-20250120", MaxTokens: 1024, Token: "sk-inline"},
		{
			ID: "local", Model: "llama3", URL: "http://127.0.0.1:8000/v1",
			Protocol: models.ProtocolOpenAICompatible, Extra: map[string]any{"top_k": 1},
		},
	}
	cfg.Throttle = map[string]float64{`"local"`: 4}
	d := newTestDirectory(t, cfg)

	ep, err := d.Resolve("deepseek-r1-20250120")
	if err != nil {
		t.Fatal(err)
	}
	if ep.MaxTokens != 1024 || ep.Model != "deepseek-reasoner" || ep.Token != "sk-inline" {
		t.Errorf("override not merged: %+v", ep)
	}

	local, err := d.Resolve("local")
	if err != nil {
		t.Fatal(err)
	}
	if local.Rate != 4 {
		t.Errorf("expected rate 4, got %v", local.Rate)
	}
	if local.Name != "local" {
		t.Errorf("expected name to default to id, got %q", local.Name)
	}
}

func TestResolveReturnsOwnExtra(t *testing.T) {
	cfg := config.Default()
	cfg.Endpoints = []models.Endpoint{{
		ID: "local", Model: "llama3", URL: "http://127.0.0.1:8000/v1",
		Protocol: models.ProtocolOpenAICompatible, Extra: map[string]any{"top_k": 1},
	}}
	d := newTestDirectory(t, cfg)

	first, err := d.Resolve("local")
	if err != nil {
		t.Fatal(err)
	}
	first.Extra["top_k"] = 99
	first.Extra["injected"] = true
	d.List()[0].Extra["top_k"] = 42

	second, err := d.Resolve("local")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"top_k": 1}
	if !reflect.DeepEqual(second.Extra, want) {
		t.Errorf("directory entry was mutated through a returned endpoint: %v", second.Extra)
	}
}

func TestNewRejectsIncompleteEndpoint(t *testing.T) {
	cfg := config.Default()
	cfg.Endpoints = []models.Endpoint{{ID: "half", Model: "x"}}
	if _, err := New(cfg, NewKeyLoader(t.TempDir())); err == nil {
		t.Fatal("expected error for endpoint without url and protocol")
	}
}

func TestNewRejectsUnknownThrottle(t *testing.T) {
	cfg := config.Default()
	cfg.Throttle = map[string]float64{"nope": 1}
	_, err := New(cfg, NewKeyLoader(t.TempDir()))
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}

func TestNewRejectsUnknownDefault(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultModel = "nope"
	if _, err := New(cfg, NewKeyLoader(t.TempDir())); err == nil {
		t.Fatal("expected error for unknown default model")
	}
}

func TestNewStatic(t *testing.T) {
	d := NewStatic("m1", models.Endpoint{ID: "m1", Model: "x", Protocol: models.ProtocolGemini})
	if d.Default() != "m1" {
		t.Errorf("expected default m1, got %s", d.Default())
	}
	if _, err := d.Resolve("'m1'"); err != nil {
		t.Fatal(err)
	}
	if len(d.List()) != 1 {
		t.Errorf("expected 1 endpoint, got %d", len(d.List()))
	}
}
