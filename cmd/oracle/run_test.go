package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadRequests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reqs.jsonl")
	content := `{"key":"a","query":"one"}

{"query":"two","model":"deepseek-r1-20250120","ctr":2}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	reqs, err := readRequests(path, "fallback")
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	if reqs[0].Key != "a" || reqs[0].Model != "fallback" {
		t.Errorf("unexpected first request: %+v", reqs[0])
	}
	if reqs[1].Key != "line-3" || reqs[1].Model != "deepseek-r1-20250120" || reqs[1].Ctr != 2 {
		t.Errorf("unexpected second request: %+v", reqs[1])
	}
}

func TestReadRequestsBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reqs.jsonl")
	if err := os.WriteFile(path, []byte("{not json}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := readRequests(path, ""); err == nil {
		t.Error("expected error for malformed line")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Errorf("got %q", got)
	}
}
