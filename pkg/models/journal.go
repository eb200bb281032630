package models

import (
	"strings"
	"time"
)

// Journal sorts used by existing callers. Any non-empty sort is accepted.
const (
	SortRoot             = "root"
	SortAikido           = "aikido"
	SortApproxOracle     = "approx-oracle"
	SortApproxOracleTest = "approx-oracle-test"
	SortBootTest         = "boot-test"
)

// NormalizeSort strips surrounding whitespace and quoting from a sort name.
func NormalizeSort(sort string) string {
	return strings.Trim(strings.TrimSpace(sort), `"'`)
}

// JournalRecord is one stored entry in the cache journal.
type JournalRecord struct {
	EID     int64       `json:"eid"`
	Time    time.Time   `json:"t"`
	Sort    string      `json:"sort"`
	Outcome WorkOutcome `json:"item"`
	Hash    string      `json:"hash"`
}

// JournalStats reports journal store counters.
type JournalStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Puts    int64 `json:"puts"`
}

// SortCount is the number of journal entries stored under one sort.
type SortCount struct {
	Sort  string `json:"sort"`
	Count int64  `json:"count"`
}
