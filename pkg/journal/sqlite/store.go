// Package sqlite implements a journal Store backed by SQLite.
package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"github.com/pario-ai/oracle/pkg/journal"
	"github.com/pario-ai/oracle/pkg/models"
)

// DefaultCacheSize is the lookup cache size used when none is given.
const DefaultCacheSize = 4096

// Store is an append-only journal in a SQLite database, with an
// in-process LRU of the newest outcome per slot in front of it.
type Store struct {
	db     *sql.DB
	recent *lru.Cache[string, models.WorkOutcome]
	hits   atomic.Int64
	misses atomic.Int64
	puts   atomic.Int64
}

var _ journal.Store = (*Store)(nil)

// New opens (or creates) the journal database at dbPath.
func New(dbPath string, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	recent, err := lru.New[string, models.WorkOutcome](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("journal lookup cache: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal db: %w", err)
	}
	return &Store{db: db, recent: recent}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS journal_entries (
		eid        INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME NOT NULL,
		sort       TEXT NOT NULL,
		key        TEXT NOT NULL,
		model      TEXT NOT NULL,
		ctr        INTEGER NOT NULL,
		ok         INTEGER NOT NULL,
		item       BLOB NOT NULL,
		hash       TEXT NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_journal_slot ON journal_entries(sort, key, model, ctr, eid)`)
	return err
}

func slot(sort string, req models.WorkRequest) string {
	return sort + "\x00" + req.CacheKey()
}

// Hash computes the content hash stored alongside an encoded outcome.
func Hash(item []byte) string {
	sum := sha256.Sum256(item)
	return hex.EncodeToString(sum[:])
}

// Append implements journal.Store.
func (s *Store) Append(ctx context.Context, sort string, outcome models.WorkOutcome) (models.JournalRecord, error) {
	item, err := json.Marshal(outcome)
	if err != nil {
		return models.JournalRecord{}, fmt.Errorf("encode journal item: %w", err)
	}
	rec := models.JournalRecord{
		Time:    time.Now().UTC(),
		Sort:    sort,
		Outcome: outcome,
		Hash:    Hash(item),
	}
	req := outcome.Request
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO journal_entries (created_at, sort, key, model, ctr, ok, item, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Time, sort, req.Key, req.Model, req.Ctr, outcome.OK(), item, rec.Hash,
	)
	if err != nil {
		return models.JournalRecord{}, fmt.Errorf("journal append: %w", err)
	}
	if rec.EID, err = res.LastInsertId(); err != nil {
		return models.JournalRecord{}, fmt.Errorf("journal append: %w", err)
	}
	s.recent.Add(slot(sort, req), outcome)
	s.puts.Add(1)
	return rec, nil
}

// Lookup implements journal.Store.
func (s *Store) Lookup(ctx context.Context, sort string, req models.WorkRequest) (*models.WorkOutcome, error) {
	k := slot(sort, req)
	if out, ok := s.recent.Get(k); ok {
		s.hits.Add(1)
		return &out, nil
	}

	out, err := s.load(ctx, sort, req)
	if err != nil {
		return nil, err
	}
	out = s.remember(k, out)
	s.hits.Add(1)
	return &out, nil
}

// load reads the newest outcome for the slot from the database.
func (s *Store) load(ctx context.Context, sort string, req models.WorkRequest) (models.WorkOutcome, error) {
	var item []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT item FROM journal_entries
		 WHERE sort = ? AND key = ? AND model = ? AND ctr = ?
		 ORDER BY eid DESC LIMIT 1`,
		sort, req.Key, req.Model, req.Ctr,
	).Scan(&item)
	if errors.Is(err, sql.ErrNoRows) {
		s.misses.Add(1)
		return models.WorkOutcome{}, journal.ErrNotFound
	}
	if err != nil {
		return models.WorkOutcome{}, fmt.Errorf("journal lookup: %w", err)
	}

	var out models.WorkOutcome
	if err := json.Unmarshal(item, &out); err != nil {
		return models.WorkOutcome{}, fmt.Errorf("decode journal item: %w", err)
	}
	return out, nil
}

// remember caches out under k unless an Append cached a newer outcome
// while it was being read, in which case that one is returned.
func (s *Store) remember(k string, out models.WorkOutcome) models.WorkOutcome {
	if found, _ := s.recent.ContainsOrAdd(k, out); found {
		if cur, ok := s.recent.Peek(k); ok {
			return cur
		}
	}
	return out
}

// Dump returns records in append order. An empty sort matches every sort;
// limit <= 0 means no limit.
func (s *Store) Dump(ctx context.Context, sort string, limit int) ([]models.JournalRecord, error) {
	q := `SELECT eid, created_at, sort, item, hash FROM journal_entries`
	var args []any
	if sort != "" {
		q += ` WHERE sort = ?`
		args = append(args, sort)
	}
	q += ` ORDER BY eid`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal dump: %w", err)
	}
	defer rows.Close()

	var recs []models.JournalRecord
	for rows.Next() {
		var rec models.JournalRecord
		var item []byte
		if err := rows.Scan(&rec.EID, &rec.Time, &rec.Sort, &item, &rec.Hash); err != nil {
			return nil, fmt.Errorf("journal dump scan: %w", err)
		}
		if err := json.Unmarshal(item, &rec.Outcome); err != nil {
			return nil, fmt.Errorf("decode journal item %d: %w", rec.EID, err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Stats returns entry count and lookup counters.
func (s *Store) Stats(ctx context.Context) (models.JournalStats, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal_entries`).Scan(&count); err != nil {
		return models.JournalStats{}, fmt.Errorf("journal stats: %w", err)
	}
	return models.JournalStats{
		Entries: count,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Puts:    s.puts.Load(),
	}, nil
}

// Sorts returns the number of entries per sort.
func (s *Store) Sorts(ctx context.Context) ([]models.SortCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sort, COUNT(*) FROM journal_entries GROUP BY sort ORDER BY sort`)
	if err != nil {
		return nil, fmt.Errorf("journal sorts: %w", err)
	}
	defer rows.Close()

	var out []models.SortCount
	for rows.Next() {
		var sc models.SortCount
		if err := rows.Scan(&sc.Sort, &sc.Count); err != nil {
			return nil, fmt.Errorf("journal sorts scan: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Clear removes entries for sort, or every entry when sort is empty, and
// returns how many were removed.
func (s *Store) Clear(ctx context.Context, sort string) (int64, error) {
	var res sql.Result
	var err error
	if sort == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM journal_entries`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM journal_entries WHERE sort = ?`, sort)
	}
	if err != nil {
		return 0, fmt.Errorf("journal clear: %w", err)
	}
	s.recent.Purge()
	return res.RowsAffected()
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
