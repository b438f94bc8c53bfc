// Package sqlitestore persists generation probabilities and sampling runs in
// SQLite.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"cdr3q/internal/model"
)

// ErrNotFound is returned by lookups with no stored row.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite database holding the pgen cache and sampling history.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// :memory: databases are per connection
	d.SetMaxOpenConns(1)
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS pgen_cache (
	  chain TEXT NOT NULL,
	  cdr3 TEXT NOT NULL,
	  v TEXT NOT NULL DEFAULT '',
	  j TEXT NOT NULL DEFAULT '',
	  pgen REAL NOT NULL,
	  PRIMARY KEY (chain, cdr3, v, j)
	);
	CREATE TABLE IF NOT EXISTS sampling_runs (
	  id TEXT PRIMARY KEY,
	  ts INTEGER NOT NULL,
	  chain TEXT NOT NULL,
	  upper_bound REAL NOT NULL,
	  z REAL,
	  accepted INTEGER NOT NULL,
	  total INTEGER NOT NULL,
	  mask BLOB NOT NULL,
	  params BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_runs_ts ON sampling_runs(ts);
	`)
	return err
}

// GetPgen returns the cached generation probability of s under chain, or
// ErrNotFound.
func (d *DB) GetPgen(ctx context.Context, chain string, s model.Sequence) (float64, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT pgen FROM pgen_cache WHERE chain=? AND cdr3=? AND v=? AND j=?`, chain, s.CDR3, s.V, s.J)
	var p float64
	if err := row.Scan(&p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return p, nil
}

// PutPgen stores or replaces the generation probability of s under chain.
func (d *DB) PutPgen(ctx context.Context, chain string, s model.Sequence, p float64) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO pgen_cache(chain, cdr3, v, j, pgen) VALUES(?,?,?,?,?)
	ON CONFLICT(chain, cdr3, v, j) DO UPDATE SET pgen=excluded.pgen`, chain, s.CDR3, s.V, s.J, p)
	return err
}

// CountPgen returns the number of cached probabilities for chain.
func (d *DB) CountPgen(ctx context.Context, chain string) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM pgen_cache WHERE chain=?`, chain).Scan(&n)
	return n, err
}

// Run is one stored rejection sampling outcome.
type Run struct {
	ID         string
	TS         time.Time
	Chain      string
	UpperBound float64
	Z          float64
	Accepted   int
	Mask       []bool
	Params     []float64
}

// PutRun stores r and returns its id, assigning a new one when r.ID is empty.
// A non-finite Z is stored as NULL.
func (d *DB) PutRun(ctx context.Context, r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.TS.IsZero() {
		r.TS = time.Now().UTC()
	}
	var z *float64
	if !math.IsNaN(r.Z) && !math.IsInf(r.Z, 0) {
		z = &r.Z
	}
	_, err := d.sql.ExecContext(ctx, `INSERT INTO sampling_runs(id, ts, chain, upper_bound, z, accepted, total, mask, params) VALUES(?,?,?,?,?,?,?,?,?)`,
		r.ID, r.TS.UnixNano(), r.Chain, r.UpperBound, z, r.Accepted, len(r.Mask), encodeMask(r.Mask), encodeF64(r.Params))
	if err != nil {
		return "", fmt.Errorf("store run %s: %w", r.ID, err)
	}
	return r.ID, nil
}

// LoadRun returns the run with the given id, or ErrNotFound.
func (d *DB) LoadRun(ctx context.Context, id string) (Run, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT id, ts, chain, upper_bound, z, accepted, total, mask, params FROM sampling_runs WHERE id=?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

// LoadRuns returns up to limit runs, newest first.
func (d *DB) LoadRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT id, ts, chain, upper_bound, z, accepted, total, mask, params FROM sampling_runs ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanRun(s scanner) (Run, error) {
	var (
		r     Run
		ts    int64
		z     sql.NullFloat64
		total int
		mb    []byte
		pb    []byte
	)
	if err := s.Scan(&r.ID, &ts, &r.Chain, &r.UpperBound, &z, &r.Accepted, &total, &mb, &pb); err != nil {
		return Run{}, err
	}
	r.TS = time.Unix(0, ts).UTC()
	r.Z = math.NaN()
	if z.Valid {
		r.Z = z.Float64
	}
	r.Mask = decodeMask(mb, total)
	r.Params = decodeF64(pb)
	return r, nil
}

// encodeMask packs the mask eight entries per byte, least significant bit first.
func encodeMask(m []bool) []byte {
	b := make([]byte, (len(m)+7)/8)
	for i, v := range m {
		if v {
			b[i/8] |= 1 << (i % 8)
		}
	}
	return b
}

func decodeMask(b []byte, n int) []bool {
	m := make([]bool, n)
	for i := range m {
		if i/8 < len(b) {
			m[i] = b[i/8]&(1<<(i%8)) != 0
		}
	}
	return m
}

func encodeF64(v []float64) []byte {
	b := make([]byte, 8*len(v))
	for i := range v {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(v[i]))
	}
	return b
}

func decodeF64(b []byte) []float64 {
	if len(b) == 0 {
		return nil
	}
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return v
}
