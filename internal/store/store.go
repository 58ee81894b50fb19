// Package store persists risk records to a local sqlite database. Writes are
// append-only batch transactions; a full refresh drops and recreates the
// table rather than mutating rows.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/Zalgo-Dev/WeaRisk/internal/domain"
)

// riskColumns are the score columns the read paths guard against schema
// drift. A missing column reads as a literal 0 instead of failing the query.
var riskColumns = []string{"electrical_risk", "flood_risk", "heat_risk", "wind_risk", "overall_risk"}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS risks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	department_code TEXT,
	department_name TEXT,
	timestamp TEXT,
	electrical_risk REAL CHECK (electrical_risk BETWEEN 0 AND 100),
	flood_risk REAL CHECK (flood_risk BETWEEN 0 AND 100),
	heat_risk REAL CHECK (heat_risk BETWEEN 0 AND 100),
	wind_risk REAL CHECK (wind_risk BETWEEN 0 AND 100),
	overall_risk REAL CHECK (overall_risk BETWEEN 0 AND 100),
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
)`

// Store wraps the sqlite database holding the risks table.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and ensures the risks
// table exists. The rollback journal stays in its default mode so commits
// touch the database file itself; the scheduler's staleness check reads that
// file's mtime.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// One writer connection; sqlite serializes writers anyway and a single
	// connection avoids SQLITE_BUSY churn from the collector and the API.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create risks table: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertBatch writes all records in one transaction: either every row of the
// batch becomes durable or none does.
func (s *Store) InsertBatch(ctx context.Context, records []domain.RiskRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO risks (department_code, department_name, timestamp,
			electrical_risk, flood_risk, heat_risk, wind_risk, overall_risk)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.DepartmentCode, r.DepartmentName, r.Timestamp,
			r.ElectricalRisk, r.FloodRisk, r.HeatRisk, r.WindRisk, r.OverallRisk,
		); err != nil {
			return fmt.Errorf("insert record for %s@%s: %w", r.DepartmentCode, r.Timestamp, err)
		}
	}

	return tx.Commit()
}

// ListRisks returns records created within the trailing 24 hours whose
// department name contains nameFilter, newest forecast hour first and highest
// overall risk first within an hour, capped at limit rows.
func (s *Store) ListRisks(ctx context.Context, nameFilter string, limit int) ([]domain.RiskRecord, error) {
	present, err := presentColumns(ctx, s.db)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT department_code, department_name, timestamp, %s, created_at
		FROM risks
		WHERE created_at >= datetime('now', '-1 day')
		  AND department_name LIKE ?
		ORDER BY timestamp DESC, %s DESC
		LIMIT ?`,
		selectRiskExprs(present), riskExpr(present, "overall_risk"))

	rows, err := s.db.QueryContext(ctx, query, "%"+nameFilter+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("list risks: %w", err)
	}
	defer rows.Close()

	var records []domain.RiskRecord
	for rows.Next() {
		var r domain.RiskRecord
		if err := rows.Scan(&r.DepartmentCode, &r.DepartmentName, &r.Timestamp,
			&r.ElectricalRisk, &r.FloodRisk, &r.HeatRisk, &r.WindRisk, &r.OverallRisk,
			&r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan risk row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Departments returns the distinct department names present in the store.
func (s *Store) Departments(ctx context.Context) ([]string, error) {
	return stringColumn(ctx, s.db,
		`SELECT DISTINCT department_name FROM risks ORDER BY department_name`)
}

// Timestamps returns the distinct forecast timestamps, newest first.
func (s *Store) Timestamps(ctx context.Context) ([]string, error) {
	return stringColumn(ctx, s.db, timestampsSQL)
}

const timestampsSQL = `SELECT DISTINCT timestamp FROM risks ORDER BY timestamp DESC`

// SnapshotEntry is one department's score for one risk category at one hour.
type SnapshotEntry struct {
	DepartmentCode string  `json:"department_code"`
	DepartmentName string  `json:"department_name"`
	Risk           float64 `json:"risk"`
	Timestamp      string  `json:"timestamp"`
}

// Snapshot is the all-departments view of one risk category at one timestamp.
type Snapshot struct {
	Timestamps       []string        `json:"timestamps"`
	CurrentTimestamp string          `json:"current_timestamp"`
	Data             []SnapshotEntry `json:"data"`
}

// Snapshot returns every department's score for the given category at the
// given timestamp. An empty timestamp selects the most recent one available;
// an unknown category falls back to the overall score. An empty store yields
// an empty snapshot, not an error.
func (s *Store) Snapshot(ctx context.Context, riskType, timestamp string) (Snapshot, error) {
	// Everything runs in one transaction: the timestamp listing and the row
	// query must see the same table state, or a refresh landing between them
	// could report timestamps with no matching rows.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only, rollback releases it

	timestamps, err := stringColumn(ctx, tx, timestampsSQL)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Timestamps: timestamps, Data: []SnapshotEntry{}}
	if timestamp == "" {
		if len(timestamps) == 0 {
			return snap, nil
		}
		timestamp = timestamps[0]
	}
	snap.CurrentTimestamp = timestamp

	present, err := presentColumns(ctx, tx)
	if err != nil {
		return Snapshot{}, err
	}

	query := fmt.Sprintf(`
		SELECT department_code, department_name, %s, timestamp
		FROM risks
		WHERE timestamp = ?
		ORDER BY department_code`, riskExpr(present, riskColumn(riskType)))

	rows, err := tx.QueryContext(ctx, query, timestamp)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e SnapshotEntry
		if err := rows.Scan(&e.DepartmentCode, &e.DepartmentName, &e.Risk, &e.Timestamp); err != nil {
			return Snapshot{}, fmt.Errorf("scan snapshot row: %w", err)
		}
		snap.Data = append(snap.Data, e)
	}
	return snap, rows.Err()
}

// Count returns the number of persisted records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM risks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count risks: %w", err)
	}
	return n, nil
}

// Reset drops and recreates the risks table, discarding all prior data. The
// drop and recreate commit together, so concurrent readers see either the old
// table or the fresh empty one, never a missing table. Used by the scheduler
// ahead of a full refresh.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS risks`); err != nil {
		return fmt.Errorf("drop risks table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("recreate risks table: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	s.logger.Info("risk store reset")
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx, so the read helpers work
// inside and outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func stringColumn(ctx context.Context, q querier, query string) ([]string, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// presentColumns reports which columns the risks table currently has, so
// reads survive a schema that predates one of the risk columns.
func presentColumns(ctx context.Context, q querier) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, `PRAGMA table_info(risks)`)
	if err != nil {
		return nil, fmt.Errorf("inspect risks schema: %w", err)
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, colType    string
			defaultValue     sql.NullString
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, fmt.Errorf("scan schema row: %w", err)
		}
		present[name] = true
	}
	return present, rows.Err()
}

// riskExpr yields the SQL expression for a risk column, substituting a
// documented default of 0 when the column does not exist.
func riskExpr(present map[string]bool, column string) string {
	if present[column] {
		return column
	}
	return "0"
}

func selectRiskExprs(present map[string]bool) string {
	exprs := make([]string, 0, len(riskColumns))
	for _, col := range riskColumns {
		exprs = append(exprs, riskExpr(present, col))
	}
	return strings.Join(exprs, ", ")
}

// riskColumn maps an API risk type to its column, defaulting to overall.
func riskColumn(riskType string) string {
	switch riskType {
	case "electrical":
		return "electrical_risk"
	case "flood":
		return "flood_risk"
	case "heat":
		return "heat_risk"
	case "wind":
		return "wind_risk"
	default:
		return "overall_risk"
	}
}
