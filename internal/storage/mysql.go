package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"gtp/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS gtp_runs (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	total_test_cases INT NOT NULL,
	passed_test_cases INT NOT NULL,
	failed_test_cases INT NOT NULL,
	crashed_test_cases INT NOT NULL,
	not_found_test_cases INT NOT NULL,
	executables INT NOT NULL,
	duration VARCHAR(64) NOT NULL,
	duration_seconds DOUBLE NOT NULL,
	workers INT NOT NULL,
	created_at VARCHAR(64) NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS gtp_failures (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	run_id BIGINT NOT NULL,
	test_name VARCHAR(1024) NOT NULL,
	executable VARCHAR(1024) NOT NULL,
	file VARCHAR(1024) NOT NULL,
	line INT NOT NULL,
	message MEDIUMTEXT NOT NULL,
	outcome VARCHAR(32) NOT NULL,
	duration_ms BIGINT NOT NULL,
	crashed BOOLEAN NOT NULL,
	resolved BOOLEAN NOT NULL,
	INDEX idx_gtp_failures_run (run_id)
)`,
}

const (
	insertRunQuery      = `INSERT INTO gtp_runs (total_test_cases, passed_test_cases, failed_test_cases, crashed_test_cases, not_found_test_cases, executables, duration, duration_seconds, workers, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertFailureQuery  = `INSERT INTO gtp_failures (run_id, test_name, executable, file, line, message, outcome, duration_ms, crashed, resolved) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	latestRunQuery      = `SELECT id, total_test_cases, passed_test_cases, failed_test_cases, crashed_test_cases, not_found_test_cases, executables, duration, duration_seconds, workers, created_at FROM gtp_runs ORDER BY id DESC LIMIT 1`
	failuresQuery       = `SELECT test_name, executable, file, line, message, outcome, duration_ms, crashed, resolved FROM gtp_failures WHERE run_id = ? ORDER BY id`
	deleteFailuresQuery = `DELETE FROM gtp_failures WHERE run_id = ?`
	databaseExistsQuery = `SELECT 1 FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?`
	updateRunQuery      = `UPDATE gtp_runs SET total_test_cases = ?, passed_test_cases = ?, failed_test_cases = ?, crashed_test_cases = ?, not_found_test_cases = ?, executables = ?, duration = ?, duration_seconds = ?, workers = ?, created_at = ? WHERE id = ?`
)

// ErrNoRuns is returned by Load when no run was stored yet
var ErrNoRuns = errors.New("no test runs stored")

// MySQLStorage keeps the history of test runs in MySQL
type MySQLStorage struct {
	db *sql.DB
}

// NewMySQLStorage connects to dsn, creating its database and the result tables if needed
func NewMySQLStorage(dsn string) (*MySQLStorage, error) {
	server, name, err := splitDSN(dsn)
	if err != nil {
		return nil, err
	}
	if err := ensureDatabase(server, name); err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database server: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database server: %w", err)
	}

	s, err := NewMySQLStorageWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// splitDSN returns the dsn without its database, and the database name
func splitDSN(dsn string) (string, string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", "", fmt.Errorf("invalid results DSN: %w", err)
	}
	if cfg.DBName == "" {
		return "", "", errors.New("invalid results DSN: no database name")
	}
	name := cfg.DBName
	cfg.DBName = ""
	return cfg.FormatDSN(), name, nil
}

func ensureDatabase(server, name string) error {
	db, err := sql.Open("mysql", server)
	if err != nil {
		return fmt.Errorf("failed to connect to database server: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database server: %w", err)
	}
	return createDatabase(db, name)
}

func createDatabase(db *sql.DB, name string) error {
	var exists int
	err := db.QueryRow(databaseExistsQuery, name).Scan(&exists)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check database %s: %w", name, err)
	}
	if _, err := db.Exec("CREATE DATABASE IF NOT EXISTS `" + strings.ReplaceAll(name, "`", "``") + "`"); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return nil
}

// NewMySQLStorageWithDB uses an open connection and creates the result tables if needed
func NewMySQLStorageWithDB(db *sql.DB) (*MySQLStorage, error) {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("create result tables: %w", err)
		}
	}
	return &MySQLStorage{db: db}, nil
}

// Close closes the connection
func (s *MySQLStorage) Close() error {
	return s.db.Close()
}

// Save stores results as a new run
func (s *MySQLStorage) Save(results []domain.TestResult, duration time.Duration, workers int) error {
	output := BuildOutput(results, duration, workers)
	return s.inTx(func(tx *sql.Tx) error {
		m := output.Meta
		res, err := tx.Exec(insertRunQuery,
			m.TotalTestCases, m.PassedTestCases, m.FailedTestCases, m.CrashedTestCases, m.NotFoundTestCases,
			m.Executables, m.Duration, m.DurationSeconds, m.Workers, m.Timestamp)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		runID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return insertFailures(tx, runID, output.Details)
	})
}

// Load returns the latest run
func (s *MySQLStorage) Load() (*domain.TestResultsOutput, error) {
	runID, meta, err := s.latestRun(s.db.QueryRow(latestRunQuery))
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(failuresQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	output := &domain.TestResultsOutput{Meta: meta, Details: make([]domain.TestFailure, 0)}
	for rows.Next() {
		var f domain.TestFailure
		if err := rows.Scan(&f.TestName, &f.Executable, &f.File, &f.Line, &f.Message,
			&f.Outcome, &f.DurationMs, &f.Crashed, &f.Resolved); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		output.Details = append(output.Details, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	return output, nil
}

// SaveOutput replaces the latest run with output
func (s *MySQLStorage) SaveOutput(output *domain.TestResultsOutput) error {
	return s.inTx(func(tx *sql.Tx) error {
		runID, _, err := s.latestRun(tx.QueryRow(latestRunQuery))
		if err != nil {
			return err
		}

		m := output.Meta
		if _, err := tx.Exec(updateRunQuery,
			m.TotalTestCases, m.PassedTestCases, m.FailedTestCases, m.CrashedTestCases, m.NotFoundTestCases,
			m.Executables, m.Duration, m.DurationSeconds, m.Workers, m.Timestamp, runID); err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		if _, err := tx.Exec(deleteFailuresQuery, runID); err != nil {
			return fmt.Errorf("delete failures: %w", err)
		}
		return insertFailures(tx, runID, output.Details)
	})
}

func (s *MySQLStorage) latestRun(row *sql.Row) (int64, domain.TestResultsMeta, error) {
	var (
		id   int64
		meta domain.TestResultsMeta
	)
	err := row.Scan(&id, &meta.TotalTestCases, &meta.PassedTestCases, &meta.FailedTestCases,
		&meta.CrashedTestCases, &meta.NotFoundTestCases, &meta.Executables, &meta.Duration,
		&meta.DurationSeconds, &meta.Workers, &meta.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, meta, ErrNoRuns
	}
	if err != nil {
		return 0, meta, fmt.Errorf("query latest run: %w", err)
	}
	return id, meta, nil
}

func (s *MySQLStorage) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertFailures(tx *sql.Tx, runID int64, failures []domain.TestFailure) error {
	for _, f := range failures {
		if _, err := tx.Exec(insertFailureQuery, runID, f.TestName, f.Executable, f.File, f.Line,
			f.Message, f.Outcome, f.DurationMs, f.Crashed, f.Resolved); err != nil {
			return fmt.Errorf("insert failure %s: %w", f.TestName, err)
		}
	}
	return nil
}
