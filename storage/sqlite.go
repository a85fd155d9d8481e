package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"orthrus/core"
)

// SQLite holds the database connection shared by the SQLite-backed stores.
type SQLite struct {
	DB     *sql.DB
	Path   string
	Logger *zap.SugaredLogger
}

// NewSQLite opens (creating if necessary) the SQLite database at dbPath and
// prepares the event, attack, and response tables.
func NewSQLite(dbPath string, logger *zap.SugaredLogger) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := configureConnection(db, dbPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	// WAL mode allows one writer at a time; a single connection keeps the
	// driver from ever observing SQLITE_BUSY on writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	sqlite := &SQLite{
		DB:     db,
		Path:   dbPath,
		Logger: logger,
	}

	if err := sqlite.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Infof("SQLite database initialized at %s", dbPath)

	return sqlite, nil
}

// configureConnection enables WAL mode, foreign keys, and a busy timeout,
// and verifies the settings actually took effect.
func configureConnection(db *sql.DB, dbPath string) error {
	_, err := db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite disables foreign keys by default.
	_, err = db.Exec("PRAGMA foreign_keys=ON")
	if err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	var fkEnabled int
	err = db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled)
	if err != nil {
		return fmt.Errorf("failed to verify foreign keys: %w", err)
	}
	if fkEnabled != 1 {
		return fmt.Errorf("foreign keys not enabled (got: %d, expected: 1)", fkEnabled)
	}

	_, err = db.Exec("PRAGMA busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	// In-memory databases report "memory" journal mode instead of "wal".
	var journalMode string
	err = db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		return fmt.Errorf("failed to query journal mode: %w", err)
	}
	if dbPath != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (got: %s, expected: wal)", journalMode)
	}

	return nil
}

// createTables creates the schema. Timestamps are stored as nanoseconds
// since the Unix epoch so range comparisons stay exact.
func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		detection_point_id TEXT NOT NULL,
		client_application TEXT NOT NULL,
		username TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_lookup ON events(detection_point_id, username, timestamp);

	CREATE TABLE IF NOT EXISTS attacks (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		detection_point_id TEXT NOT NULL,
		client_application TEXT NOT NULL,
		username TEXT NOT NULL,
		threshold_count INTEGER NOT NULL,
		threshold_duration INTEGER NOT NULL,
		threshold_unit TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attacks_lookup ON attacks(detection_point_id, username, timestamp);

	CREATE TABLE IF NOT EXISTS responses (
		id TEXT PRIMARY KEY,
		attack_id TEXT NOT NULL,
		detection_point_id TEXT NOT NULL,
		client_application TEXT NOT NULL,
		username TEXT NOT NULL,
		action TEXT NOT NULL,
		interval_duration INTEGER NOT NULL,
		interval_unit TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_responses_lookup ON responses(detection_point_id, username, timestamp);
	`

	_, err := s.DB.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.DB.Close()
}

// criteriaConditions translates the stores' shared search criteria into SQL
// WHERE conditions. The scan loops still run the results through
// SearchCriteria.matches afterwards, which keeps the SQL a prefilter rather
// than a second source of truth.
func criteriaConditions(criteria SearchCriteria) ([]string, []interface{}) {
	var conditions []string
	var args []interface{}

	if criteria.DetectionPointID != "" {
		conditions = append(conditions, "detection_point_id = ?")
		args = append(args, criteria.DetectionPointID)
	}
	if criteria.Username != "" {
		conditions = append(conditions, "username = ?")
		args = append(args, criteria.Username)
	}
	if len(criteria.ClientApplications) > 0 {
		placeholders := make([]string, len(criteria.ClientApplications))
		for i, app := range criteria.ClientApplications {
			placeholders[i] = "?"
			args = append(args, app)
		}
		conditions = append(conditions, fmt.Sprintf("client_application IN (%s)", strings.Join(placeholders, ",")))
	}
	if !criteria.Earliest.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, criteria.Earliest.UnixNano())
	}

	return conditions, args
}

func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conditions, " AND ")
}

// SQLiteEventStore persists events in the shared SQLite database.
type SQLiteEventStore struct {
	observerList
	db *SQLite
}

// NewSQLiteEventStore creates an event store backed by the given database.
func NewSQLiteEventStore(db *SQLite) *SQLiteEventStore {
	return &SQLiteEventStore{db: db}
}

// AddEvent inserts an event and notifies observers.
func (s *SQLiteEventStore) AddEvent(ctx context.Context, event *core.Event) error {
	query := `
		INSERT INTO events (id, detection_point_id, client_application, username, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.DB.ExecContext(ctx, query,
		event.ID, event.DetectionPointID, event.ClientApplication, event.Username,
		event.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	s.notifyEvent(*event)
	return nil
}

// FindEvents returns events matching the criteria, in chronological order.
func (s *SQLiteEventStore) FindEvents(ctx context.Context, criteria SearchCriteria) ([]core.Event, error) {
	conditions, args := criteriaConditions(criteria)

	query := fmt.Sprintf(`
		SELECT id, detection_point_id, client_application, username, timestamp
		FROM events
		%s
		ORDER BY timestamp, rowid
	`, whereClause(conditions))

	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var found []core.Event
	for rows.Next() {
		var e core.Event
		var ts int64
		if err := rows.Scan(&e.ID, &e.DetectionPointID, &e.ClientApplication, &e.Username, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		if !criteria.matches(e.DetectionPointID, e.ClientApplication, e.Username, e.Timestamp) {
			continue
		}
		found = append(found, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return found, nil
}

// SQLiteAttackStore persists attacks in the shared SQLite database.
type SQLiteAttackStore struct {
	observerList
	db *SQLite
}

// NewSQLiteAttackStore creates an attack store backed by the given database.
func NewSQLiteAttackStore(db *SQLite) *SQLiteAttackStore {
	return &SQLiteAttackStore{db: db}
}

// AddAttack inserts an attack and notifies observers.
func (s *SQLiteAttackStore) AddAttack(ctx context.Context, attack *core.Attack) error {
	query := `
		INSERT INTO attacks (id, event_id, detection_point_id, client_application, username,
			threshold_count, threshold_duration, threshold_unit, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.DB.ExecContext(ctx, query,
		attack.ID, attack.EventID, attack.DetectionPointID, attack.ClientApplication, attack.Username,
		attack.Threshold.Count, attack.Threshold.Interval.Duration, attack.Threshold.Interval.Unit,
		attack.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert attack: %w", err)
	}

	s.notifyAttack(*attack)
	return nil
}

// FindAttacks returns attacks matching the criteria, in chronological order.
func (s *SQLiteAttackStore) FindAttacks(ctx context.Context, criteria SearchCriteria) ([]core.Attack, error) {
	conditions, args := criteriaConditions(criteria)

	query := fmt.Sprintf(`
		SELECT id, event_id, detection_point_id, client_application, username,
			threshold_count, threshold_duration, threshold_unit, timestamp
		FROM attacks
		%s
		ORDER BY timestamp, rowid
	`, whereClause(conditions))

	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attacks: %w", err)
	}
	defer rows.Close()

	var found []core.Attack
	for rows.Next() {
		var a core.Attack
		var ts int64
		if err := rows.Scan(&a.ID, &a.EventID, &a.DetectionPointID, &a.ClientApplication, &a.Username,
			&a.Threshold.Count, &a.Threshold.Interval.Duration, &a.Threshold.Interval.Unit, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan attack: %w", err)
		}
		a.Timestamp = time.Unix(0, ts).UTC()
		if !criteria.matches(a.DetectionPointID, a.ClientApplication, a.Username, a.Timestamp) {
			continue
		}
		found = append(found, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attacks: %w", err)
	}
	return found, nil
}

// SQLiteResponseStore persists response records in the shared SQLite
// database.
type SQLiteResponseStore struct {
	observerList
	db *SQLite
}

// NewSQLiteResponseStore creates a response store backed by the given
// database.
func NewSQLiteResponseStore(db *SQLite) *SQLiteResponseStore {
	return &SQLiteResponseStore{db: db}
}

// AddResponse inserts a response record and notifies observers.
func (s *SQLiteResponseStore) AddResponse(ctx context.Context, response *core.ResponseRecord) error {
	query := `
		INSERT INTO responses (id, attack_id, detection_point_id, client_application, username,
			action, interval_duration, interval_unit, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.DB.ExecContext(ctx, query,
		response.ID, response.AttackID, response.DetectionPointID, response.ClientApplication, response.Username,
		response.Action, response.Interval.Duration, response.Interval.Unit,
		response.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert response: %w", err)
	}

	s.notifyResponse(*response)
	return nil
}

// FindResponses returns response records matching the criteria, in
// chronological order.
func (s *SQLiteResponseStore) FindResponses(ctx context.Context, criteria SearchCriteria) ([]core.ResponseRecord, error) {
	conditions, args := criteriaConditions(criteria)

	query := fmt.Sprintf(`
		SELECT id, attack_id, detection_point_id, client_application, username,
			action, interval_duration, interval_unit, timestamp
		FROM responses
		%s
		ORDER BY timestamp, rowid
	`, whereClause(conditions))

	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	var found []core.ResponseRecord
	for rows.Next() {
		var r core.ResponseRecord
		var ts int64
		if err := rows.Scan(&r.ID, &r.AttackID, &r.DetectionPointID, &r.ClientApplication, &r.Username,
			&r.Action, &r.Interval.Duration, &r.Interval.Unit, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		r.Timestamp = time.Unix(0, ts).UTC()
		if !criteria.matches(r.DetectionPointID, r.ClientApplication, r.Username, r.Timestamp) {
			continue
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate responses: %w", err)
	}
	return found, nil
}
