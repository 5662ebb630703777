// Package sqlitestore persists decision records and, optionally, ingested
// policy sets to a local SQLite database. It is purely observational: a
// write failure here is logged and never changes a mediator decision,
// matching outbound.DecisionSink's contract.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quadguard/quadguard/internal/domain/predicate"
	"github.com/quadguard/quadguard/internal/port/outbound"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ts         INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	sender     TEXT NOT NULL,
	recipient  TEXT NOT NULL,
	tool_name  TEXT NOT NULL,
	decision   INTEGER NOT NULL,
	reason     TEXT NOT NULL,
	violated   TEXT NOT NULL,
	cache_hit  INTEGER NOT NULL,
	escalated  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS predicates (
	name        TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	keywords    TEXT NOT NULL,
	is_default  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS policies (
	origin     TEXT NOT NULL,
	rule_name  TEXT NOT NULL,
	logic      TEXT NOT NULL,
	PRIMARY KEY (origin, rule_name)
);
`

// recordJob is one queued decision record write.
type recordJob struct {
	rec DecisionRow
}

// DecisionRow mirrors outbound.DecisionRecord with a timestamp, as persisted.
type DecisionRow struct {
	Timestamp time.Time
	outbound.DecisionRecord
}

// Store is a SQLite-backed outbound.DecisionSink plus a convenience layer
// for persisting/reloading ingested policy sets (SPEC_FULL.md §4.8).
// Record() never blocks the caller: writes are queued onto an internal
// channel and applied by a single background goroutine, so a slow disk
// never slows down a mediator decision.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	jobs   chan recordJob
	done   chan struct{}
	closed chan struct{}
}

// Open creates or opens the SQLite database at path, applies the schema,
// and starts the background writer goroutine. Callers must call Close to
// flush pending writes and release the database handle.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer at a time.
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: apply schema: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
		jobs:   make(chan recordJob, 256),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go s.writeLoop()
	return s, nil
}

// Record implements outbound.DecisionSink. It never blocks: if the internal
// queue is full, the record is dropped and a warning is logged, since losing
// a decision record must never slow down or fail the decision path itself.
func (s *Store) Record(ctx context.Context, rec outbound.DecisionRecord) {
	job := recordJob{rec: DecisionRow{Timestamp: time.Now().UTC(), DecisionRecord: rec}}
	select {
	case s.jobs <- job:
	default:
		s.logger.Warn("sqlitestore: decision queue full, dropping record", "kind", rec.Kind, "sender", rec.Sender)
	}
}

func (s *Store) writeLoop() {
	defer close(s.closed)
	for {
		select {
		case job := <-s.jobs:
			s.write(job.rec)
		case <-s.done:
			// Drain remaining queued jobs before exiting.
			for {
				select {
				case job := <-s.jobs:
					s.write(job.rec)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) write(row DecisionRow) {
	violated, err := json.Marshal(row.Violated)
	if err != nil {
		s.logger.Warn("sqlitestore: marshal violated rules", "error", err)
		violated = []byte("[]")
	}
	_, err = s.db.Exec(
		`INSERT INTO decisions (ts, kind, sender, recipient, tool_name, decision, reason, violated, cache_hit, escalated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Timestamp.Unix(), row.Kind, row.Sender, row.Recipient, row.ToolName,
		boolToInt(row.Decision), row.Reason, string(violated), boolToInt(row.CacheHit), boolToInt(row.Escalated),
	)
	if err != nil {
		s.logger.Warn("sqlitestore: insert decision record", "error", err)
	}
}

// PersistPolicySet writes predicates and rules extracted by the ingestion
// pipeline so a restarted guard can reload its most recently ingested policy
// set without re-running extraction. This is additive: the ingestion JSON
// cache remains authoritative and is always consulted first.
func (s *Store) PersistPolicySet(ctx context.Context, origin predicate.PolicyOrigin, predicates []predicate.Predicate, rules []predicate.Rule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range predicates {
		keywords, err := json.Marshal(p.Keywords)
		if err != nil {
			return fmt.Errorf("sqlitestore: marshal keywords for %s: %w", p.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO predicates (name, description, keywords, is_default) VALUES (?, ?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET description=excluded.description, keywords=excluded.keywords, is_default=excluded.is_default`,
			p.Name, p.Description, string(keywords), boolToInt(p.Default),
		); err != nil {
			return fmt.Errorf("sqlitestore: upsert predicate %s: %w", p.Name, err)
		}
	}

	for _, r := range rules {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO policies (origin, rule_name, logic) VALUES (?, ?, ?)
			 ON CONFLICT(origin, rule_name) DO UPDATE SET logic=excluded.logic`,
			string(origin), r.Name, r.Logic,
		); err != nil {
			return fmt.Errorf("sqlitestore: upsert rule %s: %w", r.Name, err)
		}
	}

	return tx.Commit()
}

// LoadPolicySet reloads the predicates and rules most recently persisted by
// PersistPolicySet for the given origin.
func (s *Store) LoadPolicySet(ctx context.Context, origin predicate.PolicyOrigin) ([]predicate.Predicate, []predicate.Rule, error) {
	ruleRows, err := s.db.QueryContext(ctx, `SELECT rule_name, logic FROM policies WHERE origin = ?`, string(origin))
	if err != nil {
		return nil, nil, fmt.Errorf("sqlitestore: query rules: %w", err)
	}
	defer ruleRows.Close()

	var rules []predicate.Rule
	referenced := make(map[string]bool)
	for ruleRows.Next() {
		var r predicate.Rule
		if err := ruleRows.Scan(&r.Name, &r.Logic); err != nil {
			return nil, nil, fmt.Errorf("sqlitestore: scan rule: %w", err)
		}
		r.Origin = origin
		rules = append(rules, r)
		referenced[r.Name] = true
	}
	if err := ruleRows.Err(); err != nil {
		return nil, nil, err
	}

	predRows, err := s.db.QueryContext(ctx, `SELECT name, description, keywords, is_default FROM predicates`)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlitestore: query predicates: %w", err)
	}
	defer predRows.Close()

	var predicates []predicate.Predicate
	for predRows.Next() {
		var p predicate.Predicate
		var keywordsJSON string
		var isDefault int
		if err := predRows.Scan(&p.Name, &p.Description, &keywordsJSON, &isDefault); err != nil {
			return nil, nil, fmt.Errorf("sqlitestore: scan predicate: %w", err)
		}
		if err := json.Unmarshal([]byte(keywordsJSON), &p.Keywords); err != nil {
			return nil, nil, fmt.Errorf("sqlitestore: unmarshal keywords for %s: %w", p.Name, err)
		}
		p.Default = isDefault != 0
		predicates = append(predicates, p)
	}
	if err := predRows.Err(); err != nil {
		return nil, nil, err
	}

	return predicates, rules, nil
}

// Close flushes any queued decision records and closes the database handle.
func (s *Store) Close() error {
	close(s.done)
	<-s.closed
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ outbound.DecisionSink = (*Store)(nil)
