package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/gitdigital/loanflow/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Compile-time check: Ledger implements domain.Ledger.
var _ domain.Ledger = (*Ledger)(nil)

// Ledger implements domain.Ledger using SQLite. The audit log table assigns
// a monotonic sequence per insert, which is the order AuditLog reads back.
type Ledger struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready ledger.
func New(dataSourceName string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and
// returns a ready ledger. Use this when the *sql.DB has been pre-configured
// (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*Ledger, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &Ledger{db: db}, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// DB returns the underlying database connection for use by other adapters
// (e.g., river).
func (l *Ledger) DB() *sql.DB {
	return l.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05.000Z"

// --- Loans ---

func (l *Ledger) CreateLoan(ctx context.Context, loan domain.Loan) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO loans (id, founder_id, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		loan.ID, loan.FounderID, loan.State,
		loan.CreatedAt.UTC().Format(timeFormat),
		loan.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting loan: %w", err)
	}
	return nil
}

func (l *Ledger) GetLoan(ctx context.Context, id string) (domain.Loan, error) {
	var loan domain.Loan
	var createdAt, updatedAt string

	err := l.db.QueryRowContext(ctx,
		`SELECT id, founder_id, state, created_at, updated_at
		 FROM loans WHERE id = ?`, id,
	).Scan(&loan.ID, &loan.FounderID, &loan.State, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Loan{}, domain.ErrLoanNotFound
		}
		return domain.Loan{}, fmt.Errorf("scanning loan: %w", err)
	}

	if loan.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return domain.Loan{}, fmt.Errorf("parsing loan created_at: %w", err)
	}
	if loan.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return domain.Loan{}, fmt.Errorf("parsing loan updated_at: %w", err)
	}

	return loan, nil
}

func (l *Ledger) UpdateState(ctx context.Context, loanID, newState string) error {
	result, err := l.db.ExecContext(ctx,
		`UPDATE loans SET state = ?, updated_at = ? WHERE id = ?`,
		newState, time.Now().UTC().Format(timeFormat), loanID,
	)
	if err != nil {
		return fmt.Errorf("updating loan state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrLoanNotFound
	}

	return nil
}

// --- Audit log ---

func (l *Ledger) AppendLog(ctx context.Context, loanID string, entry domain.LogEntry) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_log (loan_id, occurred_at, actor, event, details)
		 VALUES (?, ?, ?, ?, ?)`,
		loanID, entry.Timestamp.UTC().Format(timeFormat),
		entry.Actor, entry.Event, entry.Details,
	)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

func (l *Ledger) AuditLog(ctx context.Context, loanID string) ([]domain.LogEntry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT seq, occurred_at, actor, event, details
		 FROM audit_log WHERE loan_id = ? ORDER BY seq`, loanID,
	)
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	defer rows.Close()

	var entries []domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		var occurredAt string
		if err := rows.Scan(&e.Seq, &occurredAt, &e.Actor, &e.Event, &e.Details); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if e.Timestamp, err = time.Parse(timeFormat, occurredAt); err != nil {
			return nil, fmt.Errorf("parsing audit entry occurred_at: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Disbursements ---

func (l *Ledger) CreateDisbursement(ctx context.Context, d domain.Disbursement) error {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO disbursements (id, loan_id, kind, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.LoanID, d.Kind, string(d.Status), createdAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDisbursementExists
		}
		return fmt.Errorf("inserting disbursement: %w", err)
	}
	return nil
}

func (l *Ledger) GetDisbursement(ctx context.Context, loanID, disbursementID string) (domain.Disbursement, error) {
	return l.scanDisbursement(l.db.QueryRowContext(ctx,
		`SELECT id, loan_id, kind, status, created_at, paid_at
		 FROM disbursements WHERE loan_id = ? AND id = ?`, loanID, disbursementID,
	))
}

func (l *Ledger) FindDisbursementByKind(ctx context.Context, loanID, kind string) (domain.Disbursement, error) {
	return l.scanDisbursement(l.db.QueryRowContext(ctx,
		`SELECT id, loan_id, kind, status, created_at, paid_at
		 FROM disbursements WHERE loan_id = ? AND kind = ?`, loanID, kind,
	))
}

func (l *Ledger) MarkDisbursementPaid(ctx context.Context, loanID, disbursementID string) error {
	result, err := l.db.ExecContext(ctx,
		`UPDATE disbursements SET status = ?, paid_at = ?
		 WHERE loan_id = ? AND id = ?`,
		string(domain.DisbursementPaid), time.Now().UTC().Format(timeFormat),
		loanID, disbursementID,
	)
	if err != nil {
		return fmt.Errorf("marking disbursement paid: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrDisbursementNotFound
	}

	return nil
}

func (l *Ledger) scanDisbursement(row *sql.Row) (domain.Disbursement, error) {
	var d domain.Disbursement
	var status, createdAt string
	var paidAt sql.NullString

	err := row.Scan(&d.ID, &d.LoanID, &d.Kind, &status, &createdAt, &paidAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Disbursement{}, domain.ErrDisbursementNotFound
		}
		return domain.Disbursement{}, fmt.Errorf("scanning disbursement: %w", err)
	}

	d.Status = domain.DisbursementStatus(status)
	if d.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return domain.Disbursement{}, fmt.Errorf("parsing disbursement created_at: %w", err)
	}
	if paidAt.Valid {
		t, err := time.Parse(timeFormat, paidAt.String)
		if err != nil {
			return domain.Disbursement{}, fmt.Errorf("parsing disbursement paid_at: %w", err)
		}
		d.PaidAt = &t
	}

	return d, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
