/*
Package sqlite provides the SQLite-backed implementation of the
insurance.Store persistence port.

PURPOSE:
  Persists customers, policies and installments. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  customers:    insured people, unique national code
  policies:     policy terms; references customers by NATIONAL CODE
                (denormalized on purpose - code changes are copied over)
  installments: one row per scheduled payment, unique (policy, number)

MONEY:
  Amounts are stored as exact decimal strings and parsed with
  shopspring/decimal. No floats anywhere near money.

CONCURRENCY:
  Opened in WAL mode: multiple readers, a single writer at a time.
  Single-statement writes rely on SQLite's own write serialization.
  Multi-step schedule mutations (delete-then-recreate of a policy's
  unpaid tail) always run through WithTx, which additionally holds a
  store-level mutex for the duration of the transaction, so two
  schedule rewrites never interleave. Plain method calls do NOT take
  that mutex.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

USAGE:
  store, err := sqlite.New("./data/insurance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - insurance/store.go: the interface this implements
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/isth3root/bz-exp/engine"
	"github.com/isth3root/bz-exp/insurance"
)

// Store implements insurance.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
	queries
}

// compile-time interface checks
var (
	_ insurance.Store = (*Store)(nil)
	_ insurance.Store = (*txStore)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, queries: queries{db: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		full_name TEXT NOT NULL,
		national_code TEXT NOT NULL UNIQUE,
		insurance_code TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		birth_date TEXT NOT NULL DEFAULT '',
		score TEXT NOT NULL DEFAULT 'A',
		role TEXT NOT NULL DEFAULT 'customer',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS policies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_national_code TEXT NOT NULL,
		insurance_type TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL DEFAULT '',
		premium TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		installment_count INTEGER NOT NULL DEFAULT 0,
		installment_type TEXT NOT NULL DEFAULT 'uniform',
		first_installment_amount TEXT,
		payment_id TEXT NOT NULL DEFAULT '',
		payment_link TEXT NOT NULL DEFAULT '',
		document_path TEXT NOT NULL DEFAULT '',
		policy_number TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Policies are looked up by the denormalized customer code.
	CREATE INDEX IF NOT EXISTS idx_policies_customer_code
		ON policies(customer_national_code);
	CREATE INDEX IF NOT EXISTS idx_policies_policy_number
		ON policies(policy_number);

	CREATE TABLE IF NOT EXISTS installments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL,
		policy_id INTEGER NOT NULL REFERENCES policies(id) ON DELETE CASCADE,
		installment_number INTEGER NOT NULL,
		amount TEXT NOT NULL,
		due_date TEXT NOT NULL,
		status TEXT NOT NULL,
		pay_link TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Sequence numbers are unique within a policy. Recalculation deletes
	-- the unpaid tail before recreating it, inside one transaction.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_installments_policy_seq
		ON installments(policy_id, installment_number);
	CREATE INDEX IF NOT EXISTS idx_installments_customer
		ON installments(customer_id);
	CREATE INDEX IF NOT EXISTS idx_installments_status
		ON installments(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset clears all data. Demo scenarios only, never production.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM installments;
		DELETE FROM policies;
		DELETE FROM customers;`)
	return err
}

// WithTx executes fn within a database transaction. fn receives a store
// bound to that transaction; a returned error rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(store insurance.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries{db: sqlTx}}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is a store bound to an open transaction.
type txStore struct {
	queries
}

// WithTx on a txStore joins the transaction already in flight.
func (ts *txStore) WithTx(ctx context.Context, fn func(store insurance.Store) error) error {
	return fn(ts)
}

// =============================================================================
// QUERIES - shared by Store (direct) and txStore (transactional)
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

func nowStamp() string { return time.Now().UTC().Format(time.RFC3339) }

// =============================================================================
// CUSTOMERS
// =============================================================================

const customerColumns = `id, full_name, national_code, insurance_code, phone, birth_date, score, role, created_at, updated_at`

func (q queries) CreateCustomer(ctx context.Context, c *insurance.Customer) error {
	stamp := nowStamp()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO customers (full_name, national_code, insurance_code, phone, birth_date, score, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.FullName, c.NationalCode, c.InsuranceCode, c.Phone, c.BirthDate,
		defaultString(c.Score, "A"), defaultString(c.Role, "customer"), stamp, stamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (q queries) UpdateCustomer(ctx context.Context, c *insurance.Customer) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE customers
		SET full_name = ?, national_code = ?, insurance_code = ?, phone = ?,
		    birth_date = ?, score = ?, role = ?, updated_at = ?
		WHERE id = ?`,
		c.FullName, c.NationalCode, c.InsuranceCode, c.Phone, c.BirthDate,
		c.Score, c.Role, nowStamp(), c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return nil
}

func (q queries) GetCustomer(ctx context.Context, id int64) (*insurance.Customer, error) {
	return q.getCustomer(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
}

func (q queries) GetCustomerByNationalCode(ctx context.Context, code string) (*insurance.Customer, error) {
	return q.getCustomer(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE national_code = ?`, code)
}

func (q queries) getCustomer(ctx context.Context, query string, args ...any) (*insurance.Customer, error) {
	customers, err := q.queryCustomers(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, engine.ErrCustomerNotFound
	}
	return &customers[0], nil
}

func (q queries) ListCustomers(ctx context.Context) ([]insurance.Customer, error) {
	return q.queryCustomers(ctx,
		`SELECT `+customerColumns+` FROM customers ORDER BY id`)
}

func (q queries) SearchCustomersByName(ctx context.Context, name string) ([]insurance.Customer, error) {
	return q.queryCustomers(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE full_name LIKE ? ORDER BY id`,
		"%"+name+"%")
}

func (q queries) DeleteCustomer(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	return err
}

func (q queries) CountCustomers(ctx context.Context) (int, error) {
	var count int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&count)
	return count, err
}

func (q queries) ReassignPolicies(ctx context.Context, oldCode, newCode string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE policies SET customer_national_code = ?, updated_at = ?
		WHERE customer_national_code = ?`,
		newCode, nowStamp(), oldCode,
	)
	if err != nil {
		return fmt.Errorf("failed to reassign policies: %w", err)
	}
	return nil
}

func (q queries) queryCustomers(ctx context.Context, query string, args ...any) ([]insurance.Customer, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []insurance.Customer
	for rows.Next() {
		var c insurance.Customer
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.FullName, &c.NationalCode, &c.InsuranceCode,
			&c.Phone, &c.BirthDate, &c.Score, &c.Role, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// =============================================================================
// POLICIES
// =============================================================================

const policyColumns = `id, customer_national_code, insurance_type, details, start_date, end_date,
	premium, payment_type, installment_count, installment_type, first_installment_amount,
	payment_id, payment_link, document_path, policy_number, status, created_at, updated_at`

func (q queries) CreatePolicy(ctx context.Context, p *insurance.Policy) error {
	stamp := nowStamp()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO policies (customer_national_code, insurance_type, details, start_date, end_date,
			premium, payment_type, installment_count, installment_type, first_installment_amount,
			payment_id, payment_link, document_path, policy_number, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.CustomerNationalCode, p.InsuranceType, p.Details, p.StartDate, p.EndDate,
		p.Premium.String(), string(p.PaymentType), p.InstallmentCount, string(p.InstallmentType),
		nullDecimal(p.FirstInstallmentAmount),
		p.PaymentID, p.PaymentLink, p.DocumentPath, p.PolicyNumber, string(p.Status), stamp, stamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (q queries) UpdatePolicy(ctx context.Context, p *insurance.Policy) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE policies
		SET customer_national_code = ?, insurance_type = ?, details = ?, start_date = ?, end_date = ?,
		    premium = ?, payment_type = ?, installment_count = ?, installment_type = ?,
		    first_installment_amount = ?, payment_id = ?, payment_link = ?, document_path = ?,
		    policy_number = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		p.CustomerNationalCode, p.InsuranceType, p.Details, p.StartDate, p.EndDate,
		p.Premium.String(), string(p.PaymentType), p.InstallmentCount, string(p.InstallmentType),
		nullDecimal(p.FirstInstallmentAmount), p.PaymentID, p.PaymentLink, p.DocumentPath,
		p.PolicyNumber, string(p.Status), nowStamp(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}
	return nil
}

func (q queries) GetPolicy(ctx context.Context, id int64) (*insurance.Policy, error) {
	policies, err := q.queryPolicies(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(policies) == 0 {
		return nil, engine.ErrPolicyNotFound
	}
	return &policies[0], nil
}

func (q queries) ListPolicies(ctx context.Context) ([]insurance.Policy, error) {
	return q.queryPolicies(ctx,
		`SELECT `+policyColumns+` FROM policies ORDER BY id`)
}

func (q queries) ListPoliciesByNationalCode(ctx context.Context, code string) ([]insurance.Policy, error) {
	return q.queryPolicies(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE customer_national_code = ? ORDER BY id`, code)
}

func (q queries) DeletePolicy(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM policies WHERE id = ?`, id)
	return err
}

func (q queries) CountPolicies(ctx context.Context) (int, error) {
	var count int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM policies`).Scan(&count)
	return count, err
}

func (q queries) PolicyNumberExists(ctx context.Context, policyNumber string) (bool, error) {
	var count int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM policies WHERE policy_number = ?`, policyNumber).Scan(&count)
	return count > 0, err
}

func (q queries) ListPoliciesWithDocumentsBefore(ctx context.Context, cutoff time.Time) ([]insurance.Policy, error) {
	return q.queryPolicies(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE document_path != '' AND created_at < ? ORDER BY id`,
		cutoff.UTC().Format(time.RFC3339))
}

func (q queries) ClearDocumentPath(ctx context.Context, policyID int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE policies SET document_path = '', updated_at = ? WHERE id = ?`,
		nowStamp(), policyID)
	return err
}

func (q queries) queryPolicies(ctx context.Context, query string, args ...any) ([]insurance.Policy, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var policies []insurance.Policy
	for rows.Next() {
		var (
			p           insurance.Policy
			premium     string
			firstAmount sql.NullString
			paymentType string
			variant     string
			status      string
			createdAt   string
			updatedAt   string
		)
		err := rows.Scan(&p.ID, &p.CustomerNationalCode, &p.InsuranceType, &p.Details,
			&p.StartDate, &p.EndDate, &premium, &paymentType, &p.InstallmentCount,
			&variant, &firstAmount, &p.PaymentID, &p.PaymentLink, &p.DocumentPath,
			&p.PolicyNumber, &status, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}

		p.Premium = parseDecimal(premium)
		if firstAmount.Valid {
			p.FirstInstallmentAmount = parseDecimal(firstAmount.String)
		}
		p.PaymentType = engine.PlanType(paymentType)
		p.InstallmentType = engine.Variant(variant)
		p.Status = engine.PolicyStatus(status)
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// =============================================================================
// INSTALLMENTS
// =============================================================================

const installmentColumns = `id, customer_id, policy_id, installment_number, amount, due_date, status, pay_link, created_at, updated_at`

func (q queries) CreateInstallment(ctx context.Context, in *insurance.Installment) error {
	stamp := nowStamp()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO installments (customer_id, policy_id, installment_number, amount, due_date, status, pay_link, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.CustomerID, in.PolicyID, in.Number, in.Amount.String(), in.DueDate,
		string(in.Status), in.PayLink, stamp, stamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create installment: %w", err)
	}
	in.ID, err = res.LastInsertId()
	return err
}

func (q queries) GetInstallment(ctx context.Context, id int64) (*insurance.Installment, error) {
	installments, err := q.queryInstallments(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(installments) == 0 {
		return nil, engine.ErrInstallmentNotFound
	}
	return &installments[0], nil
}

func (q queries) ListInstallments(ctx context.Context) ([]insurance.Installment, error) {
	return q.queryInstallments(ctx,
		`SELECT `+installmentColumns+` FROM installments ORDER BY policy_id, installment_number`)
}

func (q queries) ListInstallmentsByPolicy(ctx context.Context, policyID int64) ([]insurance.Installment, error) {
	return q.queryInstallments(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE policy_id = ? ORDER BY installment_number`,
		policyID)
}

func (q queries) ListInstallmentsByCustomer(ctx context.Context, customerID int64) ([]insurance.Installment, error) {
	return q.queryInstallments(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE customer_id = ? ORDER BY policy_id, installment_number`,
		customerID)
}

func (q queries) ListInstallmentsAfter(ctx context.Context, policyID int64, number int) ([]insurance.Installment, error) {
	return q.queryInstallments(ctx,
		`SELECT `+installmentColumns+` FROM installments
		 WHERE policy_id = ? AND installment_number > ?
		 ORDER BY installment_number`,
		policyID, number)
}

func (q queries) UpdateInstallmentAmount(ctx context.Context, id int64, amount decimal.Decimal, status engine.InstallmentStatus) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE installments SET amount = ?, status = ?, updated_at = ? WHERE id = ?`,
		amount.String(), string(status), nowStamp(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update installment: %w", err)
	}
	return nil
}

func (q queries) DeleteInstallment(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM installments WHERE id = ?`, id)
	return err
}

func (q queries) DeleteInstallmentsByPolicy(ctx context.Context, policyID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM installments WHERE policy_id = ?`, policyID)
	return err
}

func (q queries) queryInstallments(ctx context.Context, query string, args ...any) ([]insurance.Installment, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	var installments []insurance.Installment
	for rows.Next() {
		var (
			in        insurance.Installment
			amount    string
			status    string
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(&in.ID, &in.CustomerID, &in.PolicyID, &in.Number,
			&amount, &in.DueDate, &status, &in.PayLink, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		in.Amount = parseDecimal(amount)
		in.Status = engine.InstallmentStatus(status)
		in.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		in.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		installments = append(installments, in)
	}
	return installments, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// nullDecimal maps a zero first-installment amount to NULL so uniform
// plans do not carry a spurious "0" amount.
func nullDecimal(d decimal.Decimal) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
