/*
store.go - Persistence port for the domain services

PURPOSE:
  Defines the interface between domain services and the database. The
  services hold no state and reach storage only through this port; the
  engine never touches it at all.

ATOMICITY CONTRACT:
  Every schedule mutation (create, recalculate, cascade, policy delete)
  must run inside WithTx: either the whole delete-then-recreate sequence
  for a policy lands, or none of it does. The implementation must also
  serialize writers per policy (the SQLite store is single-writer, which
  satisfies this globally).

IMPLEMENTATIONS:
  - store/sqlite: production implementation

SEE ALSO:
  - policies.go, installments.go, customers.go: the callers
*/
package insurance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/isth3root/bz-exp/engine"
)

// Store is the persistence port for customers, policies and installments.
//
// Get* methods return engine.Err*NotFound sentinels for missing rows.
// ListInstallmentsByPolicy and ListInstallmentsAfter return rows ordered
// by sequence number ascending.
type Store interface {
	// Customers
	CreateCustomer(ctx context.Context, c *Customer) error
	UpdateCustomer(ctx context.Context, c *Customer) error
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	GetCustomerByNationalCode(ctx context.Context, code string) (*Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	SearchCustomersByName(ctx context.Context, name string) ([]Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	CountCustomers(ctx context.Context) (int, error)
	// ReassignPolicies copies a new national code onto every policy
	// referencing the old one (denormalized customer reference).
	ReassignPolicies(ctx context.Context, oldCode, newCode string) error

	// Policies
	CreatePolicy(ctx context.Context, p *Policy) error
	UpdatePolicy(ctx context.Context, p *Policy) error
	GetPolicy(ctx context.Context, id int64) (*Policy, error)
	ListPolicies(ctx context.Context) ([]Policy, error)
	ListPoliciesByNationalCode(ctx context.Context, code string) ([]Policy, error)
	DeletePolicy(ctx context.Context, id int64) error
	CountPolicies(ctx context.Context) (int, error)
	PolicyNumberExists(ctx context.Context, policyNumber string) (bool, error)
	// ListPoliciesWithDocumentsBefore returns policies created before the
	// cutoff that still carry a document path (janitor input).
	ListPoliciesWithDocumentsBefore(ctx context.Context, cutoff time.Time) ([]Policy, error)
	ClearDocumentPath(ctx context.Context, policyID int64) error

	// Installments
	CreateInstallment(ctx context.Context, in *Installment) error
	GetInstallment(ctx context.Context, id int64) (*Installment, error)
	ListInstallments(ctx context.Context) ([]Installment, error)
	ListInstallmentsByPolicy(ctx context.Context, policyID int64) ([]Installment, error)
	ListInstallmentsByCustomer(ctx context.Context, customerID int64) ([]Installment, error)
	ListInstallmentsAfter(ctx context.Context, policyID int64, number int) ([]Installment, error)
	UpdateInstallmentAmount(ctx context.Context, id int64, amount decimal.Decimal, status engine.InstallmentStatus) error
	DeleteInstallment(ctx context.Context, id int64) error
	DeleteInstallmentsByPolicy(ctx context.Context, policyID int64) error

	// WithTx executes fn atomically. fn receives a Store bound to the
	// transaction; returning an error rolls everything back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
