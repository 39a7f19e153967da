/*
customers.go - Customer service

PURPOSE:
  Customer CRUD plus the one piece of real logic: policies reference
  customers by national code, so changing a customer's code copies the
  new code onto all of their policies in the same transaction.
*/
package insurance

import (
	"context"
)

// CustomerService administers customer records.
type CustomerService struct {
	store Store
}

// NewCustomerService creates a customer service.
func NewCustomerService(store Store) *CustomerService {
	return &CustomerService{store: store}
}

func (s *CustomerService) List(ctx context.Context) ([]Customer, error) {
	return s.store.ListCustomers(ctx)
}

func (s *CustomerService) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.store.GetCustomer(ctx, id)
}

func (s *CustomerService) GetByNationalCode(ctx context.Context, code string) (*Customer, error) {
	return s.store.GetCustomerByNationalCode(ctx, code)
}

func (s *CustomerService) SearchByName(ctx context.Context, name string) ([]Customer, error) {
	return s.store.SearchCustomersByName(ctx, name)
}

func (s *CustomerService) Count(ctx context.Context) (int, error) {
	return s.store.CountCustomers(ctx)
}

func (s *CustomerService) Create(ctx context.Context, c *Customer) error {
	return s.store.CreateCustomer(ctx, c)
}

// Update saves the customer and, if the national code changed, repoints
// every policy carrying the old code to the new one atomically.
func (s *CustomerService) Update(ctx context.Context, c *Customer) error {
	existing, err := s.store.GetCustomer(ctx, c.ID)
	if err != nil {
		return err
	}

	return s.store.WithTx(ctx, func(tx Store) error {
		if c.NationalCode != "" && c.NationalCode != existing.NationalCode {
			if err := tx.ReassignPolicies(ctx, existing.NationalCode, c.NationalCode); err != nil {
				return err
			}
		}
		return tx.UpdateCustomer(ctx, c)
	})
}

func (s *CustomerService) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteCustomer(ctx, id)
}
