/*
handlers.go - HTTP API handlers for the policy administration system

PURPOSE:
  Exposes the insurance domain services via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/auth/login                        Obtain a bearer token

  Admin (role "admin"):
    GET    /api/admin/customers                   List/search customers
    POST   /api/admin/customers                   Create customer
    GET    /api/admin/customers/{id}              Get customer
    PUT    /api/admin/customers/{id}              Update customer (propagates code change)
    DELETE /api/admin/customers/{id}              Delete customer
    GET    /api/admin/policies                    List policies (derived status)
    POST   /api/admin/policies                    Create policy + schedule
    GET    /api/admin/policies/{id}               Get policy
    PUT    /api/admin/policies/{id}               Update policy (recalculates tail)
    DELETE /api/admin/policies/{id}               Delete policy + installments
    GET    /api/admin/policies/number-exists      Policy number uniqueness probe
    GET    /api/admin/installments                Recomputed dashboard projection
    POST   /api/admin/installments                Create installment by hand
    GET    /api/admin/installments/{id}           Get stored installment
    PUT    /api/admin/installments/{id}/payment   Record payment (cascade)
    DELETE /api/admin/installments/{id}           Delete installment
    GET    /api/admin/dashboard                   Counters

  Customer (any authenticated role):
    GET    /api/customer/policies                 Own policies
    GET    /api/customer/installments             Own stored installments

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing/invalid token
  - 403: Role mismatch
  - 404: Resource not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Token issuance and role gates
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/isth3root/bz-exp/engine"
	"github.com/isth3root/bz-exp/insurance"
	"github.com/isth3root/bz-exp/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Customers    *insurance.CustomerService
	Policies     *insurance.PolicyService
	Installments *insurance.InstallmentService

	store *sqlite.Store
	now   func() time.Time

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler backed by the given store. A nil
// clock defaults to time.Now.
func NewHandler(store *sqlite.Store, clock func() time.Time) *Handler {
	if clock == nil {
		clock = time.Now
	}
	return &Handler{
		Customers:    insurance.NewCustomerService(store),
		Policies:     insurance.NewPolicyService(store, clock),
		Installments: insurance.NewInstallmentService(store, clock),
		store:        store,
		now:          clock,
	}
}

// =============================================================================
// CUSTOMER HANDLERS (admin)
// =============================================================================

// ListCustomers returns all customers, optionally filtered by ?name=.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	var (
		customers []insurance.Customer
		err       error
	)
	if name := r.URL.Query().Get("name"); name != "" {
		customers, err = h.Customers.SearchByName(r.Context(), name)
	} else {
		customers, err = h.Customers.List(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list customers", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTOs(customers))
}

// GetCustomer returns a single customer.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}

	customer, err := h.Customers.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*customer))
}

// CreateCustomer creates a new customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.FullName == "" || req.NationalCode == "" {
		writeError(w, http.StatusBadRequest, "full_name and national_code are required", nil)
		return
	}

	customer := &insurance.Customer{
		FullName:      req.FullName,
		NationalCode:  req.NationalCode,
		InsuranceCode: req.InsuranceCode,
		Phone:         req.Phone,
		BirthDate:     req.BirthDate,
		Score:         req.Score,
	}
	if err := h.Customers.Create(r.Context(), customer); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(*customer))
}

// UpdateCustomer updates a customer. A national code change is copied
// onto all of their policies in the same transaction.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}

	var req CustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	existing, err := h.Customers.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get customer", err)
		return
	}

	existing.FullName = req.FullName
	if req.NationalCode != "" {
		existing.NationalCode = req.NationalCode
	}
	existing.InsuranceCode = req.InsuranceCode
	existing.Phone = req.Phone
	existing.BirthDate = req.BirthDate
	if req.Score != "" {
		existing.Score = req.Score
	}

	if err := h.Customers.Update(r.Context(), existing); err != nil {
		writeDomainError(w, "Failed to update customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*existing))
}

// DeleteCustomer deletes a customer record.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}
	if err := h.Customers.Delete(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete customer", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// POLICY HANDLERS (admin)
// =============================================================================

// ListPolicies returns all policies with derived statuses.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Policies.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list policies", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTOs(policies))
}

// GetPolicy returns a single policy with its stored installments.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}

	policy, err := h.Policies.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get policy", err)
		return
	}

	installments, err := h.Installments.ListByPolicy(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list installments", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"policy":       toPolicyDTO(*policy),
		"installments": toInstallmentDTOs(installments),
	})
}

// CreatePolicy creates a policy and, for installment plans, its schedule.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	policy, err := req.toPolicy()
	if err != nil {
		writeDomainError(w, "Invalid policy", err)
		return
	}

	if err := h.Policies.Create(r.Context(), policy); err != nil {
		writeDomainError(w, "Failed to create policy", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPolicyDTO(*policy))
}

// UpdatePolicy updates a policy; financial changes recalculate the
// unpaid schedule tail.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}

	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	policy, err := req.toPolicy()
	if err != nil {
		writeDomainError(w, "Invalid policy", err)
		return
	}
	policy.ID = id

	if err := h.Policies.Update(r.Context(), policy); err != nil {
		writeDomainError(w, "Failed to update policy", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(*policy))
}

// DeletePolicy deletes a policy and its installments.
func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}
	if err := h.Policies.Delete(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete policy", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// PolicyNumberExists probes whether ?number= is already taken.
func (h *Handler) PolicyNumberExists(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("number")
	if number == "" {
		writeError(w, http.StatusBadRequest, "number query parameter is required", nil)
		return
	}
	exists, err := h.Policies.NumberExists(r.Context(), number)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check policy number", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// =============================================================================
// INSTALLMENT HANDLERS (admin)
// =============================================================================

// ListInstallmentProjections returns the recomputed dashboard rows.
func (h *Handler) ListInstallmentProjections(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Policies.ProjectInstallments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to project installments", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectionDTOs(rows))
}

// GetInstallment returns one stored installment.
func (h *Handler) GetInstallment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}
	in, err := h.Installments.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get installment", err)
		return
	}
	writeJSON(w, http.StatusOK, toInstallmentDTO(*in))
}

// CreateInstallment records a manually entered installment.
func (h *Handler) CreateInstallment(w http.ResponseWriter, r *http.Request) {
	var req CreateInstallmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	in := &insurance.Installment{
		CustomerID: req.CustomerID,
		PolicyID:   req.PolicyID,
		Number:     req.Number,
		Amount:     amount,
		DueDate:    req.DueDate,
		PayLink:    req.PayLink,
	}
	if err := h.Installments.Create(r.Context(), in); err != nil {
		writeDomainError(w, "Failed to create installment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toInstallmentDTO(*in))
}

// RecordPayment edits an installment's amount; overpayments cascade to
// later installments of the same policy.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	in, err := h.Installments.RecordPayment(r.Context(), id, amount)
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toInstallmentDTO(*in))
}

// DeleteInstallment removes one installment row.
func (h *Handler) DeleteInstallment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}
	if err := h.Installments.Delete(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete installment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// DASHBOARD (admin)
// =============================================================================

// Dashboard returns the admin landing-page counters.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	customers, err := h.Customers.Count(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count customers", err)
		return
	}
	policies, err := h.Policies.Count(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count policies", err)
		return
	}
	nearExpiryPolicies, err := h.Policies.NearExpiryCount(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count near-expiry policies", err)
		return
	}
	overdue, err := h.Installments.OverdueCount(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count overdue installments", err)
		return
	}
	nearExpiryInstallments, err := h.Installments.NearExpiryCount(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count near-expiry installments", err)
		return
	}

	writeJSON(w, http.StatusOK, DashboardDTO{
		Customers:              customers,
		Policies:               policies,
		PoliciesNearExpiry:     nearExpiryPolicies,
		InstallmentsOverdue:    overdue,
		InstallmentsNearExpiry: nearExpiryInstallments,
	})
}

// =============================================================================
// CUSTOMER-FACING HANDLERS
// =============================================================================

// MyPolicies returns the authenticated customer's policies.
func (h *Handler) MyPolicies(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	policies, err := h.Policies.ListByNationalCode(r.Context(), claims.NationalCode)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list policies", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTOs(policies))
}

// MyInstallments returns the authenticated customer's stored installments.
func (h *Handler) MyInstallments(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	installments, err := h.Installments.ListByCustomer(r.Context(), claims.CustomerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list installments", err)
		return
	}
	writeJSON(w, http.StatusOK, toInstallmentDTOs(installments))
}

// =============================================================================
// HELPERS
// =============================================================================

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain error classes to HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
