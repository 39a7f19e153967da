/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with realistic
  data for testing and demos. Each scenario creates customers, policies
  and the schedules the services derive from them.

AVAILABLE SCENARIOS:
  small-agency:     An admin plus a handful of customers with mixed
                    cash and installment policies
  overdue-book:     Customers with backdated policies so the dashboard
                    shows overdue installments
  prepayment-plans: Policies using the fixed-first-installment variant

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create the admin account and demo customers
 3. Create policies through the policy service, which builds schedules

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "small-agency"}

NOTE:
  Scenarios reset the database. Only use in development/demo
  environments.

SEE ALSO:
  - handlers.go: Handler wiring
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/isth3root/bz-exp/engine"
	"github.com/isth3root/bz-exp/insurance"
	"github.com/isth3root/bz-exp/jalali"
)

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "small-agency",
		Name:        "Small Agency",
		Description: "An admin plus three customers with mixed cash and installment policies",
	},
	{
		ID:          "overdue-book",
		Name:        "Overdue Book",
		Description: "Backdated installment policies so overdue counters light up",
	},
	{
		ID:          "prepayment-plans",
		Name:        "Prepayment Plans",
		Description: "Fixed-first-installment policies with the remainder split evenly",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "small-agency":
		err = h.loadSmallAgencyScenario(ctx)
	case "overdue-book":
		err = h.loadOverdueBookScenario(ctx)
	case "prepayment-plans":
		err = h.loadPrepaymentPlansScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) seedAdmin(ctx context.Context) error {
	admin := &insurance.Customer{
		FullName:     "Agency Admin",
		NationalCode: "0000000000",
		Phone:        "09120000000",
		Role:         "admin",
	}
	return h.Customers.Create(ctx, admin)
}

func (h *Handler) seedCustomers(ctx context.Context, names []string) error {
	for i, name := range names {
		c := &insurance.Customer{
			FullName:     name,
			NationalCode: fmt.Sprintf("00%08d", i+1),
			Phone:        fmt.Sprintf("0912%07d", i+1),
		}
		if err := h.Customers.Create(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadSmallAgencyScenario(ctx context.Context) error {
	if err := h.seedAdmin(ctx); err != nil {
		return err
	}
	if err := h.seedCustomers(ctx, []string{"Ali Rezaei", "Sara Mohammadi", "Reza Karimi"}); err != nil {
		return err
	}

	today := jalali.FromTime(h.now())

	// Cash policy for the first customer.
	cash := &insurance.Policy{
		CustomerNationalCode: "0000000001",
		InsuranceType:        "life",
		StartDate:            today.String(),
		Premium:              decimal.NewFromInt(8000),
		PaymentType:          engine.PlanCash,
		PolicyNumber:         "LF-1001",
	}
	if err := h.Policies.Create(ctx, cash); err != nil {
		return err
	}

	// Installment policies for the others.
	for i, code := range []string{"0000000002", "0000000003"} {
		p := &insurance.Policy{
			CustomerNationalCode: code,
			InsuranceType:        "third-party",
			StartDate:            today.String(),
			Premium:              decimal.NewFromInt(int64(12000 * (i + 1))),
			PaymentType:          engine.PlanInstallment,
			InstallmentCount:     6,
			InstallmentType:      engine.VariantUniform,
			PolicyNumber:         fmt.Sprintf("TP-%d", 2001+i),
		}
		if err := h.Policies.Create(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadOverdueBookScenario(ctx context.Context) error {
	if err := h.seedAdmin(ctx); err != nil {
		return err
	}
	if err := h.seedCustomers(ctx, []string{"Maryam Ahmadi", "Hossein Gholami"}); err != nil {
		return err
	}

	// Start six months back so several installments are already due.
	start := jalali.FromTime(h.now()).AddMonths(-6)

	for i, code := range []string{"0000000001", "0000000002"} {
		p := &insurance.Policy{
			CustomerNationalCode: code,
			InsuranceType:        "car-body",
			StartDate:            start.String(),
			Premium:              decimal.NewFromInt(int64(24000 + 6000*i)),
			PaymentType:          engine.PlanInstallment,
			InstallmentCount:     12,
			InstallmentType:      engine.VariantUniform,
			PolicyNumber:         fmt.Sprintf("CB-%d", 3001+i),
		}
		if err := h.Policies.Create(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadPrepaymentPlansScenario(ctx context.Context) error {
	if err := h.seedAdmin(ctx); err != nil {
		return err
	}
	if err := h.seedCustomers(ctx, []string{"Niloofar Sadeghi"}); err != nil {
		return err
	}

	today := jalali.FromTime(h.now())
	p := &insurance.Policy{
		CustomerNationalCode:   "0000000001",
		InsuranceType:          "fire",
		StartDate:              today.String(),
		Premium:                decimal.NewFromInt(50000),
		PaymentType:            engine.PlanInstallment,
		InstallmentCount:       10,
		InstallmentType:        engine.VariantPrepayment,
		FirstInstallmentAmount: decimal.NewFromInt(14000),
		PolicyNumber:           "FR-4001",
	}
	return h.Policies.Create(ctx, p)
}
