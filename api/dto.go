/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ON THE WIRE:
  Amounts travel as decimal strings ("12000", "3333.34"). Handlers parse
  them with shopspring/decimal; nothing is ever a float64.

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/isth3root/bz-exp/engine"
	"github.com/isth3root/bz-exp/insurance"
)

// =============================================================================
// AUTH
// =============================================================================

// LoginRequest is the request to obtain a token.
type LoginRequest struct {
	NationalCode string `json:"national_code"`
	Phone        string `json:"phone"`
}

// LoginResponse carries the signed token and the authenticated identity.
type LoginResponse struct {
	Token    string      `json:"token"`
	Role     string      `json:"role"`
	Customer CustomerDTO `json:"customer"`
}

// =============================================================================
// CUSTOMERS
// =============================================================================

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID            int64  `json:"id"`
	FullName      string `json:"full_name"`
	NationalCode  string `json:"national_code"`
	InsuranceCode string `json:"insurance_code,omitempty"`
	Phone         string `json:"phone,omitempty"`
	BirthDate     string `json:"birth_date,omitempty"`
	Score         string `json:"score"`
	Role          string `json:"role"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// CustomerRequest is the request to create or update a customer.
type CustomerRequest struct {
	FullName      string `json:"full_name"`
	NationalCode  string `json:"national_code"`
	InsuranceCode string `json:"insurance_code"`
	Phone         string `json:"phone"`
	BirthDate     string `json:"birth_date"`
	Score         string `json:"score"`
}

// =============================================================================
// POLICIES
// =============================================================================

// PolicyDTO represents a policy in API responses.
type PolicyDTO struct {
	ID                     int64  `json:"id"`
	CustomerNationalCode   string `json:"customer_national_code"`
	InsuranceType          string `json:"insurance_type"`
	Details                string `json:"details,omitempty"`
	StartDate              string `json:"start_date"`
	EndDate                string `json:"end_date"`
	Premium                string `json:"premium"`
	PaymentType            string `json:"payment_type"`
	InstallmentCount       int    `json:"installment_count,omitempty"`
	InstallmentType        string `json:"installment_type,omitempty"`
	FirstInstallmentAmount string `json:"first_installment_amount,omitempty"`
	PaymentID              string `json:"payment_id,omitempty"`
	PaymentLink            string `json:"payment_link,omitempty"`
	DocumentPath           string `json:"document_path,omitempty"`
	PolicyNumber           string `json:"policy_number,omitempty"`
	Status                 string `json:"status"`
	CreatedAt              string `json:"created_at,omitempty"`
}

// PolicyRequest is the request to create or update a policy.
type PolicyRequest struct {
	CustomerNationalCode   string `json:"customer_national_code"`
	InsuranceType          string `json:"insurance_type"`
	Details                string `json:"details"`
	StartDate              string `json:"start_date"`
	EndDate                string `json:"end_date"`
	Premium                string `json:"premium"`
	PaymentType            string `json:"payment_type"`
	InstallmentCount       int    `json:"installment_count"`
	InstallmentType        string `json:"installment_type"`
	FirstInstallmentAmount string `json:"first_installment_amount"`
	PaymentID              string `json:"payment_id"`
	PaymentLink            string `json:"payment_link"`
	DocumentPath           string `json:"document_path"`
	PolicyNumber           string `json:"policy_number"`
	Status                 string `json:"status"`
}

// =============================================================================
// INSTALLMENTS
// =============================================================================

// InstallmentDTO represents a stored installment in API responses.
type InstallmentDTO struct {
	ID         int64  `json:"id"`
	CustomerID int64  `json:"customer_id"`
	PolicyID   int64  `json:"policy_id"`
	Number     int    `json:"number"`
	Amount     string `json:"amount"`
	DueDate    string `json:"due_date"`
	Status     string `json:"status"`
	PayLink    string `json:"pay_link,omitempty"`
}

// InstallmentProjectionDTO is a recomputed dashboard row. Its id is a
// synthetic "policyID-number" pair, not a database id.
type InstallmentProjectionDTO struct {
	ID                   string `json:"id"`
	CustomerName         string `json:"customer_name"`
	CustomerNationalCode string `json:"customer_national_code"`
	PolicyType           string `json:"policy_type"`
	Amount               string `json:"amount"`
	DueDate              string `json:"due_date"`
	Status               string `json:"status"`
	PolicyID             int64  `json:"policy_id"`
	Number               int    `json:"number"`
}

// CreateInstallmentRequest is the request to record an installment by hand.
type CreateInstallmentRequest struct {
	CustomerID int64  `json:"customer_id"`
	PolicyID   int64  `json:"policy_id"`
	Number     int    `json:"number"`
	Amount     string `json:"amount"`
	DueDate    string `json:"due_date"`
	PayLink    string `json:"pay_link"`
}

// PaymentRequest edits an installment's amount; upward edits cascade.
type PaymentRequest struct {
	Amount string `json:"amount"`
}

// =============================================================================
// DASHBOARD + ERRORS
// =============================================================================

// DashboardDTO carries the admin landing-page counters.
type DashboardDTO struct {
	Customers              int `json:"customers"`
	Policies               int `json:"policies"`
	PoliciesNearExpiry     int `json:"policies_near_expiry"`
	InstallmentsOverdue    int `json:"installments_overdue"`
	InstallmentsNearExpiry int `json:"installments_near_expiry"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toCustomerDTO(c insurance.Customer) CustomerDTO {
	return CustomerDTO{
		ID:            c.ID,
		FullName:      c.FullName,
		NationalCode:  c.NationalCode,
		InsuranceCode: c.InsuranceCode,
		Phone:         c.Phone,
		BirthDate:     c.BirthDate,
		Score:         c.Score,
		Role:          c.Role,
		CreatedAt:     formatStamp(c.CreatedAt),
	}
}

func toCustomerDTOs(customers []insurance.Customer) []CustomerDTO {
	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	return dtos
}

func toPolicyDTO(p insurance.Policy) PolicyDTO {
	dto := PolicyDTO{
		ID:                   p.ID,
		CustomerNationalCode: p.CustomerNationalCode,
		InsuranceType:        p.InsuranceType,
		Details:              p.Details,
		StartDate:            p.StartDate,
		EndDate:              p.EndDate,
		Premium:              p.Premium.String(),
		PaymentType:          string(p.PaymentType),
		InstallmentCount:     p.InstallmentCount,
		InstallmentType:      string(p.InstallmentType),
		PaymentID:            p.PaymentID,
		PaymentLink:          p.PaymentLink,
		DocumentPath:         p.DocumentPath,
		PolicyNumber:         p.PolicyNumber,
		Status:               string(p.Status),
		CreatedAt:            formatStamp(p.CreatedAt),
	}
	if !p.FirstInstallmentAmount.IsZero() {
		dto.FirstInstallmentAmount = p.FirstInstallmentAmount.String()
	}
	return dto
}

func toPolicyDTOs(policies []insurance.Policy) []PolicyDTO {
	dtos := make([]PolicyDTO, len(policies))
	for i, p := range policies {
		dtos[i] = toPolicyDTO(p)
	}
	return dtos
}

func toInstallmentDTO(in insurance.Installment) InstallmentDTO {
	return InstallmentDTO{
		ID:         in.ID,
		CustomerID: in.CustomerID,
		PolicyID:   in.PolicyID,
		Number:     in.Number,
		Amount:     in.Amount.String(),
		DueDate:    in.DueDate,
		Status:     string(in.Status),
		PayLink:    in.PayLink,
	}
}

func toInstallmentDTOs(installments []insurance.Installment) []InstallmentDTO {
	dtos := make([]InstallmentDTO, len(installments))
	for i, in := range installments {
		dtos[i] = toInstallmentDTO(in)
	}
	return dtos
}

func toProjectionDTOs(rows []insurance.InstallmentProjection) []InstallmentProjectionDTO {
	dtos := make([]InstallmentProjectionDTO, len(rows))
	for i, row := range rows {
		dtos[i] = InstallmentProjectionDTO{
			ID:                   row.ID,
			CustomerName:         row.CustomerName,
			CustomerNationalCode: row.CustomerNationalCode,
			PolicyType:           row.PolicyType,
			Amount:               row.Amount.String(),
			DueDate:              row.DueDate,
			Status:               string(row.Status),
			PolicyID:             row.PolicyID,
			Number:               row.Number,
		}
	}
	return dtos
}

func (req PolicyRequest) toPolicy() (*insurance.Policy, error) {
	premium, err := decimal.NewFromString(req.Premium)
	if err != nil {
		return nil, &engine.ValidationError{Field: "premium", Reason: "not a decimal number"}
	}
	firstAmount := decimal.Zero
	if req.FirstInstallmentAmount != "" {
		firstAmount, err = decimal.NewFromString(req.FirstInstallmentAmount)
		if err != nil {
			return nil, &engine.ValidationError{Field: "first_installment_amount", Reason: "not a decimal number"}
		}
	}
	return &insurance.Policy{
		CustomerNationalCode:   req.CustomerNationalCode,
		InsuranceType:          req.InsuranceType,
		Details:                req.Details,
		StartDate:              req.StartDate,
		EndDate:                req.EndDate,
		Premium:                premium,
		PaymentType:            engine.PlanType(req.PaymentType),
		InstallmentCount:       req.InstallmentCount,
		InstallmentType:        engine.Variant(req.InstallmentType),
		FirstInstallmentAmount: firstAmount,
		PaymentID:              req.PaymentID,
		PaymentLink:            req.PaymentLink,
		DocumentPath:           req.DocumentPath,
		PolicyNumber:           req.PolicyNumber,
		Status:                 engine.PolicyStatus(req.Status),
	}, nil
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
