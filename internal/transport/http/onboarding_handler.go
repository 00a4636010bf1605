package http

import (
	"net/http"

	"github.com/monite/monite-sdk-go/internal/monite"
)

// BankAccountStepResponse is the state of the bank account onboarding step
type BankAccountStepResponse struct {
	Currencies []string                      `json:"currencies"`
	Currency   string                        `json:"currency,omitempty"`
	Current    *monite.OnboardingBankAccount `json:"current,omitempty"`
	Fields     monite.OnboardingBankAccount  `json:"fields"`
}

// GetOnboardingRequirements returns the outstanding onboarding requirements
func (h *Handler) GetOnboardingRequirements(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.deps.Onboarding.Requirements(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reqs)
}

// GetPersonMask returns the person fields for ?relationships=...&country=
func (h *Handler) GetPersonMask(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mask, err := h.deps.Onboarding.PersonMask(r.Context(), q["relationships"], q.Get("country"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, mask)
}

// GetBankAccountStep returns the bank account form, switched to ?currency=
// when given
func (h *Handler) GetBankAccountStep(w http.ResponseWriter, r *http.Request) {
	flow, err := h.deps.Onboarding.BankAccountFlow(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if c := r.URL.Query().Get("currency"); c != "" && !flow.SelectCurrency(c) {
		respondError(w, http.StatusBadRequest, "unsupported currency")
		return
	}

	respondJSON(w, http.StatusOK, BankAccountStepResponse{
		Currencies: flow.Currencies(),
		Currency:   flow.Currency(),
		Current:    flow.Current(),
		Fields:     flow.Fields(),
	})
}

// SubmitBankAccount submits the bank account step
func (h *Handler) SubmitBankAccount(w http.ResponseWriter, r *http.Request) {
	var req monite.CreateEntityBankAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flow, err := h.deps.Onboarding.BankAccountFlow(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	flow.SelectCurrency(req.Currency)

	created, err := flow.PrimaryAction(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}
