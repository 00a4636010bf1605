package onboarding

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/monite/monite-sdk-go/internal/audit"
	"github.com/monite/monite-sdk-go/internal/monite"
	"github.com/monite/monite-sdk-go/internal/observability/logger"
	"github.com/monite/monite-sdk-go/internal/query"
	"github.com/monite/monite-sdk-go/internal/validation"
)

// defaultMask is used until a currency is selected and no account exists.
var defaultMask = monite.OnboardingBankAccountMask{"country": true, "currency": true}

// BankAccountFlow is the state of the bank account onboarding step.
type BankAccountFlow struct {
	svc *Service

	mu       sync.Mutex
	masks    monite.OnboardingBankAccountMaskResponse
	current  *monite.OnboardingBankAccount
	fields   monite.OnboardingBankAccount
	currency string
}

// BankAccountFlow loads the requirements and the bank account masks and
// starts the step from the first submitted account, or from the default
// mask when none exists.
func (s *Service) BankAccountFlow(ctx context.Context) (*BankAccountFlow, error) {
	var (
		reqs  *monite.OnboardingRequirementsResponse
		masks monite.OnboardingBankAccountMaskResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reqs, err = s.Requirements(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		masks, err = s.BankAccountMasks(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load bank account step: %w", err)
	}

	f := &BankAccountFlow{svc: s, masks: masks}
	if reqs != nil && len(reqs.Data.BankAccounts) > 0 {
		acc := reqs.Data.BankAccounts[0]
		f.current = &acc
		f.fields = acc
	} else {
		f.fields = fieldsByMask(defaultMask)
	}
	return f, nil
}

// Currencies lists the currencies that have a mask, sorted.
func (f *BankAccountFlow) Currencies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.masks))
	for c := range f.masks {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Current returns the account submitted earlier, or nil.
func (f *BankAccountFlow) Current() *monite.OnboardingBankAccount {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil
	}
	acc := *f.current
	return &acc
}

// Fields returns the fields the form currently shows.
func (f *BankAccountFlow) Fields() monite.OnboardingBankAccount {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

// Currency returns the selected currency, or "".
func (f *BankAccountFlow) Currency() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currency
}

// SelectCurrency switches the form to the mask of currency. Unknown
// currencies leave the fields unchanged and report false.
func (f *BankAccountFlow) SelectCurrency(currency string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	mask, ok := f.masks[currency]
	if !ok || mask == nil {
		return false
	}
	f.currency = currency
	f.fields = fieldsByMask(mask)
	return true
}

// PrimaryAction submits the account as the default for its currency,
// deletes the previously submitted account and marks the bank account
// requirement as fulfilled.
func (f *BankAccountFlow) PrimaryAction(ctx context.Context, in monite.CreateEntityBankAccountRequest) (*monite.EntityBankAccountResponse, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	in.IsDefaultForCurrency = true

	s := f.svc
	created, err := query.Mutate(ctx, s.queries, "create_bank_account",
		func(ctx context.Context) (*monite.EntityBankAccountResponse, error) {
			return s.bankAccounts.Create(ctx, in)
		},
		query.MutationOptions[*monite.EntityBankAccountResponse]{},
	)
	if err != nil {
		return nil, fmt.Errorf("create bank account: %w", err)
	}
	s.audit.Log(ctx, audit.Event{
		Type:     audit.TypeBankAccountCreated,
		EntityID: s.entityID,
		Resource: created.ID,
		Metadata: map[string]any{"currency": created.Currency, "country": created.Country},
	})

	f.mu.Lock()
	prev := f.current
	fields := f.fields
	f.mu.Unlock()

	if prev != nil && prev.ID != "" {
		_, err := query.Mutate(ctx, s.queries, "delete_bank_account",
			func(ctx context.Context) (struct{}, error) {
				return struct{}{}, s.bankAccounts.Delete(ctx, prev.ID)
			},
			query.MutationOptions[struct{}]{},
		)
		if err != nil {
			return created, fmt.Errorf("delete previous bank account: %w", err)
		}
		s.audit.Log(ctx, audit.Event{
			Type:     audit.TypeBankAccountReplaced,
			EntityID: s.entityID,
			Resource: created.ID,
			Metadata: map[string]any{"previous": prev.ID},
		})
	}

	submitted := enrichFields(fields, in)
	submitted.ID = created.ID
	if !s.PatchRequirements(ctx, RequirementsPatch{
		Data:         monite.OnboardingData{BankAccounts: []monite.OnboardingBankAccount{submitted}},
		Requirements: []string{monite.OnboardingRequirementBankAccounts},
	}) {
		s.logger.DebugContext(ctx, "no cached requirements to patch", logger.EntityID(s.entityID))
	}

	f.mu.Lock()
	f.current = &submitted
	f.fields = submitted
	f.mu.Unlock()
	return created, nil
}

// fieldsByMask returns empty fields for every masked-in name.
func fieldsByMask(mask monite.OnboardingBankAccountMask) monite.OnboardingBankAccount {
	var acc monite.OnboardingBankAccount
	for name, required := range mask {
		if !required {
			continue
		}
		if p := fieldRef(&acc, name); p != nil {
			*p = &monite.OnboardingField{}
		}
	}
	return acc
}

// enrichFields copies the submitted values into the fields shown.
func enrichFields(fields monite.OnboardingBankAccount, in monite.CreateEntityBankAccountRequest) monite.OnboardingBankAccount {
	values := map[string]string{
		"account_holder_name": in.AccountHolderName,
		"account_number":      in.AccountNumber,
		"bic":                 in.Bic,
		"country":             in.Country,
		"currency":            in.Currency,
		"iban":                in.Iban,
		"routing_number":      in.RoutingNumber,
		"sort_code":           in.SortCode,
	}
	out := fields
	for name, v := range values {
		p := fieldRef(&out, name)
		if p == nil || *p == nil {
			continue
		}
		*p = &monite.OnboardingField{Value: v}
	}
	return out
}

func fieldRef(acc *monite.OnboardingBankAccount, name string) **monite.OnboardingField {
	switch name {
	case "account_holder_name":
		return &acc.AccountHolderName
	case "account_number":
		return &acc.AccountNumber
	case "bic":
		return &acc.Bic
	case "country":
		return &acc.Country
	case "currency":
		return &acc.Currency
	case "iban":
		return &acc.Iban
	case "routing_number":
		return &acc.RoutingNumber
	case "sort_code":
		return &acc.SortCode
	}
	return nil
}
