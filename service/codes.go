package service

import (
	"github.com/AnTengye/creditreport/config"
	"github.com/AnTengye/creditreport/model"
)

// Portfolio classes used by the report summary
const (
	PortfolioSecured   = "secured"
	PortfolioUnsecured = "unsecured"
)

// CodeTables maps bureau codes to labels. Account type and account status
// codes live in separate tables on purpose: the bureau reuses 53 for both
// "Home Loan" and an active status.
type CodeTables struct {
	accountTypes    map[string]string
	accountStatuses map[string]string
	portfolioTypes  map[string]string
}

// DefaultCodeTables returns the tables for the Experian codes seen so far
func DefaultCodeTables() CodeTables {
	return CodeTables{
		accountTypes: map[string]string{
			"10": "Credit Card",
			"51": "Personal Loan",
			"52": "Auto Loan",
			"53": "Home Loan",
		},
		accountStatuses: map[string]string{
			"11": model.StatusActive,
			"13": model.StatusClosed,
			"53": model.StatusActive,
			"71": model.StatusActive,
		},
		portfolioTypes: map[string]string{
			"R": PortfolioSecured,
			"I": PortfolioUnsecured,
		},
	}
}

// NewCodeTables starts from the defaults and applies the configured
// overrides. A nil config yields the defaults.
func NewCodeTables(cfg *config.CodesConfig) CodeTables {
	t := DefaultCodeTables()
	if cfg == nil {
		return t
	}
	for code, label := range cfg.AccountTypes {
		t.accountTypes[code] = label
	}
	for code, label := range cfg.AccountStatuses {
		t.accountStatuses[code] = label
	}
	for code, class := range cfg.PortfolioTypes {
		t.portfolioTypes[code] = class
	}
	return t
}

// AccountType labels an account type code, "Type <code>" when unmapped
func (t CodeTables) AccountType(code string) string {
	if code == "" {
		return model.NotAvailable
	}
	if label, ok := t.accountTypes[code]; ok {
		return label
	}
	return "Type " + code
}

// AccountStatus labels an account status code, "Unknown" when unmapped
func (t CodeTables) AccountStatus(code string) string {
	if label, ok := t.accountStatuses[code]; ok {
		return label
	}
	return model.StatusUnknown
}

// Portfolio returns PortfolioSecured, PortfolioUnsecured or "" for a
// portfolio type code.
func (t CodeTables) Portfolio(code string) string {
	return t.portfolioTypes[code]
}
