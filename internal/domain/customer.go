package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Location struct {
	Country string `json:"country"`
	City    string `json:"city"`
	State   string `json:"state"`
	Street  string `json:"street"`
}

// Address formats the location as a single shipping line, skipping blanks.
func (l Location) Address() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{l.Street, l.City, l.State, l.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type TraderProfile struct {
	UserID         string          `json:"user_id"`
	CompanyName    string          `json:"company_name"`
	VATNumber      string          `json:"vat_number"`
	Website        string          `json:"website"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	Approved       bool            `json:"approved"`
}
