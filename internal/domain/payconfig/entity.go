package payconfig

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TaxRule is one approved progressive-tax band. Bands are kept mutually
// exclusive by naming convention in the configuration subsystem.
type TaxRule struct {
	ID        string
	Name      string
	RatePct   decimal.Decimal
	MinSalary decimal.Decimal
	MaxSalary decimal.Decimal // zero means open-ended
}

// Contains reports whether base salary falls inside the rule's band.
func (r TaxRule) Contains(baseSalary decimal.Decimal) bool {
	if baseSalary.LessThan(r.MinSalary) {
		return false
	}
	if r.MaxSalary.IsPositive() && baseSalary.GreaterThan(r.MaxSalary) {
		return false
	}
	return true
}

type InsuranceBracket struct {
	ID              string
	Name            string
	MinSalary       decimal.Decimal
	MaxSalary       decimal.Decimal
	EmployeeRatePct decimal.Decimal
	EmployerRatePct decimal.Decimal
}

// Contains reports whether base salary falls inside [MinSalary, MaxSalary].
func (b InsuranceBracket) Contains(baseSalary decimal.Decimal) bool {
	if baseSalary.LessThan(b.MinSalary) {
		return false
	}
	if b.MaxSalary.IsPositive() && baseSalary.GreaterThan(b.MaxSalary) {
		return false
	}
	return true
}

type Allowance struct {
	ID     string
	Name   string
	Amount decimal.Decimal
}

type PayGrade struct {
	ID         string
	Name       string
	BaseSalary decimal.Decimal
}

// Snapshot is the approved configuration frozen at the start of a run so
// the same run stays reproducible even if configuration changes mid-processing.
type Snapshot struct {
	Entity             string
	Period             time.Time
	TaxRules           []TaxRule
	InsuranceBrackets  []InsuranceBracket
	DefaultAllowances  []Allowance
	EmployeeAllowances map[string][]Allowance // approved employee-specific grants
	PayGrades          map[string]PayGrade
	MinimumWage        decimal.Decimal
	SeparationBenefit  decimal.Decimal // configured termination/resignation benefit, zero when none
}

// TaxMatch records which level of the tax-rule fallback chain fired.
type TaxMatch string

const (
	TaxMatchedByBand         TaxMatch = "matched_by_band"
	TaxFallbackFirstApproved TaxMatch = "fallback_first_approved"
	TaxNoRuleZero            TaxMatch = "no_rule_zero_tax"
)

// MatchTaxRule selects the single rule whose band contains base salary,
// falling back to the first approved rule, then to no rule at all. Each
// fallback level is reported so callers can log and tests can assert it.
func (s Snapshot) MatchTaxRule(baseSalary decimal.Decimal) (TaxRule, TaxMatch) {
	for _, rule := range s.TaxRules {
		if rule.Contains(baseSalary) {
			return rule, TaxMatchedByBand
		}
	}
	if len(s.TaxRules) > 0 {
		return s.TaxRules[0], TaxFallbackFirstApproved
	}
	return TaxRule{}, TaxNoRuleZero
}

// MatchInsuranceBracket selects the bracket containing base salary, or none.
func (s Snapshot) MatchInsuranceBracket(baseSalary decimal.Decimal) (InsuranceBracket, bool) {
	for _, bracket := range s.InsuranceBrackets {
		if bracket.Contains(baseSalary) {
			return bracket, true
		}
	}
	return InsuranceBracket{}, false
}

// AllowancesFor returns the employee-specific approved grants when present,
// otherwise the configured defaults.
func (s Snapshot) AllowancesFor(employeeID string) []Allowance {
	if grants, ok := s.EmployeeAllowances[employeeID]; ok && len(grants) > 0 {
		return grants
	}
	return s.DefaultAllowances
}

// SumAllowances totals a set of allowance grants.
func SumAllowances(allowances []Allowance) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allowances {
		total = total.Add(a.Amount)
	}
	return total
}

// DescribeAllowances renders "Transport + Meal" style reasons for payslips.
func DescribeAllowances(allowances []Allowance) string {
	names := make([]string, 0, len(allowances))
	for _, a := range allowances {
		names = append(names, a.Name)
	}
	return strings.Join(names, " + ")
}
