package subscription

import (
	"strings"
	"time"
)

type Plan string

// Product is what a premium payment buys.
type Product string

const (
	MonthlyPlan Plan = "monthly"
	YearlyPlan  Plan = "yearly"
)

const (
	// ReportProduct is the one-off estimation report upgrade paid by token.
	ReportProduct Product = "report"
	// SubscriptionProduct is the plan-based premium subscription paid through IPN.
	SubscriptionProduct Product = "subscription"
)

const Day = 24 * time.Hour

type PlanTerms struct {
	Duration time.Duration
	Price    int64
}

// Catalog is the server-held price list. Amounts are integer currency units.
type Catalog struct {
	Currency       string
	ReportPrice    int64
	ReportDuration time.Duration
	Plans          map[Plan]PlanTerms
}

func NewCatalog(currency string, reportPrice, monthlyPrice, yearlyPrice int64) Catalog {
	return Catalog{
		Currency:       currency,
		ReportPrice:    reportPrice,
		ReportDuration: 30 * Day,
		Plans: map[Plan]PlanTerms{
			MonthlyPlan: {Duration: 30 * Day, Price: monthlyPrice},
			YearlyPlan:  {Duration: 365 * Day, Price: yearlyPrice},
		},
	}
}

func (c Catalog) Terms(plan Plan) (PlanTerms, bool) {
	terms, ok := c.Plans[plan]
	return terms, ok
}

// ParsePlan accepts plan names case-insensitively.
func ParsePlan(raw string) (Plan, bool) {
	switch Plan(strings.ToLower(strings.TrimSpace(raw))) {
	case MonthlyPlan:
		return MonthlyPlan, true
	case YearlyPlan:
		return YearlyPlan, true
	default:
		return "", false
	}
}
