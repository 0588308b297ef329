package entitlement

import (
	"fmt"

	"github.com/teachlink/client-core/internal/domain"
)

// Store product identifiers. These must match the products configured in App
// Store Connect and the Play Console exactly.
const (
	ProductProMonthly     = "com.teachlink.subscription.pro.monthly"
	ProductProAnnual      = "com.teachlink.subscription.pro.annual"
	ProductPremiumMonthly = "com.teachlink.subscription.premium.monthly"
	ProductPremiumAnnual  = "com.teachlink.subscription.premium.annual"
	ProductCourseBundle   = "com.teachlink.course.bundle.starter"
)

// CourseBundlePrice is the one-time starter bundle price in USD.
const CourseBundlePrice = 29.99

// SubscriptionPlans is the static product catalogue, used as the source of
// truth when the store connection cannot supply localised product data.
var SubscriptionPlans = []domain.SubscriptionPlan{
	{
		ID:        "pro_monthly",
		ProductID: ProductProMonthly,
		Name:      "Pro",
		Tier:      domain.TierPro,
		Price:     9.99,
		Currency:  "USD",
		Period:    domain.PeriodMonthly,
		TrialDays: 7,
		Features: []string{
			"Access all 500+ courses",
			"Offline downloads",
			"Completion certificates",
			"Priority support",
			"No ads",
		},
	},
	{
		ID:        "pro_annual",
		ProductID: ProductProAnnual,
		Name:      "Pro Annual",
		Tier:      domain.TierPro,
		Price:     79.99,
		Currency:  "USD",
		Period:    domain.PeriodAnnual,
		TrialDays: 14,
		Savings:   "Save 33%",
		Features: []string{
			"Access all 500+ courses",
			"Offline downloads",
			"Completion certificates",
			"Priority support",
			"No ads",
			"33% savings vs monthly",
		},
	},
	{
		ID:        "premium_monthly",
		ProductID: ProductPremiumMonthly,
		Name:      "Premium",
		Tier:      domain.TierPremium,
		Price:     19.99,
		Currency:  "USD",
		Period:    domain.PeriodMonthly,
		TrialDays: 7,
		Features: []string{
			"Everything in Pro",
			"Live sessions with instructors",
			"Personalised learning path",
			"Exclusive premium content",
			"Early access to new courses",
		},
	},
	{
		ID:        "premium_annual",
		ProductID: ProductPremiumAnnual,
		Name:      "Premium Annual",
		Tier:      domain.TierPremium,
		Price:     159.99,
		Currency:  "USD",
		Period:    domain.PeriodAnnual,
		TrialDays: 14,
		Savings:   "Save 33%",
		Features: []string{
			"Everything in Pro",
			"Live sessions with instructors",
			"Personalised learning path",
			"Exclusive premium content",
			"Early access to new courses",
			"33% savings vs monthly",
		},
	},
}

// FindPlan resolves a store product identifier against the catalogue.
func FindPlan(productID string) (domain.SubscriptionPlan, bool) {
	for _, plan := range SubscriptionPlans {
		if plan.ProductID == productID {
			return plan, true
		}
	}
	return domain.SubscriptionPlan{}, false
}

// GetProducts returns the catalogue entries matching the requested product
// identifiers, preserving catalogue order.
func GetProducts(productIDs []string) []domain.SubscriptionPlan {
	want := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		want[id] = true
	}
	var plans []domain.SubscriptionPlan
	for _, plan := range SubscriptionPlans {
		if want[plan.ProductID] {
			plans = append(plans, plan)
		}
	}
	return plans
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// FormatPrice renders an amount for display, e.g. "$9.99" or "79.99 SEK".
func FormatPrice(amount float64, currency string) string {
	if symbol, ok := currencySymbols[currency]; ok {
		return fmt.Sprintf("%s%.2f", symbol, amount)
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}
