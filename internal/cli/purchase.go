package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teachlink/client-core/internal/app"
	"github.com/teachlink/client-core/internal/domain"
	"github.com/teachlink/client-core/internal/entitlement"
)

func newProductsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List the subscription catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run("Loading catalogue", func(ctx context.Context, a *app.App) ([]string, error) {
				var details []string
				for _, plan := range entitlement.SubscriptionPlans {
					line := fmt.Sprintf("%-34s %s %s/%s", plan.ProductID,
						entitlement.FormatPrice(plan.Price, plan.Currency), plan.Tier, plan.Period)
					if plan.TrialDays > 0 {
						line += fmt.Sprintf(" (%d-day trial)", plan.TrialDays)
					}
					details = append(details, line)
				}
				details = append(details, fmt.Sprintf("%-34s %s one-time", entitlement.ProductCourseBundle,
					entitlement.FormatPrice(entitlement.CourseBundlePrice, "USD")))
				return details, nil
			})
		},
	}
}

func newPurchaseCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "purchase <product-id>",
		Short: "Buy a subscription plan or the course bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID := args[0]
			return opts.run("Purchasing "+productID, func(ctx context.Context, a *app.App) ([]string, error) {
				var record *domain.PurchaseRecord
				var err error
				if productID == entitlement.ProductCourseBundle {
					record, err = a.Entitlement.PurchaseProduct(ctx, productID)
				} else {
					record, err = a.Entitlement.PurchaseSubscription(ctx, productID)
				}
				if err != nil {
					return nil, err
				}
				if record == nil {
					return []string{"purchase cancelled"}, nil
				}
				details := []string{
					fmt.Sprintf("charged %s (%s)", entitlement.FormatPrice(record.Amount, record.Currency), record.TransactionID),
				}
				if record.ExpiresAt != nil {
					details = append(details, "renews "+record.ExpiresAt.Format("2006-01-02"))
				}
				details = append(details, "tier: "+string(a.Entitlement.SubscriptionTier(ctx)))
				return details, nil
			})
		},
	}
}

func newRestoreCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Restore previous purchases from the local ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run("Restoring purchases", func(ctx context.Context, a *app.App) ([]string, error) {
				count, err := a.Entitlement.RestorePurchases(ctx)
				if err != nil {
					return nil, err
				}
				if count == 0 {
					return []string{"nothing to restore"}, nil
				}
				return []string{
					fmt.Sprintf("restored %d purchase(s)", count),
					"tier: " + string(a.Entitlement.SubscriptionTier(ctx)),
				}, nil
			})
		},
	}
}

func newHistoryCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the purchase ledger, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run("Loading purchase history", func(ctx context.Context, a *app.App) ([]string, error) {
				records, err := a.Entitlement.PurchaseHistory(ctx)
				if err != nil {
					return nil, err
				}
				if len(records) == 0 {
					return []string{"no purchases"}, nil
				}
				details := make([]string, 0, len(records))
				for _, rec := range records {
					details = append(details, fmt.Sprintf("%s  %-34s %-9s %s",
						rec.PurchasedAt.Format("2006-01-02"), rec.ProductID, rec.Status,
						entitlement.FormatPrice(rec.Amount, rec.Currency)))
				}
				return details, nil
			})
		},
	}
}
