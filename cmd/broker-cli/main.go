// Package main is the entry point for the broker CLI tool.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/reciclo/broker/internal/config"
	"github.com/reciclo/broker/internal/db"
	"github.com/reciclo/broker/internal/deal"
	"github.com/reciclo/broker/internal/ident"
)

var rootCmd = &cobra.Command{
	Use:   "broker-cli",
	Short: "Supply deal broker CLI",
	Long:  `CLI tools for inspecting and managing the supply deal broker.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(dealsCmd)
}

// dealsCmd is the parent command for deal operations
var dealsCmd = &cobra.Command{
	Use:   "deals",
	Short: "Deal ledger operations",
	Long:  `Commands for inspecting and managing requirements, offers and commitments.`,
}

func init() {
	dealsCmd.AddCommand(statsCmd)
	dealsCmd.AddCommand(inspectCmd)
	dealsCmd.AddCommand(staleCmd)
	dealsCmd.AddCommand(forceStatusCmd)
	dealsCmd.AddCommand(exportCmd)
}

// connectDB loads config and connects to the database.
func connectDB(ctx context.Context) (*db.DB, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	return db.Connect(ctx, cfg.DatabaseURL)
}

// cliActor is the admin identity used for moderation commands run from the
// operator's shell rather than through the HTTP gateway.
var cliActor = deal.Actor{ID: "broker-cli", Role: deal.RoleAdmin}

// Stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger statistics",
	Long:  `Display counts of requirements, offers and committed volume by status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		database, err := connectDB(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		// Requirement counts by status
		type statusCount struct {
			Status string
			Count  int
		}
		rows, err := database.Query(ctx, `
			SELECT status, COUNT(*)
			FROM requirements
			GROUP BY status
			ORDER BY COUNT(*) DESC
		`)
		if err != nil {
			return fmt.Errorf("failed to query requirement stats: %w", err)
		}
		defer rows.Close()

		var reqCounts []statusCount
		var totalRequirements int
		for rows.Next() {
			var sc statusCount
			if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
				return fmt.Errorf("failed to scan status count: %w", err)
			}
			reqCounts = append(reqCounts, sc)
			totalRequirements += sc.Count
		}
		rows.Close()

		rows, err = database.Query(ctx, `
			SELECT status, COUNT(*)
			FROM offers
			GROUP BY status
			ORDER BY COUNT(*) DESC
		`)
		if err != nil {
			return fmt.Errorf("failed to query offer stats: %w", err)
		}
		defer rows.Close()

		var offerCounts []statusCount
		var totalOffers int
		for rows.Next() {
			var sc statusCount
			if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
				return fmt.Errorf("failed to scan status count: %w", err)
			}
			offerCounts = append(offerCounts, sc)
			totalOffers += sc.Count
		}
		rows.Close()

		var totalCommitments, commitmentsLast7d int
		var committedVolume float64
		err = database.QueryRow(ctx, `
			SELECT
				COUNT(*),
				COUNT(*) FILTER (WHERE created_at > NOW() - INTERVAL '7 days'),
				COALESCE(SUM(volume), 0)
			FROM commitments
		`).Scan(&totalCommitments, &commitmentsLast7d, &committedVolume)
		if err != nil {
			return fmt.Errorf("failed to query commitment stats: %w", err)
		}

		var totalUsers int
		err = database.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&totalUsers)
		if err != nil {
			return fmt.Errorf("failed to query user stats: %w", err)
		}

		fmt.Println("=== Broker Statistics ===")
		fmt.Println()
		fmt.Printf("Requirements: %d total\n", totalRequirements)
		for _, sc := range reqCounts {
			fmt.Printf("  %-35s %d\n", sc.Status, sc.Count)
		}
		fmt.Println()
		fmt.Printf("Offers: %d total\n", totalOffers)
		for _, sc := range offerCounts {
			fmt.Printf("  %-35s %d\n", sc.Status, sc.Count)
		}
		fmt.Println()
		fmt.Println("Commitments:")
		fmt.Printf("  Total:            %d\n", totalCommitments)
		fmt.Printf("  Last 7 days:      %d\n", commitmentsLast7d)
		fmt.Printf("  Committed volume: %.3f\n", committedVolume)
		fmt.Println()
		fmt.Printf("Users: %d\n", totalUsers)

		return nil
	},
}

// Inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect [id]",
	Short: "Inspect a requirement or offer",
	Long:  `Show full detail for a requirement (with its offers and commitments) or a single offer.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		database, err := connectDB(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		svc := deal.NewService(database)
		id := args[0]

		switch {
		case ident.IsKind(id, ident.KindRequirement):
			d, err := svc.ViewDeal(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load requirement: %w", err)
			}
			printDeal(d)
			return nil
		case ident.IsKind(id, ident.KindOffer):
			o, err := svc.ViewOffer(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load offer: %w", err)
			}
			printOffer(o)
			return nil
		default:
			return fmt.Errorf("not a requirement or offer id: %s", id)
		}
	},
}

func printDeal(d *deal.Deal) {
	r := d.Requirement
	fmt.Printf("=== Requirement %s ===\n\n", r.ID)
	fmt.Printf("Status:    %s\n", r.Status)
	fmt.Printf("Buyer:     %s\n", r.BuyerID)
	fmt.Printf("Material:  %s / %s\n", r.Material.Category, r.Material.Subcategory)
	fmt.Printf("Volume:    %.3f %s (%s)\n", r.TotalVolume, r.Unit, r.Frequency)
	fmt.Printf("Window:    %s to %s\n", r.Window.Start.Format("2006-01-02"), r.Window.End.Format("2006-01-02"))
	fmt.Printf("Committed: %.3f %s\n", deal.TotalCommitted(d.Commitments), r.Unit)
	if r.PendingIncrease != nil {
		fmt.Printf("Pending increase: %.3f (triggered by %s)\n",
			r.PendingIncrease.NewTotal, r.PendingIncrease.TriggeringOfferID)
	}
	if r.RejectionReason != "" {
		fmt.Printf("Rejection: %s\n", truncate(r.RejectionReason, 100))
	}
	if r.PendingSince != nil {
		fmt.Printf("Pending since: %s\n", r.PendingSince.Format("2006-01-02 15:04"))
	}

	if len(d.Offers) > 0 {
		fmt.Println("\nOffers:")
		for _, o := range d.Offers {
			fmt.Printf("  %s  %-25s %.3f %s  (seller %s)\n",
				o.ID, o.Status, o.Volume, o.Unit, o.SellerID)
		}
	}

	if len(d.Commitments) > 0 {
		fmt.Println("\nCommitments:")
		for _, c := range d.Commitments {
			fmt.Printf("  %s  %.3f %s  offer %s  %s\n",
				c.ID, c.Volume, c.Unit, c.OfferID, c.CreatedAt.Format("2006-01-02"))
		}
	}
}

func printOffer(o *deal.Offer) {
	fmt.Printf("=== Offer %s ===\n\n", o.ID)
	fmt.Printf("Status:      %s\n", o.Status)
	fmt.Printf("Seller:      %s\n", o.SellerID)
	fmt.Printf("Requirement: %s\n", o.RequirementID)
	fmt.Printf("Volume:      %.3f %s (%s)\n", o.Volume, o.Unit, o.Frequency)
	if o.VehicleType != "" {
		fmt.Printf("Vehicle:     %s\n", o.VehicleType)
	}
	fmt.Printf("Window:      %s to %s\n", o.Window.Start.Format("2006-01-02"), o.Window.End.Format("2006-01-02"))
	if o.PendingSince != nil {
		fmt.Printf("Pending since: %s\n", o.PendingSince.Format("2006-01-02 15:04"))
	}

	if len(o.Log) > 0 {
		fmt.Println("\nTimeline:")
		for _, e := range o.Log {
			fmt.Printf("  %s  %-7s %-18s %s\n",
				e.At.Format("2006-01-02 15:04"), e.Author, e.Event, truncate(e.Message, 80))
		}
	}
}

// Stale command
var staleHours int

var staleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List stale reviews",
	Long:  `Show requirements and offers that have been waiting on a decision longer than the cutoff.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		database, err := connectDB(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		cutoff := time.Now().Add(-time.Duration(staleHours) * time.Hour)
		svc := deal.NewService(database)
		stale, err := svc.ListStaleReviews(ctx, cliActor, cutoff)
		if err != nil {
			return fmt.Errorf("failed to query stale reviews: %w", err)
		}

		fmt.Printf("=== Reviews Pending Longer Than %dh ===\n\n", staleHours)

		if len(stale) == 0 {
			fmt.Println("No stale reviews.")
			return nil
		}
		for _, s := range stale {
			age := time.Since(s.PendingSince).Round(time.Hour)
			fmt.Printf("%-11s %s  %-30s waiting %s\n", s.Entity, s.ID, s.Status, age)
		}
		fmt.Printf("\nTotal: %d\n", len(stale))

		return nil
	},
}

func init() {
	staleCmd.Flags().IntVar(&staleHours, "hours", 72, "Age threshold in hours")
}

// Force-status command
var forceReason string

var forceStatusCmd = &cobra.Command{
	Use:   "force-status [id] [status]",
	Short: "Force a status override",
	Long:  `Override the status of a requirement or offer outside the normal transitions. Use sparingly.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		database, err := connectDB(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		svc := deal.NewService(database)
		id, status := args[0], args[1]

		switch {
		case ident.IsKind(id, ident.KindRequirement):
			d, err := svc.ForceRequirementStatus(ctx, cliActor, id, deal.RequirementStatus(status))
			if err != nil {
				return fmt.Errorf("failed to force status: %w", err)
			}
			fmt.Printf("Requirement %s is now %s\n", id, d.Requirement.Status)
		case ident.IsKind(id, ident.KindOffer):
			d, err := svc.ForceOfferStatus(ctx, cliActor, id, deal.OfferStatus(status), forceReason)
			if err != nil {
				return fmt.Errorf("failed to force status: %w", err)
			}
			o, err := d.Offer(id)
			if err != nil {
				return err
			}
			fmt.Printf("Offer %s is now %s\n", id, o.Status)
		default:
			return fmt.Errorf("not a requirement or offer id: %s", id)
		}

		return nil
	},
}

func init() {
	forceStatusCmd.Flags().StringVar(&forceReason, "reason", "", "Reason recorded in the offer log (offers only)")
}

// Export command
var exportFormat string
var exportSince string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the commitment ledger",
	Long:  `Export commitments to JSON or CSV format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		database, err := connectDB(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		// Build query
		query := `
			SELECT c.id, c.requirement_id, c.offer_id, r.buyer_id, o.seller_id,
			       c.volume, c.unit, r.status, o.status, c.created_at
			FROM commitments c
			JOIN requirements r ON r.id = c.requirement_id
			JOIN offers o ON o.id = c.offer_id
			WHERE 1=1
		`
		var queryArgs []any

		if exportSince != "" {
			sinceDate, err := time.Parse("2006-01-02", exportSince)
			if err != nil {
				return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
			}
			query += " AND c.created_at >= $1"
			queryArgs = append(queryArgs, sinceDate)
		}

		query += " ORDER BY c.created_at DESC"

		rows, err := database.Query(ctx, query, queryArgs...)
		if err != nil {
			return fmt.Errorf("failed to query commitments: %w", err)
		}
		defer rows.Close()

		var commitments []exportCommitment
		for rows.Next() {
			var c exportCommitment
			if err := rows.Scan(
				&c.ID, &c.RequirementID, &c.OfferID, &c.BuyerID, &c.SellerID,
				&c.Volume, &c.Unit, &c.RequirementStatus, &c.OfferStatus, &c.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to scan commitment: %w", err)
			}
			commitments = append(commitments, c)
		}

		switch exportFormat {
		case "json":
			return exportJSON(commitments)
		case "csv":
			return exportCSV(commitments)
		default:
			return fmt.Errorf("unknown format: %s (use json or csv)", exportFormat)
		}
	},
}

type exportCommitment struct {
	ID                string    `json:"id"`
	RequirementID     string    `json:"requirement_id"`
	OfferID           string    `json:"offer_id"`
	BuyerID           string    `json:"buyer_id"`
	SellerID          string    `json:"seller_id"`
	Volume            float64   `json:"volume"`
	Unit              string    `json:"unit"`
	RequirementStatus string    `json:"requirement_status"`
	OfferStatus       string    `json:"offer_status"`
	CreatedAt         time.Time `json:"created_at"`
}

func exportJSON(commitments []exportCommitment) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(commitments)
}

func exportCSV(commitments []exportCommitment) error {
	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	// Header
	if err := w.Write([]string{
		"id", "requirement_id", "offer_id", "buyer_id", "seller_id",
		"volume", "unit", "requirement_status", "offer_status", "created_at",
	}); err != nil {
		return err
	}

	// Rows
	for _, c := range commitments {
		if err := w.Write([]string{
			c.ID,
			c.RequirementID,
			c.OfferID,
			c.BuyerID,
			c.SellerID,
			fmt.Sprintf("%.3f", c.Volume),
			c.Unit,
			c.RequirementStatus,
			c.OfferStatus,
			c.CreatedAt.Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}

	return nil
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format (json, csv)")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "Export commitments created since date (YYYY-MM-DD)")
}

// Helper functions

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
