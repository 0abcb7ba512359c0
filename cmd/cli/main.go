package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/avolkov/moneyflow/internal/config"
	"github.com/avolkov/moneyflow/internal/domain"
	"github.com/avolkov/moneyflow/internal/export"
	"github.com/avolkov/moneyflow/internal/logger"
	"github.com/avolkov/moneyflow/internal/remote"
	"github.com/avolkov/moneyflow/internal/txsync"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		runList(log)
	case "add":
		runAdd(log)
	case "update":
		runUpdate(log)
	case "delete":
		runDelete(log)
	case "summary":
		runSummary(log)
	case "export":
		runExport(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Moneyflow CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  list      List transactions for an owner")
	fmt.Println("  add       Add a transaction")
	fmt.Println("  update    Update fields of a transaction")
	fmt.Println("  delete    Delete a transaction by ID")
	fmt.Println("  summary   Show income/expense/balance totals")
	fmt.Println("  export    Archive transactions into BigQuery")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// newService builds the sync service for a one-shot CLI invocation.
func newService(ctx context.Context, log zerolog.Logger, owner string) (*txsync.Service, *remote.FirestoreStore, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := remote.NewFirestoreStore(ctx, cfg.ProjectID, cfg.CredentialsFile, cfg.Collection)
	if err != nil {
		return nil, nil, nil, err
	}

	svc := txsync.NewService(store, logger.WithComponent(log, "txsync"), txsync.Options{
		PageSize:        cfg.PageSize,
		RefreshInterval: cfg.RefreshInterval,
		ReconcileDelay:  cfg.ReconcileDelay,
	})
	svc.SignIn(owner)

	return svc, store, cfg, nil
}

func runList(log zerolog.Logger) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	owner := fs.String("owner", os.Getenv("MONEYFLOW_OWNER_ID"), "Owner identity")
	kind := fs.String("kind", "", "Filter by kind (income or expense)")
	search := fs.String("q", "", "Search description and category label")
	pageSize := fs.Int("page-size", 0, "Page size (0 for default)")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		log.Fatal().Msg("Error: --owner is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	svc, store, _, err := newService(ctx, log, *owner)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer store.Close()
	defer svc.Close()

	var filter domain.Filter
	if *kind != "" {
		k := domain.ParseKind(*kind)
		filter.Kind = &k
	}
	filter.Search = *search

	txs, err := svc.FetchTransactions(ctx, filter, *pageSize, true)
	if err != nil {
		log.Fatal().Err(err).Msg("Fetch failed")
	}

	for _, tx := range txs {
		fmt.Printf("%s  %-8s %12s  %-20s %s\n",
			tx.OccurredAt.Format("2006-01-02"), tx.Kind, tx.Amount.String(), tx.CategoryLabel, tx.Description)
	}
	fmt.Printf("\n%d transaction(s)", len(txs))
	if svc.HasMore() {
		fmt.Print(" (more available)")
	}
	fmt.Println()
}

func runAdd(log zerolog.Logger) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	owner := fs.String("owner", os.Getenv("MONEYFLOW_OWNER_ID"), "Owner identity")
	amount := fs.String("amount", "", "Amount (non-negative)")
	kind := fs.String("kind", "expense", "Kind (income or expense)")
	category := fs.String("category", "", "Category ID")
	label := fs.String("label", "", "Category display label")
	description := fs.String("description", "", "Free-text description")
	date := fs.String("date", "", "Transaction date (YYYY-MM-DD, defaults to today)")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		log.Fatal().Msg("Error: --owner is required")
	}
	if *amount == "" {
		log.Fatal().Msg("Error: --amount is required")
	}

	amt, err := decimal.NewFromString(*amount)
	if err != nil || amt.IsNegative() {
		log.Fatal().Msg("Error: --amount must be a non-negative number")
	}

	occurredAt := time.Now()
	if *date != "" {
		occurredAt, err = time.Parse("2006-01-02", *date)
		if err != nil {
			log.Fatal().Err(err).Msg("Error: invalid --date")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	svc, store, _, err := newService(ctx, log, *owner)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer store.Close()
	defer svc.Close()

	tx, err := svc.AddTransaction(ctx, domain.Draft{
		Amount:        amt,
		Kind:          domain.ParseKind(*kind),
		CategoryID:    *category,
		CategoryLabel: *label,
		Description:   *description,
		OccurredAt:    occurredAt,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Add failed")
	}

	fmt.Printf("Created transaction %s\n", tx.ID)
}

func runUpdate(log zerolog.Logger) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	owner := fs.String("owner", os.Getenv("MONEYFLOW_OWNER_ID"), "Owner identity")
	id := fs.String("id", "", "Transaction ID")
	amount := fs.String("amount", "", "New amount (unchanged when omitted)")
	kind := fs.String("kind", "", "New kind (unchanged when omitted)")
	category := fs.String("category", "", "New category ID (unchanged when omitted)")
	label := fs.String("label", "", "New category label (unchanged when omitted)")
	description := fs.String("description", "", "New description (unchanged when omitted)")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		log.Fatal().Msg("Error: --owner is required")
	}
	if *id == "" {
		log.Fatal().Msg("Error: --id is required")
	}

	var patch domain.Patch
	if *amount != "" {
		amt, err := decimal.NewFromString(*amount)
		if err != nil || amt.IsNegative() {
			log.Fatal().Msg("Error: --amount must be a non-negative number")
		}
		patch.Amount = &amt
	}
	if *kind != "" {
		k := domain.ParseKind(*kind)
		patch.Kind = &k
	}
	if *category != "" {
		patch.CategoryID = category
	}
	if *label != "" {
		patch.CategoryLabel = label
	}
	if *description != "" {
		patch.Description = description
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	svc, store, _, err := newService(ctx, log, *owner)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer store.Close()
	defer svc.Close()

	// The patch path needs the current record cached for the ownership check.
	if _, err := svc.GetTransactionByID(ctx, *id, true); err != nil {
		log.Fatal().Err(err).Msg("Lookup failed")
	}

	if err := svc.UpdateTransaction(ctx, *id, patch); err != nil {
		log.Fatal().Err(err).Msg("Update failed")
	}

	fmt.Printf("Updated transaction %s\n", *id)
}

func runDelete(log zerolog.Logger) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	owner := fs.String("owner", os.Getenv("MONEYFLOW_OWNER_ID"), "Owner identity")
	id := fs.String("id", "", "Transaction ID")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		log.Fatal().Msg("Error: --owner is required")
	}
	if *id == "" {
		log.Fatal().Msg("Error: --id is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	svc, store, _, err := newService(ctx, log, *owner)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer store.Close()
	defer svc.Close()

	if err := svc.DeleteTransaction(ctx, *id); err != nil {
		log.Fatal().Err(err).Msg("Delete failed")
	}

	fmt.Printf("Deleted transaction %s\n", *id)
}

func runSummary(log zerolog.Logger) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	owner := fs.String("owner", os.Getenv("MONEYFLOW_OWNER_ID"), "Owner identity")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		log.Fatal().Msg("Error: --owner is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	svc, store, _, err := newService(ctx, log, *owner)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer store.Close()
	defer svc.Close()

	if _, err := svc.FetchTransactions(ctx, domain.Filter{}, 0, true); err != nil {
		log.Fatal().Err(err).Msg("Fetch failed")
	}

	summary := svc.FinancialSummary()
	fmt.Printf("Income:  %s\n", summary.Income.String())
	fmt.Printf("Expense: %s\n", summary.Expense.String())
	fmt.Printf("Balance: %s\n", summary.Balance.String())
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	owner := fs.String("owner", os.Getenv("MONEYFLOW_OWNER_ID"), "Owner identity")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		log.Fatal().Msg("Error: --owner is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	svc, store, cfg, err := newService(ctx, log, *owner)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer store.Close()
	defer svc.Close()

	if _, err := svc.FetchTransactions(ctx, domain.Filter{}, 0, true); err != nil {
		log.Fatal().Err(err).Msg("Fetch failed")
	}
	txs := svc.Transactions()

	archiver, err := export.NewArchiver(ctx, cfg.ProjectID, cfg.ExportDataset, cfg.ExportTable)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create archiver")
	}
	defer archiver.Close()

	if err := archiver.Archive(ctx, txs); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Printf("Archived %d transaction(s) to %s.%s\n", len(txs), cfg.ExportDataset, cfg.ExportTable)
}
