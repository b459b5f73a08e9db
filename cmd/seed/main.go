package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"briefly60-subscription/internal/config"
	pg "briefly60-subscription/internal/infra/db/postgres"
	"briefly60-subscription/internal/infra/logging"
	"briefly60-subscription/internal/usecase"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := pg.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema: %v", err)
	}

	planUC := usecase.NewPlanUseCase(pg.NewPlanRepo(pool), logger)

	// If plans already exist, do nothing
	plans, err := planUC.ListAll(ctx)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	if len(plans) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(plans))
		for _, p := range plans {
			fmt.Printf("  - %s (months=%d, price=%d %s)\n", p.ID, p.DurationMonths, p.Price, p.Currency)
		}
		return
	}

	baseFeatures := []string{
		"Read unlimited articles",
		"Participate in quizzes",
		"Save bookmarks",
		"Ad-free experience",
		"Premium support",
	}
	priorityFeatures := append(append([]string{}, baseFeatures...), "Priority customer support")
	yearlyFeatures := append(append([]string{}, priorityFeatures...), "Exclusive content access")

	seed := []struct {
		ID            string
		Name          string
		Price         int64
		OriginalPrice int64
		Months        int
		Features      []string
		Popular       bool
	}{
		{"monthly", "Monthly Plan", 50, 50, 1, baseFeatures, false},
		{"half_yearly", "Six-Month Plan", 250, 300, 6, priorityFeatures, true},
		{"yearly", "Yearly Plan", 500, 600, 12, yearlyFeatures, false},
	}

	for _, s := range seed {
		p, err := planUC.Create(ctx, s.ID, s.Name, s.Price, s.OriginalPrice, "BDT", s.Months, s.Features, s.Popular)
		if err != nil {
			log.Fatalf("create plan %q: %v", s.ID, err)
		}
		fmt.Printf("seeded: %s (months=%d, price=%d BDT)\n", p.ID, p.DurationMonths, p.Price)
	}

	fmt.Println("Seeding complete.")
}
