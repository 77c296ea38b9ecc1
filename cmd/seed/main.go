// Package main provides a CLI tool for seeding a warehouse with demo products.
package main

import (
	"context"
	"fmt"
	"os"

	"stockflow/internal/app"
	"stockflow/internal/config"
	"stockflow/internal/core/apperror"
	"stockflow/internal/domain/product"
	"stockflow/internal/infrastructure/auth"
	"stockflow/pkg/logger"
)

var demoProducts = []product.RegisterInput{
	{SKU: "BOLT-M8", Name: "Hex bolt M8x40", Category: "fasteners", Unit: "pcs", Location: "A-01", OpeningQuantity: 500},
	{SKU: "NUT-M8", Name: "Hex nut M8", Category: "fasteners", Unit: "pcs", Location: "A-02", OpeningQuantity: 800},
	{SKU: "WASHER-M8", Name: "Flat washer M8", Category: "fasteners", Unit: "pcs", Location: "A-03", OpeningQuantity: 6},
	{SKU: "CABLE-3X1.5", Name: "Power cable 3x1.5", Category: "electrical", Unit: "m", Location: "B-01", OpeningQuantity: 250},
	{SKU: "GLOVES-L", Name: "Work gloves, size L", Category: "safety", Unit: "pair", Location: "C-01", OpeningQuantity: 40},
	{SKU: "TAPE-50", Name: "Packing tape 50mm", Category: "packaging", Unit: "roll", Location: "D-01", OpeningQuantity: 0},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: true,
		Service:     cfg.App.Name + "-seed",
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := logger.WithLogger(context.Background(), log)

	if cfg.Storage.Driver == config.DriverMemory {
		log.Warn("memory storage selected, seeded data is lost when the tool exits")
	}

	services, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize storage", "error", err)
	}
	defer services.Close()

	warehouse := os.Getenv("SEED_WAREHOUSE")
	if warehouse == "" {
		warehouse = "MAIN"
	}

	created, err := seedProducts(ctx, services.Products, warehouse, log)
	if err != nil {
		log.Fatalw("failed to seed products", "error", err)
	}
	log.Infow("products seeded", "warehouse", warehouse, "created", created)

	if os.Getenv("SEED_ISSUE_TOKENS") == "true" {
		if err := issueTokens(cfg, log); err != nil {
			log.Fatalw("failed to issue tokens", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

// seedProducts registers the demo catalog. Products that already exist are
// left untouched, so the tool can run repeatedly.
func seedProducts(ctx context.Context, svc *product.Service, warehouse string, log *logger.Logger) (int, error) {
	created := 0
	for _, in := range demoProducts {
		in.Warehouse = warehouse
		p, err := svc.Register(ctx, in)
		if apperror.IsDuplicate(err) {
			log.Infow("product already exists", "sku", in.SKU, "warehouse", warehouse)
			continue
		}
		if err != nil {
			return created, fmt.Errorf("register %s: %w", in.SKU, err)
		}
		created++
		log.Infow("product registered", "id", p.ID, "sku", p.SKU, "quantity", p.Quantity)
	}
	return created, nil
}

// issueTokens prints development tokens for a clerk and a manager.
func issueTokens(cfg *config.Config, log *logger.Logger) error {
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required to issue tokens")
	}
	jwtConfig := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
	jwtConfig.Issuer = cfg.Auth.Issuer
	jwtService := auth.NewJWTService(jwtConfig)

	for _, role := range []string{"clerk", "manager"} {
		token, expiresAt, err := jwtService.GenerateAccessToken("seed-"+role, role, role+"@stockflow.local")
		if err != nil {
			return err
		}
		log.Infow("development token", "role", role, "expires_at", expiresAt, "token", token)
	}
	return nil
}
