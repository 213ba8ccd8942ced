package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ikkim/storefront/config"
	"github.com/ikkim/storefront/internal/app/repository"
	"github.com/ikkim/storefront/internal/db"
	"github.com/ikkim/storefront/pkg/logger"
	"gorm.io/gorm"
)

func main() {
	yes := flag.Bool("yes", false, "import without asking for confirmation")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: go run ./cmd/seed [-yes] <catalog.xlsx>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	filePath := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.Initialize(logger.Config{Level: "warn", Format: "console", EnableColor: true})

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()
	if err := db.Migrate(true); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	products, report, err := readCatalogFile(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}
	for _, problem := range report.Skipped {
		fmt.Printf("  skipped %s\n", problem)
	}
	fmt.Printf("Products to import: %d (%d variants, %d rows skipped)\n",
		len(products), report.Variants, len(report.Skipped))

	if !*yes {
		fmt.Print("Do you want to proceed with the import? (yes/no): ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" && confirm != "y" {
			fmt.Println("Import cancelled.")
			return
		}
	}

	ctx := context.Background()
	productRepo := repository.NewProductRepository(db.GetDB())
	created, existing := 0, 0
	for i := range products {
		product := &products[i]
		if _, err := productRepo.FindBySlug(ctx, product.Slug); err == nil {
			existing++
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Fatal("Failed to look up product:", err)
		}
		if err := productRepo.Create(ctx, product); err != nil {
			log.Fatalf("Failed to create product %s: %v", product.Slug, err)
		}
		created++
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Created: %d, already present: %d\n", created, existing)
}
