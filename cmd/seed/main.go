// File: cmd/seed/main.go
//
// Seeds a local database with sample catalog rows (books, a bundle and an
// admin profile) so the purchase flow can be exercised end to end. The
// catalog is owned by the storefront in production; this writes directly.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"bookstore-payments/internal/config"
	pg "bookstore-payments/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	var existing int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM books`).Scan(&existing); err != nil {
		log.Fatalf("count books: %v", err)
	}
	if existing > 0 {
		fmt.Printf("%d books already present. No changes.\n", existing)
		return
	}

	books := []struct {
		Title string
		Price int64 // minor units
	}{
		{"The Practical Pressure Canner", 45_000},
		{"Injera at Home", 30_000},
		{"A Field Guide to Simien Birds", 60_000},
		{"Learning Amharic Script", 0}, // free sample
	}
	var bookIDs []string
	for _, b := range books {
		id := uuid.NewString()
		if _, err := pool.Exec(ctx,
			`INSERT INTO books (id, title, price) VALUES ($1, $2, $3)`,
			id, b.Title, b.Price); err != nil {
			log.Fatalf("insert book %q: %v", b.Title, err)
		}
		bookIDs = append(bookIDs, id)
		fmt.Printf("book   %s  %-32s %d\n", id, b.Title, b.Price)
	}

	bundleID := uuid.NewString()
	if _, err := pool.Exec(ctx,
		`INSERT INTO bundles (id, title, price) VALUES ($1, $2, $3)`,
		bundleID, "Kitchen Starter Pack", 65_000); err != nil {
		log.Fatalf("insert bundle: %v", err)
	}
	for _, bookID := range bookIDs[:2] {
		if _, err := pool.Exec(ctx,
			`INSERT INTO bundle_books (bundle_id, book_id) VALUES ($1, $2)`,
			bundleID, bookID); err != nil {
			log.Fatalf("link bundle book: %v", err)
		}
	}
	fmt.Printf("bundle %s  Kitchen Starter Pack (2 books)\n", bundleID)

	adminID := uuid.NewString()
	if _, err := pool.Exec(ctx,
		`INSERT INTO profiles (user_id, display_name, email, role) VALUES ($1, $2, $3, 'admin')`,
		adminID, "Seed Admin", "admin@example.com"); err != nil {
		log.Fatalf("insert admin profile: %v", err)
	}
	fmt.Printf("admin  %s  admin@example.com\n", adminID)
}
