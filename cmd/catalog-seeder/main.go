package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/config"
	"github.com/IlyushaZ/rental-store/pkg/database"
	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/shopspring/decimal"
)

// words used for generating items' titles
var (
	categories = []string{"Camping", "Photo", "Music", "Tools", "Sports", "Party", "Garden", "Kids", "Travel", "Office"}
	adjectives = []string{"Premium", "Deluxe", "Ultra", "Pro", "Smart", "Classic", "Modern", "Vintage", "Compact", "Budget"}
	things     = []string{"Tent", "Camera", "Speaker", "Drill", "Bike", "Projector", "Kayak", "Stroller", "Suitcase", "Desk"}
	kinds      = []model.ItemKind{model.KindPurchase, model.KindRental, model.KindBoth}
)

func main() {
	cfg := config.New()

	t0 := time.Now()
	defer func() { log.Printf("Items generated. Elapsed: %s", time.Since(t0)) }()

	db, closeDB, err := database.New(cfg.PostgresAddr, cfg.PostgresDB, cfg.PostgresUser, cfg.PostgresPassword)
	if err != nil {
		log.Fatalf("### Can't init database: %v", err)
	}
	defer closeDB()

	if cfg.RunMigrations {
		if err := database.Migrate(db); err != nil {
			log.Fatalf("### Can't migrate: %v", err)
		}
	}

	if err := generate(context.Background(), database.NewPostgres(db), cfg.SeedItems, cfg.SeedSellers); err != nil {
		log.Fatalf("### Can't generate items: %v", err)
	}
}

func generate(ctx context.Context, store database.Store, count, sellers int) error {
	r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))

	return store.WithTx(ctx, func(tx database.Tx) error {
		for i := range count {
			item := generateItem(r, sellers)
			if err := tx.Items().Create(ctx, item); err != nil {
				return fmt.Errorf("can't insert item: %w", err)
			}

			if (i+1)%100 == 0 {
				log.Printf("Inserted %d items\n", i+1)
			}
		}
		return nil
	})
}

func generateItem(r *rand.Rand, sellers int) *model.Item {
	adj := adjectives[r.IntN(len(adjectives))]
	category := categories[r.IntN(len(categories))]
	thing := things[r.IntN(len(things))]

	kind := kinds[r.IntN(len(kinds))]
	stock := 1 + r.IntN(20)

	item := &model.Item{
		SellerID:          fmt.Sprintf("seller-%d", 1+r.IntN(max(sellers, 1))),
		Title:             fmt.Sprintf("%s %s %s", adj, category, thing),
		Category:          category,
		Kind:              kind,
		TotalStock:        stock,
		LowStockThreshold: stock / 5,
	}

	// prices are whole cents
	price := decimal.New(int64(1000+r.IntN(100000)), -2)
	if kind.Purchasable() {
		item.Price = price
	}
	if kind.Rentable() {
		item.PricePerDay = price.Div(decimal.NewFromInt(20)).Round(2)
		item.Deposit = price.Div(decimal.NewFromInt(4)).Round(2)
	}

	return item
}
