// Command verify-schema connects to the configured database, runs discovery,
// and prints every resolved table, column role and the line link strategy.
// It exits non-zero when a mandatory role cannot be placed, so deployments
// can be checked before the server is started against them.
package main

import (
	"context"
	"log"
	"time"

	"order-engine/internal/db"
	"order-engine/internal/schema"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("[CONNECT] %v", err)
	}
	defer pool.Close()
	log.Println("[CONNECT] success")

	maps, err := schema.Discover(ctx, schema.NewResolver(pool))
	if err != nil {
		log.Fatalf("[DISCOVER] %v", err)
	}

	om := maps.Orders
	log.Printf("[ORDERS] table=%s id=%s number=%s client=%s", om.Table, om.ID, om.Number, om.ClientID)
	log.Printf("[ORDERS] amounts base=%s tax=%s subtotal=%s discount_pct=%s total=%s",
		om.Base, om.Tax, om.Subtotal, om.DiscountPct, om.Total)
	logOptional("ORDERS", map[string]string{
		"shipping_address": om.ShippingAddressID,
		"tariff":           om.TariffID,
		"status_id":        om.StatusID,
		"status_text":      om.StatusText,
		"order_date":       om.OrderDate,
		"discount_amount":  om.DiscountAmount,
		"special":          om.Special,
		"order_type":       om.OrderType,
	})

	lm := maps.Lines
	log.Printf("[LINES] table=%s link=%s article=%s quantity=%s price=%s",
		lm.Table, lm.Link, lm.ArticleID, lm.Quantity, lm.UnitPrice)
	logOptional("LINES", map[string]string{
		"order_id":      lm.OrderID,
		"order_number":  lm.OrderNumber,
		"line_id":       lm.ID,
		"price_missing": lm.PriceMissing,
	})

	log.Printf("[TARIFFS] table=%s id=%s active=%s", maps.Tariffs.Table, maps.Tariffs.ID, maps.Tariffs.Active)
	log.Printf("[PRICES] table=%s tariff=%s article=%s price=%s",
		maps.TariffPrices.Table, maps.TariffPrices.TariffID, maps.TariffPrices.ArticleID, maps.TariffPrices.Price)
	log.Printf("[TIERS] table=%s from=%s pct=%s", maps.Tiers.Table, maps.Tiers.From, maps.Tiers.Pct)
	log.Printf("[STATUSES] table=%s id=%s name=%s", maps.Statuses.Table, maps.Statuses.ID, maps.Statuses.Name)
	log.Printf("[CLIENTS] table=%s id=%s", maps.Clients.Table, maps.Clients.ID)
	log.Printf("[ARTICLES] table=%s id=%s base_price=%s tax=%s",
		maps.Articles.Table, maps.Articles.ID, maps.Articles.BasePrice, maps.Articles.TaxPct)
	if om.ShippingAddressID != "" {
		log.Printf("[ADDRESSES] table=%s id=%s client=%s",
			maps.Addresses.Table, maps.Addresses.ID, maps.Addresses.ClientID)
	}

	log.Println("[DONE] schema verified")
}

func logOptional(tag string, roles map[string]string) {
	for role, col := range roles {
		if col == "" {
			log.Printf("[%s] optional role %s: absent", tag, role)
		} else {
			log.Printf("[%s] optional role %s: %s", tag, role, col)
		}
	}
}
