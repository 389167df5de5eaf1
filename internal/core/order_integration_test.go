package core_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"order-engine/internal/core"
	"order-engine/internal/schema"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// The integration tests create a throwaway Postgres schema per test, load one
// of two naming variants into it, and run discovery plus the full order
// lifecycle against it. The renamed variant links lines by numeric id; the
// legacy variant carries Spanish column names and links by order number only.

const renamedVariantDDL = `
	CREATE TABLE tariffs (
		id serial PRIMARY KEY,
		name text,
		active boolean NOT NULL DEFAULT true,
		valid_from date,
		valid_to date
	);
	CREATE TABLE tariff_prices (
		tariff_id int NOT NULL,
		article_id int NOT NULL,
		price numeric(12,4) NOT NULL
	);
	CREATE TABLE discount_tiers (
		id serial PRIMARY KEY,
		from_amount numeric(12,2) NOT NULL,
		to_amount numeric(12,2),
		discount_pct numeric(5,2) NOT NULL,
		active boolean NOT NULL DEFAULT true,
		position int
	);
	CREATE TABLE order_statuses (
		id serial PRIMARY KEY,
		code text,
		name text NOT NULL,
		active boolean NOT NULL DEFAULT true,
		position int
	);
	CREATE TABLE clients (
		id serial PRIMARY KEY,
		name text,
		tariff_id int,
		discount_pct numeric(5,2)
	);
	CREATE TABLE articles (
		id serial PRIMARY KEY,
		name text,
		base_price numeric(12,4),
		tax_pct numeric(5,2) NOT NULL DEFAULT 21
	);
	CREATE TABLE shipping_addresses (
		id serial PRIMARY KEY,
		client_id int NOT NULL
	);
	CREATE TABLE orders (
		id serial PRIMARY KEY,
		order_number text NOT NULL,
		client_id int NOT NULL,
		shipping_address_id int,
		tariff_id int,
		status_id int,
		status text,
		order_date date,
		base_amount numeric(12,2) NOT NULL DEFAULT 0,
		tax_amount numeric(12,2) NOT NULL DEFAULT 0,
		subtotal numeric(12,2) NOT NULL DEFAULT 0,
		discount_pct numeric(5,2) NOT NULL DEFAULT 0,
		discount_amount numeric(12,2) NOT NULL DEFAULT 0,
		total numeric(12,2) NOT NULL DEFAULT 0,
		special boolean NOT NULL DEFAULT false,
		order_type text
	);
	CREATE TABLE order_lines (
		id serial PRIMARY KEY,
		order_id int NOT NULL REFERENCES orders (id),
		article_id int NOT NULL REFERENCES articles (id),
		quantity numeric(12,4) NOT NULL,
		unit_price numeric(12,4) NOT NULL,
		discount_pct numeric(5,2) NOT NULL DEFAULT 0,
		tax_pct numeric(5,2) NOT NULL DEFAULT 0,
		base_amount numeric(12,2) NOT NULL DEFAULT 0,
		tax_amount numeric(12,2) NOT NULL DEFAULT 0,
		total numeric(12,2) NOT NULL DEFAULT 0,
		price_missing boolean NOT NULL DEFAULT false
	);

	INSERT INTO tariffs (id, name, active, valid_to) VALUES
	(1, 'Standard', true, NULL),
	(2, 'Expired', true, '2020-12-31');

	INSERT INTO tariff_prices (tariff_id, article_id, price) VALUES
	(1, 1, 2.00),
	(0, 2, 7.50);

	INSERT INTO discount_tiers (from_amount, to_amount, discount_pct, active, position) VALUES
	(100, 500, 5, true, 1),
	(500, NULL, 10, true, 2),
	(0, NULL, 50, false, 3);

	INSERT INTO order_statuses (id, code, name, active, position) VALUES
	(1, 'PENDING', 'Pending', true, 1),
	(2, 'SHIPPED', 'Shipped', true, 2);

	INSERT INTO clients (id, name, tariff_id, discount_pct) VALUES
	(1, 'Acme Distribución', 1, 0),
	(2, 'Beta Mayorista', NULL, 4);

	INSERT INTO articles (id, name, base_price, tax_pct) VALUES
	(1, 'Widget', 4.00, 21),
	(2, 'Gadget', 6.00, 10),
	(3, 'Gizmo', 3.00, 21),
	(4, 'Unpriced', NULL, 21);

	INSERT INTO shipping_addresses (id, client_id) VALUES
	(1, 1),
	(2, 2);
`

const legacyVariantDDL = `
	CREATE TABLE tarifas (
		id_tarifa serial PRIMARY KEY,
		nombre text,
		activa boolean NOT NULL DEFAULT true
	);
	CREATE TABLE precios_tarifa (
		id_tarifa int NOT NULL,
		id_articulo int NOT NULL,
		precio numeric(12,4) NOT NULL
	);
	CREATE TABLE descuentos (
		desde numeric(12,2) NOT NULL,
		hasta numeric(12,2),
		descuento numeric(5,2) NOT NULL
	);
	CREATE TABLE estados (
		id_estado serial PRIMARY KEY,
		nombre text NOT NULL
	);
	CREATE TABLE clientes (
		id_cliente serial PRIMARY KEY,
		nombre text,
		tarifa int,
		descuento numeric(5,2)
	);
	CREATE TABLE articulos (
		id_articulo serial PRIMARY KEY,
		nombre text,
		pvl numeric(12,4),
		iva numeric(5,2) NOT NULL DEFAULT 21
	);
	CREATE TABLE pedidos (
		id_pedido serial PRIMARY KEY,
		numero text NOT NULL,
		id_cliente int NOT NULL,
		fecha date,
		base_imponible numeric(12,2) NOT NULL DEFAULT 0,
		importe_iva numeric(12,2) NOT NULL DEFAULT 0,
		subtotal numeric(12,2) NOT NULL DEFAULT 0,
		descuento numeric(5,2) NOT NULL DEFAULT 0,
		importe_total numeric(12,2) NOT NULL DEFAULT 0
	);
	CREATE TABLE lineas_pedido (
		id_linea serial PRIMARY KEY,
		numero_pedido text NOT NULL,
		id_articulo int NOT NULL,
		cantidad numeric(12,4) NOT NULL,
		precio numeric(12,4) NOT NULL,
		descuento numeric(5,2) NOT NULL DEFAULT 0,
		iva numeric(5,2) NOT NULL DEFAULT 0,
		base numeric(12,2) NOT NULL DEFAULT 0,
		cuota_iva numeric(12,2) NOT NULL DEFAULT 0,
		importe numeric(12,2) NOT NULL DEFAULT 0
	);

	INSERT INTO tarifas (id_tarifa, nombre, activa) VALUES (1, 'General', true);
	INSERT INTO precios_tarifa (id_tarifa, id_articulo, precio) VALUES (1, 1, 2.50);
	INSERT INTO descuentos (desde, hasta, descuento) VALUES (100, NULL, 10);
	INSERT INTO estados (nombre) VALUES ('Pendiente'), ('Enviado');
	INSERT INTO clientes (id_cliente, nombre, tarifa, descuento) VALUES (1, 'Comercial Norte', 1, 0);
	INSERT INTO articulos (id_articulo, nombre, pvl, iva) VALUES (1, 'Recambio', 3.00, 21);
`

// setupVariantDB loads ddl into a fresh schema and runs discovery against it.
// The pool's search_path is pinned to that schema so variants never collide.
func setupVariantDB(t *testing.T, ddl string) (*pgxpool.Pool, *schema.Maps) {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid touching the live app database.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	schemaName := "order_engine_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	admin, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if _, err := admin.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema.QuoteIdent(schemaName))); err != nil {
		admin.Close()
		t.Fatalf("Failed to create test schema: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		t.Fatalf("Failed to parse TEST_DATABASE_URL: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schemaName
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to open schema-scoped pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		_, _ = admin.Exec(context.Background(),
			fmt.Sprintf("DROP SCHEMA %s CASCADE", schema.QuoteIdent(schemaName)))
		admin.Close()
	})

	if _, err := pool.Exec(ctx, ddl); err != nil {
		t.Fatalf("Failed to load variant DDL: %v", err)
	}

	maps, err := schema.Discover(ctx, schema.NewResolver(pool))
	if err != nil {
		t.Fatalf("Discovery failed: %v", err)
	}
	return pool, maps
}

func wantDec(t *testing.T, got decimal.Decimal, want string, label string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", label, got, want)
	}
}

func intPtr(v int) *int { return &v }

func TestOrderLifecycle_RenamedVariant(t *testing.T) {
	pool, maps := setupVariantDB(t, renamedVariantDDL)
	svc := core.NewOrderService(pool, maps)
	ctx := context.Background()

	if maps.Lines.Link != schema.LinkByID {
		t.Fatalf("link strategy = %s, want by-id", maps.Lines.Link)
	}

	// Article 1 prices from tariff 1, article 2 falls back to the list price.
	o, err := svc.CreateOrder(ctx, core.OrderInput{
		ClientID:          1,
		ShippingAddressID: intPtr(1),
		StatusCode:        "PENDING",
		OrderDate:         "2026-03-01",
	}, []core.OrderLineInput{
		{ArticleID: 1, Quantity: decimal.NewFromInt(10)},
		{ArticleID: 2, Quantity: decimal.NewFromInt(2)},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	yearPrefix := fmt.Sprintf("%d", time.Now().Year())
	if !strings.HasPrefix(o.Number, yearPrefix) || len(o.Number) != len(yearPrefix)+6 {
		t.Errorf("order number = %q, want %s followed by 6 digits", o.Number, yearPrefix)
	}
	if o.Status != "Pending" {
		t.Errorf("status = %q, want Pending", o.Status)
	}
	if o.OrderDate != "2026-03-01" {
		t.Errorf("order date = %q, want 2026-03-01", o.OrderDate)
	}
	if len(o.Lines) != 2 {
		t.Fatalf("line count = %d, want 2", len(o.Lines))
	}

	// 10 × 2.00 @ 21% and 2 × 7.50 @ 10%, no discounts.
	wantDec(t, o.Lines[0].UnitPrice, "2", "line 1 unit price")
	wantDec(t, o.Lines[0].TaxAmount, "4.2", "line 1 tax")
	wantDec(t, o.Lines[1].UnitPrice, "7.5", "line 2 unit price")
	wantDec(t, o.Base, "35", "base")
	wantDec(t, o.Tax, "5.7", "tax")
	wantDec(t, o.Subtotal, "40.7", "subtotal")
	wantDec(t, o.DiscountPct, "0", "discount pct")
	wantDec(t, o.Total, "40.7", "total")

	// Replacing with a bigger line crosses into the 5% tier (100 ≤ 242 < 500).
	res, err := svc.ReplaceOrderLines(ctx, o.ID, core.HeaderPatch{}, []core.OrderLineInput{
		{ArticleID: 1, Quantity: decimal.NewFromInt(100)},
	})
	if err != nil {
		t.Fatalf("ReplaceOrderLines failed: %v", err)
	}
	if res.DeletedLineCount != 2 || res.InsertedLineCount != 1 {
		t.Errorf("replace counts = %d deleted / %d inserted, want 2/1",
			res.DeletedLineCount, res.InsertedLineCount)
	}
	if res.ResolvedTariffID != 1 {
		t.Errorf("resolved tariff = %d, want 1", res.ResolvedTariffID)
	}
	wantDec(t, res.Totals.Subtotal, "242", "replaced subtotal")
	wantDec(t, res.Totals.DiscountPct, "5", "replaced discount pct")
	wantDec(t, res.Totals.DiscountAmount, "12.1", "replaced discount amount")
	wantDec(t, res.Totals.Total, "229.9", "replaced total")

	// Replaying the identical replace changes nothing but the line ids.
	again, err := svc.ReplaceOrderLines(ctx, o.ID, core.HeaderPatch{}, []core.OrderLineInput{
		{ArticleID: 1, Quantity: decimal.NewFromInt(100)},
	})
	if err != nil {
		t.Fatalf("repeat ReplaceOrderLines failed: %v", err)
	}
	if again.DeletedLineCount != 1 || again.InsertedLineCount != 1 {
		t.Errorf("repeat counts = %d/%d, want 1/1", again.DeletedLineCount, again.InsertedLineCount)
	}
	if !again.Totals.Total.Equal(res.Totals.Total) {
		t.Errorf("repeat total = %s, want %s", again.Totals.Total, res.Totals.Total)
	}

	del, err := svc.DeleteOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("DeleteOrder failed: %v", err)
	}
	if del.DeletedHeader != 1 || del.DeletedLines != 1 {
		t.Errorf("delete counts = %d header / %d lines, want 1/1", del.DeletedHeader, del.DeletedLines)
	}
	if _, err := svc.GetOrder(ctx, o.ID); core.KindOf(err) != core.KindNotFound {
		t.Errorf("GetOrder after delete: err = %v, want not_found", err)
	}
}

func TestOrderModes_RenamedVariant(t *testing.T) {
	pool, maps := setupVariantDB(t, renamedVariantDDL)
	svc := core.NewOrderService(pool, maps)
	ctx := context.Background()

	t.Run("transfer order prices at zero with 5pct default line discount", func(t *testing.T) {
		o, err := svc.CreateOrder(ctx, core.OrderInput{
			ClientID:  1,
			OrderType: core.TransferOrderType,
		}, []core.OrderLineInput{
			{ArticleID: 1, Quantity: decimal.NewFromInt(10)},
		})
		if err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
		wantDec(t, o.Lines[0].UnitPrice, "0", "transfer unit price")
		wantDec(t, o.Lines[0].DiscountPct, "5", "transfer line discount")
		wantDec(t, o.DiscountPct, "0", "transfer order discount")
		wantDec(t, o.Total, "0", "transfer total")
	})

	t.Run("special order falls back to the client default discount", func(t *testing.T) {
		// Client 2 has no tariff, so article 3 prices from its own base price.
		o, err := svc.CreateOrder(ctx, core.OrderInput{
			ClientID: 2,
			Special:  true,
		}, []core.OrderLineInput{
			{ArticleID: 3, Quantity: decimal.NewFromInt(1)},
		})
		if err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
		wantDec(t, o.Lines[0].UnitPrice, "3", "special unit price")
		wantDec(t, o.DiscountPct, "4", "special order discount")
		wantDec(t, o.Subtotal, "3.63", "special subtotal")
		wantDec(t, o.Total, "3.48", "special total")
	})

	t.Run("manual discount on a special order wins over the client default", func(t *testing.T) {
		o, err := svc.CreateOrder(ctx, core.OrderInput{
			ClientID:          2,
			Special:           true,
			ManualDiscountPct: decimal.NewFromInt(8),
		}, []core.OrderLineInput{
			{ArticleID: 3, Quantity: decimal.NewFromInt(1)},
		})
		if err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
		wantDec(t, o.DiscountPct, "8", "manual discount pct")
	})

	t.Run("expired tariff degrades to the list price", func(t *testing.T) {
		o, err := svc.CreateOrder(ctx, core.OrderInput{
			ClientID: 1,
			TariffID: 2, // validity window ended in 2020
		}, []core.OrderLineInput{
			{ArticleID: 2, Quantity: decimal.NewFromInt(2)},
		})
		if err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
		wantDec(t, o.Lines[0].UnitPrice, "7.5", "list price fallback")

		res, err := svc.ReplaceOrderLines(ctx, o.ID, core.HeaderPatch{}, []core.OrderLineInput{
			{ArticleID: 2, Quantity: decimal.NewFromInt(2)},
		})
		if err != nil {
			t.Fatalf("ReplaceOrderLines failed: %v", err)
		}
		if res.ResolvedTariffID != 0 {
			t.Errorf("resolved tariff = %d, want 0", res.ResolvedTariffID)
		}
	})

	t.Run("unpriceable article degrades to a flagged zero-price line", func(t *testing.T) {
		o, err := svc.CreateOrder(ctx, core.OrderInput{ClientID: 1}, []core.OrderLineInput{
			{ArticleID: 4, Quantity: decimal.NewFromInt(5)},
		})
		if err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
		if !o.Lines[0].PriceMissing {
			t.Error("line not flagged as price-missing")
		}
		wantDec(t, o.Lines[0].UnitPrice, "0", "flagged unit price")

		res, err := svc.ReplaceOrderLines(ctx, o.ID, core.HeaderPatch{}, []core.OrderLineInput{
			{ArticleID: 4, Quantity: decimal.NewFromInt(5)},
			{ArticleID: 1, Quantity: decimal.NewFromInt(1)},
		})
		if err != nil {
			t.Fatalf("ReplaceOrderLines failed: %v", err)
		}
		if res.FlaggedLineCount != 1 {
			t.Errorf("flagged line count = %d, want 1", res.FlaggedLineCount)
		}
	})
}

func TestOrderValidation_RenamedVariant(t *testing.T) {
	pool, maps := setupVariantDB(t, renamedVariantDDL)
	svc := core.NewOrderService(pool, maps)
	ctx := context.Background()

	t.Run("foreign shipping address is rejected on create", func(t *testing.T) {
		_, err := svc.CreateOrder(ctx, core.OrderInput{
			ClientID:          1,
			ShippingAddressID: intPtr(2), // belongs to client 2
		}, []core.OrderLineInput{
			{ArticleID: 1, Quantity: decimal.NewFromInt(1)},
		})
		if core.KindOf(err) != core.KindValidation {
			t.Errorf("err = %v, want validation_error", err)
		}
	})

	t.Run("foreign shipping address on replace leaves the order untouched", func(t *testing.T) {
		o, err := svc.CreateOrder(ctx, core.OrderInput{ClientID: 1}, []core.OrderLineInput{
			{ArticleID: 1, Quantity: decimal.NewFromInt(10)},
		})
		if err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}

		_, err = svc.ReplaceOrderLines(ctx, o.ID,
			core.HeaderPatch{ShippingAddressID: intPtr(2)},
			[]core.OrderLineInput{{ArticleID: 2, Quantity: decimal.NewFromInt(1)}})
		if core.KindOf(err) != core.KindValidation {
			t.Fatalf("err = %v, want validation_error", err)
		}

		after, err := svc.GetOrder(ctx, o.ID)
		if err != nil {
			t.Fatalf("GetOrder failed: %v", err)
		}
		if len(after.Lines) != 1 || after.Lines[0].ArticleID != 1 {
			t.Errorf("lines changed after failed replace: %+v", after.Lines)
		}
		if !after.Total.Equal(o.Total) {
			t.Errorf("total changed after failed replace: %s -> %s", o.Total, after.Total)
		}
		if after.ShippingAddressID != nil {
			t.Errorf("shipping address persisted from failed replace: %d", *after.ShippingAddressID)
		}
	})

	t.Run("failure on a later line rolls back the whole replace", func(t *testing.T) {
		o, err := svc.CreateOrder(ctx, core.OrderInput{ClientID: 1}, []core.OrderLineInput{
			{ArticleID: 1, Quantity: decimal.NewFromInt(10)},
			{ArticleID: 2, Quantity: decimal.NewFromInt(2)},
		})
		if err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}

		// Article 9999 passes pricing as a flagged line but trips the foreign
		// key on insert, after two lines have already been written.
		_, err = svc.ReplaceOrderLines(ctx, o.ID, core.HeaderPatch{}, []core.OrderLineInput{
			{ArticleID: 1, Quantity: decimal.NewFromInt(1)},
			{ArticleID: 2, Quantity: decimal.NewFromInt(1)},
			{ArticleID: 9999, Quantity: decimal.NewFromInt(1)},
		})
		if err == nil {
			t.Fatal("replace with unknown article succeeded")
		}

		after, err := svc.GetOrder(ctx, o.ID)
		if err != nil {
			t.Fatalf("GetOrder failed: %v", err)
		}
		if len(after.Lines) != 2 {
			t.Fatalf("line count after failed replace = %d, want 2", len(after.Lines))
		}
		if !after.Total.Equal(o.Total) {
			t.Errorf("total after failed replace = %s, want %s", after.Total, o.Total)
		}
	})

	t.Run("unknown client and empty line set are validation errors", func(t *testing.T) {
		_, err := svc.CreateOrder(ctx, core.OrderInput{ClientID: 999}, []core.OrderLineInput{
			{ArticleID: 1, Quantity: decimal.NewFromInt(1)},
		})
		if core.KindOf(err) != core.KindNotFound {
			t.Errorf("unknown client: err = %v, want not_found", err)
		}
		_, err = svc.CreateOrder(ctx, core.OrderInput{ClientID: 1}, nil)
		if core.KindOf(err) != core.KindValidation {
			t.Errorf("empty lines: err = %v, want validation_error", err)
		}
	})
}

func TestHeaderPatch_RenamedVariant(t *testing.T) {
	pool, maps := setupVariantDB(t, renamedVariantDDL)
	svc := core.NewOrderService(pool, maps)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, core.OrderInput{ClientID: 1, StatusCode: "PENDING"},
		[]core.OrderLineInput{{ArticleID: 1, Quantity: decimal.NewFromInt(10)}})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	status := "SHIPPED"
	special := true
	manual := decimal.NewFromInt(3)
	res, err := svc.ReplaceOrderLines(ctx, o.ID, core.HeaderPatch{
		StatusCode:        &status,
		Special:           &special,
		ManualDiscountPct: &manual,
		ShippingAddressID: intPtr(1),
	}, []core.OrderLineInput{{ArticleID: 1, Quantity: decimal.NewFromInt(10)}})
	if err != nil {
		t.Fatalf("ReplaceOrderLines failed: %v", err)
	}
	wantDec(t, res.Totals.DiscountPct, "3", "patched manual discount")

	after, err := svc.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if after.Status != "Shipped" {
		t.Errorf("status = %q, want Shipped", after.Status)
	}
	if !after.Special {
		t.Error("special flag not persisted")
	}
	if after.ShippingAddressID == nil || *after.ShippingAddressID != 1 {
		t.Errorf("shipping address = %v, want 1", after.ShippingAddressID)
	}
	wantDec(t, after.DiscountPct, "3", "persisted manual discount")

	// Clearing the address uses the zero sentinel.
	_, err = svc.ReplaceOrderLines(ctx, o.ID, core.HeaderPatch{ShippingAddressID: intPtr(0)},
		[]core.OrderLineInput{{ArticleID: 1, Quantity: decimal.NewFromInt(10)}})
	if err != nil {
		t.Fatalf("clearing replace failed: %v", err)
	}
	after, err = svc.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if after.ShippingAddressID != nil {
		t.Errorf("shipping address = %d, want cleared", *after.ShippingAddressID)
	}
}

func TestOrderNumberSequence_RenamedVariant(t *testing.T) {
	pool, maps := setupVariantDB(t, renamedVariantDDL)
	svc := core.NewOrderService(pool, maps)
	ctx := context.Background()

	next, err := svc.GetNextOrderNumber(ctx, 2030)
	if err != nil {
		t.Fatalf("GetNextOrderNumber failed: %v", err)
	}
	if next != "2030000001" {
		t.Errorf("next number = %q, want 2030000001", next)
	}

	// Concurrent creators must each get a distinct number for the same year.
	const workers = 5
	var wg sync.WaitGroup
	numbers := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o, err := svc.CreateOrder(ctx, core.OrderInput{ClientID: 1, Year: 2030},
				[]core.OrderLineInput{{ArticleID: 1, Quantity: decimal.NewFromInt(1)}})
			if err != nil {
				errs[i] = err
				return
			}
			numbers[i] = o.Number
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if seen[numbers[i]] {
			t.Errorf("duplicate order number %q", numbers[i])
		}
		seen[numbers[i]] = true
		if !strings.HasPrefix(numbers[i], "2030") {
			t.Errorf("number %q lacks year prefix", numbers[i])
		}
	}

	clientID := 1
	orders, err := svc.ListOrders(ctx, &clientID)
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if len(orders) != workers {
		t.Errorf("order count = %d, want %d", len(orders), workers)
	}
}

func TestOrderLifecycle_LegacyVariant(t *testing.T) {
	pool, maps := setupVariantDB(t, legacyVariantDDL)
	svc := core.NewOrderService(pool, maps)
	ctx := context.Background()

	if maps.Orders.Table != "pedidos" || maps.Orders.ID != "id_pedido" {
		t.Fatalf("orders resolved to %s.%s, want pedidos.id_pedido", maps.Orders.Table, maps.Orders.ID)
	}
	if maps.Lines.Link != schema.LinkByNumber {
		t.Fatalf("link strategy = %s, want by-number", maps.Lines.Link)
	}
	if maps.Articles.BasePrice != "pvl" {
		t.Errorf("article base price column = %q, want pvl", maps.Articles.BasePrice)
	}
	if maps.Orders.ShippingAddressID != "" {
		t.Errorf("legacy variant should have no shipping address column, got %q", maps.Orders.ShippingAddressID)
	}

	o, err := svc.CreateOrder(ctx, core.OrderInput{ClientID: 1}, []core.OrderLineInput{
		{ArticleID: 1, Quantity: decimal.NewFromInt(10)},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	// 10 × 2.50 @ 21%, below the single 10% tier.
	wantDec(t, o.Lines[0].UnitPrice, "2.5", "unit price")
	wantDec(t, o.Base, "25", "base")
	wantDec(t, o.Tax, "5.25", "tax")
	wantDec(t, o.Subtotal, "30.25", "subtotal")
	wantDec(t, o.Total, "30.25", "total")

	res, err := svc.ReplaceOrderLines(ctx, o.ID, core.HeaderPatch{}, []core.OrderLineInput{
		{ArticleID: 1, Quantity: decimal.NewFromInt(100)},
	})
	if err != nil {
		t.Fatalf("ReplaceOrderLines failed: %v", err)
	}
	wantDec(t, res.Totals.Subtotal, "302.5", "replaced subtotal")
	wantDec(t, res.Totals.DiscountPct, "10", "replaced discount pct")
	wantDec(t, res.Totals.Total, "272.25", "replaced total")

	// Patching an address on a deployment without the column is a schema error.
	_, err = svc.ReplaceOrderLines(ctx, o.ID,
		core.HeaderPatch{ShippingAddressID: intPtr(1)},
		[]core.OrderLineInput{{ArticleID: 1, Quantity: decimal.NewFromInt(1)}})
	if core.KindOf(err) != core.KindSchema {
		t.Errorf("err = %v, want schema_error", err)
	}

	del, err := svc.DeleteOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("DeleteOrder failed: %v", err)
	}
	if del.DeletedHeader != 1 || del.DeletedLines != 1 {
		t.Errorf("delete counts = %d/%d, want 1/1", del.DeletedHeader, del.DeletedLines)
	}
}

func TestCatalogs_RenamedVariant(t *testing.T) {
	pool, maps := setupVariantDB(t, renamedVariantDDL)
	svc := core.NewOrderService(pool, maps)
	ctx := context.Background()

	tiers, err := svc.DiscountTiers(ctx)
	if err != nil {
		t.Fatalf("DiscountTiers failed: %v", err)
	}
	if len(tiers) != 2 {
		t.Fatalf("tier count = %d, want 2 (inactive tier filtered)", len(tiers))
	}
	wantDec(t, tiers[0].Pct, "5", "first tier pct")
	wantDec(t, tiers[1].Pct, "10", "second tier pct")

	statuses, err := svc.OrderStatuses(ctx)
	if err != nil {
		t.Fatalf("OrderStatuses failed: %v", err)
	}
	if len(statuses) != 2 || statuses[0].Code != "PENDING" {
		t.Errorf("statuses = %+v, want PENDING then SHIPPED", statuses)
	}
}
