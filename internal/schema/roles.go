package schema

import (
	"context"
	"fmt"
)

// MissingRoleError reports a mandatory semantic column that could not be
// resolved against the discovered schema. It indicates a deployment problem
// an operator must fix, never something to retry.
type MissingRoleError struct {
	Table string
	Role  string
}

func (e *MissingRoleError) Error() string {
	return fmt.Sprintf("schema: no column for role %s in table %s", e.Role, e.Table)
}

// LinkStrategy says how order lines reference their order header. It is
// decided once during discovery, never re-decided per statement. When both
// links exist, deletes go through the numeric id: a reused order number must
// never be able to touch unrelated lines.
type LinkStrategy int

const (
	LinkByID LinkStrategy = iota
	LinkByNumber
	LinkBoth
)

func (s LinkStrategy) String() string {
	switch s {
	case LinkByID:
		return "by-id"
	case LinkByNumber:
		return "by-number"
	case LinkBoth:
		return "both"
	}
	return "unknown"
}

// OrderColumns maps the semantic roles of the order header table.
// Empty string means the deployment has no column for that role.
type OrderColumns struct {
	Table string

	ID                string
	Number            string
	ClientID          string
	ShippingAddressID string
	TariffID          string
	StatusID          string
	StatusText        string
	OrderDate         string

	Base           string
	Tax            string
	Subtotal       string
	DiscountPct    string
	DiscountAmount string
	Total          string

	Special   string
	OrderType string
}

type LineColumns struct {
	Table string

	ID          string
	OrderID     string
	OrderNumber string
	ArticleID   string

	Quantity    string
	UnitPrice   string
	DiscountPct string
	TaxPct      string
	Base        string
	TaxAmount   string
	Total       string

	PriceMissing string

	Link LinkStrategy
}

type TariffColumns struct {
	Table string

	ID        string
	Name      string
	Active    string
	ValidFrom string
	ValidTo   string
}

type TariffPriceColumns struct {
	Table string

	TariffID  string
	ArticleID string
	Price     string
}

type TierColumns struct {
	Table string

	ID       string
	From     string
	To       string
	Pct      string
	Active   string
	Position string
}

type StatusColumns struct {
	Table string

	ID       string
	Code     string
	Name     string
	Color    string
	Active   string
	Position string
}

type ClientColumns struct {
	Table string

	ID          string
	TariffID    string
	DiscountPct string
}

type ArticleColumns struct {
	Table string

	ID        string
	Name      string
	BasePrice string
	TaxPct    string
}

type AddressColumns struct {
	Table string

	ID       string
	ClientID string
}

// Maps is the fully resolved schema of one deployment, built once and passed
// by reference to every service. Constructing two Maps against two databases
// is how the test suite exercises both naming variants.
type Maps struct {
	Orders       OrderColumns
	Lines        LineColumns
	Tariffs      TariffColumns
	TariffPrices TariffPriceColumns
	Tiers        TierColumns
	Statuses     StatusColumns
	Clients      ClientColumns
	Articles     ArticleColumns
	Addresses    AddressColumns
}

// Discover resolves every table the engine touches. It fails on the first
// mandatory role that cannot be placed; optional roles resolve to "".
func Discover(ctx context.Context, r *Resolver) (*Maps, error) {
	m := &Maps{}

	if err := discoverOrders(ctx, r, &m.Orders); err != nil {
		return nil, err
	}
	if err := discoverLines(ctx, r, &m.Lines); err != nil {
		return nil, err
	}
	if err := discoverTariffs(ctx, r, &m.Tariffs); err != nil {
		return nil, err
	}
	if err := discoverTariffPrices(ctx, r, &m.TariffPrices); err != nil {
		return nil, err
	}
	if err := discoverTiers(ctx, r, &m.Tiers); err != nil {
		return nil, err
	}
	if err := discoverStatuses(ctx, r, &m.Statuses); err != nil {
		return nil, err
	}
	if err := discoverClients(ctx, r, &m.Clients); err != nil {
		return nil, err
	}
	if err := discoverArticles(ctx, r, &m.Articles); err != nil {
		return nil, err
	}
	// Shipping addresses only matter when the header can reference one.
	if m.Orders.ShippingAddressID != "" {
		if err := discoverAddresses(ctx, r, &m.Addresses); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// rolePicker accumulates lookups against one table's column list so each
// discover function reads as a flat role table.
type rolePicker struct {
	table   string
	columns []string
	missing *MissingRoleError
}

func newRolePicker(ctx context.Context, r *Resolver, bases ...string) (*rolePicker, error) {
	table := r.ResolveTable(ctx, bases...)
	cols, err := r.Columns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("discovering %s: %w", table, err)
	}
	return &rolePicker{table: table, columns: cols}, nil
}

func (p *rolePicker) required(role string, candidates ...string) string {
	col := PickColumn(p.columns, candidates...)
	if col == "" && p.missing == nil {
		p.missing = &MissingRoleError{Table: p.table, Role: role}
	}
	return col
}

func (p *rolePicker) optional(candidates ...string) string {
	return PickColumn(p.columns, candidates...)
}

func (p *rolePicker) err() error {
	if p.missing != nil {
		return p.missing
	}
	return nil
}

func discoverOrders(ctx context.Context, r *Resolver, c *OrderColumns) error {
	p, err := newRolePicker(ctx, r, "orders", "pedidos")
	if err != nil {
		return err
	}
	c.Table = p.table
	c.ID = p.required("OrderID", "id", "id_pedido", "idpedido")
	c.Number = p.required("OrderNumber", "order_number", "numero", "num_pedido")
	c.ClientID = p.required("ClientID", "client_id", "customer_id", "id_cliente", "cliente")
	c.ShippingAddressID = p.optional("shipping_address_id", "address_id", "id_direccion", "direccion_envio")
	c.TariffID = p.optional("tariff_id", "price_list_id", "id_tarifa", "tarifa")
	c.StatusID = p.optional("status_id", "id_estado")
	c.StatusText = p.optional("status", "estado")
	c.OrderDate = p.optional("order_date", "fecha", "fecha_pedido")
	c.Base = p.required("BaseAmount", "base_amount", "base", "base_imponible")
	c.Tax = p.required("TaxAmount", "tax_amount", "iva", "importe_iva")
	c.Subtotal = p.required("Subtotal", "subtotal", "subtotal_amount")
	c.DiscountPct = p.required("DiscountPct", "discount_pct", "descuento", "dto")
	c.DiscountAmount = p.optional("discount_amount", "importe_descuento")
	c.Total = p.required("Total", "total", "total_amount", "importe_total")
	c.Special = p.optional("special", "is_special", "especial")
	c.OrderType = p.optional("order_type", "tipo", "tipo_pedido")
	return p.err()
}

func discoverLines(ctx context.Context, r *Resolver, c *LineColumns) error {
	p, err := newRolePicker(ctx, r, "order_lines", "lineas_pedido", "lineaspedido")
	if err != nil {
		return err
	}
	c.Table = p.table
	c.ID = p.optional("id", "id_linea")
	c.OrderID = p.optional("order_id", "id_pedido", "pedido_id")
	c.OrderNumber = p.optional("order_number", "numero_pedido", "numpedido")
	c.ArticleID = p.required("ArticleID", "article_id", "product_id", "id_articulo", "articulo")
	c.Quantity = p.required("Quantity", "quantity", "qty", "cantidad")
	c.UnitPrice = p.required("UnitPrice", "unit_price", "price", "precio")
	c.DiscountPct = p.required("LineDiscountPct", "discount_pct", "descuento", "dto")
	c.TaxPct = p.required("LineTaxPct", "tax_pct", "iva_pct", "iva")
	c.Base = p.required("LineBase", "base_amount", "base")
	c.TaxAmount = p.required("LineTaxAmount", "tax_amount", "importe_iva", "cuota_iva")
	c.Total = p.required("LineTotal", "total", "importe", "total_linea")
	c.PriceMissing = p.optional("price_missing", "sin_precio")

	switch {
	case c.OrderID != "" && c.OrderNumber != "":
		c.Link = LinkBoth
	case c.OrderID != "":
		c.Link = LinkByID
	case c.OrderNumber != "":
		c.Link = LinkByNumber
	default:
		return &MissingRoleError{Table: p.table, Role: "OrderLink"}
	}
	return p.err()
}

func discoverTariffs(ctx context.Context, r *Resolver, c *TariffColumns) error {
	p, err := newRolePicker(ctx, r, "tariffs", "tarifas")
	if err != nil {
		return err
	}
	c.Table = p.table
	c.ID = p.required("TariffID", "id", "id_tarifa")
	c.Name = p.optional("name", "nombre")
	c.Active = p.required("TariffActive", "active", "activa", "activo")
	c.ValidFrom = p.optional("valid_from", "fecha_desde", "fecha_inicio")
	c.ValidTo = p.optional("valid_to", "fecha_hasta", "fecha_fin")
	return p.err()
}

func discoverTariffPrices(ctx context.Context, r *Resolver, c *TariffPriceColumns) error {
	p, err := newRolePicker(ctx, r, "tariff_prices", "precios_tarifa", "preciostarifa")
	if err != nil {
		return err
	}
	c.Table = p.table
	c.TariffID = p.required("PriceTariffID", "tariff_id", "id_tarifa", "tarifa")
	c.ArticleID = p.required("PriceArticleID", "article_id", "id_articulo", "articulo")
	c.Price = p.required("Price", "price", "precio", "pvp")
	return p.err()
}

func discoverTiers(ctx context.Context, r *Resolver, c *TierColumns) error {
	p, err := newRolePicker(ctx, r, "discount_tiers", "descuentos", "tramos_descuento")
	if err != nil {
		return err
	}
	c.Table = p.table
	c.ID = p.optional("id")
	c.From = p.required("TierFrom", "from_amount", "desde", "importe_desde")
	c.To = p.optional("to_amount", "hasta", "importe_hasta")
	c.Pct = p.required("TierPct", "pct", "discount_pct", "descuento")
	c.Active = p.optional("active", "activo")
	c.Position = p.optional("position", "sort_order", "orden")
	return p.err()
}

func discoverStatuses(ctx context.Context, r *Resolver, c *StatusColumns) error {
	p, err := newRolePicker(ctx, r, "order_statuses", "estados_pedido", "estados")
	if err != nil {
		return err
	}
	c.Table = p.table
	c.ID = p.required("StatusID", "id", "id_estado")
	c.Code = p.optional("code", "codigo")
	c.Name = p.required("StatusName", "name", "nombre", "estado")
	c.Color = p.optional("color")
	c.Active = p.optional("active", "activo")
	c.Position = p.optional("position", "orden")
	return p.err()
}

func discoverClients(ctx context.Context, r *Resolver, c *ClientColumns) error {
	p, err := newRolePicker(ctx, r, "clients", "customers", "clientes")
	if err != nil {
		return err
	}
	c.Table = p.table
	c.ID = p.required("ClientID", "id", "id_cliente")
	c.TariffID = p.optional("tariff_id", "id_tarifa", "tarifa")
	c.DiscountPct = p.optional("discount_pct", "descuento")
	return p.err()
}

func discoverArticles(ctx context.Context, r *Resolver, c *ArticleColumns) error {
	p, err := newRolePicker(ctx, r, "articles", "products", "articulos")
	if err != nil {
		return err
	}
	c.Table = p.table
	c.ID = p.required("ArticleID", "id", "id_articulo")
	c.Name = p.optional("name", "nombre")
	c.BasePrice = p.required("ArticleBasePrice", "base_price", "pvl", "precio")
	c.TaxPct = p.required("ArticleTaxPct", "tax_pct", "iva", "tipo_iva")
	return p.err()
}

func discoverAddresses(ctx context.Context, r *Resolver, c *AddressColumns) error {
	p, err := newRolePicker(ctx, r, "shipping_addresses", "direcciones_envio", "direcciones")
	if err != nil {
		return err
	}
	c.Table = p.table
	c.ID = p.required("AddressID", "id", "id_direccion")
	c.ClientID = p.required("AddressClientID", "client_id", "id_cliente", "cliente")
	return p.err()
}
