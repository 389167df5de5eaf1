package main

import (
	"context"
	"log"
	"net/http"
	"os"

	webAdapter "order-engine/internal/adapters/web"
	"order-engine/internal/app"
	"order-engine/internal/core"
	"order-engine/internal/db"
	"order-engine/internal/schema"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	// Discovery runs once at startup; a deployment whose schema is missing a
	// mandatory column should fail here, not on the first order write.
	maps, err := schema.Discover(ctx, schema.NewResolver(pool))
	if err != nil {
		log.Fatalf("schema discovery: %v", err)
	}
	log.Printf("schema: orders=%s lines=%s link=%s",
		maps.Orders.Table, maps.Lines.Table, maps.Lines.Link)

	orderService := core.NewOrderService(pool, maps)
	svc := app.NewService(orderService)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins)

	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
