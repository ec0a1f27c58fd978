package main

import (
	"log"
	"os"
)

func main() {
	cfg, err := LoadConfig(os.Getenv("ECOMHUB_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	medium, err := cfg.OpenMedium()
	if err != nil {
		log.Fatal(err)
	}
	store := NewKVStore(medium, cfg.Namespace)
	if err := Bootstrap(store, cfg.BcryptCost); err != nil {
		log.Fatal(err)
	}

	catalog := NewCatalog(store)
	ledger, err := NewLedger(store, cfg.BcryptCost)
	if err != nil {
		log.Fatal(err)
	}
	basket, err := NewBasket(store, catalog)
	if err != nil {
		log.Fatal(err)
	}
	// optional bulk import, e.g. SEED_FILE=products.txt
	if cfg.SeedFile != "" {
		n, err := SeedWithData(catalog, cfg.SeedFile)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("seeded %d products from %s", n, cfg.SeedFile)
	}

	server := NewAPIServer(cfg, Services{
		Catalog:  catalog,
		Ledger:   ledger,
		Basket:   basket,
		Checkout: NewCheckout(),
		Admin:    NewAdmin(store, catalog, ledger),
		Stripe:   NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.Currency),
	})
	log.Fatal(server.Run())
}
