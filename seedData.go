package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Bootstrap seeds a fresh namespace. Existing keys are never overwritten.
func Bootstrap(store *KVStore, bcryptCost int) error {
	log.Println("Initializing store...")
	seeds := []struct {
		key   string
		value func() (any, error)
	}{
		{keyProducts, func() (any, error) { return defaultProducts(), nil }},
		{keyUsers, func() (any, error) { return defaultUsers(bcryptCost) }},
		{keyCart, func() (any, error) { return []CartLine{}, nil }},
		{keyOrders, func() (any, error) { return []Order{}, nil }},
		{keyReviews, func() (any, error) { return []Review{}, nil }},
	}
	for _, s := range seeds {
		ok, err := store.Has(s.key)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		v, err := s.value()
		if err != nil {
			return err
		}
		if err := store.Set(s.key, v); err != nil {
			return err
		}
	}
	log.Println("Store initialized.")
	return nil
}

func defaultProducts() []Product {
	now := time.Now()
	p := func(id int, name, price, category, glyph string, rating float64, reviews int, desc string, stock int, specs map[string]string) Product {
		return Product{
			ID:          id,
			Name:        name,
			Price:       decimal.RequireFromString(price),
			Category:    category,
			ImageGlyph:  glyph,
			Rating:      rating,
			ReviewCount: reviews,
			Description: desc,
			Stock:       stock,
			Specs:       specs,
			CreatedAt:   now,
		}
	}
	return []Product{
		p(1, "Wireless Headphones", "79.99", "Electronics", "🎧", 4.5, 120,
			"Premium wireless headphones with noise cancellation", 50,
			map[string]string{"battery": "30 hours", "connectivity": "Bluetooth 5.0", "weight": "250g"}),
		p(2, "Smart Watch", "199.99", "Electronics", "⌚", 4.3, 95,
			"Feature-rich smartwatch with health monitoring", 35,
			map[string]string{"display": `1.4" AMOLED`, "battery": "14 days", "waterproof": "5ATM"}),
		p(3, "Running Shoes", "89.99", "Footwear", "👟", 4.6, 200,
			"Comfortable running shoes for athletes", 100,
			map[string]string{"material": "Mesh", "sole": "Rubber", "sizes": "6-14"}),
		p(4, "Winter Jacket", "129.99", "Fashion", "🧥", 4.4, 85,
			"Warm and stylish winter jacket", 40,
			map[string]string{"material": "Polyester", "insulation": "Down-filled", "colors": "Black, Blue, Red"}),
		p(5, "Coffee Maker", "59.99", "Home", "☕", 4.2, 110,
			"Automatic drip coffee maker", 60,
			map[string]string{"capacity": "12 cups", "power": "1000W", "features": "Programmable timer"}),
		p(6, "Yoga Mat", "29.99", "Home", "🧘", 4.7, 150,
			"Non-slip yoga mat for workouts", 80,
			map[string]string{"material": "TPE", "thickness": "6mm", "length": "173cm"}),
		p(7, "Desk Lamp", "39.99", "Home", "💡", 4.5, 75,
			"LED desk lamp with adjustable brightness", 45,
			map[string]string{"brightness": "Dimmable", "color": "Warm/Cool", "power": "USB-C"}),
		p(8, "Gaming Mouse", "59.99", "Electronics", "🖱️", 4.8, 180,
			"High-precision gaming mouse", 70,
			map[string]string{"dpi": "16000", "buttons": "8", "weight": "95g"}),
	}
}

func defaultUsers(bcryptCost int) ([]User, error) {
	adminHash, err := HashPassword("admin123", bcryptCost)
	if err != nil {
		return nil, err
	}
	userHash, err := HashPassword("user123", bcryptCost)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return []User{
		{
			ID:        1,
			Email:     "admin@ecomhub.com",
			Password:  adminHash,
			Name:      "Admin User",
			Role:      RoleAdmin,
			Phone:     "+1-800-ADMIN",
			Address:   "123 Admin Street, Admin City",
			CreatedAt: now,
		},
		{
			ID:        2,
			Email:     "user@ecomhub.com",
			Password:  userHash,
			Name:      "John Doe",
			Role:      RoleUser,
			Phone:     "+1-800-USER",
			Address:   "456 User Avenue, User Town",
			CreatedAt: now,
		},
	}, nil
}

// SeedWithData imports products from a text file with one product per line:
// name;description;price;stock;category[;image]
func SeedWithData(catalog *Catalog, fileName string) (int, error) {
	readFile, err := os.Open(fileName)
	if err != nil {
		return 0, err
	}
	defer readFile.Close()
	scanner := bufio.NewScanner(readFile)
	scanner.Split(bufio.ScanLines)
	added := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		draft, err := parseSeedLine(line)
		if err != nil {
			return added, fmt.Errorf("%s:%d: %w", fileName, lineNo, err)
		}
		p, err := catalog.Add(draft)
		if err != nil {
			return added, fmt.Errorf("%s:%d: %w", fileName, lineNo, err)
		}
		log.Printf("seed: inserted product %d %q", p.ID, p.Name)
		added++
	}
	return added, scanner.Err()
}

func parseSeedLine(line string) (ProductDraft, error) {
	strs := strings.Split(line, ";")
	if len(strs) < 5 {
		return ProductDraft{}, fmt.Errorf("want at least 5 fields, got %d", len(strs))
	}
	price, err := decimal.NewFromString(strings.TrimSpace(strs[2]))
	if err != nil {
		return ProductDraft{}, fmt.Errorf("price: %w", err)
	}
	stock, err := strconv.Atoi(strings.TrimSpace(strs[3]))
	if err != nil {
		return ProductDraft{}, fmt.Errorf("stock: %w", err)
	}
	d := ProductDraft{
		Name:        strings.TrimSpace(strs[0]),
		Description: strings.TrimSpace(strs[1]),
		Price:       price,
		Stock:       stock,
		Category:    strings.TrimSpace(strs[4]),
	}
	if len(strs) > 5 {
		d.ImageGlyph = strings.TrimSpace(strs[5])
	}
	return d, nil
}
