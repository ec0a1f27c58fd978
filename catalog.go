package main

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	keyProducts = "products"
	keyReviews  = "reviews"
)

// Catalog owns the product and review collections. Every read goes back to the store.
type Catalog struct {
	store *KVStore
}

func NewCatalog(store *KVStore) *Catalog {
	return &Catalog{store: store}
}

func (c *Catalog) List() ([]Product, error) {
	return GetOrDefault(c.store, keyProducts, []Product{})
}

func (c *Catalog) ByID(id int) (Product, error) {
	products, err := c.List()
	if err != nil {
		return Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
}

// Lookup resolves a string-encoded id such as a path or query parameter.
func (c *Catalog) Lookup(raw string) (Product, error) {
	id, err := parseID(raw)
	if err != nil {
		return Product{}, fmt.Errorf("product %q: %w", raw, ErrNotFound)
	}
	return c.ByID(id)
}

func (c *Catalog) ByCategory(category string) ([]Product, error) {
	return c.Filter(ProductFilters{Category: category})
}

func (c *Catalog) Search(query string) ([]Product, error) {
	products, err := c.List()
	if err != nil {
		return nil, err
	}
	out := []Product{}
	for _, p := range products {
		if matchesQuery(p, query) {
			out = append(out, p)
		}
	}
	return out, nil
}

// matchesQuery reports whether name, description or category contains query,
// ignoring case.
func matchesQuery(p Product, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Description), q) ||
		strings.Contains(strings.ToLower(p.Category), q)
}

func (c *Catalog) Filter(f ProductFilters) ([]Product, error) {
	products, err := c.List()
	if err != nil {
		return nil, err
	}
	out := []Product{}
	for _, p := range products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(decimal.NewFromFloat(*f.MinPrice)) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(decimal.NewFromFloat(*f.MaxPrice)) {
			continue
		}
		if f.MinRating != nil && p.Rating < *f.MinRating {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// SortProducts returns a sorted copy of products. Unknown keys keep the input order.
func SortProducts(products []Product, by SortKey) []Product {
	sorted := make([]Product, len(products))
	copy(sorted, products)
	switch by {
	case SortPriceLow:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price.LessThan(sorted[j].Price) })
	case SortPriceHigh:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price.GreaterThan(sorted[j].Price) })
	case SortRating:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rating > sorted[j].Rating })
	case SortName:
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := strings.ToLower(sorted[i].Name), strings.ToLower(sorted[j].Name)
			if a != b {
				return a < b
			}
			return sorted[i].Name < sorted[j].Name
		})
	case SortNewest:
		for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
			sorted[i], sorted[j] = sorted[j], sorted[i]
		}
	}
	return sorted
}

func (c *Catalog) Featured(limit int) ([]Product, error) {
	products, err := c.List()
	if err != nil {
		return nil, err
	}
	if limit >= 0 && len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

// Categories lists distinct categories in the order they first appear.
func (c *Catalog) Categories() ([]string, error) {
	products, err := c.List()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := []string{}
	for _, p := range products {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out, nil
}

func (c *Catalog) Add(d ProductDraft) (Product, error) {
	if d.Price.IsNegative() || d.Stock < 0 {
		return Product{}, ErrInvalidProduct
	}
	products, err := c.List()
	if err != nil {
		return Product{}, err
	}
	p := Product{
		ID:          nextID(products, func(p Product) int { return p.ID }),
		Name:        d.Name,
		Price:       d.Price,
		Category:    d.Category,
		ImageGlyph:  d.ImageGlyph,
		Description: d.Description,
		Stock:       d.Stock,
		Specs:       d.Specs,
		CreatedAt:   time.Now(),
	}
	products = append(products, p)
	if err := c.store.Set(keyProducts, products); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (c *Catalog) Update(id int, patch ProductPatch) (Product, error) {
	if (patch.Price != nil && patch.Price.IsNegative()) || (patch.Stock != nil && *patch.Stock < 0) {
		return Product{}, ErrInvalidProduct
	}
	return c.modify(id, func(p *Product) {
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Price != nil {
			p.Price = *patch.Price
		}
		if patch.Category != nil {
			p.Category = *patch.Category
		}
		if patch.ImageGlyph != nil {
			p.ImageGlyph = *patch.ImageGlyph
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.Stock != nil {
			p.Stock = *patch.Stock
		}
		if patch.Specs != nil {
			p.Specs = patch.Specs
		}
	})
}

func (c *Catalog) modify(id int, fn func(*Product)) (Product, error) {
	products, err := c.List()
	if err != nil {
		return Product{}, err
	}
	for i := range products {
		if products[i].ID != id {
			continue
		}
		fn(&products[i])
		if err := c.store.Set(keyProducts, products); err != nil {
			return Product{}, err
		}
		return products[i], nil
	}
	return Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
}

// Delete is idempotent: deleting an unknown id still succeeds.
func (c *Catalog) Delete(id int) error {
	products, err := c.List()
	if err != nil {
		return err
	}
	kept := make([]Product, 0, len(products))
	for _, p := range products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	return c.store.Set(keyProducts, kept)
}

func (c *Catalog) reviews() ([]Review, error) {
	return GetOrDefault(c.store, keyReviews, []Review{})
}

func (c *Catalog) ProductReviews(productID int) ([]Review, error) {
	reviews, err := c.reviews()
	if err != nil {
		return nil, err
	}
	out := []Review{}
	for _, r := range reviews {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out, nil
}

// AddReview stores the review and refreshes the product's rating and review
// count. If the product cannot be updated the review list is put back as it was.
func (c *Catalog) AddReview(productID int, d ReviewDraft) (Review, error) {
	if d.Rating < 1 || d.Rating > 5 {
		return Review{}, ErrInvalidReview
	}
	if _, err := c.ByID(productID); err != nil {
		return Review{}, err
	}
	reviews, err := c.reviews()
	if err != nil {
		return Review{}, err
	}
	status := d.Status
	if status == "" {
		status = ReviewPending
	}
	if !status.valid() {
		return Review{}, ErrInvalidStatus
	}
	r := Review{
		ID:        nextID(reviews, func(r Review) int { return r.ID }),
		ProductID: productID,
		UserID:    d.UserID,
		Author:    d.Author,
		Rating:    d.Rating,
		Text:      d.Text,
		Status:    status,
		CreatedAt: time.Now(),
	}
	if err := c.store.Set(keyReviews, append(reviews, r)); err != nil {
		return Review{}, err
	}
	if err := c.updateRating(productID); err != nil {
		if rbErr := c.store.Set(keyReviews, reviews); rbErr != nil {
			return Review{}, fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return Review{}, err
	}
	return r, nil
}

// updateRating sets rating to the mean of all reviews rounded to one decimal.
// With no reviews the product keeps its current values.
func (c *Catalog) updateRating(productID int) error {
	reviews, err := c.ProductReviews(productID)
	if err != nil {
		return err
	}
	if len(reviews) == 0 {
		return nil
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	avg := float64(sum) / float64(len(reviews))
	_, err = c.modify(productID, func(p *Product) {
		p.Rating = math.Round(avg*10) / 10
		p.ReviewCount = len(reviews)
	})
	return err
}
