package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const keyCart = "cart"

var (
	taxRate      = decimal.RequireFromString("0.1")
	shippingCost = decimal.NewFromInt(10)
)

// ProductFinder is the part of the catalog the cart depends on.
type ProductFinder interface {
	ByID(id int) (Product, error)
}

// Basket is the single cart of this store namespace. Lines are loaded once and
// written back after every mutation.
type Basket struct {
	store   *KVStore
	catalog ProductFinder
	lines   []CartLine
}

func NewBasket(store *KVStore, catalog ProductFinder) (*Basket, error) {
	lines, err := GetOrDefault(store, keyCart, []CartLine{})
	if err != nil {
		return nil, err
	}
	return &Basket{store: store, catalog: catalog, lines: lines}, nil
}

// commit persists next and only then makes it the cached cart.
func (b *Basket) commit(next []CartLine) error {
	if err := b.store.Set(keyCart, next); err != nil {
		return err
	}
	b.lines = next
	return nil
}

func (b *Basket) AddItem(productID, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if _, err := b.catalog.ByID(productID); err != nil {
		return err
	}
	next := b.Lines()
	for i := range next {
		if next[i].ProductID == productID {
			next[i].Quantity += quantity
			return b.commit(next)
		}
	}
	next = append(next, CartLine{
		ProductID: productID,
		Quantity:  quantity,
		AddedAt:   time.Now(),
	})
	return b.commit(next)
}

func (b *Basket) RemoveItem(productID int) error {
	kept := make([]CartLine, 0, len(b.lines))
	for _, l := range b.lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	return b.commit(kept)
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
func (b *Basket) UpdateQuantity(productID, quantity int) error {
	next := b.Lines()
	for i := range next {
		if next[i].ProductID != productID {
			continue
		}
		if quantity <= 0 {
			return b.RemoveItem(productID)
		}
		next[i].Quantity = quantity
		return b.commit(next)
	}
	return fmt.Errorf("cart item %d: %w", productID, ErrNotFound)
}

func (b *Basket) Clear() error {
	return b.commit([]CartLine{})
}

func (b *Basket) HasProduct(productID int) bool {
	for _, l := range b.lines {
		if l.ProductID == productID {
			return true
		}
	}
	return false
}

func (b *Basket) Count() int {
	n := 0
	for _, l := range b.lines {
		n += l.Quantity
	}
	return n
}

func (b *Basket) Lines() []CartLine {
	out := make([]CartLine, len(b.lines))
	copy(out, b.lines)
	return out
}

// Items joins each line with the catalog. A line whose product was deleted
// keeps a nil product and a zero subtotal.
func (b *Basket) Items() ([]CartItem, error) {
	items := make([]CartItem, 0, len(b.lines))
	for _, l := range b.lines {
		item := CartItem{CartLine: l, Subtotal: decimal.Zero}
		p, err := b.catalog.ByID(l.ProductID)
		switch {
		case err == nil:
			item.Product = &p
			item.Subtotal = p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		case isNotFound(err):
		default:
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (b *Basket) Total() (decimal.Decimal, error) {
	items, err := b.Items()
	if err != nil {
		return decimal.Zero, err
	}
	return sumSubtotals(items), nil
}

// Summary applies the fixed pricing rule: 10% tax and a flat shipping fee of 10.
func (b *Basket) Summary() (CartSummary, error) {
	items, err := b.Items()
	if err != nil {
		return CartSummary{}, err
	}
	subtotal := sumSubtotals(items)
	tax := subtotal.Mul(taxRate)
	return CartSummary{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shippingCost,
		Total:    subtotal.Add(tax).Add(shippingCost),
		Count:    b.Count(),
		Items:    items,
	}, nil
}

func sumSubtotals(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	return total
}
