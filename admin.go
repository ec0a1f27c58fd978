package main

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const keyOrders = "orders"

const (
	topProductsLimit  = 5
	recentOrdersLimit = 5
	lowStockThreshold = 10
)

// Admin serves the order book, the review board and the dashboard counters.
type Admin struct {
	store   *KVStore
	catalog *Catalog
	ledger  *Ledger
}

func NewAdmin(store *KVStore, catalog *Catalog, ledger *Ledger) *Admin {
	if !ledger.IsAdmin() {
		log.Println("admin: current session has no admin access")
	}
	return &Admin{store: store, catalog: catalog, ledger: ledger}
}

func (a *Admin) orders() ([]Order, error) {
	return GetOrDefault(a.store, keyOrders, []Order{})
}

// PlaceOrder records a paid cart as a pending order.
func (a *Admin) PlaceOrder(userID int, summary CartSummary, tx Transaction) (Order, error) {
	orders, err := a.orders()
	if err != nil {
		return Order{}, err
	}
	lines := make([]OrderLine, 0, len(summary.Items))
	for _, it := range summary.Items {
		line := OrderLine{ProductID: it.ProductID, Quantity: it.Quantity, Subtotal: it.Subtotal}
		if it.Product != nil {
			line.Name = it.Product.Name
			line.Price = it.Product.Price
		}
		lines = append(lines, line)
	}
	now := time.Now()
	o := Order{
		ID:        nextID(orders, func(o Order) int { return o.ID }),
		UserID:    userID,
		Items:     lines,
		Total:     summary.Total,
		Status:    OrderPending,
		PaymentID: tx.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.Set(keyOrders, append(orders, o)); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (a *Admin) Orders(f OrderFilter) ([]Order, error) {
	orders, err := a.orders()
	if err != nil {
		return nil, err
	}
	out := []Order{}
	for _, o := range orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.UserID != 0 && o.UserID != f.UserID {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// UpdateOrderStatus accepts any non-empty status; the set is open.
func (a *Admin) UpdateOrderStatus(id int, status OrderStatus) (Order, error) {
	if status == "" {
		return Order{}, ErrInvalidStatus
	}
	orders, err := a.orders()
	if err != nil {
		return Order{}, err
	}
	for i := range orders {
		if orders[i].ID != id {
			continue
		}
		orders[i].Status = status
		orders[i].UpdatedAt = time.Now()
		if err := a.store.Set(keyOrders, orders); err != nil {
			return Order{}, err
		}
		return orders[i], nil
	}
	return Order{}, fmt.Errorf("order %d: %w", id, ErrNotFound)
}

func (a *Admin) Reviews(f ReviewFilter) ([]Review, error) {
	reviews, err := a.catalog.reviews()
	if err != nil {
		return nil, err
	}
	out := []Review{}
	for _, r := range reviews {
		if f.ProductID != 0 && r.ProductID != f.ProductID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (a *Admin) ModerateReview(id int, status ReviewStatus) (Review, error) {
	if !status.valid() {
		return Review{}, ErrInvalidStatus
	}
	reviews, err := a.catalog.reviews()
	if err != nil {
		return Review{}, err
	}
	for i := range reviews {
		if reviews[i].ID != id {
			continue
		}
		now := time.Now()
		reviews[i].Status = status
		reviews[i].UpdatedAt = &now
		if err := a.store.Set(keyReviews, reviews); err != nil {
			return Review{}, err
		}
		return reviews[i], nil
	}
	return Review{}, fmt.Errorf("review %d: %w", id, ErrNotFound)
}

// TopProducts returns the n products with the most reviews.
func (a *Admin) TopProducts(n int) ([]Product, error) {
	products, err := a.catalog.List()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].ReviewCount > products[j].ReviewCount
	})
	if len(products) > n {
		products = products[:n]
	}
	return products, nil
}

func (a *Admin) DashboardStats() (DashboardStats, error) {
	orders, err := a.orders()
	if err != nil {
		return DashboardStats{}, err
	}
	products, err := a.catalog.List()
	if err != nil {
		return DashboardStats{}, err
	}
	users, err := a.ledger.Users()
	if err != nil {
		return DashboardStats{}, err
	}
	reviews, err := a.catalog.reviews()
	if err != nil {
		return DashboardStats{}, err
	}
	top, err := a.TopProducts(topProductsLimit)
	if err != nil {
		return DashboardStats{}, err
	}

	stats := DashboardStats{
		TotalOrders:    len(orders),
		TotalRevenue:   decimal.Zero,
		TotalProducts:  len(products),
		TotalUsers:     len(users),
		TotalReviews:   len(reviews),
		OrdersByStatus: map[OrderStatus]int{},
		TopProducts:    top,
	}
	for _, o := range orders {
		stats.TotalRevenue = stats.TotalRevenue.Add(o.Total)
		stats.OrdersByStatus[o.Status]++
	}
	recent := orders
	if len(recent) > recentOrdersLimit {
		recent = recent[len(recent)-recentOrdersLimit:]
	}
	stats.RecentOrders = recent
	return stats, nil
}

func (a *Admin) SystemStats() (SystemStats, error) {
	var stats SystemStats
	products, err := a.catalog.List()
	if err != nil {
		return stats, err
	}
	orders, err := a.orders()
	if err != nil {
		return stats, err
	}
	users, err := a.ledger.Users()
	if err != nil {
		return stats, err
	}

	stats.Products.Total = len(products)
	for _, p := range products {
		if p.Stock < lowStockThreshold {
			stats.Products.LowStock++
		}
	}
	stats.Orders.Total = len(orders)
	for _, o := range orders {
		switch o.Status {
		case OrderPending:
			stats.Orders.Pending++
		case OrderDelivered:
			stats.Orders.Completed++
		}
	}
	stats.Users.Total = len(users)
	for _, u := range users {
		switch u.Role {
		case RoleAdmin:
			stats.Users.Admins++
		case RoleUser:
			stats.Users.Customers++
		}
	}
	return stats, nil
}
