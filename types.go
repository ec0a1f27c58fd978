package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// prices are persisted as JSON numbers, not strings
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	Price       decimal.Decimal   `json:"price"`
	Category    string            `json:"category"`
	ImageGlyph  string            `json:"image"`
	Rating      float64           `json:"rating"`
	ReviewCount int               `json:"reviews"`
	Description string            `json:"description"`
	Stock       int               `json:"stock"`
	Specs       map[string]string `json:"specs,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

type ProductDraft struct {
	Name        string            `json:"name"`
	Price       decimal.Decimal   `json:"price"`
	Category    string            `json:"category"`
	ImageGlyph  string            `json:"image"`
	Description string            `json:"description"`
	Stock       int               `json:"stock"`
	Specs       map[string]string `json:"specs"`
}

// ProductPatch lists the product fields an admin may change. Nil fields are left alone.
type ProductPatch struct {
	Name        *string           `json:"name"`
	Price       *decimal.Decimal  `json:"price"`
	Category    *string           `json:"category"`
	ImageGlyph  *string           `json:"image"`
	Description *string           `json:"description"`
	Stock       *int              `json:"stock"`
	Specs       map[string]string `json:"specs"`
}

type ProductFilters struct {
	Category  string   `schema:"category"`
	MinPrice  *float64 `schema:"minPrice"`
	MaxPrice  *float64 `schema:"maxPrice"`
	MinRating *float64 `schema:"minRating"`
}

type SortKey string

const (
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
	SortRating    SortKey = "rating"
	SortName      SortKey = "name"
	SortNewest    SortKey = "newest"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type User struct {
	ID        int       `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"password,omitempty"` // bcrypt hash
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type UserPatch struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
}

type CartLine struct {
	ProductID int       `json:"productId"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

// CartItem is a cart line joined with the catalog. Product is nil when the
// referenced product no longer exists.
type CartItem struct {
	CartLine
	Product  *Product        `json:"product"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type CartSummary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
	Items    []CartItem      `json:"items"`
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

type OrderLine struct {
	ProductID int             `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID        int             `json:"id"`
	UserID    int             `json:"userId"`
	Items     []OrderLine     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Status    OrderStatus     `json:"status"`
	PaymentID string          `json:"paymentId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type OrderFilter struct {
	Status OrderStatus `schema:"status"`
	UserID int         `schema:"userId"`
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

func (s ReviewStatus) valid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return true
	}
	return false
}

type Review struct {
	ID        int          `json:"id"`
	ProductID int          `json:"productId"`
	UserID    int          `json:"userId,omitempty"`
	Author    string       `json:"author,omitempty"`
	Rating    int          `json:"rating"`
	Text      string       `json:"text"`
	Status    ReviewStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt *time.Time   `json:"updatedAt,omitempty"`
}

type ReviewDraft struct {
	UserID int          `json:"userId"`
	Author string       `json:"author"`
	Rating int          `json:"rating"`
	Text   string       `json:"text"`
	Status ReviewStatus `json:"status"`
}

type ReviewFilter struct {
	ProductID int          `schema:"productId"`
	Status    ReviewStatus `schema:"status"`
}

type PaymentMethod string

const (
	MethodCreditCard PaymentMethod = "credit-card"
	MethodDebitCard  PaymentMethod = "debit-card"
	MethodPayPal     PaymentMethod = "paypal"
	MethodGooglePay  PaymentMethod = "google-pay"
)

type PaymentDetails struct {
	Method   PaymentMethod   `json:"method"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency,omitempty"`
}

type Transaction struct {
	ID          string          `json:"id"`
	Method      PaymentMethod   `json:"method"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency,omitempty"`
	Status      string          `json:"status"`
	ProcessedAt time.Time       `json:"processedAt"`
}

type Refund struct {
	RefundID      string          `json:"refundId"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	ProcessedAt   time.Time       `json:"processedAt"`
}

type DashboardStats struct {
	TotalOrders    int                 `json:"totalOrders"`
	TotalRevenue   decimal.Decimal     `json:"totalRevenue"`
	TotalProducts  int                 `json:"totalProducts"`
	TotalUsers     int                 `json:"totalUsers"`
	TotalReviews   int                 `json:"totalReviews"`
	OrdersByStatus map[OrderStatus]int `json:"ordersByStatus"`
	TopProducts    []Product           `json:"topProducts"`
	RecentOrders   []Order             `json:"recentOrders"`
}

type SystemStats struct {
	Products struct {
		Total    int `json:"total"`
		LowStock int `json:"lowStock"`
	} `json:"products"`
	Orders struct {
		Total     int `json:"total"`
		Pending   int `json:"pending"`
		Completed int `json:"completed"`
	} `json:"orders"`
	Users struct {
		Total     int `json:"total"`
		Admins    int `json:"admins"`
		Customers int `json:"customers"`
	} `json:"users"`
}

// flexID accepts ids sent either as JSON numbers or as strings.
type flexID int

func (f *flexID) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("id must be a number or a numeric string: %s", b)
	}
	n, err := parseID(s)
	if err != nil {
		return err
	}
	*f = flexID(n)
	return nil
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// nextID returns max(existing ids ∪ {0}) + 1. Callers rely on a single writer.
func nextID[T any](items []T, id func(T) int) int {
	highest := 0
	for _, it := range items {
		if v := id(it); v > highest {
			highest = v
		}
	}
	return highest + 1
}
