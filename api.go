package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/mail"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt"
	"github.com/gorilla/schema"
	"github.com/shopspring/decimal"
)

var (
	errUnauthorized = errors.New("unauthorized")
	errAdminOnly    = errors.New("admin access required")
	errUnsupported  = errors.New("action not supported")
	errEmptyCart    = errors.New("cart is empty")
)

// Services bundles everything the API serves. Built once in main.
type Services struct {
	Catalog  *Catalog
	Ledger   *Ledger
	Basket   *Basket
	Checkout *Checkout
	Admin    *Admin
	Stripe   *StripeGateway
}

type APIServer struct {
	listenAddr     string
	svc            Services
	jwtKey         []byte
	jwtTTL         time.Duration
	publishableKey string
	decoder        *schema.Decoder

	// mu serializes requests; the services assume a single writer.
	mu sync.Mutex
}

func NewAPIServer(cfg *Config, svc Services) *APIServer {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &APIServer{
		listenAddr:     cfg.ListenAddr,
		svc:            svc,
		jwtKey:         []byte(cfg.JWTSecret),
		jwtTTL:         cfg.JWTTTL,
		publishableKey: cfg.Stripe.PublishableKey,
		decoder:        decoder,
	}
}

func enableCors(w *http.ResponseWriter, req *http.Request) {
	(*w).Header().Set("Access-Control-Allow-Origin", "*")
	(*w).Header().Set("Access-Control-Allow-Methods", "DELETE, POST, GET, OPTIONS")
	(*w).Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Authorization, X-Requested-With, Authorization")
	(*w).Header().Set("Access-Control-Allow-Credentials", "true")
}

func (s *APIServer) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/{action}/{type}", s.makeHTTPHandleFunc(s.withJWTauthAdmin(s.handleAdmin)))
	mux.HandleFunc("/products", s.makeHTTPHandleFunc(s.handleProducts))
	mux.HandleFunc("/product/{id}", s.makeHTTPHandleFunc(s.handleProductByID))
	mux.HandleFunc("/product/{id}/reviews", s.makeHTTPHandleFunc(s.handleProductReviews))
	mux.HandleFunc("/categories", s.makeHTTPHandleFunc(s.handleCategories))
	mux.HandleFunc("/cart", s.makeHTTPHandleFunc(s.handleCart))
	mux.HandleFunc("/cart/clear", s.makeHTTPHandleFunc(s.handleCartClear))
	mux.HandleFunc("/cart/{action}/{id}", s.makeHTTPHandleFunc(s.handleCartActions))
	mux.HandleFunc("/checkout", s.makeHTTPHandleFunc(s.withJWTauth(s.handleCheckout)))
	mux.HandleFunc("/config", s.makeHTTPHandleFunc(s.handleConfig))
	mux.HandleFunc("/payment/intent", s.makeHTTPHandleFunc(s.withJWTauth(s.handlePaymentIntent)))
	mux.HandleFunc("/payment/webhook", s.makeHTTPHandleFunc(s.handleWebhook))
	mux.HandleFunc("/account", s.makeHTTPHandleFunc(s.withJWTauth(s.handleAccount)))
	mux.HandleFunc("/login", s.makeHTTPHandleFunc(s.handleLogin))
	mux.HandleFunc("/logout", s.makeHTTPHandleFunc(s.withJWTauth(s.handleLogout)))
	mux.HandleFunc("/register", s.makeHTTPHandleFunc(s.handleRegister))
	return mux
}

func (s *APIServer) Run() error {
	log.Println("JSON API server running on port", s.listenAddr)
	return http.ListenAndServe(s.listenAddr, s.Routes())
}

type productQuery struct {
	Q         string   `schema:"q"`
	Category  string   `schema:"category"`
	MinPrice  *float64 `schema:"minPrice"`
	MaxPrice  *float64 `schema:"maxPrice"`
	MinRating *float64 `schema:"minRating"`
	Sort      string   `schema:"sort"`
}

func (s *APIServer) handleProducts(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodGet {
		return errMethod(r)
	}
	var q productQuery
	if err := s.decoder.Decode(&q, r.URL.Query()); err != nil {
		return fmt.Errorf("bad query: %w", err)
	}
	products, err := s.svc.Catalog.Filter(ProductFilters{
		Category:  q.Category,
		MinPrice:  q.MinPrice,
		MaxPrice:  q.MaxPrice,
		MinRating: q.MinRating,
	})
	if err != nil {
		return err
	}
	if q.Q != "" {
		matched := []Product{}
		for _, p := range products {
			if matchesQuery(p, q.Q) {
				matched = append(matched, p)
			}
		}
		products = matched
	}
	return WriteJSON(w, http.StatusOK, ok(SortProducts(products, SortKey(q.Sort))))
}

func (s *APIServer) handleProductByID(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodGet {
		return errMethod(r)
	}
	product, err := s.svc.Catalog.Lookup(r.PathValue("id"))
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, ok(product))
}

func (s *APIServer) handleProductReviews(w http.ResponseWriter, r *http.Request) error {
	product, err := s.svc.Catalog.Lookup(r.PathValue("id"))
	if err != nil {
		return err
	}
	switch r.Method {
	case http.MethodGet:
		reviews, err := s.svc.Catalog.ProductReviews(product.ID)
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, ok(reviews))
	case http.MethodPost:
		user, err := s.authenticate(r)
		if err != nil {
			return err
		}
		var draft ReviewDraft
		if err := decodeBody(r, &draft); err != nil {
			return err
		}
		draft.UserID = user.ID
		draft.Author = user.Name
		draft.Status = ""
		review, err := s.svc.Catalog.AddReview(product.ID, draft)
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusCreated, ok(review))
	}
	return errMethod(r)
}

func (s *APIServer) handleCategories(w http.ResponseWriter, r *http.Request) error {
	categories, err := s.svc.Catalog.Categories()
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, ok(categories))
}

func (s *APIServer) handleCart(w http.ResponseWriter, r *http.Request) error {
	summary, err := s.svc.Basket.Summary()
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, ok(summary))
}

type quantityReq struct {
	Quantity *int `json:"quantity"`
}

func (s *APIServer) handleCartActions(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return errMethod(r)
	}
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		return err
	}
	var req quantityReq
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	switch r.PathValue("action") {
	case "add":
		qty := 1
		if req.Quantity != nil {
			qty = *req.Quantity
		}
		if err := s.svc.Basket.AddItem(id, qty); err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, message("Item added to cart"))
	case "update":
		if req.Quantity == nil {
			return ErrInvalidQuantity
		}
		if err := s.svc.Basket.UpdateQuantity(id, *req.Quantity); err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, message("Cart updated"))
	case "delete":
		if err := s.svc.Basket.RemoveItem(id); err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, message("Item removed from cart"))
	}
	return errUnsupported
}

func (s *APIServer) handleCartClear(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return errMethod(r)
	}
	if err := s.svc.Basket.Clear(); err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, message("Cart cleared"))
}

type checkoutReq struct {
	Method   PaymentMethod `json:"method"`
	Currency string        `json:"currency"`
}

type checkoutResp struct {
	Order       Order       `json:"order"`
	Transaction Transaction `json:"transaction"`
}

// handleCheckout pays for the cart, records the order and empties the cart.
func (s *APIServer) handleCheckout(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return errMethod(r)
	}
	user, _ := s.svc.Ledger.CurrentUser()
	var req checkoutReq
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	summary, err := s.svc.Basket.Summary()
	if err != nil {
		return err
	}
	if len(summary.Items) == 0 {
		return errEmptyCart
	}
	tx, err := s.svc.Checkout.ProcessPayment(PaymentDetails{
		Method:   req.Method,
		Amount:   summary.Total,
		Currency: req.Currency,
	})
	if err != nil {
		return err
	}
	order, err := s.svc.Admin.PlaceOrder(user.ID, summary, tx)
	if err != nil {
		return err
	}
	// order is recorded; a failed clear only leaves a stale cart
	if err := s.svc.Basket.Clear(); err != nil {
		log.Printf("checkout: order %d placed but cart not cleared: %v", order.ID, err)
	}
	log.Printf("checkout: order %d paid by %s (%s)", order.ID, tx.ID, tx.Method)
	return WriteJSON(w, http.StatusCreated, ok(checkoutResp{Order: order, Transaction: tx}))
}

func (s *APIServer) handleConfig(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodGet {
		return errMethod(r)
	}
	return WriteJSON(w, http.StatusOK, ok(struct {
		PublishableKey   string          `json:"publishableKey"`
		SupportedMethods []PaymentMethod `json:"supportedMethods"`
	}{
		PublishableKey:   s.publishableKey,
		SupportedMethods: s.svc.Checkout.SupportedMethods(),
	}))
}

func (s *APIServer) handlePaymentIntent(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return errMethod(r)
	}
	summary, err := s.svc.Basket.Summary()
	if err != nil {
		return err
	}
	if len(summary.Items) == 0 {
		return errEmptyCart
	}
	secret, err := s.svc.Stripe.CreatePaymentIntent(summary.Total)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, ok(struct {
		ClientSecret string          `json:"clientSecret"`
		Amount       decimal.Decimal `json:"amount"`
	}{
		ClientSecret: secret,
		Amount:       summary.Total,
	}))
}

func (s *APIServer) handleWebhook(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return errMethod(r)
	}
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	event, err := s.svc.Stripe.ParseWebhook(b, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Printf("webhook.ConstructEvent: %v", err)
		return err
	}
	if event.Type == "payment_intent.succeeded" {
		log.Println("payment intent succeeded:", event.ID)
	}
	return WriteJSON(w, http.StatusOK, message("received"))
}

func (s *APIServer) handleAccount(w http.ResponseWriter, r *http.Request) error {
	switch r.Method {
	case http.MethodGet:
		user, _ := s.svc.Ledger.CurrentUser()
		return WriteJSON(w, http.StatusOK, ok(user))
	case http.MethodPost:
		var patch UserPatch
		if err := decodeBody(r, &patch); err != nil {
			return err
		}
		user, err := s.svc.Ledger.UpdateProfile(patch)
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, ok(user))
	}
	return errMethod(r)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func (s *APIServer) handleLogin(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return errMethod(r)
	}
	var req loginReq
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	user, err := s.svc.Ledger.Login(req.Email, req.Password)
	if err != nil {
		return err
	}
	token, err := s.generateJWT(user)
	if err != nil {
		return err
	}
	w.Header().Set("X-Authorization", token)
	return WriteJSON(w, http.StatusOK, ok(loginResp{Token: token, User: user}))
}

func (s *APIServer) handleLogout(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return errMethod(r)
	}
	if err := s.svc.Ledger.Logout(); err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, message("Logged out"))
}

func (s *APIServer) handleRegister(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return errMethod(r)
	}
	var req RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return fmt.Errorf("invalid email %q", req.Email)
	}
	if req.Password == "" {
		return errors.New("password is required")
	}
	user, err := s.svc.Ledger.Register(req)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusCreated, ok(user))
}

type idReq struct {
	ID flexID `json:"id"`
}

type statusReq struct {
	ID     flexID `json:"id"`
	Status string `json:"status"`
}

type productUpdateReq struct {
	ID flexID `json:"id"`
	ProductPatch
}

func (s *APIServer) handleAdmin(w http.ResponseWriter, r *http.Request) error {
	action := r.PathValue("action")
	typeOf := r.PathValue("type")
	if r.Method == http.MethodGet {
		if action != "get" {
			return errUnsupported
		}
		return s.handleAdminGet(w, r, typeOf)
	}
	if r.Method != http.MethodPost {
		return errMethod(r)
	}
	switch action + "/" + typeOf {
	case "add/product":
		var draft ProductDraft
		if err := decodeBody(r, &draft); err != nil {
			return err
		}
		product, err := s.svc.Catalog.Add(draft)
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusCreated, ok(product))
	case "update/product":
		var req productUpdateReq
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		product, err := s.svc.Catalog.Update(int(req.ID), req.ProductPatch)
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, ok(product))
	case "update/order-status":
		var req statusReq
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		order, err := s.svc.Admin.UpdateOrderStatus(int(req.ID), OrderStatus(req.Status))
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, ok(order))
	case "update/review-status":
		var req statusReq
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		review, err := s.svc.Admin.ModerateReview(int(req.ID), ReviewStatus(req.Status))
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, ok(review))
	case "delete/product":
		var req idReq
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		if err := s.svc.Catalog.Delete(int(req.ID)); err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, message("product deleted"))
	case "delete/user":
		var req idReq
		if err := decodeBody(r, &req); err != nil {
			return err
		}
		if err := s.svc.Ledger.DeleteUser(int(req.ID)); err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, message("user deleted"))
	}
	return errUnsupported
}

func (s *APIServer) handleAdminGet(w http.ResponseWriter, r *http.Request, typeOf string) error {
	var (
		data any
		err  error
	)
	switch typeOf {
	case "dashboard":
		data, err = s.svc.Admin.DashboardStats()
	case "stats":
		data, err = s.svc.Admin.SystemStats()
	case "products":
		data, err = s.svc.Catalog.List()
	case "orders":
		var f OrderFilter
		if err := s.decoder.Decode(&f, r.URL.Query()); err != nil {
			return fmt.Errorf("bad query: %w", err)
		}
		data, err = s.svc.Admin.Orders(f)
	case "reviews":
		var f ReviewFilter
		if err := s.decoder.Decode(&f, r.URL.Query()); err != nil {
			return fmt.Errorf("bad query: %w", err)
		}
		data, err = s.svc.Admin.Reviews(f)
	case "users":
		var users []User
		users, err = s.svc.Ledger.Users()
		for i := range users {
			users[i] = publicUser(users[i])
		}
		data = users
	default:
		return errUnsupported
	}
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, ok(data))
}

func (s *APIServer) makeHTTPHandleFunc(f APIfunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enableCors(&w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := f(w, r); err != nil {
			WriteJSON(w, statusFor(err), Result{Success: false, Message: err.Error()})
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrNotLoggedIn), errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errAdminOnly):
		return http.StatusForbidden
	case errors.Is(err, errMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, errStripeDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrStorage):
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

var errMethodNotAllowed = errors.New("http method not supported")

func errMethod(r *http.Request) error {
	return fmt.Errorf("%w: %s %s", errMethodNotAllowed, r.Method, r.URL.Path)
}

// Result is the envelope of every response.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(data any) Result {
	return Result{Success: true, Data: data}
}

func message(msg string) Result {
	return Result{Success: true, Message: msg}
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("bad request body: %w", err)
}

type Claims struct {
	UserID int    `json:"userId"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	jwt.StandardClaims
}

func (s *APIServer) generateJWT(u User) (string, error) {
	claims := &Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(s.jwtTTL).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtKey)
}

func (s *APIServer) ParseJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
		}
		return s.jwtKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// authenticate accepts a request whose token belongs to the current session.
func (s *APIServer) authenticate(r *http.Request) (User, error) {
	claims, err := s.ParseJWT(r.Header.Get("X-Authorization"))
	if err != nil {
		return User{}, errUnauthorized
	}
	user, loggedIn := s.svc.Ledger.CurrentUser()
	if !loggedIn || user.ID != claims.UserID {
		return User{}, errUnauthorized
	}
	return user, nil
}

func (s *APIServer) withJWTauth(f APIfunc) APIfunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		if _, err := s.authenticate(r); err != nil {
			return err
		}
		return f(w, r)
	}
}

func (s *APIServer) withJWTauthAdmin(f APIfunc) APIfunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		claims, err := s.ParseJWT(r.Header.Get("X-Authorization"))
		if err != nil {
			return errUnauthorized
		}
		user, loggedIn := s.svc.Ledger.CurrentUser()
		if !loggedIn || user.ID != claims.UserID {
			return errUnauthorized
		}
		if claims.Role != RoleAdmin || !s.svc.Ledger.IsAdmin() {
			return errAdminOnly
		}
		return f(w, r)
	}
}

type APIfunc func(http.ResponseWriter, *http.Request) error
