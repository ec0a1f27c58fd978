package main

import (
	"errors"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

var (
	cardNumberRe = regexp.MustCompile(`^\d{16}$`)
	cardExpiryRe = regexp.MustCompile(`^\d{2}/\d{2}$`)
	cardCVVRe    = regexp.MustCompile(`^\d{3,4}$`)
)

// Checkout validates payment details and fabricates transaction records.
// It talks to no gateway and persists nothing.
type Checkout struct {
	supportedMethods []PaymentMethod
}

func NewCheckout() *Checkout {
	return &Checkout{
		supportedMethods: []PaymentMethod{MethodCreditCard, MethodDebitCard, MethodPayPal, MethodGooglePay},
	}
}

func (c *Checkout) SupportedMethods() []PaymentMethod {
	out := make([]PaymentMethod, len(c.supportedMethods))
	copy(out, c.supportedMethods)
	return out
}

func (c *Checkout) ValidatePayment(d PaymentDetails) bool {
	if d.Method == "" {
		return false
	}
	supported := false
	for _, m := range c.supportedMethods {
		if m == d.Method {
			supported = true
			break
		}
	}
	return supported && d.Amount.IsPositive()
}

func (c *Checkout) ProcessPayment(d PaymentDetails) (Transaction, error) {
	if !c.ValidatePayment(d) {
		return Transaction{}, ErrInvalidPayment
	}
	return Transaction{
		ID:          generateTransactionID(),
		Method:      d.Method,
		Amount:      d.Amount,
		Currency:    d.Currency,
		Status:      "completed",
		ProcessedAt: time.Now(),
	}, nil
}

// ValidateCardDetails is a format check only: 16 digits, MM/YY and a 3-4 digit CVV.
func (c *Checkout) ValidateCardDetails(number, expiry, cvv string) bool {
	return cardNumberRe.MatchString(number) && cardExpiryRe.MatchString(expiry) && cardCVVRe.MatchString(cvv)
}

func (c *Checkout) RefundPayment(transactionID string, amount decimal.Decimal) Refund {
	return Refund{
		RefundID:      "REF" + strconv.FormatInt(time.Now().UnixMilli(), 10),
		TransactionID: transactionID,
		Amount:        amount,
		Status:        "processed",
		ProcessedAt:   time.Now(),
	}
}

func generateTransactionID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:9]
	return "TXN" + strconv.FormatInt(time.Now().UnixMilli(), 10) + suffix
}

var errStripeDisabled = errors.New("stripe is not configured")

// StripeGateway creates real payment intents when a secret key is configured.
type StripeGateway struct {
	sc            *client.API
	currency      string
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret, currency string) *StripeGateway {
	g := &StripeGateway{currency: strings.ToLower(currency), webhookSecret: webhookSecret}
	if secretKey != "" {
		g.sc = &client.API{}
		g.sc.Init(secretKey, nil)
	}
	return g
}

func (g *StripeGateway) Enabled() bool { return g.sc != nil }

// CreatePaymentIntent charges amount in major units and returns the client secret.
func (g *StripeGateway) CreatePaymentIntent(amount decimal.Decimal) (string, error) {
	if !g.Enabled() {
		return "", errStripeDisabled
	}
	if !amount.IsPositive() {
		return "", ErrInvalidPayment
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toMinorUnits(amount)),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	pi, err := g.sc.PaymentIntents.New(params)
	if err != nil {
		log.Printf("pi.New: %v", err)
		return "", err
	}
	return pi.ClientSecret, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (stripe.Event, error) {
	if g.webhookSecret == "" {
		return stripe.Event{}, errStripeDisabled
	}
	return webhook.ConstructEvent(payload, signature, g.webhookSecret)
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
