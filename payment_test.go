package main

import (
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutValidatePayment(t *testing.T) {
	c := NewCheckout()

	tests := []struct {
		name string
		d    PaymentDetails
		want bool
	}{
		{"card", PaymentDetails{Method: MethodCreditCard, Amount: decimal.NewFromInt(10)}, true},
		{"paypal", PaymentDetails{Method: MethodPayPal, Amount: decimal.RequireFromString("0.01")}, true},
		{"no method", PaymentDetails{Amount: decimal.NewFromInt(10)}, false},
		{"unknown method", PaymentDetails{Method: "bitcoin", Amount: decimal.NewFromInt(10)}, false},
		{"zero amount", PaymentDetails{Method: MethodDebitCard, Amount: decimal.Zero}, false},
		{"negative amount", PaymentDetails{Method: MethodGooglePay, Amount: decimal.NewFromInt(-5)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ValidatePayment(tt.d))
		})
	}
}

func TestCheckoutProcessPayment(t *testing.T) {
	c := NewCheckout()

	tx, err := c.ProcessPayment(PaymentDetails{Method: MethodCreditCard, Amount: decimal.RequireFromString("42.50")})
	require.NoError(t, err)
	assert.Equal(t, "completed", tx.Status)
	assert.Equal(t, MethodCreditCard, tx.Method)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("42.50")))
	assert.Regexp(t, regexp.MustCompile(`^TXN\d+[0-9A-F]{9}$`), tx.ID)

	_, err = c.ProcessPayment(PaymentDetails{Method: "cash", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrInvalidPayment)
}

func TestCheckoutSupportedMethodsIsACopy(t *testing.T) {
	c := NewCheckout()
	methods := c.SupportedMethods()
	require.Len(t, methods, 4)
	methods[0] = "tampered"
	assert.Equal(t, MethodCreditCard, c.SupportedMethods()[0])
}

func TestCheckoutValidateCardDetails(t *testing.T) {
	c := NewCheckout()

	tests := []struct {
		name                string
		number, expiry, cvv string
		want                bool
	}{
		{"valid", "4242424242424242", "12/27", "123", true},
		{"four digit cvv", "4242424242424242", "12/27", "1234", true},
		{"short number", "424242424242", "12/27", "123", false},
		{"spaced number", "4242 4242 4242 4242", "12/27", "123", false},
		{"bad expiry", "4242424242424242", "2027-12", "123", false},
		{"bad cvv", "4242424242424242", "12/27", "12", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ValidateCardDetails(tt.number, tt.expiry, tt.cvv))
		})
	}
}

func TestCheckoutRefund(t *testing.T) {
	r := NewCheckout().RefundPayment("TXN1", decimal.NewFromInt(5))
	assert.Regexp(t, `^REF\d+$`, r.RefundID)
	assert.Equal(t, "TXN1", r.TransactionID)
	assert.Equal(t, "processed", r.Status)
}

func TestStripeGatewayDisabled(t *testing.T) {
	g := NewStripeGateway("", "", "USD")
	assert.False(t, g.Enabled())

	_, err := g.CreatePaymentIntent(decimal.NewFromInt(10))
	assert.ErrorIs(t, err, errStripeDisabled)
	_, err = g.ParseWebhook([]byte(`{}`), "sig")
	assert.ErrorIs(t, err, errStripeDisabled)
}

func TestStripeGatewayRejectsBadSignature(t *testing.T) {
	g := NewStripeGateway("", "whsec_test", "usd")
	_, err := g.ParseWebhook([]byte(`{"id":"evt_1"}`), "t=1,v1=deadbeef")
	assert.Error(t, err)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(11997), toMinorUnits(decimal.RequireFromString("119.967")))
	assert.Equal(t, int64(1000), toMinorUnits(decimal.NewFromInt(10)))
}
