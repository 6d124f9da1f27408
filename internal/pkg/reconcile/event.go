package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// Kind is the closed set of event types the dispatcher knows how to apply.
// Provider payloads may carry other types; those are acknowledged and
// ignored.
type Kind string

const (
	KindCheckoutCompleted    Kind = "checkout.session.completed"
	KindSubscriptionCreated  Kind = "customer.subscription.created"
	KindSubscriptionUpdated  Kind = "customer.subscription.updated"
	KindSubscriptionDeleted  Kind = "customer.subscription.deleted"
	KindInvoicePaid          Kind = "invoice.paid"
	KindInvoicePaymentFailed Kind = "invoice.payment_failed"
)

// Event is the immutable envelope produced by signature verification. Raw
// keeps the exact bytes for the audit trail; Object is the kind-specific
// payload, decoded lazily by the handler that needs it.
type Event struct {
	ID         string
	Kind       Kind
	ReceivedAt time.Time
	Object     json.RawMessage
	Raw        []byte
}

type envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// parseEvent decodes the envelope only; kind-specific fields are validated
// by the handlers. A missing event id falls back to a payload hash so that
// provider retries of the same body stay idempotent.
func parseEvent(raw []byte, receivedAt time.Time) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &VerificationError{Reason: "malformed event envelope"}
	}
	if strings.TrimSpace(env.Type) == "" {
		return nil, &VerificationError{Reason: "event envelope has no type"}
	}

	id := strings.TrimSpace(env.ID)
	if id == "" {
		sum := sha256.Sum256(raw)
		id = "hash:" + hex.EncodeToString(sum[:])
	}

	return &Event{
		ID:         id,
		Kind:       Kind(env.Type),
		ReceivedAt: receivedAt,
		Object:     env.Data.Object,
		Raw:        append([]byte(nil), raw...),
	}, nil
}

// CheckoutSession is the payload of a completed checkout for a one-time
// token purchase.
type CheckoutSession struct {
	ID              string `json:"id"`
	CustomerEmail   string `json:"customer_email"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	PriceID  string `json:"price_id"`
	Quantity int64  `json:"quantity"`
}

// Email prefers the checkout's customer details over the top-level field.
func (s *CheckoutSession) Email() string {
	if e := strings.TrimSpace(s.CustomerDetails.Email); e != "" {
		return e
	}
	return strings.TrimSpace(s.CustomerEmail)
}

// Subscription mirrors the provider's subscription object. The price id
// lives on the first subscription item, as the provider reports it.
type Subscription struct {
	ID            string `json:"id"`
	CustomerEmail string `json:"customer_email"`
	Status        string `json:"status"`
	Items         struct {
		Data []struct {
			Plan struct {
				ID string `json:"id"`
			} `json:"plan"`
		} `json:"data"`
	} `json:"items"`
	CurrentPeriodEnd  int64 `json:"current_period_end"`
	CancelAtPeriodEnd bool  `json:"cancel_at_period_end"`
}

// PriceID returns the price id of the first subscription item, if any.
func (s *Subscription) PriceID() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return strings.TrimSpace(s.Items.Data[0].Plan.ID)
}

// PeriodEnd converts the provider's unix timestamp, or nil when absent or
// the subscription is set to cancel at period end.
func (s *Subscription) PeriodEnd() *time.Time {
	if s.CancelAtPeriodEnd || s.CurrentPeriodEnd == 0 {
		return nil
	}
	t := time.Unix(s.CurrentPeriodEnd, 0).UTC()
	return &t
}

// Invoice is the payload of invoice.paid and invoice.payment_failed events.
// The associated subscription arrives expanded on paid events.
type Invoice struct {
	ID            string        `json:"id"`
	CustomerEmail string        `json:"customer_email"`
	Subscription  *Subscription `json:"subscription"`
}

// CheckoutSession decodes the event payload as a checkout session.
func (e *Event) CheckoutSession() (*CheckoutSession, error) {
	var s CheckoutSession
	if err := json.Unmarshal(e.Object, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Subscription decodes the event payload as a subscription object.
func (e *Event) Subscription() (*Subscription, error) {
	var s Subscription
	if err := json.Unmarshal(e.Object, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Invoice decodes the event payload as an invoice object.
func (e *Event) Invoice() (*Invoice, error) {
	var inv Invoice
	if err := json.Unmarshal(e.Object, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}
