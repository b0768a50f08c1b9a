package order

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/backend-mebel/internal/snapshot"
)

// ErrNotFound indicates no confirmation was recorded for the session.
var ErrNotFound = errors.New("order: confirmation not found")

// Confirmation is the small record the confirmation view reads after checkout.
type Confirmation struct {
	OrderID           int64     `json:"orderId"`
	OrderNumber       string    `json:"orderNumber"`
	TotalAmount       int64     `json:"totalAmount"`
	InstallmentMonths int       `json:"installmentMonths"`
	MonthlyPayment    int64     `json:"monthlyPayment"`
	PaymentType       string    `json:"paymentType"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ConfirmationKey returns the store key for a session's last confirmation.
func ConfirmationKey(sessionID string) string {
	return "order:confirmation:" + sessionID
}

// Confirmations persists confirmation snapshots.
type Confirmations struct {
	Store snapshot.Store
}

// Save writes c for the session, replacing any earlier confirmation.
func (c Confirmations) Save(ctx context.Context, sessionID string, conf Confirmation) error {
	return snapshot.SetJSON(ctx, c.Store, ConfirmationKey(sessionID), conf)
}

// Load reads the session's last confirmation. It is not removed afterwards.
func (c Confirmations) Load(ctx context.Context, sessionID string) (Confirmation, error) {
	var conf Confirmation
	found, err := snapshot.GetJSON(ctx, c.Store, ConfirmationKey(sessionID), &conf)
	if err != nil {
		return Confirmation{}, err
	}
	if !found {
		return Confirmation{}, ErrNotFound
	}
	return conf, nil
}
