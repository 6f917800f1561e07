// Package broker is the narrow account and order interface the trading
// agent talks to.
package broker

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInsufficientCash     = errors.New("insufficient cash")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrNoPrice              = errors.New("no price for instrument")
	ErrInvalidOrder         = errors.New("invalid order")
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

type Account struct {
	ID        string             `yaml:"id"`
	Currency  string             `yaml:"currency"`
	Cash      float64            `yaml:"cash"`
	Positions map[string]float64 `yaml:"positions"`
}

// Position returns the quantity held of instrument.
func (a Account) Position(instrument string) float64 {
	return a.Positions[instrument]
}

type OrderRequest struct {
	Instrument string
	Side       Side
	Quantity   float64
}

type OrderFill struct {
	OrderID    string
	Instrument string
	Side       Side
	Quantity   float64
	Price      float64
	Time       time.Time
}

// Value is quantity times price.
func (f OrderFill) Value() float64 {
	return f.Quantity * f.Price
}

type Broker interface {
	GetAccount(ctx context.Context) (Account, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderFill, error)
}
