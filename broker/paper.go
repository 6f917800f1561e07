package broker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/drawdown/pkg/id"
)

// Paper is an in-memory broker that fills market orders at the last price
// set for an instrument. It never borrows or shorts.
type Paper struct {
	mu      sync.Mutex
	account Account
	prices  map[string]float64
	fills   []OrderFill
	now     func() time.Time
}

// NewPaper returns a paper account holding cash.
func NewPaper(accountID, currency string, cash float64) *Paper {
	return &Paper{
		account: Account{
			ID:        accountID,
			Currency:  currency,
			Cash:      cash,
			Positions: map[string]float64{},
		},
		prices: map[string]float64{},
		now:    time.Now,
	}
}

// LoadPaper restores an account saved with Save. A missing file yields a
// fresh account from the fallback values.
func LoadPaper(path, accountID, currency string, cash float64) (*Paper, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewPaper(accountID, currency, cash), nil
	}
	if err != nil {
		return nil, err
	}
	var acct Account
	if err := yaml.Unmarshal(data, &acct); err != nil {
		return nil, fmt.Errorf("parse paper account %s: %w", path, err)
	}
	p := NewPaper(acct.ID, acct.Currency, acct.Cash)
	for k, v := range acct.Positions {
		p.account.Positions[k] = v
	}
	return p, nil
}

// Save writes the account state to path.
func (p *Paper) Save(path string) error {
	p.mu.Lock()
	data, err := yaml.Marshal(p.account)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SetPrice quotes instrument.
func (p *Paper) SetPrice(instrument string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[instrument] = price
}

// Fills returns the orders filled so far.
func (p *Paper) Fills() []OrderFill {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]OrderFill(nil), p.fills...)
}

func (p *Paper) GetAccount(ctx context.Context) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	acct := p.account
	acct.Positions = make(map[string]float64, len(p.account.Positions))
	for k, v := range p.account.Positions {
		acct.Positions[k] = v
	}
	return acct, nil
}

func (p *Paper) PlaceOrder(ctx context.Context, req OrderRequest) (OrderFill, error) {
	if err := ctx.Err(); err != nil {
		return OrderFill{}, err
	}
	if req.Quantity <= 0 {
		return OrderFill{}, fmt.Errorf("quantity %v: %w", req.Quantity, ErrInvalidOrder)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.prices[req.Instrument]
	if !ok || price <= 0 {
		return OrderFill{}, fmt.Errorf("%s: %w", req.Instrument, ErrNoPrice)
	}
	value := req.Quantity * price

	switch req.Side {
	case Buy:
		if value > p.account.Cash {
			return OrderFill{}, fmt.Errorf("need %.2f, have %.2f: %w", value, p.account.Cash, ErrInsufficientCash)
		}
		p.account.Cash -= value
		p.account.Positions[req.Instrument] += req.Quantity
	case Sell:
		held := p.account.Positions[req.Instrument]
		if req.Quantity > held {
			return OrderFill{}, fmt.Errorf("sell %v, hold %v: %w", req.Quantity, held, ErrInsufficientPosition)
		}
		p.account.Cash += value
		p.account.Positions[req.Instrument] = held - req.Quantity
		if p.account.Positions[req.Instrument] == 0 {
			delete(p.account.Positions, req.Instrument)
		}
	default:
		return OrderFill{}, fmt.Errorf("side %q: %w", req.Side, ErrInvalidOrder)
	}

	fill := OrderFill{
		OrderID:    id.New(),
		Instrument: req.Instrument,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Price:      price,
		Time:       p.now().UTC(),
	}
	p.fills = append(p.fills, fill)
	return fill, nil
}
