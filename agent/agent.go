// Package agent acts on the most recent signal of a dataset by placing a
// whole-share market order through a broker.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/drawdown/broker"
	"github.com/rustyeddy/drawdown/market"
	"github.com/rustyeddy/drawdown/signal"
)

var ErrNoData = errors.New("no bars to act on")

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionNone Action = "NONE"
)

// Decision is what the agent chose for one bar.
type Decision struct {
	Date     time.Time
	Signal   signal.Signal
	Price    float64
	Action   Action
	Quantity float64
	Reason   string
}

// Decide applies the trading rule. A buy signal spends the cash on as many
// whole shares as it covers, a sell signal closes the whole position, and
// everything else does nothing.
func Decide(sig signal.Signal, price float64, acct broker.Account, instrument string) Decision {
	d := Decision{Signal: sig, Price: price, Action: ActionNone}

	switch {
	case price <= 0 || math.IsNaN(price) || math.IsInf(price, 0):
		d.Reason = "no usable price"
	case sig.IsBuy():
		if acct.Cash <= price {
			d.Reason = "cash does not cover one share"
			break
		}
		qty := math.Floor(acct.Cash / price)
		if qty <= 0 {
			d.Reason = "cash does not cover one share"
			break
		}
		d.Action, d.Quantity = ActionBuy, qty
	case sig == signal.Sell:
		held := acct.Position(instrument)
		if held <= 0 {
			d.Reason = "no position to sell"
			break
		}
		d.Action, d.Quantity = ActionSell, held
	default:
		d.Reason = "hold"
	}
	return d
}

// Agent trades one instrument on one broker.
type Agent struct {
	broker     broker.Broker
	instrument string
	logger     *zap.Logger
}

func New(b broker.Broker, instrument string, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{broker: b, instrument: instrument, logger: logger}
}

// Step decides on a single bar and places the order, if any. The fill is
// nil when no order was placed.
func (a *Agent) Step(ctx context.Context, bar market.PriceBar, sig signal.Signal) (Decision, *broker.OrderFill, error) {
	acct, err := a.broker.GetAccount(ctx)
	if err != nil {
		return Decision{}, nil, fmt.Errorf("get account: %w", err)
	}

	d := Decide(sig, bar.Close, acct, a.instrument)
	d.Date = bar.Date

	log := a.logger.With(
		zap.String("date", bar.Date.Format(market.DateLayout)),
		zap.String("signal", sig.String()),
		zap.Float64("price", bar.Close),
		zap.Float64("cash", acct.Cash),
		zap.Float64("position", acct.Position(a.instrument)),
	)

	var side broker.Side
	switch d.Action {
	case ActionBuy:
		side = broker.Buy
	case ActionSell:
		side = broker.Sell
	default:
		log.Info("no action", zap.String("reason", d.Reason))
		return d, nil, nil
	}

	fill, err := a.broker.PlaceOrder(ctx, broker.OrderRequest{
		Instrument: a.instrument,
		Side:       side,
		Quantity:   d.Quantity,
	})
	if err != nil {
		return d, nil, fmt.Errorf("%s %v %s: %w", side, d.Quantity, a.instrument, err)
	}
	log.Info("order filled",
		zap.String("order_id", fill.OrderID),
		zap.String("side", string(fill.Side)),
		zap.Float64("qty", fill.Quantity),
		zap.Float64("fill_price", fill.Price),
	)
	return d, &fill, nil
}

// Run acts on the last bar of the series.
func (a *Agent) Run(ctx context.Context, series market.Series, sigs []signal.Signal) (Decision, *broker.OrderFill, error) {
	if len(series) == 0 {
		return Decision{}, nil, ErrNoData
	}
	if len(sigs) != len(series) {
		return Decision{}, nil, fmt.Errorf("%d signals for %d bars", len(sigs), len(series))
	}
	last := len(series) - 1
	return a.Step(ctx, series[last], sigs[last])
}
