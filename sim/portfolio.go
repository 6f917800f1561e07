package sim

import (
	"fmt"

	"github.com/rustyeddy/drawdown/signal"
)

// Mode says which account holds the money.
type Mode string

const (
	Cash     Mode = "CASH"
	Invested Mode = "INVESTED"
)

// GainPolicy decides which realized results enter the tax buffer.
type GainPolicy string

const (
	// GainsNet adds every liquidation result, losses included, so losses
	// offset gains realized in the same calendar year.
	GainsNet GainPolicy = "net"
	// GainsOnly ignores liquidations that realized a loss.
	GainsOnly GainPolicy = "gains_only"
)

// Params are the account, fee and tax rules. Monetary values are real
// numbers; nothing is rounded while simulating.
type Params struct {
	InitialCash        float64
	Contribution       float64
	TERAnnual          float64
	TradingDaysPerYear int
	MinInvestment      float64
	Fee                float64
	TaxAllowance       float64
	TaxRate            float64
	GainPolicy         GainPolicy
}

// DefaultParams returns the daily 25 savings plan with 0.6% TER over 200
// trading days, a flat fee of 1 below 250 and 30.5% tax on 70% of gains.
func DefaultParams() Params {
	return Params{
		Contribution:       25,
		TERAnnual:          0.006,
		TradingDaysPerYear: 200,
		MinInvestment:      250,
		Fee:                1,
		TaxAllowance:       0.30,
		TaxRate:            0.305,
		GainPolicy:         GainsNet,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.InitialCash < 0 {
		return fmt.Errorf("initial cash must not be negative")
	}
	if p.Contribution < 0 {
		return fmt.Errorf("contribution must not be negative")
	}
	if p.TERAnnual < 0 || p.TERAnnual >= 1 {
		return fmt.Errorf("ter must be in [0,1), got %v", p.TERAnnual)
	}
	if p.TradingDaysPerYear <= 0 {
		return fmt.Errorf("trading days per year must be positive")
	}
	if p.MinInvestment < 0 || p.Fee < 0 {
		return fmt.Errorf("min investment and fee must not be negative")
	}
	if p.Contribution > 0 && p.Contribution < p.MinInvestment && p.Fee >= p.Contribution {
		return fmt.Errorf("fee %v would consume the whole contribution %v", p.Fee, p.Contribution)
	}
	if p.TaxAllowance < 0 || p.TaxAllowance > 1 {
		return fmt.Errorf("tax allowance must be in [0,1]")
	}
	if p.TaxRate < 0 || p.TaxRate > 1 {
		return fmt.Errorf("tax rate must be in [0,1]")
	}
	switch p.GainPolicy {
	case GainsNet, GainsOnly:
	default:
		return fmt.Errorf("unknown gain policy %q", p.GainPolicy)
	}
	return nil
}

// DailyDrag is the expense ratio applied per invested day.
func (p Params) DailyDrag() float64 {
	return p.TERAnnual / float64(p.TradingDaysPerYear)
}

// Tax returns the tax due on a positive realized gain.
func (p Params) Tax(gain float64) float64 {
	if gain <= 0 {
		return 0
	}
	return gain * (1 - p.TaxAllowance) * p.TaxRate
}

// Event is a transfer between the two accounts.
type Event string

const (
	NoEvent     Event = ""
	Transfer    Event = "TRANSFER"
	Liquidation Event = "LIQUIDATION"
)

// State is the two-account portfolio. Exactly one account takes new money
// at a time, selected by Mode.
type State struct {
	Mode          Mode
	Invested      float64
	Cash          float64
	CostBasis     float64
	RealizedGains float64

	TaxPaid      float64
	FeesPaid     float64
	Transfers    int
	Liquidations int
}

// NewState returns the start-of-run state: everything in cash.
func NewState(p Params) State {
	return State{Mode: Cash, Cash: p.InitialCash}
}

// Total is invested plus cash.
func (s *State) Total() float64 {
	return s.Invested + s.Cash
}

// applyMarket moves the invested account by the day's return and the
// expense drag. Cash earns nothing.
func (s *State) applyMarket(ret, drag float64) {
	if s.Mode != Invested {
		return
	}
	s.Invested *= 1 + ret
	s.Invested *= 1 - drag
}

// settleTax charges the year's buffered gains against cash and clears the
// buffer whatever its sign. Cash may go negative.
func (s *State) settleTax(p Params) float64 {
	tax := p.Tax(s.RealizedGains)
	s.Cash -= tax
	s.TaxPaid += tax
	s.RealizedGains = 0
	return tax
}

// contribute adds the daily savings amount to the active account.
func (s *State) contribute(p Params) float64 {
	if p.Contribution <= 0 {
		return 0
	}
	if s.Mode == Cash {
		s.Cash += p.Contribution
		return 0
	}

	fee := 0.0
	if p.Contribution < p.MinInvestment {
		fee = p.Fee
	}
	net := p.Contribution - fee
	s.Invested += net
	s.CostBasis += net
	s.FeesPaid += fee
	return fee
}

// apply runs the transition table for today's signal.
func (s *State) apply(sig signal.Signal, p Params) (Event, float64) {
	switch {
	case s.Mode == Cash && sig.IsBuy():
		if s.Cash <= 0 {
			return NoEvent, 0
		}
		amount := s.Cash
		fee := 0.0
		if amount < p.MinInvestment {
			fee = p.Fee
		}
		if amount-fee <= 0 {
			return NoEvent, 0
		}
		s.Invested += amount - fee
		s.CostBasis += amount - fee
		s.Cash = 0
		s.FeesPaid += fee
		s.Mode = Invested
		s.Transfers++
		return Transfer, fee

	case s.Mode == Invested && sig == signal.Sell:
		proceeds := s.Invested
		gain := proceeds - s.CostBasis
		if p.GainPolicy == GainsNet || gain > 0 {
			s.RealizedGains += gain
		}
		s.Cash += proceeds
		s.Invested = 0
		s.CostBasis = 0
		s.Mode = Cash
		s.Liquidations++
		return Liquidation, 0
	}
	return NoEvent, 0
}
