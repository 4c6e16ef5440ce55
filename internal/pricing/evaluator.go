package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"ticketly/internal/shared/config"
)

// Inputs is everything the evaluator observes about an event. The evaluator
// itself is pure: same inputs, same price.
type Inputs struct {
	BasePrice         decimal.Decimal
	CurrentPrice      decimal.Decimal
	TotalCapacity     int
	AvailableCapacity int
	DaysUntilEvent    int

	// Booking counts over the trailing and the preceding 7-day windows.
	RecentBookings   int
	PreviousBookings int

	WaitlistSize int
}

// Evaluation is the multiplier breakdown and resulting price.
type Evaluation struct {
	Demand   float64
	Time     float64
	Velocity float64
	Waitlist float64
	Combined float64

	NewPrice      decimal.Decimal
	ChangePercent decimal.Decimal
	Reason        string
}

// Evaluate computes the demand-adjusted price. The combined multiplier is a
// weighted blend (40/25/25/10) of demand, time, velocity and waitlist
// pressure, and the result stays within
// [basePrice·(1−maxDecrease), basePrice·(1+maxIncrease)], rounded half-up to
// two decimals.
func Evaluate(in Inputs, cfg config.PricingConfig) Evaluation {
	eval := Evaluation{
		Demand:   demandMultiplier(in, cfg),
		Time:     timeMultiplier(in.DaysUntilEvent),
		Velocity: velocityMultiplier(in.RecentBookings, in.PreviousBookings),
		Waitlist: waitlistMultiplier(in.WaitlistSize, in.AvailableCapacity),
	}
	eval.Combined = eval.Demand*0.4 + eval.Time*0.25 + eval.Velocity*0.25 + eval.Waitlist*0.1

	price := in.BasePrice.Mul(decimal.NewFromFloat(eval.Combined))

	floor := in.BasePrice.Mul(decimal.NewFromFloat(1 - cfg.MaxDecrease))
	ceiling := in.BasePrice.Mul(decimal.NewFromFloat(1 + cfg.MaxIncrease))
	if price.LessThan(floor) {
		price = floor
	}
	if price.GreaterThan(ceiling) {
		price = ceiling
	}
	eval.NewPrice = price.Round(2)

	if in.CurrentPrice.IsPositive() {
		eval.ChangePercent = eval.NewPrice.Sub(in.CurrentPrice).
			Div(in.CurrentPrice).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	eval.Reason = buildReason(in, cfg, eval)

	return eval
}

// ShouldPersist applies the persistence gate: price writes happen only when
// the change is at least cfg.MinChangePercent of the current price.
func (e Evaluation) ShouldPersist(cfg config.PricingConfig) bool {
	threshold := decimal.NewFromFloat(cfg.MinChangePercent * 100)
	return e.ChangePercent.Abs().GreaterThanOrEqual(threshold)
}

// demandMultiplier scales with capacity utilization: above the high threshold
// the excess maps linearly onto up to +30 %, below the low threshold the
// deficit maps onto up to −20 %.
func demandMultiplier(in Inputs, cfg config.PricingConfig) float64 {
	if in.TotalCapacity == 0 {
		return 1.0
	}
	utilization := float64(in.TotalCapacity-in.AvailableCapacity) / float64(in.TotalCapacity)

	switch {
	case utilization >= cfg.HighDemandThreshold:
		maxExcess := 1.0 - cfg.HighDemandThreshold
		if maxExcess <= 0 {
			return 1.3
		}
		return 1.0 + (utilization-cfg.HighDemandThreshold)/maxExcess*0.3
	case utilization <= cfg.LowDemandThreshold:
		if cfg.LowDemandThreshold <= 0 {
			return 1.0
		}
		return 1.0 - (cfg.LowDemandThreshold-utilization)/cfg.LowDemandThreshold*0.2
	default:
		return 1.0
	}
}

func timeMultiplier(daysUntilEvent int) float64 {
	switch {
	case daysUntilEvent <= 1:
		return 1.2
	case daysUntilEvent <= 7:
		return 1.1
	case daysUntilEvent <= 30:
		return 1.0
	case daysUntilEvent <= 90:
		return 0.95
	default:
		return 0.9
	}
}

func velocityMultiplier(recent, previous int) float64 {
	if previous == 0 {
		// No baseline; only clearly high activity moves the price.
		if recent > 5 {
			return 1.15
		}
		return 1.0
	}

	ratio := float64(recent) / float64(previous)
	switch {
	case ratio >= 2.0:
		return 1.2
	case ratio >= 1.5:
		return 1.1
	case ratio <= 0.5:
		return 0.9
	default:
		return 1.0
	}
}

func waitlistMultiplier(waitlistSize, availableCapacity int) float64 {
	if waitlistSize == 0 {
		return 1.0
	}

	// Sold-out events use a fixed baseline so pressure stays finite.
	denominator := availableCapacity
	if denominator <= 0 {
		denominator = 10
	}
	pressure := float64(waitlistSize) / float64(denominator)

	switch {
	case pressure >= 2.0:
		return 1.3
	case pressure >= 1.0:
		return 1.15
	case pressure >= 0.5:
		return 1.05
	default:
		return 1.0
	}
}

func buildReason(in Inputs, cfg config.PricingConfig, eval Evaluation) string {
	if eval.ChangePercent.IsZero() {
		return "Price maintained based on current demand"
	}

	var reasons []string
	if in.TotalCapacity > 0 {
		utilization := float64(in.TotalCapacity-in.AvailableCapacity) / float64(in.TotalCapacity)
		if utilization >= cfg.HighDemandThreshold {
			reasons = append(reasons, "high demand")
		} else if utilization <= cfg.LowDemandThreshold {
			reasons = append(reasons, "low demand")
		}
	}
	if in.DaysUntilEvent <= 7 {
		reasons = append(reasons, "approaching event date")
	} else if in.DaysUntilEvent > 90 {
		reasons = append(reasons, "early bird pricing")
	}
	if in.WaitlistSize > 0 {
		reasons = append(reasons, fmt.Sprintf("waitlist demand (%d waiting)", in.WaitlistSize))
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "market conditions")
	}

	direction := "increased"
	if eval.ChangePercent.IsNegative() {
		direction = "decreased"
	}
	return fmt.Sprintf("Price %s by %s%% due to %s",
		direction, eval.ChangePercent.Abs().StringFixed(1), strings.Join(reasons, ", "))
}
