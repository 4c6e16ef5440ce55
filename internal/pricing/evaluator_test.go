package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"ticketly/internal/shared/config"
)

// testParams freezes the pricing knobs so multiplier selection and clamping
// can be asserted exactly.
func testParams() config.PricingConfig {
	return config.PricingConfig{
		HighDemandThreshold: 0.8,
		LowDemandThreshold:  0.3,
		MaxIncrease:         0.5,
		MaxDecrease:         0.2,
		MinChangePercent:    0.01,
	}
}

func TestDemandMultiplier(t *testing.T) {
	cfg := testParams()

	neutral := demandMultiplier(Inputs{TotalCapacity: 100, AvailableCapacity: 50}, cfg)
	assert.Equal(t, 1.0, neutral)

	// 90% utilization: halfway through the excess band, +15%.
	high := demandMultiplier(Inputs{TotalCapacity: 100, AvailableCapacity: 10}, cfg)
	assert.InDelta(t, 1.15, high, 1e-9)

	// Full utilization hits the +30% ceiling.
	full := demandMultiplier(Inputs{TotalCapacity: 100, AvailableCapacity: 0}, cfg)
	assert.InDelta(t, 1.30, full, 1e-9)

	// 15% utilization: halfway through the deficit band, -10%.
	low := demandMultiplier(Inputs{TotalCapacity: 100, AvailableCapacity: 85}, cfg)
	assert.InDelta(t, 0.90, low, 1e-9)

	// Zero-capacity events stay neutral.
	assert.Equal(t, 1.0, demandMultiplier(Inputs{}, cfg))
}

func TestTimeMultiplier(t *testing.T) {
	assert.Equal(t, 1.2, timeMultiplier(0))
	assert.Equal(t, 1.2, timeMultiplier(1))
	assert.Equal(t, 1.1, timeMultiplier(7))
	assert.Equal(t, 1.0, timeMultiplier(30))
	assert.Equal(t, 0.95, timeMultiplier(90))
	assert.Equal(t, 0.9, timeMultiplier(91))
}

func TestVelocityMultiplier(t *testing.T) {
	assert.Equal(t, 1.2, velocityMultiplier(20, 10))
	assert.Equal(t, 1.1, velocityMultiplier(15, 10))
	assert.Equal(t, 1.0, velocityMultiplier(10, 10))
	assert.Equal(t, 0.9, velocityMultiplier(5, 10))

	// No baseline: only clearly high activity moves the price.
	assert.Equal(t, 1.15, velocityMultiplier(6, 0))
	assert.Equal(t, 1.0, velocityMultiplier(5, 0))
	assert.Equal(t, 1.0, velocityMultiplier(0, 0))
}

func TestWaitlistMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, waitlistMultiplier(0, 100))
	assert.Equal(t, 1.0, waitlistMultiplier(10, 100))
	assert.Equal(t, 1.05, waitlistMultiplier(50, 100))
	assert.Equal(t, 1.15, waitlistMultiplier(100, 100))
	assert.Equal(t, 1.3, waitlistMultiplier(200, 100))

	// Sold out: pressure measured against the fixed baseline of 10.
	assert.Equal(t, 1.3, waitlistMultiplier(20, 0))
	assert.Equal(t, 1.15, waitlistMultiplier(10, 0))
}

func TestEvaluateNeutralInputsKeepPrice(t *testing.T) {
	cfg := testParams()
	in := Inputs{
		BasePrice:         decimal.NewFromInt(100),
		CurrentPrice:      decimal.NewFromInt(100),
		TotalCapacity:     100,
		AvailableCapacity: 50,
		DaysUntilEvent:    30,
		RecentBookings:    10,
		PreviousBookings:  10,
	}

	eval := Evaluate(in, cfg)
	assert.Equal(t, 1.0, eval.Combined)
	assert.True(t, eval.NewPrice.Equal(decimal.NewFromInt(100)), eval.NewPrice.String())
	assert.False(t, eval.ShouldPersist(cfg))
}

func TestEvaluateClampsToCeiling(t *testing.T) {
	cfg := testParams()
	// Everything pushing up: sold out, last minute, doubled velocity, heavy
	// waitlist. Raw combined = 0.4*1.3 + 0.25*1.2 + 0.25*1.2 + 0.1*1.3 = 1.25;
	// within the +50% cap, so no clamping applies here.
	in := Inputs{
		BasePrice:         decimal.NewFromInt(100),
		CurrentPrice:      decimal.NewFromInt(100),
		TotalCapacity:     100,
		AvailableCapacity: 0,
		DaysUntilEvent:    1,
		RecentBookings:    20,
		PreviousBookings:  10,
		WaitlistSize:      25,
	}

	eval := Evaluate(in, cfg)
	assert.True(t, eval.NewPrice.Equal(decimal.NewFromInt(125)), eval.NewPrice.String())
	assert.True(t, eval.ShouldPersist(cfg))

	// Tighten the cap and the same inputs clamp to it.
	cfg.MaxIncrease = 0.1
	eval = Evaluate(in, cfg)
	assert.True(t, eval.NewPrice.Equal(decimal.NewFromInt(110)), eval.NewPrice.String())
}

func TestEvaluateClampsToFloor(t *testing.T) {
	cfg := testParams()
	// Everything pushing down: empty event far in the future with halved
	// velocity. Raw combined = 0.4*0.8 + 0.25*0.9 + 0.25*0.9 + 0.1*1.0 = 0.87;
	// above the -20% floor.
	in := Inputs{
		BasePrice:         decimal.NewFromInt(100),
		CurrentPrice:      decimal.NewFromInt(100),
		TotalCapacity:     100,
		AvailableCapacity: 100,
		DaysUntilEvent:    120,
		RecentBookings:    5,
		PreviousBookings:  10,
	}

	eval := Evaluate(in, cfg)
	assert.True(t, eval.NewPrice.Equal(decimal.NewFromInt(87)), eval.NewPrice.String())

	cfg.MaxDecrease = 0.05
	eval = Evaluate(in, cfg)
	assert.True(t, eval.NewPrice.Equal(decimal.NewFromInt(95)), eval.NewPrice.String())
}

func TestShouldPersistGate(t *testing.T) {
	cfg := testParams()

	under := Evaluation{ChangePercent: decimal.NewFromFloat(0.99)}
	assert.False(t, under.ShouldPersist(cfg))

	at := Evaluation{ChangePercent: decimal.NewFromInt(1)}
	assert.True(t, at.ShouldPersist(cfg))

	negative := Evaluation{ChangePercent: decimal.NewFromFloat(-1.5)}
	assert.True(t, negative.ShouldPersist(cfg))
}

func TestEvaluateReasonMentionsDrivers(t *testing.T) {
	cfg := testParams()
	in := Inputs{
		BasePrice:         decimal.NewFromInt(100),
		CurrentPrice:      decimal.NewFromInt(100),
		TotalCapacity:     100,
		AvailableCapacity: 0,
		DaysUntilEvent:    2,
		WaitlistSize:      5,
	}

	eval := Evaluate(in, cfg)
	assert.Contains(t, eval.Reason, "high demand")
	assert.Contains(t, eval.Reason, "approaching event date")
	assert.Contains(t, eval.Reason, "waitlist demand (5 waiting)")
}
