package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceChange is the audit row written for every persisted price move.
type PriceChange struct {
	ID      uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	EventID uuid.UUID `json:"event_id" gorm:"type:uuid;not null;index"`

	OldPrice      decimal.Decimal `json:"old_price" gorm:"type:decimal(10,2);not null"`
	NewPrice      decimal.Decimal `json:"new_price" gorm:"type:decimal(10,2);not null"`
	ChangePercent decimal.Decimal `json:"change_percent" gorm:"type:decimal(6,2);not null"`

	DemandMultiplier   float64 `json:"demand_multiplier" gorm:"not null"`
	TimeMultiplier     float64 `json:"time_multiplier" gorm:"not null"`
	VelocityMultiplier float64 `json:"velocity_multiplier" gorm:"not null"`
	WaitlistMultiplier float64 `json:"waitlist_multiplier" gorm:"not null"`
	CombinedMultiplier float64 `json:"combined_multiplier" gorm:"not null"`

	Reason      string    `json:"reason" gorm:"type:text;not null"`
	EvaluatedAt time.Time `json:"evaluated_at" gorm:"not null;index"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName sets the table name for PriceChange
func (PriceChange) TableName() string {
	return "pricing_changes"
}

// EvaluationResponse is the admin preview/tick output for one event.
type EvaluationResponse struct {
	EventID       string          `json:"event_id"`
	OldPrice      decimal.Decimal `json:"old_price"`
	NewPrice      decimal.Decimal `json:"new_price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Persisted     bool            `json:"persisted"`
	Reason        string          `json:"reason"`

	Multipliers MultiplierBreakdown `json:"multipliers"`
}

type MultiplierBreakdown struct {
	Demand   float64 `json:"demand"`
	Time     float64 `json:"time"`
	Velocity float64 `json:"velocity"`
	Waitlist float64 `json:"waitlist"`
	Combined float64 `json:"combined"`
}

type PriceChangeResponse struct {
	EventID       string          `json:"event_id"`
	OldPrice      decimal.Decimal `json:"old_price"`
	NewPrice      decimal.Decimal `json:"new_price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Reason        string          `json:"reason"`
	EvaluatedAt   time.Time       `json:"evaluated_at"`
}

func (p *PriceChange) ToResponse() PriceChangeResponse {
	return PriceChangeResponse{
		EventID:       p.EventID.String(),
		OldPrice:      p.OldPrice,
		NewPrice:      p.NewPrice,
		ChangePercent: p.ChangePercent,
		Reason:        p.Reason,
		EvaluatedAt:   p.EvaluatedAt,
	}
}
