package models

import "time"

// PromoCounterID is the primary key of the singleton counter row.
const PromoCounterID = 1

// PromoCounter is the singleton row tracking how many promotional-tier
// subscriptions have been issued. Count must never exceed Limit; increments
// go through a single conditional UPDATE, never a read-then-write.
type PromoCounter struct {
	ID        int       `gorm:"column:id;primaryKey"`
	Count     int       `gorm:"column:count;not null;default:0"`
	Limit     int       `gorm:"column:promo_limit;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (PromoCounter) TableName() string { return "promo_counters" }

// Exhausted reports whether every promotional slot has been claimed.
func (c PromoCounter) Exhausted() bool {
	return c.Count >= c.Limit
}
