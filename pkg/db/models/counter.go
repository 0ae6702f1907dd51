package models

import "time"

// Counter backs a named monotonically increasing sequence.
type Counter struct {
	Name      string    `gorm:"column:name;primaryKey"`
	Value     int64     `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Counter) TableName() string { return "counters" }
