package model

import (
	"fmt"
	"strings"
	"time"

	"vpn-subscription-bot/internal/domain"
)

// Tariff is a purchasable period of access. Price is kept in minor currency units.
type Tariff struct {
	ID           int64
	Name         string
	Price        int64
	DurationDays int
	IsActive     bool
	CreatedAt    time.Time
}

func NewTariff(name string, price int64, durationDays int) (*Tariff, error) {
	name = strings.TrimSpace(name)
	if name == "" || price <= 0 || durationDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Tariff{
		Name:         name,
		Price:        price,
		DurationDays: durationDays,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}, nil
}

// PriceWithDiscount applies a whole-percent discount, rounding down.
func (t *Tariff) PriceWithDiscount(percent int) int64 {
	if percent <= 0 || percent >= 100 {
		return t.Price
	}
	return t.Price * int64(100-percent) / 100
}

// FormatAmount renders minor units as a decimal string, e.g. 19900 -> "199.00".
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
