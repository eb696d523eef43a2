// Package gamification holds the pure reward rules: point amounts per action,
// the level curve and the daily streak tracker. Nothing here touches storage.
package gamification

import (
	"errors"
	"fmt"
	"math"

	"cleanup-quest-bot/internal/model"
)

// ErrUnknownValue is returned when a ticket attribute has no multiplier.
var ErrUnknownValue = errors.New("unknown value")

// Rates holds the base amount of every rewarded action.
type Rates struct {
	Report        int64
	Accept        int64
	CleanPartial  int64
	CleanComplete int64
	Validate      int64
}

// DefaultRates returns the stock point rates.
func DefaultRates() Rates {
	return Rates{
		Report:        50,
		Accept:        10,
		CleanPartial:  100,
		CleanComplete: 200,
		Validate:      25,
	}
}

// PriorityMultipliers scale cleaning points by ticket priority.
var PriorityMultipliers = map[model.Priority]float64{
	model.PriorityLow:    1.0,
	model.PriorityMedium: 1.2,
	model.PriorityHigh:   1.5,
	model.PriorityUrgent: 2.0,
}

// SizeMultipliers scale cleaning points by estimated size.
var SizeMultipliers = map[model.Size]float64{
	model.SizeSmall:  1.0,
	model.SizeMedium: 1.3,
	model.SizeLarge:  1.6,
	model.SizeXLarge: 2.0,
}

// ReportPoints is awarded to the reporter of a new ticket.
func (r Rates) ReportPoints() int64 { return r.Report }

// AcceptPoints is awarded to the cleaner accepting a ticket.
func (r Rates) AcceptPoints() int64 { return r.Accept }

// ValidatePoints is awarded to the reporter for reviewing a cleanup.
func (r Rates) ValidatePoints() int64 { return r.Validate }

// CleaningPoints computes the award for a submitted cleanup:
// base(cleaning status) x priority multiplier x size multiplier, rounded.
func (r Rates) CleaningPoints(priority model.Priority, size model.Size, status model.CleaningStatus) (int64, error) {
	var base int64
	switch status {
	case model.CleaningComplete:
		base = r.CleanComplete
	case model.CleaningPartial:
		base = r.CleanPartial
	default:
		return 0, fmt.Errorf("%w: cleaning status %q", ErrUnknownValue, status)
	}

	pm, ok := PriorityMultipliers[priority]
	if !ok {
		return 0, fmt.Errorf("%w: priority %q", ErrUnknownValue, priority)
	}
	sm, ok := SizeMultipliers[size]
	if !ok {
		return 0, fmt.Errorf("%w: size %q", ErrUnknownValue, size)
	}

	return int64(math.Round(float64(base) * pm * sm)), nil
}
