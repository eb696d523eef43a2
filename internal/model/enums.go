package model

import "fmt"

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusReported   TicketStatus = "reported"
	StatusAccepted   TicketStatus = "accepted"
	StatusInProgress TicketStatus = "in_progress"
	StatusValidating TicketStatus = "validating"
	StatusCompleted  TicketStatus = "completed"
	StatusRejected   TicketStatus = "rejected"
)

// TicketStatuses lists every status in lifecycle order.
func TicketStatuses() []TicketStatus {
	return []TicketStatus{
		StatusReported, StatusAccepted, StatusInProgress,
		StatusValidating, StatusCompleted, StatusRejected,
	}
}

// Valid reports whether s is one of the known statuses.
func (s TicketStatus) Valid() bool {
	for _, known := range TicketStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// WasteType is the category of waste at a dirty point.
type WasteType string

const (
	WastePlastic    WasteType = "plastic"
	WasteGlass      WasteType = "glass"
	WastePaper      WasteType = "paper"
	WasteOrganic    WasteType = "organic"
	WasteElectronic WasteType = "electronic"
	WasteBulky      WasteType = "bulky"
	WasteHazardous  WasteType = "hazardous"
	WasteMixed      WasteType = "mixed"
)

var wasteTypes = map[WasteType]bool{
	WastePlastic: true, WasteGlass: true, WastePaper: true, WasteOrganic: true,
	WasteElectronic: true, WasteBulky: true, WasteHazardous: true, WasteMixed: true,
}

// ParseWasteType validates a waste category.
func ParseWasteType(s string) (WasteType, error) {
	if !wasteTypes[WasteType(s)] {
		return "", fmt.Errorf("unknown waste type %q", s)
	}
	return WasteType(s), nil
}

// Priority is how urgently a dirty point needs cleaning.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority validates a priority value.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Size is the estimated size of a dirty point.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
	SizeXLarge Size = "xlarge"
)

// ParseSize validates a size value.
func ParseSize(s string) (Size, error) {
	switch sz := Size(s); sz {
	case SizeSmall, SizeMedium, SizeLarge, SizeXLarge:
		return sz, nil
	}
	return "", fmt.Errorf("unknown size %q", s)
}

// CleaningStatus is how thoroughly a cleaner says the point was cleaned.
type CleaningStatus string

const (
	CleaningPartial  CleaningStatus = "partial"
	CleaningComplete CleaningStatus = "complete"
)

// ParseCleaningStatus validates a cleaning status.
func ParseCleaningStatus(s string) (CleaningStatus, error) {
	switch cs := CleaningStatus(s); cs {
	case CleaningPartial, CleaningComplete:
		return cs, nil
	}
	return "", fmt.Errorf("unknown cleaning status %q", s)
}

// MissionType groups missions by cadence.
type MissionType string

const (
	MissionDaily   MissionType = "daily"
	MissionWeekly  MissionType = "weekly"
	MissionSpecial MissionType = "special"
)

// ParseMissionType validates a mission type.
func ParseMissionType(s string) (MissionType, error) {
	switch mt := MissionType(s); mt {
	case MissionDaily, MissionWeekly, MissionSpecial:
		return mt, nil
	}
	return "", fmt.Errorf("unknown mission type %q", s)
}

// ActionKind is a ticket action that can advance missions.
type ActionKind string

const (
	ActionReport   ActionKind = "report"
	ActionAccept   ActionKind = "accept"
	ActionClean    ActionKind = "clean"
	ActionValidate ActionKind = "validate"
)

// ParseActionKind validates an action kind.
func ParseActionKind(s string) (ActionKind, error) {
	switch a := ActionKind(s); a {
	case ActionReport, ActionAccept, ActionClean, ActionValidate:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}
