package model

import "strings"

// VehicleType classifies both vehicles and the slots that can host them.
type VehicleType string

const (
	VehicleSmall  VehicleType = "SMALL"
	VehicleMedium VehicleType = "MEDIUM"
	VehicleLarge  VehicleType = "LARGE"
)

// VehicleTypes lists every supported type in display order.
var VehicleTypes = []VehicleType{VehicleSmall, VehicleMedium, VehicleLarge}

// ParseVehicleType normalizes s and reports whether it names a known type.
func ParseVehicleType(s string) (VehicleType, bool) {
	t := VehicleType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case VehicleSmall, VehicleMedium, VehicleLarge:
		return t, true
	}
	return "", false
}

// SlotStatus is the occupancy state of a slot.
type SlotStatus string

const (
	SlotAvailable   SlotStatus = "AVAILABLE"
	SlotReserved    SlotStatus = "RESERVED"
	SlotOccupied    SlotStatus = "OCCUPIED"
	SlotMaintenance SlotStatus = "MAINTENANCE"
)

// ParseSlotStatus normalizes s and reports whether it names a known status.
func ParseSlotStatus(s string) (SlotStatus, bool) {
	st := SlotStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case SlotAvailable, SlotReserved, SlotOccupied, SlotMaintenance:
		return st, true
	}
	return "", false
}

// Slot is an individually bookable space inside an Area.  Status changes
// only through a compare-and-swap on (id, status); Version is bumped on
// every change.
//
// Fields:
//
//	ID                   – slots.id
//	AreaID               – owning area
//	SlotNumber           – label shown to drivers, unique per area
//	Floor                – floor index, 0 for ground level
//	SupportedVehicleType – largest vehicle class the slot fits
//	BaseHourlyRate       – rate charged per hour of parking
//	Status               – AVAILABLE, RESERVED, OCCUPIED or MAINTENANCE
//	Version              – incremented on every status or attribute change
type Slot struct {
	ID                   uint64      `json:"slotId"`
	AreaID               uint64      `json:"areaId"`
	SlotNumber           string      `json:"slotNumber"`
	Floor                int         `json:"floor"`
	SupportedVehicleType VehicleType `json:"supportedVehicleType"`
	BaseHourlyRate       Money       `json:"baseHourlyRate"`
	Status               SlotStatus  `json:"status"`
	Version              uint64      `json:"version"`
}

// Availability counts slots of one vehicle type in an area by status.
type Availability struct {
	VehicleType VehicleType `json:"vehicleType"`
	Total       int         `json:"total"`
	Available   int         `json:"available"`
	Reserved    int         `json:"reserved"`
	Occupied    int         `json:"occupied"`
	Maintenance int         `json:"maintenance"`
}

func (t VehicleType) rank() int {
	switch t {
	case VehicleSmall:
		return 1
	case VehicleMedium:
		return 2
	case VehicleLarge:
		return 3
	}
	return 0
}

// FitsIn reports whether a vehicle of type t can park in a slot built for
// slotType.  Smaller vehicles fit larger slots.
func (t VehicleType) FitsIn(slotType VehicleType) bool {
	r := t.rank()
	return r > 0 && r <= slotType.rank()
}
