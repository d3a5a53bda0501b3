package model

import "time"

// BookingStatus is a state of the booking lifecycle.
type BookingStatus string

const (
	BookingReserved        BookingStatus = "RESERVED"
	BookingActiveParking   BookingStatus = "ACTIVE_PARKING"
	BookingCompleted       BookingStatus = "COMPLETED"
	BookingCancelledNoShow BookingStatus = "CANCELLED_NO_SHOW"
	// BookingDefaulted appears in stored data but is never produced by the
	// engine.  It is terminal.
	BookingDefaulted BookingStatus = "DEFAULTED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingCompleted, BookingCancelledNoShow, BookingDefaulted:
		return true
	}
	return false
}

// Live reports whether s holds a slot.
func (s BookingStatus) Live() bool {
	return s == BookingReserved || s == BookingActiveParking
}

// Booking records one driver's use of one slot, from reservation or
// drive-in through exit or no-show.
//
// Fields:
//
//	ReservationTime – set only for bookings that started as RESERVED
//	ArrivalTime     – when parking started (arrive, or creation for park-now)
//	BookingTime     – creation time
//	ExitTime        – set on completion or no-show
//	AmountPaid      – collected from the wallet when the booking settled
//	AmountPending   – the unpaid remainder, carried as wallet debt
//	Version         – bumped on every transition; orders push snapshots
//
// SlotNumber, AreaName and RegisterNumber are read-model fields filled by
// list queries.
type Booking struct {
	ID                  uint64        `json:"id"`
	UserID              uint64        `json:"userId"`
	VehicleID           uint64        `json:"vehicleId"`
	SlotID              uint64        `json:"slotId"`
	AreaID              uint64        `json:"areaId"`
	Status              BookingStatus `json:"status"`
	ReservationTime     *time.Time    `json:"reservationTime"`
	ArrivalTime         *time.Time    `json:"arrivalTime"`
	BookingTime         time.Time     `json:"bookingTime"`
	ExitTime            *time.Time    `json:"exitTime"`
	FinalReservationFee Money         `json:"finalReservationFee"`
	FinalParkingFee     Money         `json:"finalParkingFee"`
	AmountPaid          Money         `json:"amountPaid"`
	AmountPending       Money         `json:"amountPending"`
	Version             uint64        `json:"version"`
	UpdatedAt           time.Time     `json:"updatedAt"`

	SlotNumber     string `json:"slotNumber,omitempty"`
	AreaName       string `json:"areaName,omitempty"`
	RegisterNumber string `json:"registerNumber,omitempty"`
}

// TotalFee is the sum of the reservation and parking fees.
func (b Booking) TotalFee() Money { return b.FinalReservationFee + b.FinalParkingFee }

// Newer reports whether b supersedes other as a snapshot of the same
// booking.  Version decides; UpdatedAt breaks ties.
func (b Booking) Newer(other Booking) bool {
	if b.Version != other.Version {
		return b.Version > other.Version
	}
	return b.UpdatedAt.After(other.UpdatedAt)
}

// Receipt is returned when a parking session ends.
type Receipt struct {
	BookingID           uint64  `json:"bookingId"`
	FinalReservationFee Money   `json:"finalReservationFee"`
	FinalParkingFee     Money   `json:"finalParkingFee"`
	AmountPaid          Money   `json:"amountPaid"`
	AmountPending       Money   `json:"amountPending"`
	DebtCollected       Money   `json:"debtCollected"`
	InsufficientBalance bool    `json:"insufficientBalance"`
	WalletBalance       Money   `json:"walletBalance"`
	Booking             Booking `json:"booking"`
}
