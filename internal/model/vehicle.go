package model

import "time"

// Vehicle belongs to a driver.  At most one vehicle per user is primary.
type Vehicle struct {
	ID             uint64      `json:"vehicleId"`
	UserID         uint64      `json:"userId"`
	RegisterNumber string      `json:"registerNumber"`
	Model          string      `json:"model"`
	Color          string      `json:"color"`
	VehicleType    VehicleType `json:"vehicleType"`
	IsPrimary      bool        `json:"isPrimary"`
	CreatedAt      time.Time   `json:"createdAt"`
}
