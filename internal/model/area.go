package model

import "time"

// Area is a parking property owned by an area owner.  Capacity and base
// rates are kept per vehicle type; the slots are generated from them when
// the area is created and can be edited individually afterwards.
type Area struct {
	ID             uint64                `json:"areaId"`
	OwnerID        uint64                `json:"ownerId"`
	Name           string                `json:"name"`
	Address        string                `json:"address"`
	Lat            float64               `json:"lat"`
	Lon            float64               `json:"lon"`
	CapacityByType map[VehicleType]int   `json:"capacityByType"`
	BaseRateByType map[VehicleType]Money `json:"baseRateByType"`
	CreatedAt      time.Time             `json:"createdAt"`
}

// AreaSummary is the read model behind the driver map: an area plus live
// slot counts.
type AreaSummary struct {
	Area
	TotalSlots     int            `json:"totalSlots"`
	AvailableSlots int            `json:"availableSlots"`
	Availability   []Availability `json:"availability"`
}
