package models

import "time"

// Trip is an open freight job sourced from the external catalog.
type Trip struct {
	CargoType   string  `json:"cargoType"`
	Weight      float64 `json:"weight"` // tons
	Volume      float64 `json:"volume"` // m³
	Origin      string  `json:"origin"`
	OriginLat   float64 `json:"originLat"`
	OriginLon   float64 `json:"originLon"`
	Destination string  `json:"destination"`
	PickupTime  string  `json:"pickupTime"`
	Price       float64 `json:"price"`
}

// Transport is a registered vehicle availability: the output of a completed
// availability dialog, persisted to the availability log and fed to matching.
type Transport struct {
	Phone       string   `json:"phone"`
	VehicleType string   `json:"vehicleType"`
	Placa       string   `json:"placa"`
	Modelo      string   `json:"modelo"`
	Capacity    float64  `json:"capacity"` // tons
	Volume      float64  `json:"volume"`   // m³
	Location    GeoPoint `json:"location"`
	Timestamp   string   `json:"timestamp"`
}

// TripOffer is a proposed assignment awaiting the driver's accept/reject
// within the response deadline.
type TripOffer struct {
	Trip       Trip      `json:"trip"`
	AssignedAt time.Time `json:"assignedAt"`
}
