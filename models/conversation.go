package models

// Step identifies the current position inside a guided dialog.
type Step string

const (
	StepVehicleType Step = "vehicleType"
	StepPlaca       Step = "placa"
	StepModelo      Step = "modelo"
	StepVolume      Step = "volume"
	StepCapacity    Step = "capacity"
	StepLocation    Step = "location"
	StepBalanceID   Step = "balanceId"
)

// ConversationState accumulates the fields collected so far for one sender's
// active dialog. At most one state exists per sender at any time.
type ConversationState struct {
	Step        Step      `json:"step"`
	VehicleType string    `json:"vehicleType,omitempty"`
	Placa       string    `json:"placa,omitempty"`
	Modelo      string    `json:"modelo,omitempty"`
	Volume      float64   `json:"volume,omitempty"`
	Capacity    float64   `json:"capacity,omitempty"`
	Location    *GeoPoint `json:"location,omitempty"`
}
