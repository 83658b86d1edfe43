package models

import "encoding/json"

// Socket event names, inbound and outbound.
const (
	EventStartAppliance     = "start_appliance"
	EventStopAppliance      = "stop_appliance"
	EventGetPrediction      = "get_prediction"
	EventConsumptionUpdate  = "consumption_update_batch"
	EventPredictionResponse = "prediction_response"
)

// Envelope frames every message on the socket channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// StartAppliancePayload carries an inbound start command. Consumption defaults
// to zero when the client omits it.
type StartAppliancePayload struct {
	UserID      string  `json:"userId"`
	Appliance   string  `json:"appliance"`
	Consumption float64 `json:"consumption"`
}

// StopAppliancePayload carries an inbound stop command.
type StopAppliancePayload struct {
	UserID    string `json:"userId"`
	Appliance string `json:"appliance"`
}

// PredictionPayload carries the lifetime totals a dashboard submits for a
// usage suggestion. Missing appliances are treated as zero consumption.
type PredictionPayload struct {
	Appliances map[string]ApplianceTotals `json:"appliances"`
}

// ApplianceTotals is the single field the prediction payload needs per appliance.
type ApplianceTotals struct {
	TotalConsumption float64 `json:"totalConsumption"`
}

// PredictionResponse is unicast back to the requesting client.
type PredictionResponse struct {
	Suggestion string `json:"suggestion"`
}

// ApplianceDelta is the minimal per-appliance state change broadcast after a
// command. Consumption is only present on start deltas.
type ApplianceDelta struct {
	Consumption *float64 `json:"consumption,omitempty"`
	IsRunning   bool     `json:"isRunning"`
}

// ConsumptionDelta maps userId -> appliance -> changed fields.
type ConsumptionDelta map[string]map[string]ApplianceDelta

// NewStartDelta shapes the broadcast payload for a successful start command.
func NewStartDelta(userID string, appliance ApplianceName, consumption float64) ConsumptionDelta {
	return ConsumptionDelta{
		userID: {
			string(appliance): {Consumption: &consumption, IsRunning: true},
		},
	}
}

// NewStopDelta shapes the broadcast payload for a successful stop command.
func NewStopDelta(userID string, appliance ApplianceName) ConsumptionDelta {
	return ConsumptionDelta{
		userID: {
			string(appliance): {IsRunning: false},
		},
	}
}
