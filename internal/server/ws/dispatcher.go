package ws

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/mamadbah2/wattwise/internal/domain/models"
	"github.com/mamadbah2/wattwise/internal/service/appliance"
	"github.com/mamadbah2/wattwise/internal/service/prediction"
)

// Dispatcher routes inbound socket events to the appliance controller and the
// predictor. Failures of any kind are logged and swallowed; the channel never
// carries error frames.
type Dispatcher struct {
	hub        *Hub
	controller appliance.Controller
	predictor  prediction.Predictor
	logger     *zap.Logger
}

// NewDispatcher wires the event dispatcher.
func NewDispatcher(hub *Hub, controller appliance.Controller, predictor prediction.Predictor, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		hub:        hub,
		controller: controller,
		predictor:  predictor,
		logger:     logger,
	}
}

// HandleMessage decodes one inbound envelope and executes it.
func (d *Dispatcher) HandleMessage(ctx context.Context, sender *Client, raw []byte) {
	var envelope models.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		d.logger.Warn("malformed frame", zap.String("client_id", sender.id), zap.Error(err))
		return
	}

	switch envelope.Event {
	case models.EventStartAppliance:
		d.handleStart(ctx, sender, envelope.Data)
	case models.EventStopAppliance:
		d.handleStop(ctx, sender, envelope.Data)
	case models.EventGetPrediction:
		d.handlePrediction(ctx, sender, envelope.Data)
	default:
		d.logger.Warn("unknown event", zap.String("event", envelope.Event), zap.String("client_id", sender.id))
	}
}

func (d *Dispatcher) handleStart(ctx context.Context, sender *Client, data json.RawMessage) {
	var payload models.StartAppliancePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		d.logger.Warn("malformed start_appliance payload", zap.Error(err))
		return
	}

	delta, err := d.controller.Start(ctx, payload.UserID, payload.Appliance, payload.Consumption)
	if err != nil {
		d.logger.Error("failed to start appliance",
			zap.String("user_id", payload.UserID),
			zap.String("appliance", payload.Appliance),
			zap.Error(err))
		return
	}

	d.broadcastDelta(sender, delta)
}

func (d *Dispatcher) handleStop(ctx context.Context, sender *Client, data json.RawMessage) {
	var payload models.StopAppliancePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		d.logger.Warn("malformed stop_appliance payload", zap.Error(err))
		return
	}

	delta, err := d.controller.Stop(ctx, payload.UserID, payload.Appliance)
	if err != nil {
		d.logger.Error("failed to stop appliance",
			zap.String("user_id", payload.UserID),
			zap.String("appliance", payload.Appliance),
			zap.Error(err))
		return
	}

	d.broadcastDelta(sender, delta)
}

func (d *Dispatcher) handlePrediction(ctx context.Context, sender *Client, data json.RawMessage) {
	var payload models.PredictionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		d.logger.Warn("malformed get_prediction payload", zap.Error(err))
		return
	}

	suggestion, err := d.predictor.Predict(ctx, prediction.VectorFromPayload(payload))
	if err != nil {
		// The requester gets nothing; its request simply times out client-side.
		d.logger.Error("prediction failed", zap.String("client_id", sender.id), zap.Error(err))
		return
	}

	frame, err := marshalEnvelope(models.EventPredictionResponse, models.PredictionResponse{Suggestion: suggestion})
	if err != nil {
		d.logger.Error("failed to encode prediction response", zap.Error(err))
		return
	}

	sender.Send(frame)
}

func (d *Dispatcher) broadcastDelta(sender *Client, delta models.ConsumptionDelta) {
	frame, err := marshalEnvelope(models.EventConsumptionUpdate, delta)
	if err != nil {
		d.logger.Error("failed to encode consumption delta", zap.Error(err))
		return
	}
	d.hub.Broadcast(sender, frame)
}

func marshalEnvelope(event string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(models.Envelope{Event: event, Data: data})
}
