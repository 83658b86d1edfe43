package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mamadbah2/wattwise/internal/domain/models"
	"github.com/mamadbah2/wattwise/internal/service/prediction"
)

type fakeController struct {
	startCalls int
	stopCalls  int
	err        error
}

func (f *fakeController) Start(ctx context.Context, userID, appliance string, consumption float64) (models.ConsumptionDelta, error) {
	f.startCalls++
	if f.err != nil {
		return nil, f.err
	}
	return models.NewStartDelta(userID, models.ApplianceName(appliance), consumption), nil
}

func (f *fakeController) Stop(ctx context.Context, userID, appliance string) (models.ConsumptionDelta, error) {
	f.stopCalls++
	if f.err != nil {
		return nil, f.err
	}
	return models.NewStopDelta(userID, models.ApplianceName(appliance)), nil
}

type fakePredictor struct {
	lastVector prediction.FeatureVector
	calls      int
	suggestion string
	err        error
}

func (f *fakePredictor) Predict(ctx context.Context, features prediction.FeatureVector) (string, error) {
	f.calls++
	f.lastVector = features
	if f.err != nil {
		return "", f.err
	}
	return f.suggestion, nil
}

type gateway struct {
	hub        *Hub
	dispatcher *Dispatcher
	controller *fakeController
	predictor  *fakePredictor
}

func newTestGateway(t *testing.T, policy BroadcastPolicy) *gateway {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(policy, nil)
	go hub.Run(ctx)

	controller := &fakeController{}
	predictor := &fakePredictor{suggestion: "Your power consumption is within the limit."}
	dispatcher := NewDispatcher(hub, controller, predictor, nil)

	return &gateway{hub: hub, dispatcher: dispatcher, controller: controller, predictor: predictor}
}

func (g *gateway) connect(id string) *Client {
	client := newClient(id, g.hub, g.dispatcher, nil, nil)
	g.hub.Register(client)
	return client
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := json.Marshal(models.Envelope{Event: event, Data: raw})
	if err != nil {
		t.Fatal(err)
	}
	return payload
}

func receive(t *testing.T, client *Client) models.Envelope {
	t.Helper()
	select {
	case payload := <-client.send:
		var envelope models.Envelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return envelope
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return models.Envelope{}
	}
}

func assertSilent(t *testing.T, client *Client) {
	t.Helper()
	select {
	case payload := <-client.send:
		t.Fatalf("expected no frame, got %s", payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStartAppliance_BroadcastsDeltaToAllClients(t *testing.T) {
	g := newTestGateway(t, nil)
	sender := g.connect("sender")
	watcher := g.connect("watcher")

	g.dispatcher.HandleMessage(context.Background(), sender, frame(t, models.EventStartAppliance, models.StartAppliancePayload{
		UserID:      "u1",
		Appliance:   "fan",
		Consumption: 5,
	}))

	for _, client := range []*Client{sender, watcher} {
		envelope := receive(t, client)
		if envelope.Event != models.EventConsumptionUpdate {
			t.Fatalf("expected %s, got %s", models.EventConsumptionUpdate, envelope.Event)
		}

		var delta models.ConsumptionDelta
		if err := json.Unmarshal(envelope.Data, &delta); err != nil {
			t.Fatal(err)
		}
		entry := delta["u1"]["fan"]
		if !entry.IsRunning || entry.Consumption == nil || *entry.Consumption != 5 {
			t.Errorf("unexpected delta entry: %+v", entry)
		}
	}
}

func TestStopAppliance_BroadcastsBooleanOnlyDelta(t *testing.T) {
	g := newTestGateway(t, nil)
	sender := g.connect("sender")

	g.dispatcher.HandleMessage(context.Background(), sender, frame(t, models.EventStopAppliance, models.StopAppliancePayload{
		UserID:    "u1",
		Appliance: "fan",
	}))

	envelope := receive(t, sender)
	var delta models.ConsumptionDelta
	if err := json.Unmarshal(envelope.Data, &delta); err != nil {
		t.Fatal(err)
	}
	entry := delta["u1"]["fan"]
	if entry.IsRunning {
		t.Error("expected isRunning=false")
	}
	if entry.Consumption != nil {
		t.Errorf("stop delta must omit consumption, got %v", *entry.Consumption)
	}
}

func TestStartAppliance_ControllerErrorEmitsNothing(t *testing.T) {
	g := newTestGateway(t, nil)
	g.controller.err = errors.New("store unreachable")
	sender := g.connect("sender")

	g.dispatcher.HandleMessage(context.Background(), sender, frame(t, models.EventStartAppliance, models.StartAppliancePayload{
		UserID:    "u1",
		Appliance: "fan",
	}))

	assertSilent(t, sender)
}

func TestGetPrediction_UnicastsToRequesterOnly(t *testing.T) {
	g := newTestGateway(t, nil)
	sender := g.connect("sender")
	watcher := g.connect("watcher")

	g.dispatcher.HandleMessage(context.Background(), sender, frame(t, models.EventGetPrediction, models.PredictionPayload{
		Appliances: map[string]models.ApplianceTotals{
			"tv": {TotalConsumption: 12},
		},
	}))

	envelope := receive(t, sender)
	if envelope.Event != models.EventPredictionResponse {
		t.Fatalf("expected %s, got %s", models.EventPredictionResponse, envelope.Event)
	}

	var response models.PredictionResponse
	if err := json.Unmarshal(envelope.Data, &response); err != nil {
		t.Fatal(err)
	}
	if response.Suggestion != g.predictor.suggestion {
		t.Errorf("unexpected suggestion %q", response.Suggestion)
	}

	if g.predictor.calls != 1 {
		t.Errorf("expected exactly one predictor call, got %d", g.predictor.calls)
	}
	if g.predictor.lastVector != (prediction.FeatureVector{TV: 12}) {
		t.Errorf("unexpected feature vector %+v", g.predictor.lastVector)
	}

	assertSilent(t, watcher)
}

func TestGetPrediction_MissingAppliancesYieldZeroVector(t *testing.T) {
	g := newTestGateway(t, nil)
	sender := g.connect("sender")

	g.dispatcher.HandleMessage(context.Background(), sender, frame(t, models.EventGetPrediction, models.PredictionPayload{}))

	receive(t, sender)
	if g.predictor.lastVector != (prediction.FeatureVector{}) {
		t.Errorf("expected all-zero vector, got %+v", g.predictor.lastVector)
	}
}

func TestGetPrediction_PredictorFailureSendsNothing(t *testing.T) {
	g := newTestGateway(t, nil)
	g.predictor.err = errors.New("subprocess exited 1")
	sender := g.connect("sender")

	g.dispatcher.HandleMessage(context.Background(), sender, frame(t, models.EventGetPrediction, models.PredictionPayload{}))

	assertSilent(t, sender)
}

func TestMalformedFrameIsIgnored(t *testing.T) {
	g := newTestGateway(t, nil)
	sender := g.connect("sender")

	g.dispatcher.HandleMessage(context.Background(), sender, []byte("{not json"))
	g.dispatcher.HandleMessage(context.Background(), sender, frame(t, "unknown_event", map[string]string{}))

	assertSilent(t, sender)
	if g.controller.startCalls+g.controller.stopCalls != 0 {
		t.Error("controller must not be invoked for malformed frames")
	}
}

func TestBroadcastPolicy_CanExcludeSender(t *testing.T) {
	excludeSender := func(sender, candidate *Client) bool { return candidate != sender }
	g := newTestGateway(t, excludeSender)
	sender := g.connect("sender")
	watcher := g.connect("watcher")

	g.dispatcher.HandleMessage(context.Background(), sender, frame(t, models.EventStopAppliance, models.StopAppliancePayload{
		UserID:    "u1",
		Appliance: "tv",
	}))

	receive(t, watcher)
	assertSilent(t, sender)
}
