package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/wattwise/internal/domain/models"
)

// ErrEmptySuggestion indicates the predictor produced no usable output.
var ErrEmptySuggestion = errors.New("predictor returned no suggestion")

// FeatureVector is the input contract of the prediction collaborator: the
// five lifetime totals keyed the way the model was trained.
type FeatureVector struct {
	TV     float64 `json:"Appliance_TV"`
	Fridge float64 `json:"Appliance_Fridge"`
	AC     float64 `json:"Appliance_AC"`
	Fan    float64 `json:"Appliance_Fan"`
	Light  float64 `json:"Appliance_Light"`
}

// VectorFromPayload extracts the feature vector from a socket prediction
// request. Appliances missing from the payload contribute zero.
func VectorFromPayload(payload models.PredictionPayload) FeatureVector {
	return FeatureVector{
		TV:     payload.Appliances[string(models.ApplianceTV)].TotalConsumption,
		Fridge: payload.Appliances[string(models.ApplianceFridge)].TotalConsumption,
		AC:     payload.Appliances[string(models.ApplianceAC)].TotalConsumption,
		Fan:    payload.Appliances[string(models.ApplianceFan)].TotalConsumption,
		Light:  payload.Appliances[string(models.ApplianceLight)].TotalConsumption,
	}
}

// Predictor produces a usage suggestion for a feature vector.
type Predictor interface {
	Predict(ctx context.Context, features FeatureVector) (string, error)
}

// ScriptPredictor spawns the suggestion script per request, feeding the
// feature vector as JSON on stdin and reading a single suggestion line from
// stdout. Invocations are bounded by the configured timeout so a wedged
// interpreter cannot leak processes.
type ScriptPredictor struct {
	interpreter string
	scriptPath  string
	timeout     time.Duration
	logger      *zap.Logger
}

// NewScriptPredictor builds a subprocess-backed predictor.
func NewScriptPredictor(interpreter, scriptPath string, timeout time.Duration, logger *zap.Logger) *ScriptPredictor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScriptPredictor{
		interpreter: interpreter,
		scriptPath:  scriptPath,
		timeout:     timeout,
		logger:      logger,
	}
}

// Predict runs the script once and returns its first output line.
func (p *ScriptPredictor) Predict(ctx context.Context, features FeatureVector) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	payload, err := json.Marshal(features)
	if err != nil {
		return "", fmt.Errorf("marshal feature vector: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.interpreter, p.scriptPath)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			p.logger.Warn("prediction script stderr", zap.String("stderr", stderr.String()))
		}
		return "", fmt.Errorf("run prediction script: %w", err)
	}

	suggestion, _, _ := strings.Cut(strings.TrimSpace(stdout.String()), "\n")
	if suggestion == "" {
		return "", ErrEmptySuggestion
	}

	return suggestion, nil
}
