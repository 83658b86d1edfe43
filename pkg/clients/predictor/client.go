package predictor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/wattwise/internal/service/prediction"
)

// HTTPClient is a resty-backed predictor for deployments where the suggestion
// model runs as its own service instead of a local script.
type HTTPClient struct {
	httpClient *resty.Client
}

// NewHTTPClient builds a predictor client against the given base URL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	restyClient := resty.New()
	restyClient.
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &HTTPClient{httpClient: restyClient}
}

// predictionResponse mirrors the suggestion service's successful reply.
type predictionResponse struct {
	Suggestion string `json:"suggestion"`
}

// apiError represents the suggestion service's error payload.
type apiError struct {
	Error string `json:"error"`
}

// Predict posts the feature vector and returns the suggestion line.
func (c *HTTPClient) Predict(ctx context.Context, features prediction.FeatureVector) (string, error) {
	result := new(predictionResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(features).
		SetResult(result).
		SetError(apiErr).
		Post("/predict")
	if err != nil {
		return "", fmt.Errorf("call prediction service: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return "", fmt.Errorf("prediction service error: code=%d, message=%s", resp.StatusCode(), apiErr.Error)
	}

	if result.Suggestion == "" {
		return "", prediction.ErrEmptySuggestion
	}

	return result.Suggestion, nil
}
