package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sundayezeilo/shorttag/internal/errx"
)

// DefaultMeasurementEndpoint is the Google Analytics 4 Measurement Protocol collector.
const DefaultMeasurementEndpoint = "https://www.google-analytics.com/mp/collect"

// MeasurementConfig configures a MeasurementSink.
type MeasurementConfig struct {
	Endpoint      string
	MeasurementID string
	APISecret     string
	Timeout       time.Duration
	Client        *http.Client
}

// MeasurementSink posts events to a Measurement Protocol collector.
type MeasurementSink struct {
	endpoint string
	client   *http.Client
}

type mpEvent struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params,omitempty"`
}

type mpPayload struct {
	ClientID string    `json:"client_id"`
	Events   []mpEvent `json:"events"`
}

func NewMeasurement(cfg MeasurementConfig) (*MeasurementSink, error) {
	const op = "analytics.NewMeasurement"

	if cfg.MeasurementID == "" || cfg.APISecret == "" {
		return nil, errx.E(op, errx.Invalid, fmt.Errorf("measurement id and api secret are required"))
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultMeasurementEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errx.E(op, errx.Invalid, fmt.Errorf("invalid endpoint: %w", err))
	}
	q := u.Query()
	q.Set("measurement_id", cfg.MeasurementID)
	q.Set("api_secret", cfg.APISecret)
	u.RawQuery = q.Encode()

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &MeasurementSink{endpoint: u.String(), client: client}, nil
}

func (s *MeasurementSink) Send(ctx context.Context, ev Event) error {
	const op = "analytics.MeasurementSink.Send"

	body, err := json.Marshal(mpPayload{
		ClientID: ev.ClientID,
		Events:   []mpEvent{{Name: ev.Name, Params: ev.Params}},
	})
	if err != nil {
		return errx.E(op, errx.Internal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return errx.E(op, errx.Internal, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return errx.E(op, errx.Unavailable, fmt.Errorf("collector returned %s", resp.Status))
	}
	return nil
}

func (s *MeasurementSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
