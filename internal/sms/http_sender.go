package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPSender entrega SMS via un gateway HTTP tipo Mobizon: POST de formulario
// con apiKey y destinatario, respuesta JSON con codigo de resultado.
type HTTPSender struct {
	gatewayURL string
	apiKey     string
	senderID   string
	client     *http.Client
}

func NewHTTPSender(gatewayURL, apiKey, senderID string, timeout time.Duration) (*HTTPSender, error) {
	gatewayURL = strings.TrimSpace(gatewayURL)
	if gatewayURL == "" {
		return nil, fmt.Errorf("sms gateway url is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("sms api key is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSender{
		gatewayURL: gatewayURL,
		apiKey:     apiKey,
		senderID:   senderID,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (s *HTTPSender) Send(ctx context.Context, phone string, body string) error {
	form := url.Values{
		"apiKey":    {s.apiKey},
		"recipient": {phone},
		"text":      {body},
	}
	if s.senderID != "" {
		form.Set("from", s.senderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}

	var result struct {
		Code int `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("parse sms gateway response: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("sms gateway returned error code %d", result.Code)
	}
	return nil
}
