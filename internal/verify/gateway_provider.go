package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GatewayProvider delega en un servicio externo de verificacion (estilo
// Twilio Verify): el gateway genera, entrega y valida los codigos.
type GatewayProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewGatewayProvider(baseURL, apiKey string, timeout time.Duration) (*GatewayProvider, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("verify base url is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GatewayProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (p *GatewayProvider) Send(ctx context.Context, phone string) error {
	form := url.Values{
		"apiKey": {p.apiKey},
		"to":     {phone},
	}
	resp, err := p.postForm(ctx, p.baseURL+"/verifications", form)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: gateway returned %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("verification send rejected: %d", resp.StatusCode)
	}
	return nil
}

func (p *GatewayProvider) Check(ctx context.Context, phone, code string) (bool, error) {
	form := url.Values{
		"apiKey": {p.apiKey},
		"to":     {phone},
		"code":   {code},
	}
	resp, err := p.postForm(ctx, p.baseURL+"/verification_checks", form)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return false, fmt.Errorf("%w: gateway returned %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return false, nil
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result.Status == "approved", nil
}

func (p *GatewayProvider) postForm(ctx context.Context, endpoint string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return p.client.Do(req)
}
