package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jmehdipour/topic-notifier/internal/model"
)

// HTTPProvider posts emails as JSON to a mail-relay API.
type HTTPProvider struct {
	name   string
	url    string
	apiKey string
	client *http.Client
	br     *Breaker
}

func NewHTTPProvider(name, baseURL, path, apiKey string, timeout time.Duration, br *Breaker) *HTTPProvider {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPProvider{
		name:   name,
		url:    baseURL + path,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
		br:     br,
	}
}

func (p *HTTPProvider) Name() string  { return p.name }
func (p *HTTPProvider) Ready() bool   { return p.br.Ready() }
func (p *HTTPProvider) Acquire() bool { return p.br.Acquire() }

func (p *HTTPProvider) Send(ctx context.Context, e model.Email) error {
	if _, err := buildMessage(e); err != nil {
		p.br.Release()
		return err
	}

	if err := p.post(ctx, e); err != nil {
		p.br.Failure()
		return err
	}
	p.br.Success()
	return nil
}

func (p *HTTPProvider) post(ctx context.Context, e model.Email) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return fmt.Errorf("provider=%s status=%d", p.name, res.StatusCode)
	}
	return nil
}
