// Package source provides batch sources for training runs: an HTTP client
// pulling pre-composed batches from an external segment-generator service and
// a synthetic generator for smoke runs and tests.
package source

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"github.com/TFMV/siren/pkg/trainer"
)

// HTTP pulls batches from a segment-generator service. The service owns batch
// composition (speakers per batch, segments per speaker) and may prefetch in
// background workers; this client only pulls. A 204 response means the
// generator is exhausted and maps to io.EOF.
type HTTP struct {
	client  *fasthttp.Client
	url     string
	timeout time.Duration
}

// NewHTTP creates a batch source pulling from url.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTP{
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		url:     url,
		timeout: timeout,
	}
}

// Next implements trainer.BatchSource.
func (s *HTTP) Next(ctx context.Context) (trainer.Batch, error) {
	select {
	case <-ctx.Done():
		return trainer.Batch{}, ctx.Err()
	default:
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	if err := s.client.DoTimeout(req, resp, s.timeout); err != nil {
		return trainer.Batch{}, fmt.Errorf("fetch batch: %w", err)
	}

	switch resp.StatusCode() {
	case fasthttp.StatusOK:
	case fasthttp.StatusNoContent:
		return trainer.Batch{}, io.EOF
	default:
		return trainer.Batch{}, fmt.Errorf("batch generator returned status %d", resp.StatusCode())
	}

	var batch trainer.Batch
	if err := sonic.Unmarshal(resp.Body(), &batch); err != nil {
		return trainer.Batch{}, fmt.Errorf("decode batch: %w", err)
	}
	return batch, nil
}
