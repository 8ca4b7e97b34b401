// Package httpsink posts location payloads to an HTTP webhook.
package httpsink

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/valyala/fasthttp"

	"github.com/sandrolain/h02-bridge/src/h02"
	"github.com/sandrolain/h02-bridge/src/owntracks"
	"github.com/sandrolain/h02-bridge/src/sinks/sink"
)

// Config defines the HTTP sink settings.
type Config struct {
	// URL of the webhook endpoint.
	URL string `yaml:"url" validate:"required,url"`

	// Method is the HTTP method used for delivery.
	Method string `yaml:"method" default:"POST" validate:"required"`

	// Headers are sent with every request, typically identifying the
	// fleet or device to the receiver.
	Headers map[string]string `yaml:"headers"`

	// Timeout bounds each request attempt.
	Timeout time.Duration `yaml:"timeout" default:"5s" validate:"gt=0"`

	// Retry is the number of additional attempts after a failed
	// delivery.
	Retry int `yaml:"retry" default:"3" validate:"min=1"`

	// RetryDelay is the constant backoff between attempts.
	RetryDelay time.Duration `yaml:"retryDelay" default:"1s" validate:"gt=0"`
}

type HTTPSink struct {
	cfg    *Config
	tid    string
	slog   *slog.Logger
	client *fasthttp.Client
}

// New builds the webhook sink. No connection is established up front;
// each payload is delivered with its own request.
func New(cfg *Config, tid string) (sink.Sink, error) {
	client := &fasthttp.Client{
		ReadTimeout:              cfg.Timeout,
		WriteTimeout:             cfg.Timeout,
		NoDefaultUserAgentHeader: true,
		Dial: (&fasthttp.TCPDialer{
			Concurrency: 4096,
		}).Dial,
	}

	l := slog.Default().With("context", "HTTP Sink")
	l.Info("HTTP sink configured", "url", cfg.URL, "method", cfg.Method, "retry", cfg.Retry)

	return &HTTPSink{
		cfg:    cfg,
		tid:    tid,
		slog:   l,
		client: client,
	}, nil
}

func (s *HTTPSink) Publish(r *h02.Report) error {
	data, err := owntracks.Encode(r, s.tid)
	if err != nil {
		return fmt.Errorf("error encoding payload: %w", err)
	}

	s.slog.Debug("publishing HTTP request", "url", s.cfg.URL, "device", r.DeviceID, "bodysize", len(data))

	ret := retrier.New(retrier.ConstantBackoff(s.cfg.Retry, s.cfg.RetryDelay), nil)
	if err := ret.Run(func() error { return s.send(data) }); err != nil {
		return fmt.Errorf("error delivering to webhook: %w", err)
	}
	return nil
}

func (s *HTTPSink) send(data []byte) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.Header.SetMethod(s.cfg.Method)
	req.Header.SetContentType("application/json")
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}
	req.SetRequestURI(s.cfg.URL)
	req.SetBody(data)

	res := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(res)

	if err := s.client.Do(req, res); err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	if res.StatusCode() > 299 {
		return fmt.Errorf("non-2XX status code: %d", res.StatusCode())
	}
	return nil
}

func (s *HTTPSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
