package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"complaints-proxy/internal/config"
	"complaints-proxy/internal/metrics"
)

// Settings tunes how the Sender calls its providers.
type Settings struct {
	FromName        string        // used when the request has no from_name
	FromAddress     string        // sender address for every provider
	Timeout         time.Duration // bound on each provider call
	BreakerFailures uint32        // consecutive failures that open a provider's breaker
	BreakerOpen     time.Duration // how long an open breaker skips its provider
}

// Sender runs the provider chain for one request at a time; it holds no
// per-request state and is safe for concurrent use.
type Sender struct {
	providers []Provider
	breakers  []*gobreaker.CircuitBreaker[struct{}]
	settings  Settings
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewSender builds the production chain, Brevo then Resend, from cfg.
// The metrics parameter is optional.
func NewSender(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Sender {
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	providers := []Provider{
		NewBrevo(cfg.Email.Brevo.APIKey, cfg.Email.Brevo.BaseURL, client),
		NewResend(cfg.Email.Resend.APIKey, cfg.Email.Resend.BaseURL, client),
	}

	return New(providers, Settings{
		FromName:        cfg.Email.FromName,
		FromAddress:     cfg.Email.FromAddress,
		Timeout:         time.Duration(cfg.Email.TimeoutSeconds) * time.Second,
		BreakerFailures: uint32(cfg.Email.BreakerFailures),
		BreakerOpen:     time.Duration(cfg.Email.BreakerOpenSeconds) * time.Second,
	}, logger, m)
}

// New creates a Sender that tries providers in the given order.
func New(providers []Provider, settings Settings, logger *slog.Logger, m *metrics.Metrics) *Sender {
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.BreakerFailures == 0 {
		settings.BreakerFailures = 5
	}
	if settings.BreakerOpen <= 0 {
		settings.BreakerOpen = time.Minute
	}

	logger = logger.With("component", "email_sender")

	breakers := make([]*gobreaker.CircuitBreaker[struct{}], len(providers))
	for i, p := range providers {
		breakers[i] = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        p.Name(),
			MaxRequests: 1,
			Timeout:     settings.BreakerOpen,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= settings.BreakerFailures
			},
			IsSuccessful: countsAsHealthy,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("email provider breaker state change",
					"provider", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		})
	}

	return &Sender{
		providers: providers,
		breakers:  breakers,
		settings:  settings,
		logger:    logger,
		metrics:   m,
	}
}

// Send validates req and walks the provider chain.
//
// It returns a *ValidationError before contacting any provider when a
// mandatory field is missing. On success the Outcome names the provider; when
// no provider is configured or all of them refused, the Outcome carries the
// mailto fallback. Any other error means a provider call failed outright
// (network error, timeout) and the chain was abandoned.
func (s *Sender) Send(ctx context.Context, req *Request) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		s.recordOutcome("invalid")
		return nil, err
	}

	msg := s.message(req)

	for i, p := range s.providers {
		if !p.Configured() {
			continue
		}

		err := s.attempt(ctx, i, msg)
		if err == nil {
			s.recordAttempt(p.Name(), "success")
			s.recordOutcome("sent")
			s.logger.Info("email sent", "provider", p.Name())
			return &Outcome{OK: true, Method: p.Name()}, nil
		}

		var statusErr *StatusError
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			s.recordAttempt(p.Name(), "skipped")
			s.logger.Warn("email provider skipped, breaker open", "provider", p.Name())
		case errors.As(err, &statusErr):
			s.recordAttempt(p.Name(), "rejected")
			s.logger.Warn("email provider rejected message",
				"provider", p.Name(),
				"status", statusErr.StatusCode,
				"body", statusErr.Body,
			)
		default:
			s.recordAttempt(p.Name(), "error")
			s.recordOutcome("error")
			return nil, fmt.Errorf("email provider %s: %w", p.Name(), err)
		}
	}

	s.recordOutcome("fallback")
	s.logger.Info("no email provider delivered, returning mailto fallback")
	return FallbackOutcome(req), nil
}

// attempt runs one provider call under its breaker and the per-call timeout.
func (s *Sender) attempt(ctx context.Context, i int, msg *Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	_, err := s.breakers[i].Execute(func() (struct{}, error) {
		return struct{}{}, s.providers[i].Send(ctx, msg)
	})
	return err
}

func (s *Sender) message(req *Request) *Message {
	fromName := req.FromName
	if fromName == "" {
		fromName = s.settings.FromName
	}
	return &Message{
		FromName:    fromName,
		FromAddress: s.settings.FromAddress,
		ToEmail:     req.ToEmail,
		ToName:      req.ToName,
		Subject:     req.Subject,
		Text:        req.Body,
	}
}

// countsAsHealthy reports whether err leaves the provider's breaker alone.
// A caller that hung up, or a 4xx caused by the message itself (bad address,
// rejected content), says nothing about the provider's health. Auth, timeout
// and throttling answers do.
func countsAsHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	switch statusErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return statusErr.StatusCode >= 400 && statusErr.StatusCode < 500
}

// Configured reports the names of providers that have credentials, in chain order.
func (s *Sender) Configured() []string {
	names := make([]string, 0, len(s.providers))
	for _, p := range s.providers {
		if p.Configured() {
			names = append(names, p.Name())
		}
	}
	return names
}

func (s *Sender) recordAttempt(provider, result string) {
	if s.metrics != nil {
		s.metrics.EmailAttempts.WithLabelValues(provider, result).Inc()
	}
}

func (s *Sender) recordOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.EmailOutcomes.WithLabelValues(outcome).Inc()
	}
}
