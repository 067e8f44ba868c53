package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"vehicle-auction-engine/internal/core/domain"
	"vehicle-auction-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

// defaultHandoffRetryIntervals spaces redelivery attempts to the settlement
// subsystem.
var defaultHandoffRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// EventOrderCreated is the only event the settlement subsystem receives.
const EventOrderCreated = "ORDER_CREATED"

// HandoffPayload is the JSON body posted to the settlement webhook.
type HandoffPayload struct {
	EventType string        `json:"event_type"`
	Order     *domain.Order `json:"order"`
	Timestamp int64         `json:"timestamp"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// OrderHandoffService implements ports.OrderHandoff by posting each order to
// the settlement webhook in the background, retrying on failure.
type OrderHandoffService struct {
	orderRepo      ports.OrderRepository
	sigSvc         ports.SignatureService
	url            string
	secret         string
	httpClient     HTTPClient
	retryIntervals []time.Duration
	log            zerolog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	inflight sync.WaitGroup
}

// NewOrderHandoffService creates a new order handoff service. An empty url
// leaves orders pending for the settlement subsystem to pull.
func NewOrderHandoffService(
	orderRepo ports.OrderRepository,
	sigSvc ports.SignatureService,
	url, secret string,
	httpClient HTTPClient,
	log zerolog.Logger,
) *OrderHandoffService {
	return &OrderHandoffService{
		orderRepo:      orderRepo,
		sigSvc:         sigSvc,
		url:            url,
		secret:         secret,
		httpClient:     httpClient,
		retryIntervals: defaultHandoffRetryIntervals,
		log:            log,
		stop:           make(chan struct{}),
	}
}

// Handoff queues delivery of a committed order and returns immediately.
func (s *OrderHandoffService) Handoff(ctx context.Context, order *domain.Order) error {
	if s.url == "" {
		s.log.Debug().Str("order_id", order.ID.String()).Msg("handoff: no settlement webhook configured, skipping")
		return nil
	}

	body, err := json.Marshal(HandoffPayload{
		EventType: EventOrderCreated,
		Order:     order,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		s.log.Error().Err(err).Str("order_id", order.ID.String()).Msg("handoff: failed to marshal payload")
		return err
	}

	signature := ""
	if s.secret != "" {
		signature = s.sigSvc.Sign(s.secret, string(body))
	}

	select {
	case <-s.stop:
		s.log.Warn().Str("order_id", order.ID.String()).Msg("handoff: shutting down, order left pending")
		return nil
	default:
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.deliverWithRetries(context.WithoutCancel(ctx), order, body, signature)
	}()
	return nil
}

// Shutdown abandons pending retries and waits for in-flight deliveries to
// return. Abandoned orders keep handoff status pending.
func (s *OrderHandoffService) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliverWithRetries posts the payload until a 2xx response or the retry
// schedule runs out, then records the outcome on the order.
func (s *OrderHandoffService) deliverWithRetries(ctx context.Context, order *domain.Order, body []byte, signature string) {
	orderID := order.ID.String()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for attempt := 0; attempt <= len(s.retryIntervals); attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(s.retryIntervals[attempt-1])
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				s.log.Warn().Str("order_id", orderID).Int("attempt", attempt+1).Msg("handoff: stopped before retry, order left pending")
				return
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			s.log.Error().Err(err).Str("order_id", orderID).Int("attempt", attempt+1).Msg("handoff: failed to create request")
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		if signature != "" {
			req.Header.Set("X-Signature", signature)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.Warn().Err(err).Str("order_id", orderID).Int("attempt", attempt+1).Msg("handoff: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.log.Info().Str("order_id", orderID).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("handoff: delivered successfully")
			s.markStatus(context.WithoutCancel(ctx), order, domain.HandoffStatusDelivered)
			return
		}

		s.log.Warn().Str("order_id", orderID).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("handoff: non-2xx response, retrying")
	}

	if ctx.Err() != nil {
		s.log.Warn().Str("order_id", orderID).Msg("handoff: stopped during delivery, order left pending")
		return
	}
	s.log.Error().Str("order_id", orderID).Msg("handoff: all retry attempts exhausted")
	s.markStatus(ctx, order, domain.HandoffStatusFailed)
}

func (s *OrderHandoffService) markStatus(ctx context.Context, order *domain.Order, status domain.HandoffStatus) {
	if err := s.orderRepo.UpdateHandoffStatus(ctx, order.ID, status); err != nil {
		s.log.Error().Err(err).Str("order_id", order.ID.String()).Str("status", string(status)).Msg("handoff: failed to record status")
	}
}
