// Package service orchestrates the conversion pipeline: normalize,
// resolve identity, claim against replays, evaluate trust, persist the
// receipt, and fan mapped payloads out to delivery.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/pixelbridge/pixelbridge/common/config"
	"github.com/pixelbridge/pixelbridge/common/logging"
	"github.com/pixelbridge/pixelbridge/common/messaging"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/canonical"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/dedup"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/eventid"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/matchkey"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/metrics"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/platform"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/receipt"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/trust"
)

// Processing outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
)

// ReceiptStore is the receipt persistence the service needs.
// *receipt.PostgresRepository satisfies it.
type ReceiptStore interface {
	UpsertReceipt(ctx context.Context, rec *receipt.Receipt) error
	FindReceipt(ctx context.Context, shopID, eventID, eventType string) (*receipt.Receipt, error)
	FindOrderSnapshot(ctx context.Context, shopID, matchKey string) (*receipt.Receipt, error)
	MarkSent(ctx context.Context, shopID, eventID, eventType, platform string) error
}

// Notifier publishes fire-and-forget lifecycle notifications on a
// shared channel. *dedup.RedisStore satisfies it.
type Notifier interface {
	Publish(ctx context.Context, channel string, message []byte) error
}

// Boundary carries per-request facts established by the ingestion
// layer before the pipeline runs. The pipeline never sees credentials,
// only the verification outcome.
type Boundary struct {
	AuthOK     bool
	OriginHost string

	// Nonce is the client-generated submission nonce, used as an
	// identifier fallback when the event carries neither an order ID
	// nor a checkout token.
	Nonce string
}

// Dispatch is one platform payload the service handed to delivery.
type Dispatch struct {
	Platform string          `json:"platform"`
	Subject  string          `json:"subject"`
	Mapped   platform.Mapped `json:"mapped"`
}

// Result is the outcome of processing one raw event.
type Result struct {
	Outcome string
	Event   *canonical.Event
	Source  eventid.Source
	Match   matchkey.MatchKey
	Trust   trust.Result

	// Dispatches lists what was actually handed to delivery after
	// consent gating and completeness checks.
	Dispatches []Dispatch
}

// Service wires the pipeline stages together. It is safe for
// concurrent use; all mutable state lives in the external stores.
type Service struct {
	cfg        config.PipelineConfig
	trustCfg   config.TrustConfig
	normalizer *canonical.Normalizer
	guard      *dedup.Guard
	store      ReceiptStore
	evaluator  *trust.Evaluator
	sendPolicy *trust.SendPolicy
	mapper     *platform.Mapper
	bus        messaging.Publisher
	notifier   Notifier
	log        *logging.Logger
}

// Options collects the service dependencies. Bus, Notifier and Store
// may be nil; the corresponding side effects are skipped.
type Options struct {
	Config   config.PipelineConfig
	Guard    *dedup.Guard
	Store    ReceiptStore
	Mapper   *platform.Mapper
	Bus      messaging.Publisher
	Notifier Notifier
	Logger   *logging.Logger
}

func New(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}
	mapper := opts.Mapper
	if mapper == nil {
		mapper = platform.NewMapper(log)
	}
	guard := opts.Guard
	if guard == nil {
		guard = dedup.NewGuard(nil, nil, dedup.Options{
			TTL:          opts.Config.Dedup.TTL,
			ClaimTimeout: opts.Config.Dedup.ClaimTimeout,
			Policy:       dedup.Policy{OnStoreError: opts.Config.Dedup.OnStoreError},
		}, log)
	}
	return &Service{
		cfg:        opts.Config,
		trustCfg:   opts.Config.Trust,
		normalizer: canonical.NewNormalizer(log),
		guard:      guard,
		store:      opts.Store,
		evaluator:  trust.NewEvaluator(log),
		sendPolicy: trust.NewSendPolicy(log),
		mapper:     mapper,
		bus:        opts.Bus,
		notifier:   opts.Notifier,
		log:        log,
	}
}

// Process runs one raw event through the full pipeline. It returns an
// error only for invariant violations; degraded stores and rejected
// events are outcomes, not errors.
func (s *Service) Process(ctx context.Context, raw map[string]any, shopDomain string, b Boundary) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.ProcessDuration.Observe(time.Since(start).Seconds())
	}()

	ev := s.normalizer.Normalize(ctx, raw, shopDomain)
	res := &Result{Event: ev}

	mk, err := matchkey.Resolve(ev.OrderID, ev.CheckoutToken)
	if err != nil && canonical.IsOrderBearing(ev.EventName) {
		// Order-bearing events without any order identity cannot be
		// deduplicated or attributed; they are rejected, not guessed.
		return s.reject(ctx, res, "missing_identifier")
	}
	res.Match = mk

	id, source := eventid.Generate(eventid.Params{
		OrderID:       ev.OrderID,
		CheckoutToken: ev.CheckoutToken,
		EventName:     ev.EventName,
		ShopDomain:    ev.ShopDomain,
		Items:         ev.Items,
		Version:       s.cfg.IDVersion,
		Nonce:         b.Nonce,
	})
	ev.EventID = id
	res.Source = source
	if !source.Reproducible() {
		metrics.IDFallbacks.WithLabelValues(source.String()).Inc()
		s.log.WarnContext(ctx, "event id from non-reproducible source",
			logging.Shop(shopDomain),
			logging.EventName(ev.EventName),
			logging.EventID(id),
			logging.Reason(source.String()),
		)
	}

	claim, err := s.guard.Claim(ctx, ev.ShopDomain, ev.EventName, id)
	if err != nil {
		return nil, err
	}
	if claim.IsReplay {
		res.Outcome = OutcomeReplayed
		metrics.EventsTotal.WithLabelValues(ev.EventName, OutcomeReplayed).Inc()
		s.log.InfoContext(ctx, "duplicate submission suppressed",
			logging.Shop(shopDomain),
			logging.EventName(ev.EventName),
			logging.EventID(id),
		)
		s.publishLifecycle(ctx, messaging.SubjectEventsReplayed, ev)
		return res, nil
	}

	res.Trust = s.evaluateTrust(ctx, ev, mk, b)

	if !ev.Timestamp.IsZero() {
		s.evaluator.LogSkew(ctx, ev.Timestamp, time.Now(), s.trustCfg.MaxTimestampSkew)
	}

	s.persistReceipt(ctx, ev, mk, res.Trust)

	res.Dispatches = s.dispatch(ctx, ev, res.Trust)

	res.Outcome = OutcomeAccepted
	metrics.EventsTotal.WithLabelValues(ev.EventName, OutcomeAccepted).Inc()
	s.publishLifecycle(ctx, messaging.SubjectEventsAccepted, ev)
	s.notifyAccepted(ctx, ev)

	return res, nil
}

func (s *Service) reject(ctx context.Context, res *Result, reason string) (*Result, error) {
	ev := res.Event
	res.Outcome = OutcomeRejected
	metrics.EventsTotal.WithLabelValues(ev.EventName, OutcomeRejected).Inc()
	s.log.WarnContext(ctx, "event rejected",
		logging.Shop(ev.ShopDomain),
		logging.EventName(ev.EventName),
		logging.Reason(reason),
	)
	s.publishLifecycle(ctx, messaging.SubjectEventsRejected, ev)
	return res, nil
}

// evaluateTrust cross-checks the event against the stored order
// snapshot for the same match key, when one exists.
func (s *Service) evaluateTrust(ctx context.Context, ev *canonical.Event, mk matchkey.MatchKey, b Boundary) trust.Result {
	in := trust.Input{
		WebhookCheckoutToken: ev.CheckoutToken,
		IngestionAuthOK:      b.AuthOK,
		OriginHost:           b.OriginHost,
		AllowedDomains:       s.trustCfg.AllowedDomains,
		StrictOrigin:         s.trustCfg.StrictOrigin,
	}

	if s.store != nil && mk.Key != "" {
		snap, err := s.store.FindOrderSnapshot(ctx, ev.ShopDomain, mk.Key)
		switch {
		case err == nil:
			in.ReceiptExists = true
			in.ReceiptCheckoutToken = snap.CheckoutToken
		case !errors.Is(err, receipt.ErrReceiptNotFound):
			s.log.WarnContext(ctx, "order snapshot lookup failed",
				logging.Shop(ev.ShopDomain),
				logging.MatchKey(mk.Key),
				logging.Error(err),
			)
		}
	}

	return s.evaluator.Evaluate(ctx, in)
}

func (s *Service) persistReceipt(ctx context.Context, ev *canonical.Event, mk matchkey.MatchKey, tr trust.Result) {
	if s.store == nil {
		return
	}

	rec := &receipt.Receipt{
		ShopID:        ev.ShopDomain,
		EventID:       ev.EventID,
		EventType:     ev.EventName,
		CheckoutToken: ev.CheckoutToken,
		TrustLevel:    tr.Level,
		TrustReason:   tr.Reason,
		Value:         ev.Value,
		Currency:      ev.Currency,
		Payload:       eventPayload(ev),
	}
	if mk.IsOrderBased {
		rec.OrderKey = mk.Key
		rec.AltKey = mk.AltKey
	} else {
		rec.AltKey = mk.Key
	}

	// A failed upsert degrades replay detection across restarts but
	// must not drop the conversion itself.
	if err := s.store.UpsertReceipt(ctx, rec); err != nil {
		s.log.ErrorContext(ctx, "receipt upsert failed",
			logging.Shop(ev.ShopDomain),
			logging.EventID(ev.EventID),
			logging.Error(err),
		)
	}
}

// dispatch maps the event for every enabled platform the consent
// policy allows and hands complete payloads to delivery. A platform
// already on the receipt's sent list is skipped; this catches
// duplicates that outlived the dedup claim window.
func (s *Service) dispatch(ctx context.Context, ev *canonical.Event, tr trust.Result) []Dispatch {
	sent := s.sentPlatforms(ctx, ev)

	var out []Dispatch
	for _, name := range s.cfg.Platforms.Enabled {
		if sent[name] {
			s.log.InfoContext(ctx, "platform already sent, skipping",
				logging.Platform(name),
				logging.EventID(ev.EventID),
			)
			continue
		}
		category := s.mapper.Category(name)
		if !s.sendPolicy.IsSendAllowed(ctx, tr, s.trustCfg.Strategy, category) {
			continue
		}

		mapped := s.mapper.Map(ev, name)
		if !mapped.Known {
			continue
		}
		if !mapped.IsValid {
			// Incomplete payloads are counted by the mapper; delivery
			// only ever sees complete ones.
			continue
		}

		d := Dispatch{
			Platform: name,
			Subject:  messaging.DeliveryDispatchSubject(name),
			Mapped:   mapped,
		}

		if s.bus != nil {
			if err := s.bus.PublishJSON(ctx, d.Subject, d); err != nil {
				s.log.ErrorContext(ctx, "delivery dispatch publish failed",
					logging.Platform(name),
					logging.EventID(ev.EventID),
					logging.Error(err),
				)
				continue
			}
		}
		if s.store != nil {
			if err := s.store.MarkSent(ctx, ev.ShopDomain, ev.EventID, ev.EventName, name); err != nil {
				s.log.WarnContext(ctx, "failed to mark receipt sent",
					logging.Platform(name),
					logging.EventID(ev.EventID),
					logging.Error(err),
				)
			}
		}

		out = append(out, d)
	}
	return out
}

// sentPlatforms reads the receipt's sent list for this event, when one
// exists. A lookup failure degrades to "nothing sent yet", the same
// fail-open posture as the dedup guard.
func (s *Service) sentPlatforms(ctx context.Context, ev *canonical.Event) map[string]bool {
	if s.store == nil {
		return nil
	}
	rec, err := s.store.FindReceipt(ctx, ev.ShopDomain, ev.EventID, ev.EventName)
	if err != nil {
		if !errors.Is(err, receipt.ErrReceiptNotFound) {
			s.log.WarnContext(ctx, "receipt lookup failed",
				logging.Shop(ev.ShopDomain),
				logging.EventID(ev.EventID),
				logging.Error(err),
			)
		}
		return nil
	}
	if len(rec.SentPlatforms) == 0 {
		return nil
	}
	sent := make(map[string]bool, len(rec.SentPlatforms))
	for _, p := range rec.SentPlatforms {
		sent[p] = true
	}
	return sent
}

func (s *Service) publishLifecycle(ctx context.Context, subject string, ev *canonical.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishJSON(ctx, subject, ev); err != nil {
		s.log.WarnContext(ctx, "lifecycle publish failed",
			logging.EventName(ev.EventName),
			logging.Error(err),
		)
	}
}

// notifyAccepted pushes a per-shop notification for live dashboards.
// Best effort; failures are logged at debug and never block.
func (s *Service) notifyAccepted(ctx context.Context, ev *canonical.Event) {
	if s.notifier == nil {
		return
	}
	msg, err := json.Marshal(map[string]string{
		"event_id":   ev.EventID,
		"event_name": ev.EventName,
	})
	if err != nil {
		return
	}
	if err := s.notifier.Publish(ctx, "events:accepted:"+ev.ShopDomain, msg); err != nil {
		s.log.DebugContext(ctx, "accepted notification failed",
			logging.Shop(ev.ShopDomain),
			logging.Error(err),
		)
	}
}

// eventPayload snapshots the canonical event for the receipt record.
func eventPayload(ev *canonical.Event) map[string]any {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	delete(m, "raw_data")
	return m
}
