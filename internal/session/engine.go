package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/richxcame/driver-agent/internal/store"
	"github.com/richxcame/driver-agent/pkg/common"
	"github.com/richxcame/driver-agent/pkg/config"
	"github.com/richxcame/driver-agent/pkg/logger"
	"github.com/richxcame/driver-agent/pkg/models"
	"go.uber.org/zap"
)

// Conn is the slice of the dispatch connection the engine emits through
type Conn interface {
	Send(eventType string, payload interface{}) error
}

// Subscriber is the slice of the dispatch connection the engine receives
// through. SubscribeReplace keeps remote-event registration idempotent
// across re-attachment.
type Subscriber interface {
	SubscribeReplace(eventType string, handler func(data json.RawMessage)) func()
}

// Alerter drives the audible offer alert and local notifications. The
// engine starts it when an offer arrives and stops it exactly once when
// the session leaves Offered.
type Alerter interface {
	StartOfferAlert(offer *models.Offer)
	StopOfferAlert()
	Notify(title, body string)
}

// Reporter is the location reporting surface the engine starts while a
// ride is active and stops on every terminal transition.
type Reporter interface {
	Start()
	Stop()
}

// Mirror duplicates accept and reject decisions over the platform REST
// API in parallel with the socket events. Mirror failures never block or
// fail the local transition.
type Mirror interface {
	AcceptRide(ctx context.Context, requestID string, payload models.AcceptPayload) error
	RejectRide(ctx context.Context, requestID string, payload models.RejectPayload) error
}

// Identity is the accepting driver
type Identity struct {
	DriverID   string
	DriverName string
	UserID     string
}

// Engine tracks one ride's lifecycle from incoming offer through
// completion or cancellation. All mutation goes through its operations;
// local user actions and remote dispatch events land on the same
// transition table, so the machine is symmetric under both.
type Engine struct {
	cfg      config.SessionConfig
	identity Identity
	conn     Conn
	store    store.Store
	alerter  Alerter
	reporter Reporter
	mirror   Mirror
	validate *validator.Validate

	onIdle     func()
	onComplete func(ride *models.RideSession)

	mu            sync.Mutex
	current       *models.RideSession
	offer         *models.Offer
	deadlineTimer *time.Timer
	disposers     []func()
}

// Option configures the engine
type Option func(*Engine)

// WithIdleCallback runs after a cancellation returns the driver to idle
func WithIdleCallback(fn func()) Option {
	return func(e *Engine) {
		e.onIdle = fn
	}
}

// WithCompletionHandoff receives the finished ride for payment collection
func WithCompletionHandoff(fn func(ride *models.RideSession)) Option {
	return func(e *Engine) {
		e.onComplete = fn
	}
}

// WithRESTMirror duplicates accept and reject decisions over REST
func WithRESTMirror(m Mirror) Option {
	return func(e *Engine) {
		e.mirror = m
	}
}

// NewEngine creates a ride session engine
func NewEngine(cfg config.SessionConfig, identity Identity, conn Conn, st store.Store, alerter Alerter, reporter Reporter, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		identity: identity,
		conn:     conn,
		store:    st,
		alerter:  alerter,
		reporter: reporter,
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Attach registers the engine's remote-event handlers on the dispatch
// connection. Re-attaching replaces the previous handlers instead of
// stacking duplicates.
func (e *Engine) Attach(sub Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.disposeLocked()
	e.disposers = []func(){
		sub.SubscribeReplace(models.EventRideOffer, e.handleRemoteOffer),
		sub.SubscribeReplace(models.EventRideCancelled, e.handleRemoteCancel),
		sub.SubscribeReplace(models.EventRideEnded, e.handleRemoteEnd),
		sub.SubscribeReplace(models.EventRideError, e.handleRemoteError),
	}
}

// Detach disposes the engine's dispatch subscriptions
func (e *Engine) Detach() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disposeLocked()
}

func (e *Engine) disposeLocked() {
	for _, dispose := range e.disposers {
		dispose()
	}
	e.disposers = nil
}

// Resume reconciles persisted state at startup: a persisted live session
// wins when memory is empty, a persisted terminal session is cleared.
func (e *Engine) Resume(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil {
		return nil
	}

	persisted, err := e.store.LoadSession(ctx)
	if err != nil {
		return err
	}
	if persisted == nil {
		return nil
	}

	if persisted.Status.Terminal() {
		logger.WithRide(persisted.RequestID).Info("clearing stale terminal session")
		return e.store.Clear(ctx)
	}

	e.current = persisted
	logger.WithRide(persisted.RequestID).Info("resumed persisted ride session",
		zap.String("status", string(persisted.Status)),
	)

	switch persisted.Status {
	case models.StatusOffered:
		// The candidate list rides along with the persisted session, so an
		// offer restored here can still be accepted
		e.offer = persisted.Offer
		// The offer countdown keeps its original deadline across restarts
		remaining := time.Until(persisted.OfferDeadline)
		if remaining <= 0 {
			go e.expire(persisted.RequestID)
		} else {
			e.armDeadlineLocked(persisted.RequestID, remaining)
		}
	case models.StatusEnRouteToPickup, models.StatusAwaitingOTP, models.StatusInProgress:
		e.reporter.Start()
	}

	return nil
}

// Current returns a copy of the live session, or nil when idle
func (e *Engine) Current() *models.RideSession {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return nil
	}
	copied := *e.current
	return &copied
}

// Remaining derives the offer countdown from the single authoritative
// deadline. UI tick displays subtract now from this; there is no second
// decrementing counter to drift against.
func (e *Engine) Remaining() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.current.Status != models.StatusOffered {
		return 0
	}
	remaining := time.Until(e.current.OfferDeadline)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HandleOffer creates a new Offered session from a dispatch offer. A
// second offer while one session is live is dropped, not queued.
func (e *Engine) HandleOffer(ctx context.Context, offer *models.Offer) error {
	if err := e.validate.Struct(offer); err != nil {
		offersDropped.WithLabelValues("invalid").Inc()
		return common.NewValidationError("malformed ride offer", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current.Live() {
		offersDropped.WithLabelValues("session_live").Inc()
		logger.WithRide(offer.RequestID).Warn("dropping offer, a session is already live",
			zap.String("live_request_id", e.current.RequestID),
		)
		return common.NewValidationError("a ride session is already live", common.ErrSessionLive)
	}

	now := time.Now()
	session := &models.RideSession{
		RequestID:   offer.RequestID,
		Status:      models.StatusOffered,
		OTPExpected: offer.OTP,
		Pickup: models.Place{
			Description: offer.PickupDesc,
			Coordinates: offer.PickupLocation,
		},
		Drop: models.Place{
			Description: offer.DropDesc,
			Coordinates: offer.DropLocation,
		},
		Fare:          offer.Fare,
		Polyline:      offer.Polyline,
		Distance:      offer.Distance,
		Offer:         offer,
		OfferDeadline: now.Add(e.cfg.OfferWindow),
		OfferedAt:     now,
	}

	if err := e.store.SaveSession(ctx, session); err != nil {
		return common.NewInternalError("persist offered session", err)
	}
	if err := e.store.SaveFlags(ctx, models.Flags{OTP: offer.OTP}); err != nil {
		return common.NewInternalError("persist session flags", err)
	}

	e.current = session
	e.offer = offer
	e.armDeadlineLocked(offer.RequestID, e.cfg.OfferWindow)
	e.alerter.StartOfferAlert(offer)
	e.alerter.Notify("New ride request", offer.PickupDesc)

	offersReceived.Inc()
	logger.WithRide(offer.RequestID).Info("ride offer received",
		zap.Float64("distance", offer.Distance),
		zap.Time("deadline", session.OfferDeadline),
	)
	return nil
}

// Accept takes the offer using the quote addressed to this driver's ID
// and moves the session to EnRouteToPickup.
func (e *Engine) Accept(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return common.NewValidationError("no offer to accept", common.ErrNoLiveSession)
	}
	if err := checkTransition(e.current.Status, models.StatusAccepted); err != nil {
		return err
	}

	quote, ok := e.offer.QuoteFor(e.identity.DriverID)
	if !ok {
		// Stay in Offered; the countdown keeps running
		return common.NewValidationError("offer carries no quote for this driver", nil)
	}

	e.stopDeadlineLocked()
	e.alerter.StopOfferAlert()

	now := time.Now()
	e.current.Status = models.StatusEnRouteToPickup
	e.current.DriverID = e.identity.DriverID
	e.current.AcceptedAt = &now
	e.current.Quote = &models.Quote{
		Price:         quote.Price,
		ETA:           quote.ETA,
		VehicleType:   quote.VehicleType,
		VehicleName:   quote.VehicleName,
		VehicleNumber: quote.VehicleNumber,
	}
	// The candidate list is only needed while the offer is open
	e.current.Offer = nil

	if err := e.store.SaveSession(ctx, e.current); err != nil {
		logger.WithRide(e.current.RequestID).Error("persist accepted session", zap.Error(err))
	}

	payload := models.AcceptPayload{
		RiderID:       quote.ID,
		RideRequestID: e.current.RequestID,
		UserID:        e.identity.UserID,
		RiderName:     quote.Name,
		VehicleName:   quote.VehicleName,
		VehicleNumber: quote.VehicleNumber,
		VehicleType:   quote.VehicleType,
		Price:         quote.Price,
		ETA:           quote.ETA,
	}
	if err := e.conn.Send(models.EventAcceptRide, payload); err != nil {
		logger.WithRide(e.current.RequestID).Warn("accept event send failed", zap.Error(err))
	}
	e.mirrorAccept(e.current.RequestID, payload)

	e.reporter.Start()

	transitionsTotal.WithLabelValues(string(models.StatusEnRouteToPickup)).Inc()
	logger.WithRide(e.current.RequestID).Info("offer accepted",
		zap.String("driver_id", e.identity.DriverID),
	)
	return nil
}

// Reject declines the offer. With timeout set the session expires instead
// of being rejected; the wire event is the same shape either way. Local
// cleanup always runs, regardless of send success.
func (e *Engine) Reject(ctx context.Context, timeout bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return common.NewValidationError("no offer to reject", common.ErrNoLiveSession)
	}

	target := models.StatusRejected
	reason := models.RejectReasonManual
	if timeout {
		target = models.StatusExpired
		reason = models.RejectReasonTimeout
	}
	if err := checkTransition(e.current.Status, target); err != nil {
		return err
	}

	payload := models.RejectPayload{
		RideID:   e.current.RequestID,
		DriverID: e.identity.DriverID,
		Reason:   reason,
	}
	if err := e.conn.Send(models.EventRejectRide, payload); err != nil {
		logger.WithRide(e.current.RequestID).Warn("reject event send failed", zap.Error(err))
	}
	e.mirrorReject(e.current.RequestID, payload)

	e.terminalizeLocked(ctx, target)
	return nil
}

// SubmitOTP starts the trip when the entered code matches exactly. No
// trimming or normalization is applied, and attempts are not limited.
// Submitting after the trip has started is a no-op.
func (e *Engine) SubmitOTP(ctx context.Context, entered string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return common.NewValidationError("no ride awaiting otp", common.ErrNoLiveSession)
	}
	if e.current.Status == models.StatusInProgress {
		// Racing double-submit; the trip is already running
		return nil
	}
	if err := checkTransition(e.current.Status, models.StatusInProgress); err != nil {
		return err
	}

	if entered != e.current.OTPExpected {
		otpMismatches.Inc()
		logger.WithRide(e.current.RequestID).Warn("otp mismatch")
		return common.NewValidationError("incorrect otp", common.ErrOTPMismatch)
	}

	now := time.Now()
	e.current.Status = models.StatusInProgress
	e.current.StartedAt = &now

	if err := e.store.SaveSession(ctx, e.current); err != nil {
		logger.WithRide(e.current.RequestID).Error("persist started session", zap.Error(err))
	}
	if err := e.store.SaveFlags(ctx, models.Flags{OTP: e.current.OTPExpected, RideStarted: true}); err != nil {
		logger.WithRide(e.current.RequestID).Error("persist session flags", zap.Error(err))
	}

	ride := *e.current
	if err := e.conn.Send(models.EventRideStarted, models.RideDetailsPayload{RideDetails: &ride}); err != nil {
		logger.WithRide(e.current.RequestID).Warn("ride_started event send failed", zap.Error(err))
	}

	transitionsTotal.WithLabelValues(string(models.StatusInProgress)).Inc()
	logger.WithRide(e.current.RequestID).Info("ride started")
	return nil
}

// Cancel cancels a live session with a reason from the server-supplied
// list. Cancelling an already-terminal session is a no-op.
func (e *Engine) Cancel(ctx context.Context, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return common.NewValidationError("no ride to cancel", common.ErrNoLiveSession)
	}
	if e.current.Status.Terminal() {
		return nil
	}
	if reason == "" {
		return common.NewValidationError("cancellation reason required", common.ErrReasonRequired)
	}

	e.current.CancelReason = reason

	ride := *e.current
	if err := e.conn.Send(models.EventCancelRide, models.CancelPayload{
		CancelBy: "driver",
		RideData: &ride,
		Reason:   reason,
	}); err != nil {
		logger.WithRide(e.current.RequestID).Warn("cancel event send failed", zap.Error(err))
	}

	e.terminalizeLocked(ctx, models.StatusCancelled)

	if e.onIdle != nil {
		go e.onIdle()
	}
	return nil
}

// Complete ends a ride in progress and hands the finished session off for
// payment collection.
func (e *Engine) Complete(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return common.NewValidationError("no ride to complete", common.ErrNoLiveSession)
	}
	if e.current.Status == models.StatusCompleted {
		return nil
	}
	if err := checkTransition(e.current.Status, models.StatusCompleted); err != nil {
		return err
	}

	ride := *e.current
	if err := e.conn.Send(models.EventEndRide, models.RideDetailsPayload{RideDetails: &ride}); err != nil {
		logger.WithRide(e.current.RequestID).Warn("end_ride event send failed", zap.Error(err))
	}

	e.terminalizeLocked(ctx, models.StatusCompleted)

	if e.onComplete != nil {
		finished := ride
		finished.Status = models.StatusCompleted
		go e.onComplete(&finished)
	}
	return nil
}

// handleRemoteOffer decodes an inbound dispatch offer
func (e *Engine) handleRemoteOffer(data json.RawMessage) {
	var offer models.Offer
	if err := json.Unmarshal(data, &offer); err != nil {
		logger.Warn("malformed ride offer payload", zap.Error(err))
		return
	}

	if err := e.HandleOffer(context.Background(), &offer); err != nil {
		logger.WithRide(offer.RequestID).Debug("offer not taken", zap.Error(err))
	}
}

// handleRemoteCancel applies a server-initiated cancellation
func (e *Engine) handleRemoteCancel(data json.RawMessage) {
	e.applyRemoteTerminal(data, models.StatusCancelled, "ride cancelled by dispatch")
}

// handleRemoteEnd applies a server-initiated ride end
func (e *Engine) handleRemoteEnd(data json.RawMessage) {
	e.applyRemoteTerminal(data, models.StatusCompleted, "ride ended by dispatch")
}

// handleRemoteError cleans the session up defensively; an ambiguous live
// session would block every future offer.
func (e *Engine) handleRemoteError(data json.RawMessage) {
	e.applyRemoteTerminal(data, models.StatusCancelled, "ride errored by dispatch")
}

func (e *Engine) applyRemoteTerminal(data json.RawMessage, target models.Status, why string) {
	var ref models.RideEventRef
	if err := json.Unmarshal(data, &ref); err != nil {
		logger.Warn("malformed ride event payload", zap.Error(err))
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.current.RequestID != ref.RideRequestID {
		logger.Debug("ignoring ride event for unknown request",
			zap.String("ride_request_id", ref.RideRequestID),
		)
		return
	}
	if e.current.Status.Terminal() {
		return
	}

	if target == models.StatusCompleted && !canTransition(e.current.Status, models.StatusCompleted) {
		// A forced end before the trip started collapses to a cancellation
		target = models.StatusCancelled
	}

	logger.WithRide(ref.RideRequestID).Info(why,
		zap.String("message", ref.Message),
	)
	e.terminalizeLocked(context.Background(), target)

	finished := *e.current
	if target == models.StatusCompleted && e.onComplete != nil {
		go e.onComplete(&finished)
	}
	if target == models.StatusCancelled && e.onIdle != nil {
		go e.onIdle()
	}
}

// expire fires when the offer deadline passes without action. It is
// behaviorally a timed reject: same wire shape, timeout reason.
func (e *Engine) expire(requestID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.current.RequestID != requestID || e.current.Status != models.StatusOffered {
		return
	}

	payload := models.RejectPayload{
		RideID:   requestID,
		DriverID: e.identity.DriverID,
		Reason:   models.RejectReasonTimeout,
	}
	if err := e.conn.Send(models.EventRejectRide, payload); err != nil {
		logger.WithRide(requestID).Warn("timeout reject send failed", zap.Error(err))
	}
	e.mirrorReject(requestID, payload)

	logger.WithRide(requestID).Info("offer expired")
	offersExpired.Inc()
	e.terminalizeLocked(context.Background(), models.StatusExpired)
}

// terminalizeLocked applies a terminal transition and tears down every
// side effect before returning: deadline timer, offer alert, location
// reporter and the persisted copy. A second call for the same session is
// a no-op, so racing local and remote terminations tear down once.
func (e *Engine) terminalizeLocked(ctx context.Context, target models.Status) {
	if e.current == nil || e.current.Status.Terminal() {
		return
	}

	now := time.Now()
	e.current.Status = target
	e.current.EndedAt = &now
	e.offer = nil

	e.stopDeadlineLocked()
	e.alerter.StopOfferAlert()
	e.reporter.Stop()

	if err := e.store.Clear(ctx); err != nil {
		logger.WithRide(e.current.RequestID).Error("clear persisted session", zap.Error(err))
	}

	transitionsTotal.WithLabelValues(string(target)).Inc()
	logger.WithRide(e.current.RequestID).Info("session terminal",
		zap.String("status", string(target)),
	)
}

const mirrorTimeout = 10 * time.Second

// mirrorAccept replays an accept over REST off the lock; the socket event
// already went out and the local transition does not wait on REST.
func (e *Engine) mirrorAccept(requestID string, payload models.AcceptPayload) {
	if e.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := e.mirror.AcceptRide(ctx, requestID, payload); err != nil {
			logger.WithRide(requestID).Debug("accept rest mirror failed", zap.Error(err))
		}
	}()
}

func (e *Engine) mirrorReject(requestID string, payload models.RejectPayload) {
	if e.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := e.mirror.RejectRide(ctx, requestID, payload); err != nil {
			logger.WithRide(requestID).Debug("reject rest mirror failed", zap.Error(err))
		}
	}()
}

func (e *Engine) armDeadlineLocked(requestID string, in time.Duration) {
	e.stopDeadlineLocked()
	e.deadlineTimer = time.AfterFunc(in, func() {
		e.expire(requestID)
	})
}

func (e *Engine) stopDeadlineLocked() {
	if e.deadlineTimer != nil {
		e.deadlineTimer.Stop()
		e.deadlineTimer = nil
	}
}
