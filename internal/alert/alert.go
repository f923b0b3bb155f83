package alert

import (
	"sync"
	"time"

	"github.com/richxcame/driver-agent/pkg/logger"
	"github.com/richxcame/driver-agent/pkg/models"
	"go.uber.org/zap"
)

// Sounder plays and stops the looping offer alert tone. The default
// implementation only logs; a device build plugs the real audio output in.
type Sounder interface {
	Play()
	Stop()
}

// Notifier posts a local notification to the driver
type Notifier interface {
	Notify(title, body string)
}

// Alerter loops the offer alert tone while an offer is pending and relays
// local notifications. StartOfferAlert/StopOfferAlert pair exactly once
// per offer; stopping an idle alerter is a no-op.
type Alerter struct {
	sounder  Sounder
	notifier Notifier
	loop     time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
}

// New creates an alerter. sounder and notifier may be nil, in which case
// alerts are logged only.
func New(sounder Sounder, notifier Notifier) *Alerter {
	return &Alerter{
		sounder:  sounder,
		notifier: notifier,
		loop:     3 * time.Second,
	}
}

// StartOfferAlert begins the looping alert for a pending offer
func (a *Alerter) StartOfferAlert(offer *models.Offer) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return
	}
	a.stopCh = make(chan struct{})

	logger.WithRide(offer.RequestID).Info("offer alert started")
	go a.run(a.stopCh)
}

// StopOfferAlert silences the looping alert
func (a *Alerter) StopOfferAlert() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh == nil {
		return
	}
	close(a.stopCh)
	a.stopCh = nil

	if a.sounder != nil {
		a.sounder.Stop()
	}
	logger.Debug("offer alert stopped")
}

// Notify posts a local notification
func (a *Alerter) Notify(title, body string) {
	if a.notifier != nil {
		a.notifier.Notify(title, body)
		return
	}
	logger.Info("notification", zap.String("title", title), zap.String("body", body))
}

// Active reports whether the alert loop is running
func (a *Alerter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopCh != nil
}

func (a *Alerter) run(stop chan struct{}) {
	ticker := time.NewTicker(a.loop)
	defer ticker.Stop()

	for {
		if a.sounder != nil {
			a.sounder.Play()
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}
