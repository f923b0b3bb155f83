package location

import (
	"context"
	"sync"
	"time"

	"github.com/richxcame/driver-agent/pkg/config"
	"github.com/richxcame/driver-agent/pkg/httpclient"
	"github.com/richxcame/driver-agent/pkg/logger"
	"github.com/richxcame/driver-agent/pkg/models"
	"github.com/uber/h3-go/v4"
	"go.uber.org/zap"
)

// Sample is one device position fix
type Sample struct {
	Latitude  float64
	Longitude float64
}

// Sampler provides device position fixes. On a vehicle terminal this is
// the GPS receiver; tests substitute a fixed source.
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// SamplerFunc adapts a function to the Sampler interface
type SamplerFunc func(ctx context.Context) (Sample, error)

// Sample calls f
func (f SamplerFunc) Sample(ctx context.Context) (Sample, error) {
	return f(ctx)
}

// Conn is the slice of the dispatch connection the reporter emits through
type Conn interface {
	Send(eventType string, payload interface{}) error
}

// Reporter samples device position on a fixed interval while a ride is
// active and pushes each fix through the dispatch connection, tagged with
// its H3 cell. An optional HTTP webhook mirrors every update in parallel.
type Reporter struct {
	cfg     config.LocationConfig
	conn    Conn
	sampler Sampler
	webhook *httpclient.Client

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReporter creates a location reporter. webhook may be nil.
func NewReporter(cfg config.LocationConfig, conn Conn, sampler Sampler, webhook *httpclient.Client) *Reporter {
	return &Reporter{
		cfg:     cfg,
		conn:    conn,
		sampler: sampler,
		webhook: webhook,
	}
}

// Start begins the sampling loop. Starting an already-running reporter is
// a no-op.
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)

	logger.Info("location reporting started",
		zap.Duration("interval", r.cfg.Interval),
	)
}

// Stop halts the sampling loop. No further sends happen after Stop
// returns; stopping twice is a no-op.
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel == nil {
		return
	}
	r.cancel()
	// Join the loop so an in-flight report finishes before Stop returns
	<-r.done
	r.cancel = nil
	r.done = nil

	logger.Info("location reporting stopped")
}

// Running reports whether the sampling loop is active
func (r *Reporter) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *Reporter) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.report(ctx)
		}
	}
}

func (r *Reporter) report(ctx context.Context) {
	sample, err := r.sampler.Sample(ctx)
	if err != nil {
		logger.Warn("position sample failed", zap.Error(err))
		return
	}

	payload := models.LocationPayload{
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		H3Cell:    cellFor(sample, r.cfg.H3Resolution),
	}

	// A stop may have landed while the sample was taken
	if ctx.Err() != nil {
		return
	}

	if err := r.conn.Send(models.EventLocationUpdate, payload); err != nil {
		logger.Warn("location update send failed", zap.Error(err))
	} else {
		updatesSent.Inc()
	}

	if r.webhook != nil {
		// Mirror in parallel; webhook failures never block the socket path
		go func() {
			mirrorCtx, cancel := context.WithTimeout(context.Background(), r.cfg.Interval)
			defer cancel()
			if _, err := r.webhook.Post(mirrorCtx, "", payload); err != nil {
				logger.Debug("location webhook mirror failed", zap.Error(err))
			}
		}()
	}
}

// cellFor returns the H3 cell index for a sample as a hex string, empty
// when the fix is out of range.
func cellFor(sample Sample, resolution int) string {
	latLng := h3.NewLatLng(sample.Latitude, sample.Longitude)
	cell, err := h3.LatLngToCell(latLng, resolution)
	if err != nil {
		return ""
	}
	return cell.String()
}
