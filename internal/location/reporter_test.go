package location

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/driver-agent/pkg/config"
	"github.com/richxcame/driver-agent/pkg/models"
)

type recordingConn struct {
	mu       sync.Mutex
	payloads []models.LocationPayload
}

func (c *recordingConn) Send(eventType string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if eventType == models.EventLocationUpdate {
		c.payloads = append(c.payloads, payload.(models.LocationPayload))
	}
	return nil
}

func (c *recordingConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func (c *recordingConn) last() models.LocationPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payloads[len(c.payloads)-1]
}

func fixedSampler(lat, lon float64) Sampler {
	return SamplerFunc(func(context.Context) (Sample, error) {
		return Sample{Latitude: lat, Longitude: lon}, nil
	})
}

func testLocationConfig() config.LocationConfig {
	return config.LocationConfig{
		Interval:     10 * time.Millisecond,
		H3Resolution: 9,
	}
}

func TestReporterSendsSamplesOnInterval(t *testing.T) {
	conn := &recordingConn{}
	r := NewReporter(testLocationConfig(), conn, fixedSampler(37.95, 58.38), nil)
	t.Cleanup(r.Stop)

	r.Start()
	require.True(t, r.Running())

	require.Eventually(t, func() bool {
		return conn.count() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	payload := conn.last()
	assert.Equal(t, 37.95, payload.Latitude)
	assert.Equal(t, 58.38, payload.Longitude)
	assert.NotEmpty(t, payload.H3Cell)
}

func TestReporterStopHaltsSends(t *testing.T) {
	conn := &recordingConn{}
	r := NewReporter(testLocationConfig(), conn, fixedSampler(37.95, 58.38), nil)

	r.Start()
	require.Eventually(t, func() bool {
		return conn.count() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	r.Stop()
	assert.False(t, r.Running())

	// Stop joins the loop, so the count is final the moment it returns
	after := conn.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, conn.count())
}

func TestReporterStopWaitsForInFlightReport(t *testing.T) {
	conn := &recordingConn{}
	slow := SamplerFunc(func(context.Context) (Sample, error) {
		time.Sleep(30 * time.Millisecond)
		return Sample{Latitude: 37.95, Longitude: 58.38}, nil
	})
	r := NewReporter(testLocationConfig(), conn, slow, nil)

	r.Start()
	// Let a tick enter the slow sample, then stop mid-report
	time.Sleep(15 * time.Millisecond)
	r.Stop()

	final := conn.count()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, final, conn.count())
}

func TestReporterStartIsIdempotent(t *testing.T) {
	conn := &recordingConn{}
	cfg := testLocationConfig()
	cfg.Interval = 25 * time.Millisecond
	r := NewReporter(cfg, conn, fixedSampler(37.95, 58.38), nil)
	t.Cleanup(r.Stop)

	r.Start()
	r.Start()
	r.Start()

	require.Eventually(t, func() bool {
		return conn.count() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	// With one loop running, sends pace at roughly the interval; three
	// stacked loops would triple the rate
	count := conn.count()
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, conn.count()-count, 6)
}

func TestReporterStopTwiceIsNoOp(t *testing.T) {
	r := NewReporter(testLocationConfig(), &recordingConn{}, fixedSampler(0, 0), nil)
	r.Start()
	r.Stop()
	r.Stop()
	assert.False(t, r.Running())
}

func TestReporterSkipsFailedSamples(t *testing.T) {
	conn := &recordingConn{}
	sampler := SamplerFunc(func(context.Context) (Sample, error) {
		return Sample{}, errors.New("gps cold start")
	})
	r := NewReporter(testLocationConfig(), conn, sampler, nil)
	t.Cleanup(r.Stop)

	r.Start()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, conn.count())
}

func TestFeed(t *testing.T) {
	feed := NewFeed()

	_, err := feed.Sample(context.Background())
	assert.ErrorIs(t, err, ErrNoFix)

	feed.Update(Sample{Latitude: 37.95, Longitude: 58.38})
	sample, err := feed.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 37.95, sample.Latitude)

	// The newest fix wins
	feed.Update(Sample{Latitude: 38.00, Longitude: 58.40})
	sample, err = feed.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 38.00, sample.Latitude)
	assert.Equal(t, 58.40, sample.Longitude)
}

func TestCellFor(t *testing.T) {
	cell := cellFor(Sample{Latitude: 37.95, Longitude: 58.38}, 9)
	assert.NotEmpty(t, cell)

	// Same fix, same cell
	assert.Equal(t, cell, cellFor(Sample{Latitude: 37.95, Longitude: 58.38}, 9))

	// Coarser resolution gives a different index
	assert.NotEqual(t, cell, cellFor(Sample{Latitude: 37.95, Longitude: 58.38}, 5))
}
