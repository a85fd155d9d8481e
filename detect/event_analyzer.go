// Package detect implements the reference analysis engine: a sliding-window
// threshold analyzer over the event store that raises attacks and fans each
// attack out to its configured responses.
package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"orthrus/config"
	"orthrus/core"
	"orthrus/metrics"
	"orthrus/storage"
)

// ImplThresholdEventAnalyzer identifies the reference event analyzer in the
// configuration document.
const ImplThresholdEventAnalyzer = "orthrus/detect.ThresholdEventAnalyzer"

// ErrThrottled is returned when event intake exceeds the configured rate
// limit.
var ErrThrottled = errors.New("event intake throttled")

// windowKey identifies one sliding threshold window. Events from correlated
// client applications share a key, so they are counted together.
type windowKey struct {
	detectionPoint string
	username       string
	clients        string
}

// window holds the event timestamps currently inside one threshold window.
// lastAttack is the time of the newest attack raised from the window;
// events at or before it never count again.
type window struct {
	timestamps []time.Time
	lastAttack time.Time
}

func (w *window) prune(start time.Time) {
	kept := w.timestamps[:0]
	for _, ts := range w.timestamps {
		if ts.Before(start) {
			continue
		}
		if !w.lastAttack.IsZero() && !ts.After(w.lastAttack) {
			continue
		}
		kept = append(kept, ts)
	}
	w.timestamps = kept
}

// ThresholdEventAnalyzer stores incoming events and raises an attack when a
// detection point's threshold is met inside its interval. Counting state
// lives in a bounded LRU cache; evicted windows are rebuilt from the event
// and attack stores.
type ThresholdEventAnalyzer struct {
	events  storage.EventStore
	attacks *ReferenceAttackAnalyzer
	logger  *zap.SugaredLogger
	limiter *rate.Limiter

	mu      sync.Mutex
	cfg     *config.ServerConfig
	windows *lru.Cache[windowKey, *window]
}

// NewThresholdEventAnalyzer creates the analyzer. rateLimit caps intake in
// events per second; 0 disables throttling.
func NewThresholdEventAnalyzer(cfg *config.ServerConfig, events storage.EventStore, attacks *ReferenceAttackAnalyzer, windowCacheSize, rateLimit, rateBurst int, logger *zap.SugaredLogger) (*ThresholdEventAnalyzer, error) {
	windows, err := lru.New[windowKey, *window](windowCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create window cache: %w", err)
	}

	var limiter *rate.Limiter
	if rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(rateLimit), rateBurst)
	}

	return &ThresholdEventAnalyzer{
		events:  events,
		attacks: attacks,
		logger:  logger,
		limiter: limiter,
		cfg:     cfg,
		windows: windows,
	}, nil
}

// Reload swaps the active configuration and drops all counting state, so
// the new configuration's thresholds apply from the next event on.
func (a *ThresholdEventAnalyzer) Reload(cfg *config.ServerConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
	a.windows.Purge()
}

// OnEvent stores the event and runs threshold analysis for its detection
// point. Events against detection points the configuration does not name
// are stored but not analyzed.
func (a *ThresholdEventAnalyzer) OnEvent(ctx context.Context, event *core.Event) error {
	if a.limiter != nil && !a.limiter.Allow() {
		metrics.EventsThrottled.Inc()
		return ErrThrottled
	}

	start := time.Now()
	defer func() {
		metrics.EventProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	if err := a.events.AddEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	point, ok := a.cfg.DetectionPoint(event.DetectionPointID)
	if !ok {
		a.logger.Debugw("event against unconfigured detection point",
			"detection_point", event.DetectionPointID,
			"client_application", event.ClientApplication)
		return nil
	}

	interval, err := point.Threshold.Interval.AsDuration()
	if err != nil {
		return fmt.Errorf("detection point %s threshold: %w", point.ID, err)
	}

	clients := a.cfg.CorrelatedClients(event.ClientApplication)
	if clients == nil {
		clients = []string{event.ClientApplication}
	}

	key := windowKey{
		detectionPoint: event.DetectionPointID,
		username:       event.Username,
		clients:        strings.Join(clients, ","),
	}
	windowStart := event.Timestamp.Add(-interval)

	win, ok := a.windows.Get(key)
	if !ok {
		win, err = a.rebuildWindow(ctx, event, clients, windowStart)
		if err != nil {
			return err
		}
	} else {
		win.timestamps = append(win.timestamps, event.Timestamp)
	}
	win.prune(windowStart)
	a.windows.Add(key, win)

	if len(win.timestamps) < point.Threshold.Count {
		return nil
	}

	attack, err := a.attacks.RaiseAttack(ctx, event, point)
	if err != nil {
		return err
	}
	win.timestamps = nil
	win.lastAttack = attack.Timestamp
	return nil
}

// rebuildWindow reconstructs counting state from the stores after a cache
// miss. The current event is already stored, so the query result includes
// it; prune applies the last-attack bound afterwards.
func (a *ThresholdEventAnalyzer) rebuildWindow(ctx context.Context, event *core.Event, clients []string, start time.Time) (*window, error) {
	criteria := storage.SearchCriteria{
		DetectionPointID:   event.DetectionPointID,
		Username:           event.Username,
		ClientApplications: clients,
		Earliest:           start,
	}

	lastAttack, err := a.attacks.LatestAttackTime(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to look up last attack: %w", err)
	}

	found, err := a.events.FindEvents(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild threshold window: %w", err)
	}

	win := &window{lastAttack: lastAttack}
	for _, e := range found {
		win.timestamps = append(win.timestamps, e.Timestamp)
	}
	return win, nil
}
