package storage

import (
	"sync"

	"go.uber.org/zap"

	"orthrus/core"
	"orthrus/metrics"
)

// observerList is the fan-out helper embedded in every store backend.
// Notification happens after the backend persisted the entity, on the
// caller's goroutine, in attach order.
type observerList struct {
	mu        sync.RWMutex
	observers []Observer
}

// Attach registers an observer for future additions.
func (l *observerList) Attach(observer Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, observer)
}

func (l *observerList) notifyEvent(event core.Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, o := range l.observers {
		o.EventAdded(event)
	}
}

func (l *observerList) notifyAttack(attack core.Attack) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, o := range l.observers {
		o.AttackAdded(attack)
	}
}

func (l *observerList) notifyResponse(response core.ResponseRecord) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, o := range l.observers {
		o.ResponseAdded(response)
	}
}

// LoggingObserver logs every store mutation through the daemon logger.
type LoggingObserver struct {
	logger *zap.SugaredLogger
}

// NewLoggingObserver creates a logging observer.
func NewLoggingObserver(logger *zap.SugaredLogger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

// Name returns the observer's implementation identifier.
func (o *LoggingObserver) Name() string {
	return ImplLoggingObserver
}

// EventAdded logs a stored security event.
func (o *LoggingObserver) EventAdded(event core.Event) {
	o.logger.Infow("security event recorded",
		"event_id", event.ID,
		"detection_point", event.DetectionPointID,
		"client_application", event.ClientApplication,
		"username", event.Username)
}

// AttackAdded logs a stored attack.
func (o *LoggingObserver) AttackAdded(attack core.Attack) {
	o.logger.Warnw("attack detected",
		"attack_id", attack.ID,
		"detection_point", attack.DetectionPointID,
		"client_application", attack.ClientApplication,
		"username", attack.Username,
		"threshold", attack.Threshold.Count)
}

// ResponseAdded logs a stored response record.
func (o *LoggingObserver) ResponseAdded(response core.ResponseRecord) {
	o.logger.Infow("response recorded",
		"response_id", response.ID,
		"attack_id", response.AttackID,
		"detection_point", response.DetectionPointID,
		"action", response.Action)
}

// MetricsObserver counts store mutations in Prometheus collectors.
type MetricsObserver struct{}

// NewMetricsObserver creates a metrics observer.
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// Name returns the observer's implementation identifier.
func (o *MetricsObserver) Name() string {
	return ImplMetricsObserver
}

// EventAdded counts a stored security event.
func (o *MetricsObserver) EventAdded(core.Event) {
	metrics.EventsAdded.Inc()
}

// AttackAdded counts a detected attack.
func (o *MetricsObserver) AttackAdded(core.Attack) {
	metrics.AttacksDetected.Inc()
}

// ResponseAdded counts a triggered response by action.
func (o *MetricsObserver) ResponseAdded(response core.ResponseRecord) {
	metrics.ResponsesTriggered.WithLabelValues(response.Action).Inc()
}
