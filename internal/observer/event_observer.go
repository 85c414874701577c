package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Suryanandx/2d-code-verifier/pkg/models"
)

// VerificationEvent represents one step of a verification request
type VerificationEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	RequestID      string                 `json:"request_id"`
	Source         string                 `json:"source"`
	ImageRef       string                 `json:"image_ref"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	OverallGrade   models.Grade           `json:"overall_grade"`
	DecodeStatus   models.DecodeStatus    `json:"decode_status,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of verification event
type EventType string

const (
	// VerificationStarted when a request is accepted
	VerificationStarted EventType = "verification_started"
	// VerificationCompleted when a result was produced, whatever its grade
	VerificationCompleted EventType = "verification_completed"
	// VerificationFailed when the request failed without a result
	VerificationFailed EventType = "verification_failed"
	// ImageFetched when a remote image was downloaded
	ImageFetched EventType = "image_fetched"
	// ImageFetchFailed when a remote image could not be downloaded
	ImageFetchFailed EventType = "image_fetch_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event VerificationEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event VerificationEvent)
	// Wait blocks until every notification sent so far has been handled
	Wait()
}

// LoggingObserver logs verification events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles verification events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event VerificationEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"request_id":      event.RequestID,
		"source":          event.Source,
		"image_ref":       event.ImageRef,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}
	if event.EventType == VerificationCompleted {
		fields["overall_grade"] = event.OverallGrade.String()
		fields["decode_status"] = event.DecodeStatus
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case VerificationStarted:
		entry.Info("Verification started")
	case VerificationCompleted:
		entry.Info("Verification completed")
	case VerificationFailed:
		entry.Error("Verification failed")
	case ImageFetched:
		entry.Debug("Image fetched successfully")
	case ImageFetchFailed:
		entry.Warn("Image fetch failed")
	default:
		entry.Info("Verification event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// VerificationMetrics is a snapshot of the MetricsObserver counters
type VerificationMetrics struct {
	TotalVerifications      int64            `json:"total_verifications"`
	CompletedVerifications  int64            `json:"completed_verifications"`
	FailedVerifications     int64            `json:"failed_verifications"`
	FetchFailures           int64            `json:"fetch_failures"`
	OverallGrades           map[string]int64 `json:"overall_grades"`
	DecodeOutcomes          map[string]int64 `json:"decode_outcomes"`
	AvgProcessingTimeMillis float64          `json:"avg_processing_time_ms"`
}

// MetricsObserver counts verification outcomes
type MetricsObserver struct {
	mu                  sync.RWMutex
	total               int64
	completed           int64
	failed              int64
	fetchFailures       int64
	grades              map[models.Grade]int64
	decodes             map[models.DecodeStatus]int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		grades:  make(map[models.Grade]int64),
		decodes: make(map[models.DecodeStatus]int64),
	}
}

// OnEvent handles verification events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event VerificationEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case VerificationStarted:
		o.total++
	case VerificationCompleted:
		o.completed++
		o.grades[event.OverallGrade]++
		if event.DecodeStatus != "" {
			o.decodes[event.DecodeStatus]++
		}
		o.totalProcessingTime += event.ProcessingTime
	case VerificationFailed:
		o.failed++
	case ImageFetchFailed:
		o.fetchFailures++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() VerificationMetrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	m := VerificationMetrics{
		TotalVerifications:     o.total,
		CompletedVerifications: o.completed,
		FailedVerifications:    o.failed,
		FetchFailures:          o.fetchFailures,
		OverallGrades:          make(map[string]int64, len(o.grades)),
		DecodeOutcomes:         make(map[string]int64, len(o.decodes)),
	}
	for g, n := range o.grades {
		m.OverallGrades[g.String()] = n
	}
	for s, n := range o.decodes {
		m.DecodeOutcomes[string(s)] = n
	}
	if o.completed > 0 {
		avg := o.totalProcessingTime / time.Duration(o.completed)
		m.AvgProcessingTimeMillis = float64(avg) / float64(time.Millisecond)
	}
	return m
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	pending   sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() Subject {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers event to every observer on its own goroutine
func (p *EventPublisher) NotifyObservers(ctx context.Context, event VerificationEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		p.pending.Add(1)
		go func(obs Observer) {
			defer p.pending.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Wait blocks until in-flight notifications finish
func (p *EventPublisher) Wait() {
	p.pending.Wait()
}
