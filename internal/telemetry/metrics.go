package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

var notifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "edusync",
	Name:      "notifications_total",
	Help:      "Result notifications sent to the event stream, by event type and outcome.",
}, []string{"event_type", "outcome"})

var swallowedNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "edusync",
	Name:      "notifications_swallowed_total",
	Help:      "Notification failures absorbed by the result workflow, by event type.",
}, []string{"event_type"})

// ObserveNotification counts a publish attempt.
func ObserveNotification(eventType string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}

	notifications.WithLabelValues(eventType, outcome).Inc()
}

func ObserveSwallowedNotification(eventType string) {
	swallowedNotifications.WithLabelValues(eventType).Inc()
}
