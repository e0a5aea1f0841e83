package app

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"billy/api"
	"billy/metrics"
)

type AlertLevel string

const (
	AlertInfo    AlertLevel = "info"
	AlertWarning AlertLevel = "warning"
	AlertError   AlertLevel = "error"
)

// maxAlerts bounds the queue; the oldest alerts are dropped first.
const maxAlerts = 50

type Alert struct {
	ID        string     `json:"id"`
	Level     AlertLevel `json:"level"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
}

// alert queues message for the user. A message repeated within
// Options.AlertCooldown is logged but not queued again.
func (a *App) alert(level AlertLevel, message string) Alert {
	alert := Alert{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if !a.throttle.Allow(string(level) + ":" + message) {
		a.logger.WithField("level", level).Debug(message)
		return alert
	}

	a.mutex.Lock()
	a.alerts = append(a.alerts, alert)
	if len(a.alerts) > maxAlerts {
		a.alerts = append([]Alert(nil), a.alerts[len(a.alerts)-maxAlerts:]...)
	}
	a.mutex.Unlock()

	metrics.Alerts.WithLabelValues(string(level)).Inc()
	a.logger.WithFields(log.Fields{"level": level, "alert_id": alert.ID}).Info(message)
	a.publish(Event{Type: EventAlert, Alert: &alert})
	return alert
}

// Alerts returns the pending alerts, oldest first.
func (a *App) Alerts() []Alert {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return append([]Alert{}, a.alerts...)
}

// DismissAlert removes the alert with id and reports whether it existed.
func (a *App) DismissAlert(id string) bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	for i, alert := range a.alerts {
		if alert.ID == id {
			a.alerts = append(a.alerts[:i:i], a.alerts[i+1:]...)
			return true
		}
	}
	return false
}

// RemoteFailed turns a failure of a background call to the server into an
// error alert.
func (a *App) RemoteFailed(err error) {
	a.alert(AlertError, api.AlertMessage(err))
}
