// Package metrics provides Prometheus metrics for restoration and
// capture sessions.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	restoreFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tapedeck",
		Subsystem: "restore",
		Name:      "fps",
		Help:      "Current restoration encoding FPS",
	}, []string{"session_id"})

	restoreFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tapedeck",
		Subsystem: "restore",
		Name:      "frames",
		Help:      "Frames encoded so far in the session",
	}, []string{"session_id"})

	restoreTotalFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tapedeck",
		Subsystem: "restore",
		Name:      "total_frames",
		Help:      "Total frames expected for the session, 0 when unknown",
	}, []string{"session_id"})

	sessionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tapedeck",
		Name:      "sessions_active",
		Help:      "Active sessions by kind",
	}, []string{"kind"})

	// Local cache for API status access.
	restoreCache   = make(map[string]*RestoreMetrics)
	restoreCacheMu sync.RWMutex
)

// RestoreMetrics holds current metric values for a session.
type RestoreMetrics struct {
	FPS         float64
	Frames      float64
	TotalFrames float64
}

// SetRestoreProgress records one progress observation for a session.
func SetRestoreProgress(sessionID string, frames, totalFrames, fps float64) {
	restoreFPS.WithLabelValues(sessionID).Set(fps)
	restoreFrames.WithLabelValues(sessionID).Set(frames)
	restoreTotalFrames.WithLabelValues(sessionID).Set(totalFrames)

	restoreCacheMu.Lock()
	m, ok := restoreCache[sessionID]
	if !ok {
		m = &RestoreMetrics{}
		restoreCache[sessionID] = m
	}
	m.FPS = fps
	m.Frames = frames
	m.TotalFrames = totalFrames
	restoreCacheMu.Unlock()
}

// DeleteRestoreMetrics removes all metrics for a finished session.
func DeleteRestoreMetrics(sessionID string) {
	restoreFPS.DeleteLabelValues(sessionID)
	restoreFrames.DeleteLabelValues(sessionID)
	restoreTotalFrames.DeleteLabelValues(sessionID)

	restoreCacheMu.Lock()
	delete(restoreCache, sessionID)
	restoreCacheMu.Unlock()
}

// GetRestoreMetrics returns current metric values for a session.
func GetRestoreMetrics(sessionID string) *RestoreMetrics {
	restoreCacheMu.RLock()
	defer restoreCacheMu.RUnlock()
	if m, ok := restoreCache[sessionID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// SetSessionsActive records the number of active sessions of a kind
// ("restore" or "capture").
func SetSessionsActive(kind string, n float64) {
	sessionsActive.WithLabelValues(kind).Set(n)
}

// HTTPHandler returns the Prometheus metrics HTTP handler.
// This collects all promauto-registered metrics automatically.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
