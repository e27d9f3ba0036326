package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NetScope/internal/anomaly"
	"NetScope/internal/broadcast"
	"NetScope/internal/capture"
	"NetScope/internal/model"
)

const version = "0.1.0"

// CaptureController is the slice of the sniffer the API needs for status
// reporting and runtime reconfiguration. It is nil when the pipeline runs
// from a replay file.
type CaptureController interface {
	Status() capture.Status
	Restart(iface, bpf string) error
}

// Server exposes the REST and streaming endpoints over the detector, the
// hub, and the capture controller.
type Server struct {
	detector *anomaly.Detector
	hub      *broadcast.Broadcaster
	capture  CaptureController
	router   *mux.Router
}

// NewServer builds the router. capture may be nil.
func NewServer(detector *anomaly.Detector, hub *broadcast.Broadcaster, capture CaptureController) *Server {
	s := &Server{
		detector: detector,
		hub:      hub,
		capture:  capture,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.rootHandler).Methods("GET")
	r.HandleFunc("/interfaces", s.interfacesHandler).Methods("GET")
	r.HandleFunc("/capture/settings", s.captureSettingsHandler).Methods("POST")
	r.HandleFunc("/status", s.statusHandler).Methods("GET")
	r.HandleFunc("/anomaly/stats", s.anomalyStatsHandler).Methods("GET")
	r.HandleFunc("/anomaly/config", s.anomalyConfigHandler).Methods("POST")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/ws/packets", s.wsHandler)
	s.router = r
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "NetScope API",
		"version": version,
		"status":  "running",
	})
}

func (s *Server) interfacesHandler(w http.ResponseWriter, r *http.Request) {
	interfaces, err := capture.Interfaces()
	if err != nil {
		log.Printf("Failed to list interfaces: %v", err)
		http.Error(w, "failed to retrieve network interfaces", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, interfaces)
}

// captureSettings is the /capture/settings request body.
type captureSettings struct {
	Interface string `json:"iface"`
	BPF       string `json:"bpf"`
}

func (s *Server) captureSettingsHandler(w http.ResponseWriter, r *http.Request) {
	if s.capture == nil {
		http.Error(w, "packet capture is not available in this mode", http.StatusServiceUnavailable)
		return
	}

	var settings captureSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return
	}
	if settings.Interface == "" {
		http.Error(w, "iface is required", http.StatusBadRequest)
		return
	}

	found, err := capture.HasInterface(settings.Interface)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to validate interface: %v", err), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, fmt.Sprintf("interface %q not found", settings.Interface), http.StatusBadRequest)
		return
	}
	if settings.BPF != "" {
		if err := capture.ValidateBPF(settings.BPF); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := s.capture.Restart(settings.Interface, settings.BPF); err != nil {
		http.Error(w, fmt.Sprintf("failed to restart packet capture: %v", err), http.StatusInternalServerError)
		return
	}

	s.publish(model.CaptureConfigChange{
		Type:      "config_change",
		Interface: settings.Interface,
		BPFFilter: settings.BPF,
		Timestamp: nowUnix(),
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"message":    "Capture settings updated successfully",
		"interface":  settings.Interface,
		"bpf_filter": settings.BPF,
	})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	var st capture.Status
	if s.capture != nil {
		st = s.capture.Status()
	}

	status := "degraded"
	if st.Running {
		status = "healthy"
	}

	var iface, filter *string
	if st.Interface != "" {
		iface = &st.Interface
	}
	if st.BPF != "" {
		filter = &st.BPF
	}

	writeJSON(w, http.StatusOK, model.SystemStatus{
		Status:           status,
		CaptureActive:    st.Running,
		CurrentInterface: iface,
		CurrentFilter:    filter,
		ConnectedClients: s.hub.Count(),
	})
}

func (s *Server) anomalyStatsHandler(w http.ResponseWriter, r *http.Request) {
	if s.detector == nil {
		http.Error(w, "anomaly detection not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "active",
		"statistics": s.detector.GetStats(),
	})
}

func (s *Server) anomalyConfigHandler(w http.ResponseWriter, r *http.Request) {
	if s.detector == nil {
		http.Error(w, "anomaly detection not initialized", http.StatusServiceUnavailable)
		return
	}

	// Fields absent from the body keep their current values.
	cfg := s.detector.Config()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return
	}

	if err := s.detector.UpdateConfig(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.publish(model.AnomalyConfigChange{
		Type:          "anomaly_config_change",
		WindowSize:    cfg.WindowSize,
		Threshold:     cfg.Threshold,
		MinSamples:    cfg.MinSamples,
		AlertCooldown: cfg.AlertCooldown,
		Timestamp:     nowUnix(),
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Anomaly detection configuration updated",
		"config":  cfg,
	})
}

// publish broadcasts a control message to all streaming clients.
func (s *Server) publish(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Failed to marshal control message: %v", err)
		return
	}
	s.hub.Publish(data)
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
