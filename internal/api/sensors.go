package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-onewire/internal/onewire"
	"github.com/nerrad567/gray-logic-onewire/internal/readings"
)

// SensorView is the JSON representation of one sensor channel.
type SensorView struct {
	EntityID     string   `json:"entity_id"`
	SensorID     string   `json:"sensor_id"`
	Name         string   `json:"name"`
	Channel      string   `json:"channel"`
	State        any      `json:"state"`
	RawValue     *float64 `json:"raw_value,omitempty"`
	Unit         string   `json:"unit"`
	DeviceClass  string   `json:"device_class,omitempty"`
	DeviceFile   string   `json:"device_file"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
	Available    bool     `json:"available"`
}

func sensorView(s *onewire.Sensor) SensorView {
	return SensorView{
		EntityID:     s.EntityID(),
		SensorID:     s.SensorID(),
		Name:         s.Name(),
		Channel:      s.Channel(),
		State:        s.State(),
		RawValue:     s.RawValue(),
		Unit:         s.Unit(),
		DeviceClass:  s.DeviceClass(),
		DeviceFile:   s.DeviceFile(),
		Model:        s.Model(),
		Manufacturer: s.Manufacturer(),
		Available:    s.Available(),
	}
}

// handleListSensors returns every discovered sensor with its last reading.
func (s *Server) handleListSensors(w http.ResponseWriter, _ *http.Request) {
	sensors := s.bridge.Sensors()

	views := make([]SensorView, 0, len(sensors))
	for _, sensor := range sensors {
		views = append(views, sensorView(sensor))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sensors": views,
		"count":   len(views),
	})
}

// handleGetSensor returns one sensor by entity ID.
func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sensor := s.bridge.SensorByID(id)
	if sensor == nil {
		writeNotFound(w, "sensor not found: "+id)
		return
	}

	writeJSON(w, http.StatusOK, sensorView(sensor))
}

// handleSensorHistory returns recent persisted readings for one sensor.
// Without a database the endpoint returns an empty list.
func (s *Server) handleSensorHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s.bridge.SensorByID(id) == nil {
		writeNotFound(w, "sensor not found: "+id)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	entries := []readings.Entry{}
	if s.history != nil {
		var err error
		entries, err = s.history.History(r.Context(), id, limit)
		if err != nil {
			s.logger.Error("history query failed", "sensor_id", id, "error", err)
			writeInternalError(w, "failed to load history")
			return
		}
	}
	if entries == nil {
		entries = []readings.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sensor_id": id,
		"readings":  entries,
		"count":     len(entries),
	})
}

// handleRefresh forces an immediate poll cycle.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.bridge.RunCycle(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"sensors": len(s.bridge.Sensors()),
	})
}

// handleDiscoveryScan re-enumerates the bus.
func (s *Server) handleDiscoveryScan(w http.ResponseWriter, r *http.Request) {
	if err := s.bridge.Rediscover(r.Context()); err != nil {
		s.logger.Error("rediscovery failed", "error", err)
		writeInternalError(w, "discovery failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"sensors": len(s.bridge.Sensors()),
	})
}
