package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-onewire/internal/onewire"
	"github.com/nerrad567/gray-logic-onewire/internal/readings"
)

// staticReader feeds a sensor a fixed value.
type staticReader struct {
	value   string
	locator string
}

func (r *staticReader) Read(ctx context.Context) (string, error) { return r.value, nil }
func (r *staticReader) Locator() string                          { return r.locator }

// fakeBridge implements BridgeSource over a fixed sensor set.
type fakeBridge struct {
	sensors      []*onewire.Sensor
	cyclesRun    int
	discoverErr  error
	discoverRuns int
}

func (f *fakeBridge) Sensors() []*onewire.Sensor { return f.sensors }

func (f *fakeBridge) SensorByID(entityID string) *onewire.Sensor {
	for _, s := range f.sensors {
		if s.EntityID() == entityID {
			return s
		}
	}
	return nil
}

func (f *fakeBridge) GetMetrics() onewire.BridgeMetrics {
	return onewire.BridgeMetrics{
		Status:         "healthy",
		SensorsManaged: len(f.sensors),
		CyclesTotal:    uint64(f.cyclesRun),
	}
}

func (f *fakeBridge) RunCycle(ctx context.Context) { f.cyclesRun++ }

func (f *fakeBridge) Rediscover(ctx context.Context) error {
	f.discoverRuns++
	return f.discoverErr
}

// fakeHistory implements readings.Repository in memory.
type fakeHistory struct {
	entries map[string][]readings.Entry
	err     error
}

func (f *fakeHistory) Record(ctx context.Context, sensorID string, state, raw *float64) error {
	return nil
}

func (f *fakeHistory) Latest(ctx context.Context, sensorID string) (*readings.Entry, error) {
	return nil, nil
}

func (f *fakeHistory) History(ctx context.Context, sensorID string, limit int) ([]readings.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[sensorID], nil
}

func testSensor(t *testing.T, polled bool) *onewire.Sensor {
	t.Helper()

	s, err := onewire.NewSensor(onewire.SensorConfig{
		Name:       "Boiler Flow",
		SensorID:   "28.0316A279F7FF",
		Channel:    "temperature",
		DeviceFile: "/28.0316A279F7FF/temperature",
		Model:      "28",
		Reader:     &staticReader{value: "23.456", locator: "/28.0316A279F7FF/temperature"},
	})
	if err != nil {
		t.Fatalf("NewSensor: %v", err)
	}
	if polled {
		if err := s.Poll(context.Background()); err != nil {
			t.Fatalf("Poll: %v", err)
		}
	}
	return s
}

func testServer(t *testing.T, bridge BridgeSource, history readings.Repository) *Server {
	t.Helper()

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		Logger:  log,
		Bridge:  bridge,
		History: history,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func TestNewValidation(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text"}, "test")

	if _, err := New(Deps{Bridge: &fakeBridge{}}); err == nil {
		t.Error("missing logger should fail")
	}
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("missing bridge should fail")
	}
}

func TestHandleHealth(t *testing.T) {
	srv := testServer(t, &fakeBridge{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestHandleListSensors(t *testing.T) {
	bridge := &fakeBridge{sensors: []*onewire.Sensor{testSensor(t, true)}}
	srv := testServer(t, bridge, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/sensors/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Sensors []SensorView `json:"sensors"`
		Count   int          `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Count != 1 || len(body.Sensors) != 1 {
		t.Fatalf("count = %d, sensors = %d", body.Count, len(body.Sensors))
	}

	v := body.Sensors[0]
	if v.EntityID != "28-0316a279f7ff-temperature" {
		t.Errorf("EntityID = %q", v.EntityID)
	}
	if v.State != 23.5 {
		t.Errorf("State = %v, want 23.5", v.State)
	}
	if v.RawValue == nil || *v.RawValue != 23.456 {
		t.Errorf("RawValue = %v", v.RawValue)
	}
	if v.Manufacturer != "Maxim Integrated" {
		t.Errorf("Manufacturer = %q", v.Manufacturer)
	}
	if !v.Available {
		t.Error("sensor should be available")
	}
}

func TestHandleGetSensor(t *testing.T) {
	bridge := &fakeBridge{sensors: []*onewire.Sensor{testSensor(t, true)}}
	srv := testServer(t, bridge, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/sensors/28-0316a279f7ff-temperature/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var v SensorView
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.Name != "Boiler Flow temperature" {
		t.Errorf("Name = %q", v.Name)
	}
}

func TestHandleGetSensorNotFound(t *testing.T) {
	srv := testServer(t, &fakeBridge{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/sensors/nope/")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var apiErr Error
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if apiErr.Code != ErrCodeNotFound {
		t.Errorf("code = %q", apiErr.Code)
	}
}

func TestHandleSensorHistory(t *testing.T) {
	sensor := testSensor(t, true)
	state := 23.5
	raw := 23.456
	history := &fakeHistory{entries: map[string][]readings.Entry{
		sensor.EntityID(): {
			{ID: 1, SensorID: sensor.EntityID(), State: &state, RawValue: &raw, Created: time.Now().UTC()},
		},
	}}

	srv := testServer(t, &fakeBridge{sensors: []*onewire.Sensor{sensor}}, history)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/sensors/28-0316a279f7ff-temperature/history?limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		SensorID string           `json:"sensor_id"`
		Readings []readings.Entry `json:"readings"`
		Count    int              `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Count != 1 {
		t.Fatalf("count = %d, want 1", body.Count)
	}
	if body.Readings[0].State == nil || *body.Readings[0].State != 23.5 {
		t.Errorf("state = %v", body.Readings[0].State)
	}
}

func TestHandleSensorHistoryWithoutDatabase(t *testing.T) {
	sensor := testSensor(t, true)
	srv := testServer(t, &fakeBridge{sensors: []*onewire.Sensor{sensor}}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/sensors/28-0316a279f7ff-temperature/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Count != 0 {
		t.Errorf("count = %d, want 0", body.Count)
	}
}

func TestHandleSensorHistoryBadLimit(t *testing.T) {
	sensor := testSensor(t, true)
	srv := testServer(t, &fakeBridge{sensors: []*onewire.Sensor{sensor}}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/sensors/28-0316a279f7ff-temperature/history?limit=banana")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSensorHistoryQueryFailure(t *testing.T) {
	sensor := testSensor(t, true)
	history := &fakeHistory{err: errors.New("disk on fire")}
	srv := testServer(t, &fakeBridge{sensors: []*onewire.Sensor{sensor}}, history)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/sensors/28-0316a279f7ff-temperature/history")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestHandleRefresh(t *testing.T) {
	bridge := &fakeBridge{sensors: []*onewire.Sensor{testSensor(t, false)}}
	srv := testServer(t, bridge, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/sensors/refresh")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if bridge.cyclesRun != 1 {
		t.Errorf("cyclesRun = %d, want 1", bridge.cyclesRun)
	}
}

func TestHandleDiscoveryScan(t *testing.T) {
	bridge := &fakeBridge{}
	srv := testServer(t, bridge, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/discovery/scan")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if bridge.discoverRuns != 1 {
		t.Errorf("discoverRuns = %d, want 1", bridge.discoverRuns)
	}
}

func TestHandleDiscoveryScanFailure(t *testing.T) {
	bridge := &fakeBridge{discoverErr: fmt.Errorf("bus unreachable")}
	srv := testServer(t, bridge, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/discovery/scan")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestHandleMetrics(t *testing.T) {
	bridge := &fakeBridge{sensors: []*onewire.Sensor{testSensor(t, true)}}
	srv := testServer(t, bridge, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var metrics SystemMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if metrics.Version != "test" {
		t.Errorf("version = %q", metrics.Version)
	}
	if metrics.Bridge.SensorsManaged != 1 {
		t.Errorf("sensors_managed = %d, want 1", metrics.Bridge.SensorsManaged)
	}
	if metrics.Runtime.Goroutines <= 0 {
		t.Error("goroutine count should be positive")
	}
	if metrics.Database != nil {
		t.Error("database metrics should be omitted without a database")
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := testServer(t, &fakeBridge{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec = httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("X-Request-ID = %q, want fixed-id", got)
	}
}
