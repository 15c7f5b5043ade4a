package onewire

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/mqtt"
)

// Bridge operation constants.
const (
	// defaultPollInterval is the time between poll cycles.
	defaultPollInterval = 30 * time.Second

	// statePublishQoS is the QoS for state messages. Retained so Core
	// sees the last reading immediately after a reconnect.
	statePublishQoS = 1
)

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// ReadingStore persists poll results for the history API.
// Optional; if nil the bridge runs without local persistence.
type ReadingStore interface {
	// Record stores one cycle result. state and raw are nil when the
	// sensor was unavailable.
	Record(ctx context.Context, sensorID string, state, raw *float64) error
}

// TelemetryWriter forwards readings to a time-series store.
// Optional; if nil the bridge runs without telemetry.
type TelemetryWriter interface {
	// WriteSensorReading records a normalized reading.
	WriteSensorReading(sensorID, channel string, value float64)

	// WriteRawReading records the unrounded reading.
	WriteRawReading(sensorID, channel string, value float64)

	// WriteCycleStats records poll cycle metrics.
	WriteCycleStats(bridgeID string, polled, failed int, duration time.Duration)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// BridgeID identifies this bridge instance. Default: "onewire".
	BridgeID string

	// Version is the bridge software version.
	Version string

	// PollInterval is the time between poll cycles. Default: 30 seconds.
	PollInterval time.Duration

	// HealthInterval is the time between health reports. Default: 30 seconds.
	HealthInterval time.Duration

	// Names maps device serials to display names.
	Names map[string]string

	// MQTT is the MQTT client implementation.
	MQTT MQTTClient

	// Backends are the bus access methods to discover and poll through.
	// At least one is required.
	Backends []Backend

	// Owserver is the shared owserver connection, nil when running
	// sysbus-only. Used for health reporting.
	Owserver Owserver

	// OwserverAddress is reported in health messages.
	OwserverAddress string

	// Store is optional reading persistence.
	Store ReadingStore

	// Telemetry is optional time-series output.
	Telemetry TelemetryWriter

	// Logger is optional structured logger.
	Logger Logger
}

// Bridge orchestrates the 1-Wire sensor platform:
//   - Discovering and classifying devices through the configured backends
//   - Polling every sensor on a fixed cycle
//   - Publishing normalized readings to MQTT and optional stores
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	bridgeID        string
	version         string
	pollInterval    time.Duration
	names           map[string]string
	mqtt            MQTTClient
	backends        []Backend
	owserver        Owserver
	owserverAddress string
	store           ReadingStore
	telemetry       TelemetryWriter
	health          *HealthReporter

	// Discovered sensors (replaced wholesale on rediscovery)
	sensors   []*Sensor
	sensorsMu sync.RWMutex

	// Last published state per entity, for change suppression
	lastPublished   map[string]string
	lastPublishedMu sync.Mutex

	// Statistics (atomic for performance)
	cyclesTotal       atomic.Uint64
	readsTotal        atomic.Uint64
	readFailuresTotal atomic.Uint64
	publishesTotal    atomic.Uint64
	lastCycleMillis   atomic.Int64

	startTime time.Time

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	// Logger
	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if len(opts.Backends) == 0 {
		return nil, fmt.Errorf("at least one backend is required")
	}

	bridgeID := opts.BridgeID
	if bridgeID == "" {
		bridgeID = bridgeName
	}
	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = defaultPollInterval
	}

	// Bridge-level context cancels in-flight reads on Stop()
	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		bridgeID:        bridgeID,
		version:         opts.Version,
		pollInterval:    pollInterval,
		names:           opts.Names,
		mqtt:            opts.MQTT,
		backends:        opts.Backends,
		owserver:        opts.Owserver,
		owserverAddress: opts.OwserverAddress,
		store:           opts.Store,
		telemetry:       opts.Telemetry,
		lastPublished:   make(map[string]string),
		startTime:       time.Now(),
		done:            make(chan struct{}),
		ctx:             ctx,
		ctxCancel:       ctxCancel,
		logger:          opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  bridgeID,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTT,
		Source:    b,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start begins bridge operation.
// This discovers the bus, starts health reporting and launches the
// poll loop.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	if err := b.Rediscover(ctx); err != nil {
		return err
	}

	if err := b.ListenForCommands(); err != nil {
		b.logError("failed to start command listener", err)
	}

	b.health.Start(ctx)

	b.wg.Add(1)
	go b.pollLoop(ctx)

	b.logInfo("bridge started",
		"bridge_id", b.bridgeID,
		"sensors", b.SensorCount(),
		"poll_interval", b.pollInterval.String())

	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		// Cancel bridge context to abort in-flight reads
		b.ctxCancel()

		// Stop health reporting (publishes "stopping" status)
		b.health.Stop()

		b.wg.Wait()

		b.logInfo("bridge stopped")
	})
}

// Rediscover re-enumerates every backend and replaces the sensor set.
//
// A failing backend is logged and contributes nothing; discovery only
// fails when every backend fails. Sensors keep their identity across
// rediscovery because UniqueID is derived from the device file.
func (b *Bridge) Rediscover(ctx context.Context) error {
	var sensors []*Sensor
	var failed int

	for _, backend := range b.backends {
		found, err := backend.Discover(ctx, b.names)
		if err != nil {
			failed++
			b.logError("backend discovery failed", fmt.Errorf("%s: %w", backend.Kind(), err))
			continue
		}
		b.logInfo("backend discovery complete", "backend", backend.Kind(), "sensors", len(found))
		sensors = append(sensors, found...)
	}

	if failed == len(b.backends) {
		return fmt.Errorf("all backends failed discovery")
	}

	b.sensorsMu.Lock()
	b.sensors = sensors
	b.sensorsMu.Unlock()

	// Force a full state republish on the next cycle
	b.lastPublishedMu.Lock()
	b.lastPublished = make(map[string]string)
	b.lastPublishedMu.Unlock()

	b.publishDiscovery(sensors)
	return nil
}

// publishDiscovery announces the discovered sensor set to Core.
func (b *Bridge) publishDiscovery(sensors []*Sensor) {
	msg := DiscoveryMessage{
		Timestamp: time.Now().UTC(),
		Bridge:    b.bridgeID,
		Sensors:   make([]DiscoveredSensor, 0, len(sensors)),
	}
	for _, s := range sensors {
		msg.Sensors = append(msg.Sensors, DiscoveredSensor{
			Protocol:      bridgeName,
			SensorID:      s.SensorID(),
			Channel:       s.Channel(),
			Unit:          s.Unit(),
			DeviceClass:   s.DeviceClass(),
			Model:         s.Model(),
			Manufacturer:  manufacturer,
			Backend:       backendOf(s),
			SuggestedName: s.Name(),
		})
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal discovery", err)
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.Discovery(), payload, 1, false); err != nil {
		b.logError("failed to publish discovery", err)
	}
}

// backendOf infers the backend from a sensor's reader type.
func backendOf(s *Sensor) string {
	switch s.reader.(type) {
	case *directReader:
		return "sysbus"
	default:
		return "owserver"
	}
}

// pollLoop runs poll cycles until shutdown.
func (b *Bridge) pollLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	// First cycle immediately so Core has state without waiting a
	// full interval.
	b.RunCycle(b.ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			b.RunCycle(b.ctx)
		}
	}
}

// RunCycle polls every sensor concurrently and publishes the results.
//
// A failed read marks only that sensor unavailable; the cycle always
// completes for the rest. Exported so request handlers can force an
// immediate refresh.
func (b *Bridge) RunCycle(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, b.pollInterval)
	defer cancel()

	b.sensorsMu.RLock()
	sensors := b.sensors
	b.sensorsMu.RUnlock()

	start := time.Now()
	var failures atomic.Uint64

	var wg sync.WaitGroup
	for _, sensor := range sensors {
		wg.Add(1)
		go func(s *Sensor) {
			defer wg.Done()

			if err := s.Poll(cycleCtx); err != nil {
				failures.Add(1)
				b.readFailuresTotal.Add(1)
				b.logWarn("sensor read failed",
					"sensor_id", s.SensorID(),
					"channel", s.Channel(),
					"device_file", s.DeviceFile(),
					"error", err)
			} else {
				b.readsTotal.Add(1)
			}

			b.publishState(s)
			b.recordReading(cycleCtx, s)
		}(sensor)
	}
	wg.Wait()

	elapsed := time.Since(start)
	b.cyclesTotal.Add(1)
	b.lastCycleMillis.Store(elapsed.Milliseconds())

	if b.telemetry != nil {
		b.telemetry.WriteCycleStats(b.bridgeID, len(sensors), int(failures.Load()), elapsed)
	}

	b.logDebug("poll cycle complete",
		"sensors", len(sensors),
		"failures", failures.Load(),
		"duration", elapsed.String())
}

// publishState publishes one sensor's current state.
//
// Unavailable sensors publish a null state so Core can mark them.
// Repeats of an unchanged state are suppressed; the retained message
// keeps the last value visible to late subscribers.
func (b *Bridge) publishState(s *Sensor) {
	msg := StateMessage{
		SensorID:    s.SensorID(),
		Timestamp:   time.Now().UTC(),
		Channel:     s.Channel(),
		State:       s.State(),
		RawValue:    s.RawValue(),
		Unit:        s.Unit(),
		DeviceClass: s.DeviceClass(),
		DeviceFile:  s.DeviceFile(),
		Protocol:    bridgeName,
	}

	entityID := s.EntityID()
	signature := fmt.Sprintf("%v", msg.State)

	b.lastPublishedMu.Lock()
	if prev, seen := b.lastPublished[entityID]; seen && prev == signature {
		b.lastPublishedMu.Unlock()
		return
	}
	b.lastPublished[entityID] = signature
	b.lastPublishedMu.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}

	topic := mqtt.Topics{}.State(entityID)
	if err := b.mqtt.Publish(topic, payload, statePublishQoS, true); err != nil {
		b.logError("failed to publish state", err)
		return
	}
	b.publishesTotal.Add(1)
}

// recordReading forwards one sensor's cycle result to the optional stores.
func (b *Bridge) recordReading(ctx context.Context, s *Sensor) {
	state, raw := s.Values()

	if b.store != nil {
		if err := b.store.Record(ctx, s.EntityID(), state, raw); err != nil {
			b.logError("failed to persist reading", err)
		}
	}

	if b.telemetry != nil && state != nil {
		b.telemetry.WriteSensorReading(s.EntityID(), s.Channel(), *state)
		if raw != nil {
			b.telemetry.WriteRawReading(s.EntityID(), s.Channel(), *raw)
		}
	}
}

// Sensors returns the current sensor set.
func (b *Bridge) Sensors() []*Sensor {
	b.sensorsMu.RLock()
	defer b.sensorsMu.RUnlock()

	out := make([]*Sensor, len(b.sensors))
	copy(out, b.sensors)
	return out
}

// SensorByID returns the sensor with the given entity ID, or nil.
func (b *Bridge) SensorByID(entityID string) *Sensor {
	b.sensorsMu.RLock()
	defer b.sensorsMu.RUnlock()

	for _, s := range b.sensors {
		if s.EntityID() == entityID {
			return s
		}
	}
	return nil
}

// SensorCount returns the number of discovered sensor channels.
func (b *Bridge) SensorCount() int {
	b.sensorsMu.RLock()
	defer b.sensorsMu.RUnlock()
	return len(b.sensors)
}

// availableCount returns how many sensors responded last cycle.
func (b *Bridge) availableCount() int {
	b.sensorsMu.RLock()
	defer b.sensorsMu.RUnlock()

	count := 0
	for _, s := range b.sensors {
		if s.Available() {
			count++
		}
	}
	return count
}

// HealthSnapshot implements HealthSource.
func (b *Bridge) HealthSnapshot() HealthSnapshot {
	snap := HealthSnapshot{
		SensorsManaged:   b.SensorCount(),
		SensorsAvailable: b.availableCount(),
		Statistics: BridgeStatistics{
			CyclesTotal:       b.cyclesTotal.Load(),
			ReadsTotal:        b.readsTotal.Load(),
			ReadFailuresTotal: b.readFailuresTotal.Load(),
			PublishesTotal:    b.publishesTotal.Load(),
			LastCycleMillis:   b.lastCycleMillis.Load(),
		},
	}

	if b.owserver != nil {
		status := "disconnected"
		if b.owserver.IsConnected() {
			status = "connected"
		}
		snap.Connection = &ConnectionStatus{
			Status:  status,
			Address: b.owserverAddress,
		}
	}

	return snap
}

// BridgeMetrics contains metrics data for the API metrics endpoint.
type BridgeMetrics struct {
	Status            string
	UptimeSeconds     int64
	SensorsManaged    int
	SensorsAvailable  int
	CyclesTotal       uint64
	ReadsTotal        uint64
	ReadFailuresTotal uint64
	PublishesTotal    uint64
	LastCycleMillis   int64
}

// GetMetrics returns current bridge metrics for the API metrics endpoint.
func (b *Bridge) GetMetrics() BridgeMetrics {
	status, _ := b.health.determineStatus()

	return BridgeMetrics{
		Status:            string(status),
		UptimeSeconds:     int64(time.Since(b.startTime).Seconds()),
		SensorsManaged:    b.SensorCount(),
		SensorsAvailable:  b.availableCount(),
		CyclesTotal:       b.cyclesTotal.Load(),
		ReadsTotal:        b.readsTotal.Load(),
		ReadFailuresTotal: b.readFailuresTotal.Load(),
		PublishesTotal:    b.publishesTotal.Load(),
		LastCycleMillis:   b.lastCycleMillis.Load(),
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
