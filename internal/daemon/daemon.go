package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/greenhouse-net/controller/internal/domain"
	"github.com/greenhouse-net/controller/internal/infra/command"
	"github.com/greenhouse-net/controller/internal/infra/control"
	"github.com/greenhouse-net/controller/internal/infra/identity"
	"github.com/greenhouse-net/controller/internal/infra/metrics"
	"github.com/greenhouse-net/controller/internal/infra/mqttclient"
	"github.com/greenhouse-net/controller/internal/infra/ota"
	"github.com/greenhouse-net/controller/internal/infra/portal"
	"github.com/greenhouse-net/controller/internal/infra/sensing"
	"github.com/greenhouse-net/controller/internal/infra/spool"
	"github.com/greenhouse-net/controller/internal/infra/store"
	"github.com/greenhouse-net/controller/internal/infra/timesync"
	"github.com/greenhouse-net/controller/internal/infra/ui"
	"github.com/greenhouse-net/controller/internal/infra/watchdog"
	"github.com/greenhouse-net/controller/internal/infra/wifi"
)

// Version is the firmware version reported in telemetry records. Set from
// main's build-time version via cli.Execute.
var Version = "dev"

// telemetryPeriod is the connectivity task's compose-and-publish cadence.
const telemetryPeriod = 5 * time.Second

// connectivityPeriod drives the wifi state machine tick and the MQTT
// reconnect attempt cadence.
const connectivityPeriod = 1 * time.Second

// Daemon is the greenhouse node's runtime. It wires together persistence,
// the four periodic tasks, connectivity, and OTA governance.
type Daemon struct {
	Config   Config
	Log      *logrus.Logger
	DeviceID string

	store    *store.Store
	spool    *spool.Spool
	wd       *watchdog.Watchdog
	timesync *timesync.Syncer

	sensorState *domain.SensorState
	actuators   *domain.ActuatorStateHolder
	conn        *domain.ConnStateHolder
	cfgHolder   *domain.ConfigHolder

	sensing *sensing.Task
	control *control.Task
	ui      *ui.Task
	wifi    *wifi.Machine
	portal  *portal.Server
	mqtt    *mqttclient.Client
	ota     *ota.Manager

	cancel context.CancelFunc
}

// Drivers bundles the hardware port implementations the caller supplies;
// a hardware-specific build provides concrete implementations of these
// interfaces.
type Drivers struct {
	Sensors   domain.Sensors
	Actuators domain.Actuators
	Display   domain.Display
	Radio     domain.WifiRadio
	Updater   domain.FirmwareUpdater
}

// New creates a Daemon with all components wired, using the given static
// config and hardware drivers.
func New(cfg Config, drivers Drivers) (*Daemon, error) {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(lvl)
	}

	deviceID := cfg.Node.DeviceID
	if deviceID == "" {
		id, err := identity.LoadOrCreate(cfg.Paths.DataDir)
		if err != nil {
			return nil, fmt.Errorf("load device identity: %w", err)
		}
		deviceID = id
	}

	st, err := store.Open(cfg.Paths.DataDir)
	if err != nil {
		log.WithError(err).Warn("key/value store unavailable, running with in-memory defaults")
	}

	sp := spool.Open(cfg.Paths.DataDir)
	wd := watchdog.New()

	d := &Daemon{
		Config:      cfg,
		Log:         log,
		DeviceID:    deviceID,
		store:       st,
		spool:       sp,
		wd:          wd,
		timesync:    timesync.New(cfg.Time.NTPServers, log),
		sensorState: &domain.SensorState{},
		actuators:   &domain.ActuatorStateHolder{},
		conn:        &domain.ConnStateHolder{},
		cfgHolder:   domain.NewConfigHolder(st.LoadConfig()),
	}

	d.ota = ota.New(st, drivers.Updater, wd, log)

	d.sensing = sensing.New(drivers.Sensors, d.sensorState, d.cfgHolder, wd, log)
	d.control = control.New(d.sensorState, d.actuators, d.cfgHolder, drivers.Actuators, wd, log)
	d.ui = ui.New(drivers.Display, d.sensorState, d.actuators, d.conn, log)

	d.portal = portal.New(cfg.Portal.ListenAddr, drivers.Radio, d.statusFunc(cfg.Portal.EnableStatus), cfg.Portal.EnableMetrics, d.onCredentialsSaved, log)
	d.wifi = wifi.New(drivers.Radio, d.portal, d.conn, cfg.Portal.APSSID, cfg.Portal.APPassword, log)

	mqttCfg := mqttclient.Config{
		BrokerURL:  cfg.MQTT.BrokerURL,
		CACertPath: cfg.MQTT.CACertPath,
		Username:   cfg.MQTT.Username,
		Password:   cfg.MQTT.Password,
		DeviceID:   deviceID,
		TimeFunc:   d.timesync.Now,
	}
	mqttClient, err := mqttclient.New(mqttCfg, d.onCommand, d.onMqttConnect, d.onMqttLost, log)
	if err != nil {
		return nil, fmt.Errorf("build mqtt client: %w", err)
	}
	d.mqtt = mqttClient

	return d, nil
}

// statusFunc builds the closure the portal's optional /status endpoint and
// the CLI status command use.
func (d *Daemon) statusFunc(enabled bool) func() any {
	if !enabled {
		return nil
	}
	return func() any { return d.Status() }
}

// Status is the structured local snapshot exposed by the status CLI
// command and the portal's optional /status endpoint.
type Status struct {
	DeviceID  string                `json:"device_id"`
	Sensors   domain.SensorSnapshot `json:"sensors"`
	Actuators domain.ActuatorState  `json:"actuators"`
	Conn      domain.ConnState      `json:"conn"`
	Config    domain.Config         `json:"config"`
	WifiState string                `json:"wifi_state"`
}

// Status returns a coherent-enough snapshot of the node's live state.
func (d *Daemon) Status() Status {
	return Status{
		DeviceID:  d.DeviceID,
		Sensors:   d.sensorState.Load(),
		Actuators: d.actuators.Load(),
		Conn:      d.conn.Load(),
		Config:    d.cfgHolder.Load(),
		WifiState: d.wifi.State().String(),
	}
}

func (d *Daemon) onCommand(payload []byte) {
	cmd, err := command.Parse(payload)
	if err != nil {
		d.Log.WithError(err).Warn("dropping malformed command payload")
		return
	}
	otaURL := command.Apply(cmd, d.cfgHolder, d.store, d.actuators)
	if otaURL != nil {
		go func() {
			if err := d.ota.Download(context.Background(), *otaURL); err != nil {
				d.Log.WithError(err).Error("ota update failed")
			}
		}()
	}
}

func (d *Daemon) onMqttConnect() {
	d.conn.Mutate(func(cs domain.ConnState) domain.ConnState { cs.MqttUp = true; return cs })
	metrics.MqttUp.Set(1)
	d.ota.ClearOnMqttConnect()

	if alert, ok := d.ota.DrainRollbackAlert(); ok {
		payload, _ := json.Marshal(alert)
		if err := d.mqtt.PublishAlert(payload); err != nil {
			d.Log.WithError(err).Error("failed to publish rollback alert, will retry on next connect")
			return
		}
		d.ota.CommitRollbackCleared()
	}

	if err := d.spool.Drain(func(line string) error {
		return d.mqtt.PublishTelemetry([]byte(line))
	}); err != nil {
		d.Log.WithError(err).Warn("spool drain stopped early, will resume next connect")
	}
}

func (d *Daemon) onMqttLost(err error) {
	d.conn.Mutate(func(cs domain.ConnState) domain.ConnState { cs.MqttUp = false; return cs })
	metrics.MqttUp.Set(0)
}

// onCredentialsSaved is handed to the portal server so a successful
// credential submission ends the provisioning portal immediately instead
// of waiting for a button press or the portal timeout.
func (d *Daemon) onCredentialsSaved() {
	d.conn.Mutate(func(cs domain.ConnState) domain.ConnState { cs.StopPortalPending = true; return cs })
}

// Serve starts every periodic task and blocks until ctx is cancelled or a
// termination signal arrives, then shuts down gracefully.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wifi.BootConnect(ctx)

	d.ota.VerifyBootOrRollback(ctx)

	go d.sensing.Run(ctx)
	go d.control.Run(ctx)
	go d.ui.Run(ctx)
	go d.runConnectivity(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		d.Log.Info("shutdown signal received")
	case <-ctx.Done():
	}

	d.Close()
	return nil
}

// runConnectivity drives the WiFi state machine, the MQTT reconnect
// cadence, and the telemetry compose-publish-or-buffer pipeline.
func (d *Daemon) runConnectivity(ctx context.Context) {
	d.wd.Register("connectivity")
	defer d.wd.Deregister("connectivity")

	connTicker := time.NewTicker(connectivityPeriod)
	defer connTicker.Stop()
	telemetryTicker := time.NewTicker(telemetryPeriod)
	defer telemetryTicker.Stop()

	var lastReconnectAttempt time.Time
	var lastMqttAttempt time.Time

	for {
		select {
		case <-ctx.Done():
			d.flushAndDrain()
			return

		case <-connTicker.C:
			d.wifi.Tick(ctx, &lastReconnectAttempt)
			d.wd.Pet("connectivity")

			for _, task := range d.wd.Expired() {
				d.Log.WithField("task", task).Warn("watchdog missed pet")
				metrics.WatchdogExpirations.Inc()
			}

			if d.wifi.IsOnline() && !d.mqtt.IsConnected() && time.Since(lastMqttAttempt) >= mqttclient.ReconnectInterval {
				if err := d.timesync.EnsureSynced(ctx); err != nil {
					d.Log.WithError(err).Debug("deferring mqtt connect until clock is plausible")
				} else {
					lastMqttAttempt = time.Now()
					if err := d.mqtt.Connect(); err != nil {
						d.Log.WithError(err).Debug("mqtt connect attempt failed")
					}
				}
			}

		case <-telemetryTicker.C:
			d.publishOrBuffer()
			d.wd.Pet("connectivity")
		}
	}
}

func (d *Daemon) publishOrBuffer() {
	rec := d.composeTelemetry()
	payload, err := json.Marshal(rec)
	if err != nil {
		d.Log.WithError(err).Error("failed to encode telemetry record")
		return
	}

	if d.mqtt.IsConnected() {
		if err := d.mqtt.PublishTelemetry(payload); err == nil {
			metrics.TelemetryPublished.Inc()
			return
		}
		d.Log.Debug("telemetry publish failed despite connected session, buffering")
	}

	if err := d.spool.Append(string(payload)); err != nil {
		metrics.TelemetryDropped.Inc()
		d.Log.WithError(err).Warn("telemetry record dropped")
	}
	metrics.SpoolBatchDepth.Set(float64(d.spool.BatchLen()))
}

func (d *Daemon) composeTelemetry() domain.TelemetryRecord {
	snap := d.sensorState.Load()
	act := d.actuators.Load()
	return domain.TelemetryRecord{
		DeviceID:  d.DeviceID,
		Version:   Version,
		Timestamp: time.Now().Unix(),
		Temp:      snap.TempC,
		Hum:       snap.HumPct,
		Soil:      int(snap.SoilPct),
		Co2:       snap.Eco2Ppm,
		Tvoc:      snap.TvocPpb,
		TankLevel: int(snap.TankPct),
		Pump:      boolToInt(act.Pump),
		Fan:       boolToInt(act.Fan),
		Heater:    boolToInt(act.Heater),
		Mode:      act.Mode.String(),
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (d *Daemon) flushAndDrain() {
	if err := d.spool.Flush(); err != nil {
		d.Log.WithError(err).Error("failed to flush telemetry batch on shutdown")
	}
}

// Close releases every daemon resource. Safe to call more than once.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	d.flushAndDrain()
	if d.mqtt != nil {
		d.mqtt.Disconnect()
	}
	if d.portal != nil {
		d.portal.Stop()
	}
	if d.store != nil {
		_ = d.store.Close()
	}
}
