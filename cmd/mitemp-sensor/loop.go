package main

import (
	"context"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/mitemp-sensor/internal/gpio"
	"github.com/sweeney/mitemp-sensor/internal/logic"
	"github.com/sweeney/mitemp-sensor/internal/mqtt"
	"github.com/sweeney/mitemp-sensor/internal/poller"
	"github.com/sweeney/mitemp-sensor/internal/sensor"
	"github.com/sweeney/mitemp-sensor/internal/status"
)

// lastSeener is implemented by pollers that know when the sensor last advertised.
type lastSeener interface {
	LastSeen() time.Time
}

// daemon wires the entities to their poller and outputs.
// runLoop drives every entity from a single goroutine, so no filter ever
// sees overlapping updates.
type daemon struct {
	entities   []*sensor.Entity
	deviceName string
	poller     poller.Poller
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // optional
	tracker    *status.Tracker       // optional
	indicator  gpio.Indicator        // optional
	logger     *slog.Logger
	heartbeat  time.Duration
	now        func() time.Time
}

// announce publishes a discovery config for every entity.
func (d *daemon) announce() {
	for _, e := range d.entities {
		info := e.Quantity().Info()
		err := d.publisher.PublishDiscovery(mqtt.Discovery{
			Quantity:    e.Quantity(),
			Name:        e.Name(),
			DeviceName:  d.deviceName,
			Unit:        info.Unit,
			DeviceClass: info.DeviceClass,
			ForceUpdate: e.ForceUpdate(),
		})
		if err != nil {
			d.logger.Warn("failed to publish discovery", "sensor", e.Name(), "error", err)
			continue
		}
		d.logger.Debug("published discovery", "sensor", e.Name())
	}
}

func (d *daemon) runLoop(ctx context.Context, tick <-chan time.Time, sig <-chan os.Signal) error {
	hb := logic.NewHeartbeat(d.now())

	for {
		select {
		case s := <-sig:
			return d.shutdown(s)

		case <-ctx.Done():
			// A signal cancels ctx right after forwarding itself.
			select {
			case s := <-sig:
				return d.shutdown(s)
			default:
				return ctx.Err()
			}

		case <-tick:
			t := d.now()
			ready := d.cycle(ctx, t)
			d.setIndicator(ready)

			if hbData := hb.Check(t, d.heartbeat); hbData != nil {
				d.logger.Info("heartbeat", "uptime", hbData.Uptime)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if d.tracker != nil {
					d.refreshMQTT()
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						d.tracker.SetNetwork(net)
					}
					snap := d.tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := d.publisher.PublishSystem(hbEvent); err != nil {
					d.logger.Warn("heartbeat publish error", "error", err)
				}
			}
		}
	}
}

// shutdown publishes the SHUTDOWN event for s and turns the LED off.
func (d *daemon) shutdown(s os.Signal) error {
	d.logger.Info("shutting down", "signal", s.String())
	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	event := mqtt.SystemEvent{
		Timestamp: d.now(),
		Event:     "SHUTDOWN",
		Reason:    signalName,
		Retained:  true,
	}
	if d.tracker != nil {
		d.refreshMQTT()
		snap := d.tracker.Snapshot()
		event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
	}
	if err := d.publisher.PublishSystem(event); err != nil {
		d.logger.Warn("failed to publish shutdown event", "error", err)
	} else {
		d.logger.Info("published shutdown event")
	}
	d.setIndicator(false)
	return nil
}

// cancelOnSignal forwards the first signal from sig on the returned channel
// and then cancels the returned context, so a read blocked on a silent
// sensor returns at once.
func cancelOnSignal(ctx context.Context, sig <-chan os.Signal) (context.Context, <-chan os.Signal, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan os.Signal, 1)
	go func() {
		select {
		case s := <-sig:
			out <- s
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, out, cancel
}

// cycle updates every entity once and publishes the states that must be pushed.
// Reports whether every entity now has a known value.
func (d *daemon) cycle(ctx context.Context, t time.Time) bool {
	ready := len(d.entities) > 0
	snaps := make([]sensor.Snapshot, 0, len(d.entities))

	for _, e := range d.entities {
		r := e.Update(ctx, d.poller)
		if !r.Known {
			ready = false
		}
		if e.ShouldPublish(r) {
			err := d.publisher.PublishState(mqtt.State{
				Timestamp: t,
				Quantity:  e.Quantity(),
				Value:     r.Value,
				Known:     r.Known,
			})
			if err != nil {
				// Don't crash on publish failure
				d.logger.Warn("publish error", "sensor", e.Name(), "error", err)
			}
		}
		snaps = append(snaps, e.Snapshot())
	}

	// Update status tracker for HTTP/LED consumers
	if d.tracker != nil {
		var seen time.Time
		if ls, ok := d.poller.(lastSeener); ok {
			seen = ls.LastSeen()
		}
		d.tracker.Update(snaps, seen)
		d.refreshMQTT()
	}
	return ready
}

func (d *daemon) refreshMQTT() {
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

func (d *daemon) setIndicator(on bool) {
	if d.indicator == nil {
		return
	}
	if err := d.indicator.Set(on); err != nil {
		d.logger.Warn("led error", "error", err)
	}
}
