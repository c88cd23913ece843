package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nutricomm/kebun-gizi/internal/alerts"
	"github.com/nutricomm/kebun-gizi/internal/backend"
	"github.com/nutricomm/kebun-gizi/internal/export"
	"github.com/nutricomm/kebun-gizi/internal/livedata"
	"github.com/nutricomm/kebun-gizi/internal/rotation"
	"github.com/nutricomm/kebun-gizi/internal/sensor"
)

// --------------------------------------------------------------------------
// watch command
// --------------------------------------------------------------------------

func watchCmd() *cobra.Command {
	var (
		duration time.Duration
		emit     bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live readings and the alerts they raise",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, e *env) error {
				if duration > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, duration)
					defer cancel()
				}

				var next alerts.Emitter
				if emit {
					if e.cfg.UserID == "" {
						return errors.New("--emit needs USER_ID")
					}
					next = backend.NewNotificationEmitter(e.client, e.cfg.UserID, e.cfg.GardenID)
				}
				pipeline := alerts.NewPipeline(thresholdsFrom(e.cfg), alerts.NewGate(), printEmitter{next: next}, logger)

				ch := livedata.New(livedata.Options{
					DialTimeout:    e.cfg.DialTimeout,
					RequestTimeout: e.cfg.RequestTimeout,
					PollInterval:   e.cfg.PollInterval,
					RetryDelay:     e.cfg.RetryDelay,
					FallbackDelay:  e.cfg.FallbackDelay,
					MQTTTopic:      e.cfg.MQTTTopic,
					Logger:         logger,
					OnError: func(err error) {
						fmt.Fprintln(os.Stderr, "warning:", err)
					},
				})
				h, err := ch.Start(func(r sensor.Reading) {
					fmt.Println(formatReading(r))
					pipeline.Handle(ctx, r)
				}, e.endpoints.PushCandidates(), e.endpoints.PollURL())
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "watching %s (session %s), Ctrl-C to stop\n",
					e.endpoints.BackendURL(), ch.SessionID())

				<-ctx.Done()
				h.Stop()
				<-h.Done()
				st := ch.Status()
				fmt.Fprintf(os.Stderr, "stopped: %d readings, %d discarded\n", st.Delivered, st.Discarded)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (default until interrupted)")
	cmd.Flags().BoolVar(&emit, "emit", false, "Also send alerts to the backend as USER_ID")
	return cmd
}

// printEmitter prints approved alerts and forwards them when next is set.
type printEmitter struct {
	next alerts.Emitter
}

func (p printEmitter) Emit(ctx context.Context, c alerts.Candidate) (bool, error) {
	fmt.Printf("  ALERT [%s] %s: %s\n", c.Severity, c.Title, c.Message)
	if p.next == nil {
		return false, nil
	}
	return p.next.Emit(ctx, c)
}

func formatReading(r sensor.Reading) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", r.ObservedAt.Local().Format(time.TimeOnly), r.GardenID)
	field := func(f sensor.Field, label string, v float64, unit string) {
		if r.Has(f) {
			fmt.Fprintf(&b, "  %s=%.1f%s", label, v, unit)
		}
	}
	field(sensor.FieldTemperature, "temp", r.TemperatureC, "C")
	field(sensor.FieldAirHumidity, "hum", r.AirHumidityPct, "%")
	field(sensor.FieldSoilMoisture, "soil", r.SoilMoisturePct, "%")
	field(sensor.FieldLight, "light", r.LightLux, "lx")
	field(sensor.FieldCO2, "co2", r.CO2PPM, "ppm")
	return b.String()
}

// --------------------------------------------------------------------------
// ping command
// --------------------------------------------------------------------------

func pingCmd() *cobra.Command {
	var (
		port    int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ping HOST",
		Short: "Check whether a backend answers at HOST",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			start := time.Now()
			if !backend.Ping(ctx, args[0], port, timeout) {
				return fmt.Errorf("no backend at %s:%d", args[0], port)
			}
			fmt.Printf("%s:%d reachable in %s\n", args[0], port, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 5000, "Backend port")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "Give up after")
	return cmd
}

// --------------------------------------------------------------------------
// export command
// --------------------------------------------------------------------------

func exportCmd() *cobra.Command {
	var (
		format string
		out    string
		days   int
		date   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the duty calendar as xlsx or pdf",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			ref, err := parseDate(date)
			if err != nil {
				return err
			}
			return run(func(ctx context.Context, e *env) error {
				if days < 0 {
					days = e.cfg.ScheduleDays
				}
				window, err := rotation.ScheduleWindow(ref, e.roster.Roster(), days)
				if err != nil {
					return err
				}
				cal := export.Calendar{GardenID: e.cfg.GardenID, GeneratedAt: time.Now(), Days: window}
				data, err := export.Render(f, cal)
				if err != nil {
					return err
				}
				if out == "" {
					out = export.Filename(f, cal)
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				fmt.Printf("Wrote %s (%d days)\n", out, len(window))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "pdf", "xlsx or pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default jadwal-<garden>-<date>.<format>)")
	cmd.Flags().IntVar(&days, "days", -1, "Number of days (default SCHEDULE_DAYS)")
	cmd.Flags().StringVar(&date, "date", "", "Reference date YYYY-MM-DD (default today)")
	return cmd
}
