// Command motion-host drives servos on a motionhub firmware over a serial
// link and plans profiles offline.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"motionhub/host/mcu"
	"motionhub/host/serial"
	"motionhub/protocol"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	cmd := &cli.Command{
		Name:    "motion-host",
		Usage:   "Drive servos on a motionhub firmware",
		Version: protocol.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Category: "Connection",
				Name:     "device",
				Aliases:  []string{"d"},
				Usage:    "Serial device of the firmware",
				Value:    "/dev/ttyACM0",
				Sources:  cli.EnvVars("MOTIONHUB_DEVICE"),
			},
			&cli.IntFlag{
				Category: "Connection",
				Name:     "baud",
				Usage:    "Baud rate (ignored for USB CDC)",
				Value:    250000,
			},
			&cli.DurationFlag{
				Category: "Connection",
				Name:     "timeout",
				Usage:    "How long to wait for each response",
				Value:    mcu.DefaultTimeout,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log protocol traffic",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
			}
			slog.SetDefault(logger)
			return ctx, nil
		},
		Commands: []*cli.Command{
			infoCommand(),
			configCommand(),
			angleCommand(),
			timeCommand(),
			holdCommand(),
			stopCommand(),
			referenceCommand(),
			trajectoryCommand(),
			planCommand(),
			monitorCommand(),
			{
				Name:  "estop",
				Usage: "Halt every servo immediately",
				Action: withMCU(func(ctx context.Context, cmd *cli.Command, m *mcu.MCU) error {
					return m.EmergencyStop()
				}),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// withMCU connects and reads the dictionary before running action.
func withMCU(action func(ctx context.Context, cmd *cli.Command, m *mcu.MCU) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg := serial.DefaultConfig(cmd.String("device"))
		cfg.Baud = int(cmd.Int("baud"))

		m := mcu.NewMCU(logger)
		m.Timeout = cmd.Duration("timeout")
		if err := m.ConnectWithConfig(cfg); err != nil {
			return err
		}
		defer func() {
			if err := m.Close(); err != nil {
				logger.Error("close", "error", err)
			}
		}()

		// a freshly enumerated USB port may still be booting
		time.Sleep(100 * time.Millisecond)
		if err := m.RetrieveDictionary(); err != nil {
			return err
		}
		return action(ctx, cmd, m)
	}
}

func oidFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "oid",
		Usage: "Servo to address",
		Value: 0,
	}
}

// startClock turns --delay into a firmware clock, 0 meaning now.
func startClock(cmd *cli.Command, m *mcu.MCU) (uint32, error) {
	delay := cmd.Duration("delay")
	if delay <= 0 {
		return 0, nil
	}
	now, err := m.Clock()
	if err != nil {
		return 0, err
	}
	clock := now + uint32(delay/time.Microsecond)
	if clock == 0 {
		clock = 1
	}
	return clock, nil
}

func delayFlag() cli.Flag {
	return &cli.DurationFlag{
		Name:  "delay",
		Usage: "Start the request this long from now instead of immediately",
	}
}

func reportScheduled(oid uint8, scheduled bool) {
	if scheduled {
		logger.Info("request scheduled", "oid", oid)
		return
	}
	logger.Info("request accepted", "oid", oid)
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Print the firmware dictionary",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "raw", Usage: "Print the dictionary JSON"},
		},
		Action: withMCU(func(ctx context.Context, cmd *cli.Command, m *mcu.MCU) error {
			if cmd.Bool("raw") {
				_, err := os.Stdout.Write(append(m.DictionaryRaw(), '\n'))
				return err
			}
			printDictionary(os.Stdout, m.Dictionary())
			return nil
		}),
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Create or reconfigure a servo",
		Flags: []cli.Flag{
			oidFlag(),
			&cli.IntFlag{Name: "max-rate", Usage: "Rate limit (counts/s)", Value: 1000},
			&cli.IntFlag{Name: "accel", Usage: "Acceleration (counts/s^2)", Value: 2000},
			&cli.IntFlag{Name: "decel", Usage: "Deceleration (counts/s^2), defaults to accel"},
		},
		Action: withMCU(func(ctx context.Context, cmd *cli.Command, m *mcu.MCU) error {
			decel := cmd.Int("decel")
			if decel == 0 {
				decel = cmd.Int("accel")
			}
			return m.ConfigServo(protocol.ServoConfig{
				OID:     uint8(cmd.Int("oid")),
				MaxRate: uint32(cmd.Int("max-rate")),
				Accel:   uint32(cmd.Int("accel")),
				Decel:   uint32(decel),
			})
		}),
	}
}

func angleCommand() *cli.Command {
	return &cli.Command{
		Name:  "angle",
		Usage: "Move a servo to an absolute position",
		Flags: []cli.Flag{
			oidFlag(),
			delayFlag(),
			&cli.IntFlag{Name: "target", Usage: "Target position (counts)", Required: true},
			&cli.IntFlag{Name: "rate", Usage: "Cruise rate (counts/s)", Value: 1000},
			&cli.BoolFlag{Name: "continue", Usage: "Keep running at the cruise rate past the target"},
		},
		Action: withMCU(func(ctx context.Context, cmd *cli.Command, m *mcu.MCU) error {
			clock, err := startClock(cmd, m)
			if err != nil {
				return err
			}
			oid := uint8(cmd.Int("oid"))
			scheduled, err := m.Angle(protocol.AngleRequest{
				OID:      oid,
				Clock:    clock,
				Target:   int32(cmd.Int("target")),
				Rate:     int32(cmd.Int("rate")),
				Continue: cmd.Bool("continue"),
			})
			if err != nil {
				return err
			}
			reportScheduled(oid, scheduled)
			return nil
		}),
	}
}

func timeCommand() *cli.Command {
	return &cli.Command{
		Name:  "time",
		Usage: "Run a servo at a rate for a duration",
		Flags: []cli.Flag{
			oidFlag(),
			delayFlag(),
			&cli.DurationFlag{Name: "duration", Usage: "How long to run", Value: time.Second},
			&cli.IntFlag{Name: "rate", Usage: "Signed cruise rate (counts/s)", Value: 1000},
			&cli.BoolFlag{Name: "continue", Usage: "Keep running after the duration"},
		},
		Action: withMCU(func(ctx context.Context, cmd *cli.Command, m *mcu.MCU) error {
			clock, err := startClock(cmd, m)
			if err != nil {
				return err
			}
			oid := uint8(cmd.Int("oid"))
			scheduled, err := m.Time(protocol.TimeRequest{
				OID:        oid,
				Clock:      clock,
				DurationMs: uint32(cmd.Duration("duration") / time.Millisecond),
				Rate:       int32(cmd.Int("rate")),
				Continue:   cmd.Bool("continue"),
			})
			if err != nil {
				return err
			}
			reportScheduled(oid, scheduled)
			return nil
		}),
	}
}

func holdCommand() *cli.Command {
	return &cli.Command{
		Name:  "hold",
		Usage: "Hold a servo where it is",
		Flags: []cli.Flag{oidFlag(), delayFlag()},
		Action: withMCU(func(ctx context.Context, cmd *cli.Command, m *mcu.MCU) error {
			clock, err := startClock(cmd, m)
			if err != nil {
				return err
			}
			oid := uint8(cmd.Int("oid"))
			scheduled, err := m.Hold(oid, clock)
			if err != nil {
				return err
			}
			reportScheduled(oid, scheduled)
			return nil
		}),
	}
}

func stopCommand() *cli.Command {
	return &cli.Command{
		Name:  "stop",
		Usage: "Decelerate a servo to rest",
		Flags: []cli.Flag{oidFlag(), delayFlag()},
		Action: withMCU(func(ctx context.Context, cmd *cli.Command, m *mcu.MCU) error {
			clock, err := startClock(cmd, m)
			if err != nil {
				return err
			}
			oid := uint8(cmd.Int("oid"))
			scheduled, err := m.Stop(oid, clock)
			if err != nil {
				return err
			}
			reportScheduled(oid, scheduled)
			return nil
		}),
	}
}

func referenceCommand() *cli.Command {
	return &cli.Command{
		Name:  "reference",
		Usage: "Print the reference of a servo",
		Flags: []cli.Flag{
			oidFlag(),
			&cli.IntFlag{Name: "clock", Usage: "Firmware clock to sample at, 0 for now"},
		},
		Action: withMCU(func(ctx context.Context, cmd *cli.Command, m *mcu.MCU) error {
			ref, err := m.Reference(uint8(cmd.Int("oid")), uint32(cmd.Int("clock")))
			if err != nil {
				return err
			}
			printReferences(os.Stdout, []protocol.ReferenceReport{ref})
			return nil
		}),
	}
}

func trajectoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "trajectory",
		Usage: "Print the live trajectory of a servo",
		Flags: []cli.Flag{oidFlag()},
		Action: withMCU(func(ctx context.Context, cmd *cli.Command, m *mcu.MCU) error {
			tr, err := m.Trajectory(uint8(cmd.Int("oid")))
			if err != nil {
				return err
			}
			printTrajectory(os.Stdout, reportedTrajectory(tr))
			return nil
		}),
	}
}

func monitorCommand() *cli.Command {
	return &cli.Command{
		Name:    "monitor",
		Aliases: []string{"m"},
		Usage:   "Watch servo references live",
		Flags: []cli.Flag{
			&cli.IntSliceFlag{Name: "oid", Usage: "Servos to watch (default 0)"},
			&cli.DurationFlag{Name: "interval", Usage: "Poll interval", Value: 100 * time.Millisecond},
		},
		Action: withMCU(func(ctx context.Context, cmd *cli.Command, m *mcu.MCU) error {
			var oids []uint8
			for _, oid := range cmd.IntSlice("oid") {
				oids = append(oids, uint8(oid))
			}
			if len(oids) == 0 {
				oids = []uint8{0}
			}
			return runMonitor(m, oids, cmd.Duration("interval"))
		}),
	}
}
