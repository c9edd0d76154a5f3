package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"motionhub/trajectory"
)

var errSamples = errors.New("samples must be at least 2")

// planRequest is an offline move, in the firmware's units.
type planRequest struct {
	Start      int32
	StartRate  int32
	Target     int32
	DurationMs int32 // a timed run when non-zero
	Rate       int32
	MaxRate    int32
	Accel      int32
	Decel      int32
	Continue   bool
}

func (r planRequest) command() trajectory.Command {
	c := trajectory.Command{
		Start:           trajectory.Counts(r.Start),
		StartRate:       r.StartRate,
		TargetRate:      r.Rate,
		MaxRate:         r.MaxRate,
		Accel:           r.Accel,
		Decel:           r.Decel,
		ContinueRunning: r.Continue,
	}
	if r.DurationMs != 0 {
		c.Target = trajectory.DurationTarget{Ms: r.DurationMs}
	} else {
		c.Target = trajectory.AngleTarget{Position: trajectory.Counts(r.Target)}
	}
	return c
}

// sampleRows samples tr at n evenly spaced times from T0 to T3.
func sampleRows(tr trajectory.Trajectory, n int) [][]string {
	rows := make([][]string, 0, n)
	span := int64(tr.Duration())
	for i := 0; i < n; i++ {
		t := tr.T0 + int32(span*int64(i)/int64(n-1))
		ref := tr.Reference(t)
		rows = append(rows, []string{
			strconv.Itoa(int(t - tr.T0)),
			formatPosition(ref.Position),
			strconv.Itoa(int(ref.Rate)),
			strconv.Itoa(int(ref.Acceleration)),
		})
	}
	return rows
}

func runPlan(w io.Writer, req planRequest, samples int) error {
	if samples != 0 && samples < 2 {
		return errSamples
	}
	tr, err := trajectory.CalculateNew(req.command())
	if err != nil {
		return errors.Wrap(err, "plan")
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d us", tr.Duration())))
	printTrajectory(w, tr)
	if samples > 0 {
		t := newTable("t us", "position", "rate", "accel").Rows(sampleRows(tr, samples)...)
		fmt.Fprintln(w, t.Render())
	}
	return nil
}

func planCommand() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Solve a profile offline and print its phases",
		Flags: []cli.Flag{
			&cli.IntFlag{Category: "Move", Name: "start", Usage: "Start position (counts)"},
			&cli.IntFlag{Category: "Move", Name: "start-rate", Usage: "Rate at the start (counts/s)"},
			&cli.IntFlag{Category: "Move", Name: "target", Usage: "Target position (counts)"},
			&cli.DurationFlag{Category: "Move", Name: "duration", Usage: "Plan a timed run of this length instead of a move to target"},
			&cli.IntFlag{Category: "Move", Name: "rate", Usage: "Cruise rate (counts/s)", Value: 1000},
			&cli.BoolFlag{Category: "Move", Name: "continue", Usage: "Keep running at the cruise rate"},
			&cli.IntFlag{Category: "Limits", Name: "max-rate", Usage: "Rate limit (counts/s)", Value: trajectory.RateMax},
			&cli.IntFlag{Category: "Limits", Name: "accel", Usage: "Acceleration (counts/s^2)", Value: 2000},
			&cli.IntFlag{Category: "Limits", Name: "decel", Usage: "Deceleration (counts/s^2), defaults to accel"},
			&cli.IntFlag{Name: "samples", Usage: "Also print this many reference samples"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			decel := cmd.Int("decel")
			if decel == 0 {
				decel = cmd.Int("accel")
			}
			req := planRequest{
				Start:      int32(cmd.Int("start")),
				StartRate:  int32(cmd.Int("start-rate")),
				Target:     int32(cmd.Int("target")),
				DurationMs: int32(cmd.Duration("duration").Milliseconds()),
				Rate:       int32(cmd.Int("rate")),
				MaxRate:    int32(cmd.Int("max-rate")),
				Accel:      int32(cmd.Int("accel")),
				Decel:      int32(decel),
				Continue:   cmd.Bool("continue"),
			}
			return runPlan(os.Stdout, req, int(cmd.Int("samples")))
		},
	}
}
