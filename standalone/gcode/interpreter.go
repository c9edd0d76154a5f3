package gcode

import (
	"errors"
	"strconv"

	"motionhub/standalone/config"
	"motionhub/standalone/planner"
)

var (
	ErrBusy            = errors.New("machine is moving")
	ErrPositionUnknown = errors.New("position unknown until motion ends")
	ErrNoDuration      = errors.New("G4 needs P")
	ErrNoCommand       = errors.New("parameters without a command")
)

// UnsupportedError reports a command the interpreter does not implement.
type UnsupportedError struct {
	Type   byte
	Number int
}

func (e *UnsupportedError) Error() string {
	return "unsupported command " + string(e.Type) + strconv.Itoa(e.Number)
}

// Planner is the motion side of the interpreter.
type Planner interface {
	Queue(m planner.Move) error
	Positions(now uint32) map[string]float64
	SetPosition(now uint32, pos map[string]float64) error
	HoldAll(now uint32) error
	StopAll(now uint32) error
	Busy() bool
}

// State is the modal state of the interpreter.
type State struct {
	AbsoluteMode bool
	FeedRate     float64 // units/s, zero for each axis default

	// Position is the commanded end position. It is stale after a timed
	// run or a stop until the planner is idle again.
	Position map[string]float64
	Stale    bool
}

// Interpreter executes G-code commands
type Interpreter struct {
	state   *State
	axes    []string
	planner Planner
}

// NewInterpreter creates a new G-code interpreter
func NewInterpreter(cfg *config.MachineConfig, p Planner, now uint32) *Interpreter {
	return &Interpreter{
		state: &State{
			AbsoluteMode: true,
			Position:     p.Positions(now),
		},
		axes:    cfg.AxisNames(),
		planner: p,
	}
}

// Execute runs cmd and returns any text to report before "ok".
func (interp *Interpreter) Execute(cmd *Command, now uint32) (string, error) {
	if cmd == nil {
		return "", nil
	}

	switch cmd.Type {
	case 0:
		if len(cmd.Parameters) == 0 {
			return "", nil
		}
		return "", ErrNoCommand
	case 'G':
		return "", interp.executeG(cmd, now)
	case 'M':
		return interp.executeM(cmd, now)
	}
	return "", &UnsupportedError{Type: cmd.Type, Number: cmd.Number}
}

// executeG handles G-codes
func (interp *Interpreter) executeG(cmd *Command, now uint32) error {
	switch cmd.Number {
	case 0, 1: // G0/G1 - Synchronized move
		return interp.doMove(cmd, now)
	case 4: // G4 - Dwell, or timed run on the listed axes
		return interp.doTimed(cmd)
	case 90: // G90 - Absolute positioning
		interp.state.AbsoluteMode = true
	case 91: // G91 - Relative positioning
		interp.state.AbsoluteMode = false
	case 92: // G92 - Set position
		return interp.doSetPosition(cmd, now)
	default:
		return &UnsupportedError{Type: 'G', Number: cmd.Number}
	}
	return nil
}

// executeM handles M-codes
func (interp *Interpreter) executeM(cmd *Command, now uint32) (string, error) {
	switch cmd.Number {
	case 0: // M0 - Hold every axis where it is
		interp.state.Stale = true
		return "", interp.planner.HoldAll(now)
	case 18: // M18 - Brake every axis to rest
		interp.state.Stale = true
		return "", interp.planner.StopAll(now)
	case 114: // M114 - Report reference positions
		return interp.report(now), nil
	}
	return "", &UnsupportedError{Type: 'M', Number: cmd.Number}
}

// axisParams returns the axis letters present in cmd.
func (interp *Interpreter) axisParams(cmd *Command) map[string]float64 {
	params := map[string]float64{}
	for _, name := range interp.axes {
		if v, ok := cmd.Parameters[name[0]]; ok {
			params[name] = v
		}
	}
	return params
}

// sync refreshes the commanded position after motion that did not end
// where it was commanded.
func (interp *Interpreter) sync(now uint32) error {
	if !interp.state.Stale {
		return nil
	}
	if interp.planner.Busy() {
		return ErrPositionUnknown
	}
	interp.state.Position = interp.planner.Positions(now)
	interp.state.Stale = false
	return nil
}

// doMove queues a synchronized move (G0/G1)
func (interp *Interpreter) doMove(cmd *Command, now uint32) error {
	if cmd.HasParameter('F') {
		interp.state.FeedRate = cmd.GetParameter('F', 0) / 60.0 // Convert units/min to units/s
	}

	params := interp.axisParams(cmd)
	if len(params) == 0 {
		return nil
	}
	if err := interp.sync(now); err != nil {
		return err
	}

	targets := make(map[string]float64, len(params))
	for name, v := range params {
		if interp.state.AbsoluteMode {
			targets[name] = v
		} else {
			targets[name] = interp.state.Position[name] + v
		}
	}

	err := interp.planner.Queue(planner.Move{Kind: planner.MoveTo, Targets: targets, Rate: interp.state.FeedRate})
	if err != nil {
		return err
	}
	for name, v := range targets {
		interp.state.Position[name] = v
	}
	return nil
}

// doTimed handles G4. With axis letters it runs those axes for P ms, each
// at its own value or at S; without, it pauses the queue.
func (interp *Interpreter) doTimed(cmd *Command) error {
	if !cmd.HasParameter('P') {
		return ErrNoDuration
	}
	ms := cmd.GetParameter('P', 0)
	if ms < 0 {
		return ErrNoDuration
	}
	move := planner.Move{Kind: planner.Dwell, DurationMs: uint32(ms)}

	params := interp.axisParams(cmd)
	if len(params) > 0 {
		rate := cmd.GetParameter('S', 0)
		for name, v := range params {
			if v == 0 {
				params[name] = rate
			}
		}
		move.Kind, move.Targets = planner.RunFor, params
	}

	if err := interp.planner.Queue(move); err != nil {
		return err
	}
	if move.Kind == planner.RunFor {
		interp.state.Stale = true
	}
	return nil
}

// doSetPosition sets the current position (G92). Without axis letters
// every axis is zeroed.
func (interp *Interpreter) doSetPosition(cmd *Command, now uint32) error {
	if interp.planner.Busy() {
		return ErrBusy
	}
	params := interp.axisParams(cmd)
	if len(params) == 0 {
		for _, name := range interp.axes {
			params[name] = 0
		}
	}
	if err := interp.planner.SetPosition(now, params); err != nil {
		return err
	}
	interp.state.Position = interp.planner.Positions(now)
	interp.state.Stale = false
	return nil
}

func (interp *Interpreter) report(now uint32) string {
	pos := interp.planner.Positions(now)
	out := make([]byte, 0, 64)
	for i, name := range interp.axes {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, name...)
		out = append(out, ':')
		out = strconv.AppendFloat(out, pos[name], 'f', 3, 64)
	}
	return string(out)
}

// GetState returns the current interpreter state
func (interp *Interpreter) GetState() *State {
	return interp.state
}
