package standalone

import (
	"errors"

	"motionhub/core"
	"motionhub/protocol"
	"motionhub/standalone/config"
	"motionhub/standalone/gcode"
	"motionhub/standalone/kinematics"
	"motionhub/standalone/planner"
)

// MaxLineLength bounds a buffered G-code line.
const MaxLineLength = 256

var (
	errNotInitialized = errors.New("manager not initialized")
	errInitialized    = errors.New("already initialized")
	errLineTooLong    = errors.New("line too long")
	errEmergencyStop  = errors.New("emergency stop")
)

// Manager coordinates all standalone mode components
type Manager struct {
	config      *config.MachineConfig
	parser      *gcode.Parser
	interpreter *gcode.Interpreter
	planner     *planner.Planner

	// Serial interface
	inputBuffer  []byte
	overflow     bool
	outputBuffer []byte

	// Status
	initialized bool
	running     bool
}

// NewManager creates a new standalone mode manager
func NewManager(configData []byte) (*Manager, error) {
	cfg, err := config.LoadConfig(configData)
	if err != nil {
		return nil, err
	}

	return NewManagerWithConfig(cfg)
}

// NewManagerWithConfig creates a manager with an existing config
func NewManagerWithConfig(cfg *config.MachineConfig) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		config:       cfg,
		parser:       gcode.NewParser(),
		inputBuffer:  make([]byte, 0, MaxLineLength),
		outputBuffer: make([]byte, 0, 256),
	}, nil
}

// Initialize creates a servo for every axis. The target's actuator factory
// must be installed first.
func (m *Manager) Initialize() error {
	if m.initialized {
		return errInitialized
	}

	kin, err := kinematics.New(m.config)
	if err != nil {
		return err
	}
	m.planner, err = planner.NewPlanner(m.config, kin)
	if err != nil {
		return err
	}
	m.interpreter = gcode.NewInterpreter(m.config, m.planner, core.GetTime())

	m.initialized = true
	return nil
}

// ProcessLine parses and executes one line of G-code. Any report text is
// queued before the caller's "ok".
func (m *Manager) ProcessLine(line string) error {
	if !m.initialized {
		return errNotInitialized
	}

	cmd, err := m.parser.ParseLine(line)
	if err != nil {
		return err
	}
	reply, err := m.interpreter.Execute(cmd, core.GetTime())
	if err != nil {
		return err
	}
	if reply != "" {
		m.SendResponse(reply + "\n")
	}
	return nil
}

// ProcessByte buffers serial input and runs each complete line, answering
// "ok" or "Error: ..." for it.
func (m *Manager) ProcessByte(b byte) {
	if b != '\n' && b != '\r' {
		if len(m.inputBuffer) == MaxLineLength {
			m.overflow = true
			return
		}
		m.inputBuffer = append(m.inputBuffer, b)
		return
	}

	line := trimSpace(m.inputBuffer)
	overflow := m.overflow
	m.inputBuffer = m.inputBuffer[:0]
	m.overflow = false

	switch {
	case overflow:
		m.sendError(errLineTooLong)
	case len(line) > 0:
		if err := m.ProcessLine(string(line)); err != nil {
			m.sendError(err)
			return
		}
		m.SendResponse("ok\n")
	}
}

// Write feeds serial input to the manager.
func (m *Manager) Write(data []byte) (int, error) {
	for _, b := range data {
		m.ProcessByte(b)
	}
	return len(data), nil
}

// Poll advances the move queue. Call it from the main loop.
func (m *Manager) Poll() {
	if !m.running {
		return
	}
	if err := m.planner.Poll(core.GetTime()); err != nil {
		m.sendError(err)
	}
}

func (m *Manager) sendError(err error) {
	m.SendResponse("Error: " + err.Error() + "\n")
}

// SendResponse queues a response to be sent to the host
func (m *Manager) SendResponse(response string) {
	m.outputBuffer = append(m.outputBuffer, response...)
}

// GetOutput returns any pending output and clears the buffer
func (m *Manager) GetOutput() []byte {
	if len(m.outputBuffer) == 0 {
		return nil
	}

	output := make([]byte, len(m.outputBuffer))
	copy(output, m.outputBuffer)
	m.outputBuffer = m.outputBuffer[:0]
	return output
}

// Start begins standalone operation
func (m *Manager) Start() error {
	if !m.initialized {
		return errNotInitialized
	}

	m.running = true
	m.SendResponse(protocol.Version + " standalone ready\n")
	return nil
}

// Stop halts queue processing and brakes every axis.
func (m *Manager) Stop() {
	m.running = false
	if m.planner != nil {
		_ = m.planner.StopAll(core.GetTime())
	}
}

// IsRunning returns whether the manager is running
func (m *Manager) IsRunning() bool {
	return m.running
}

// GetState returns the interpreter state
func (m *Manager) GetState() *gcode.State {
	if m.interpreter != nil {
		return m.interpreter.GetState()
	}
	return nil
}

// Planner returns the move planner, nil before Initialize.
func (m *Manager) Planner() *planner.Planner {
	return m.planner
}

// EmergencyStop halts every servo at once and refuses further motion.
func (m *Manager) EmergencyStop() {
	m.running = false
	if m.planner != nil {
		m.planner.ClearQueue()
	}
	core.TryShutdown()
	m.sendError(errEmergencyStop)
}

func trimSpace(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}
