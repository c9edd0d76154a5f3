package standalone

import (
	"strings"
	"testing"

	"motionhub/core"
)

const testConfig = `{"axes": {"X": {"oid": 0, "counts_per_unit": 10, "max_rate": 100, "accel": 1000}}}`

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	core.SetActuatorFactory(nil)
	core.ResetServos()
	core.ResetFirmwareState()
	core.SetTime(1000)
	core.TimerInit()
	t.Cleanup(func() {
		core.ResetServos()
		core.ResetFirmwareState()
	})

	m, err := NewManager([]byte(testConfig))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	if out := string(m.GetOutput()); !strings.HasSuffix(out, "standalone ready\n") {
		t.Fatalf("banner = %q", out)
	}
	return m
}

func send(m *Manager, text string) string {
	m.Write([]byte(text))
	return string(m.GetOutput())
}

// runFor advances the firmware clock in 1 ms steps, polling the manager.
func runFor(m *Manager, us uint32) {
	for ; us >= 1000; us -= 1000 {
		core.SetTime(core.GetTime() + 1000)
		core.ProcessTimers()
		m.Poll()
	}
}

func TestManagerResponses(t *testing.T) {
	m := newTestManager(t)

	tests := []struct {
		input string
		want  string
	}{
		{"M114\n", "X:0.000\nok\n"},
		{"  G1 X5 F600 \r\n", "ok\n"},
		{"; just a comment\n", "ok\n"},
		{"G28\n", "Error: unsupported command G28\n"},
		{"G1 X#\n", "Error: unexpected character # in \"G1 X#\"\n"},
		{"\n\n", ""},
	}
	for _, tt := range tests {
		if got := send(m, tt.input); got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestManagerRunsQueuedMoves(t *testing.T) {
	m := newTestManager(t)

	if got := send(m, "G1 X5 F600\nG4 P100\nG1 X2\n"); got != "ok\nok\nok\n" {
		t.Fatalf("responses = %q", got)
	}
	if m.Planner().QueueLen() != 3 {
		t.Fatalf("queue length = %d", m.Planner().QueueLen())
	}

	runFor(m, 3000000)
	if got := send(m, "M114\n"); got != "X:2.000\nok\n" {
		t.Errorf("M114 after moves = %q", got)
	}
	if m.Planner().Busy() {
		t.Error("planner still busy")
	}
}

func TestManagerLineTooLong(t *testing.T) {
	m := newTestManager(t)

	long := "G1 X" + strings.Repeat("1", MaxLineLength) + "\n"
	if got := send(m, long); got != "Error: line too long\n" {
		t.Errorf("long line = %q", got)
	}
	if got := send(m, "M114\n"); got != "X:0.000\nok\n" {
		t.Errorf("line after overflow = %q", got)
	}
}

func TestManagerEmergencyStop(t *testing.T) {
	m := newTestManager(t)
	send(m, "G1 X5\n")
	runFor(m, 100000)

	m.EmergencyStop()
	if !core.IsShutdown() || m.IsRunning() || m.Planner().Busy() {
		t.Errorf("shutdown=%v running=%v busy=%v", core.IsShutdown(), m.IsRunning(), m.Planner().Busy())
	}
	if got := string(m.GetOutput()); got != "Error: emergency stop\n" {
		t.Errorf("output = %q", got)
	}
}

func TestManagerNotInitialized(t *testing.T) {
	m, err := NewManager([]byte(testConfig))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.ProcessLine("M114"); err != errNotInitialized {
		t.Errorf("ProcessLine = %v", err)
	}
	if err := m.Start(); err != errNotInitialized {
		t.Errorf("Start = %v", err)
	}
}
