package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"motionhub/host/mcu"
	"motionhub/protocol"
)

// maxDoneLines is how many servo_done events the monitor keeps on screen.
const maxDoneLines = 5

// referenceSource is the part of the MCU the monitor polls.
type referenceSource interface {
	Reference(oid uint8, clock uint32) (protocol.ReferenceReport, error)
}

type referencesMsg struct {
	refs []protocol.ReferenceReport
	err  error
}

type doneMsg protocol.DoneReport

type monitorModel struct {
	source   referenceSource
	oids     []uint8
	interval time.Duration

	refs []protocol.ReferenceReport
	done []string
	err  error
}

func newMonitorModel(source referenceSource, oids []uint8, interval time.Duration) monitorModel {
	return monitorModel{source: source, oids: oids, interval: interval}
}

// poll samples every watched servo after one interval.
func (m monitorModel) poll() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		var msg referencesMsg
		for _, oid := range m.oids {
			ref, err := m.source.Reference(oid, 0)
			if err != nil {
				msg.err = err
				continue
			}
			msg.refs = append(msg.refs, ref)
		}
		return msg
	})
}

func (m monitorModel) Init() tea.Cmd {
	return m.poll()
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	case referencesMsg:
		m.refs, m.err = msg.refs, msg.err
		return m, m.poll()
	case doneMsg:
		line := fmt.Sprintf("servo %d done at clock %d, count %d", msg.OID, msg.Clock, msg.Count)
		m.done = append(m.done, line)
		if len(m.done) > maxDoneLines {
			m.done = m.done[len(m.done)-maxDoneLines:]
		}
	}
	return m, nil
}

func (m monitorModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("motionhub monitor"))
	b.WriteString("\n")
	b.WriteString(referenceTable(m.refs).Render())
	b.WriteString("\n")
	for _, line := range m.done {
		b.WriteString(line + "\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString("q to quit\n")
	return docStyle.Render(b.String())
}

func runMonitor(client *mcu.MCU, oids []uint8, interval time.Duration) error {
	p := tea.NewProgram(newMonitorModel(client, oids, interval), tea.WithAltScreen())
	client.SetDoneHandler(func(d protocol.DoneReport) { p.Send(doneMsg(d)) })
	defer client.SetDoneHandler(nil)
	_, err := p.Run()
	return err
}
