package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"motionhub/host/mcu"
	"motionhub/protocol"
	"motionhub/trajectory"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	docStyle    = lipgloss.NewStyle().Margin(1, 2)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func printDictionary(w io.Writer, dict *mcu.Dictionary) {
	fmt.Fprintln(w, titleStyle.Render("motionhub "+dict.Version+" ("+dict.BuildVersions+")"))

	config := newTable("constant", "value")
	for _, name := range sortedKeys(dict.Config) {
		config.Row(name, dict.Config[name])
	}
	fmt.Fprintln(w, config.Render())

	messages := newTable("id", "message", "kind")
	type entry struct {
		id        int
		signature string
		kind      string
	}
	var entries []entry
	for sig, id := range dict.Commands {
		entries = append(entries, entry{id, sig, "command"})
	}
	for sig, id := range dict.Responses {
		entries = append(entries, entry{id, sig, "response"})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	for _, e := range entries {
		messages.Row(strconv.Itoa(e.id), e.signature, e.kind)
	}
	fmt.Fprintln(w, messages.Render())
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatPosition prints a position in counts with three decimals.
func formatPosition(p trajectory.Position) string {
	milli := p.Milli()
	sign := ""
	if milli < 0 {
		sign = "-"
		milli = -milli
	}
	return fmt.Sprintf("%s%d.%03d", sign, milli/1000, milli%1000)
}

func referenceRows(refs []protocol.ReferenceReport) [][]string {
	rows := make([][]string, 0, len(refs))
	for _, r := range refs {
		pos := trajectory.Position{Count: r.Count, Ext: int32(r.Ext)}
		rows = append(rows, []string{
			strconv.Itoa(int(r.OID)),
			strconv.FormatUint(uint64(r.Clock), 10),
			formatPosition(pos),
			strconv.Itoa(int(r.Rate)),
			strconv.Itoa(int(r.Accel)),
		})
	}
	return rows
}

func referenceTable(refs []protocol.ReferenceReport) *table.Table {
	return newTable("oid", "clock", "position", "rate", "accel").Rows(referenceRows(refs)...)
}

func printReferences(w io.Writer, refs []protocol.ReferenceReport) {
	fmt.Fprintln(w, referenceTable(refs).Render())
}

// phaseRows lists the in, cruise and out phases of tr with their boundary
// times relative to T0.
func phaseRows(tr trajectory.Trajectory) [][]string {
	type phase struct {
		name       string
		from, to   int32
		start, end trajectory.Position
		rate       string
		accel      int32
	}
	phases := []phase{
		{"in", tr.T0, tr.T1, tr.Th0, tr.Th1, fmt.Sprintf("%d -> %d", tr.W0, tr.W1), tr.A0},
		{"cruise", tr.T1, tr.T2, tr.Th1, tr.Th2, strconv.Itoa(int(tr.W1)), 0},
		{"out", tr.T2, tr.T3, tr.Th2, tr.Th3, fmt.Sprintf("%d -> %d", tr.W1, tr.W3), tr.A2},
	}
	rows := make([][]string, 0, len(phases))
	for _, p := range phases {
		rows = append(rows, []string{
			p.name,
			strconv.Itoa(int(p.from - tr.T0)),
			strconv.Itoa(int(p.to - tr.T0)),
			formatPosition(p.start),
			formatPosition(p.end),
			p.rate,
			strconv.Itoa(int(p.accel)),
		})
	}
	return rows
}

func printTrajectory(w io.Writer, tr trajectory.Trajectory) {
	t := newTable("phase", "from us", "to us", "start", "end", "rate", "accel").Rows(phaseRows(tr)...)
	fmt.Fprintln(w, t.Render())
	if tr.Continuing() {
		fmt.Fprintf(w, "keeps running at %d counts/s\n", tr.W3)
	}
}

// reportedTrajectory rebuilds a Trajectory from the firmware's reports.
func reportedTrajectory(r mcu.Trajectory) trajectory.Trajectory {
	tr := trajectory.Trajectory{
		T0: int32(r.T0), T1: int32(r.T1), T2: int32(r.T2), T3: int32(r.T3),
		W0: r.W0, W1: r.W1, W3: r.W3,
		A0: r.A0, A2: r.A2,
	}
	bounds := []*trajectory.Position{&tr.Th0, &tr.Th1, &tr.Th2, &tr.Th3}
	for i, p := range bounds {
		*p = trajectory.Position{Count: r.Positions.Count[i], Ext: int32(r.Positions.Ext[i])}
	}
	return tr
}
