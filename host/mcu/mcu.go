// Package mcu is the host side client of the motionhub firmware. It reads
// the data dictionary and drives servos through the message protocol.
package mcu

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"motionhub/host/serial"
	"motionhub/protocol"
)

var (
	ErrNotConnected   = errors.New("not connected to MCU")
	ErrUnknownMessage = errors.New("message not in dictionary")
	ErrOffsetMismatch = errors.New("identify offset mismatch")
)

// DefaultTimeout bounds every request/response exchange.
const DefaultTimeout = time.Second

// identifyChunk is the dictionary chunk size asked for per identify.
const identifyChunk = 40

// Dictionary is the parsed firmware data dictionary.
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// MCU is a connection to one motionhub firmware.
type MCU struct {
	transport *protocol.HostTransport
	logger    *slog.Logger

	// Timeout bounds each exchange. Zero means DefaultTimeout.
	Timeout time.Duration

	dictionary     *Dictionary
	dictionaryData []byte

	ids   map[string]uint16
	names map[uint16]string

	// serializes exchanges so responses are matched to their request
	exchange sync.Mutex

	handlerMu sync.Mutex
	doneID    uint16
	onDone    func(protocol.DoneReport)
}

// NewMCU creates an unconnected client. Until a dictionary is read, message
// IDs come from protocol.Messages.
func NewMCU(logger *slog.Logger) *MCU {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MCU{logger: logger}
	m.ids = make(map[string]uint16, len(protocol.Messages))
	m.names = make(map[uint16]string, len(protocol.Messages))
	for _, def := range protocol.Messages {
		id, _ := protocol.MessageID(def.Name)
		m.ids[def.Name] = id
		m.names[id] = def.Name
	}
	m.doneID = m.ids["servo_done"]
	return m
}

// Connect opens device with the default serial configuration.
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig opens and locks a serial port.
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	m.Attach(port)
	m.logger.Info("connected", "device", cfg.Device, "baud", cfg.Baud)
	return nil
}

// Attach runs the client over an already open stream.
func (m *MCU) Attach(port io.ReadWriteCloser) {
	m.transport = protocol.NewHostTransport(port)
	m.transport.SetLogger(m.logger)
	m.transport.SetResponseHandler(m.handleResponse)
}

// Close closes the connection.
func (m *MCU) Close() error {
	if m.transport == nil {
		return nil
	}
	err := m.transport.Close()
	m.transport = nil
	return err
}

// IsConnected reports whether a transport is attached.
func (m *MCU) IsConnected() bool {
	return m.transport != nil
}

func (m *MCU) timeout() time.Duration {
	if m.Timeout > 0 {
		return m.Timeout
	}
	return DefaultTimeout
}

// RetrieveDictionary reads the dictionary in identify chunks and switches
// message IDs to the ones it lists. Zlib wrapped dictionaries are inflated.
func (m *MCU) RetrieveDictionary() error {
	if m.transport == nil {
		return ErrNotConnected
	}

	var buf bytes.Buffer
	for offset := uint32(0); ; {
		chunk, err := m.identify(offset, identifyChunk)
		if err != nil {
			return errors.Wrapf(err, "dictionary chunk at %d", offset)
		}
		buf.Write(chunk)
		offset += uint32(len(chunk))
		if len(chunk) < identifyChunk {
			break
		}
	}
	m.logger.Debug("dictionary retrieved", "bytes", buf.Len())

	data, err := inflate(buf.Bytes())
	if err != nil {
		return err
	}
	dict := &Dictionary{}
	if err := json.Unmarshal(data, dict); err != nil {
		return errors.Wrap(err, "parse dictionary")
	}

	m.dictionaryData = data
	m.dictionary = dict
	m.ids = make(map[string]uint16, len(dict.Commands)+len(dict.Responses))
	m.names = make(map[uint16]string, len(m.ids))
	for _, table := range []map[string]int{dict.Commands, dict.Responses} {
		for signature, id := range table {
			name := messageName(signature)
			m.ids[name] = uint16(id)
			m.names[uint16(id)] = name
		}
	}
	m.handlerMu.Lock()
	m.doneID = m.ids["servo_done"]
	m.handlerMu.Unlock()
	m.logger.Info("dictionary loaded", "version", dict.Version,
		"commands", len(dict.Commands), "responses", len(dict.Responses))
	return nil
}

// inflate returns data as is unless it carries a zlib header.
func inflate(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x78 {
		return data, nil
	}
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "open compressed dictionary")
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "inflate dictionary")
	}
	return out, nil
}

// messageName is the first word of a dictionary signature.
func messageName(signature string) string {
	if i := strings.IndexByte(signature, ' '); i >= 0 {
		return signature[:i]
	}
	return signature
}

func (m *MCU) identify(offset uint32, count uint8) ([]byte, error) {
	data, err := m.request("identify", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, offset)
		protocol.EncodeVLQUint(out, uint32(count))
	}, noOID, "identify_response")
	if err != nil {
		return nil, err
	}
	got, err := protocol.DecodeVLQUint(&data.payload)
	if err != nil {
		return nil, errors.Wrap(err, "decode identify offset")
	}
	if got != offset {
		return nil, errors.Wrapf(ErrOffsetMismatch, "asked %d, got %d", offset, got)
	}
	chunk, err := protocol.DecodeVLQBytes(&data.payload)
	return chunk, errors.Wrap(err, "decode identify data")
}

// Dictionary returns the parsed dictionary, or nil before RetrieveDictionary.
func (m *MCU) Dictionary() *Dictionary {
	return m.dictionary
}

// DictionaryRaw returns the dictionary JSON.
func (m *MCU) DictionaryRaw() []byte {
	return m.dictionaryData
}

// Constant returns a firmware constant from the dictionary.
func (m *MCU) Constant(name string) (string, bool) {
	if m.dictionary == nil {
		return "", false
	}
	v, ok := m.dictionary.Config[name]
	return v, ok
}

// Send sends a named command and waits for its ACK only.
func (m *MCU) Send(name string, args func(output protocol.OutputBuffer)) error {
	if m.transport == nil {
		return ErrNotConnected
	}
	id, ok := m.ids[name]
	if !ok {
		return errors.Wrap(ErrUnknownMessage, name)
	}
	return errors.Wrap(m.transport.SendCommand(id, args), name)
}

// SetDoneHandler sets a callback for servo_done. It runs on the reader
// goroutine.
func (m *MCU) SetDoneHandler(fn func(protocol.DoneReport)) {
	m.handlerMu.Lock()
	m.onDone = fn
	m.handlerMu.Unlock()
}

func (m *MCU) handleResponse(id uint16, data *[]byte) error {
	m.handlerMu.Lock()
	fn, doneID := m.onDone, m.doneID
	m.handlerMu.Unlock()
	if id != doneID || fn == nil {
		return nil
	}
	var done protocol.DoneReport
	payload := append([]byte(nil), *data...)
	if err := done.Decode(&payload); err != nil {
		return err
	}
	fn(done)
	return nil
}

const noOID = -1

type response struct {
	name    string
	payload []byte
}

// request sends a command and waits for the first response named in want.
// When oid is not noOID the response must also carry that oid. Unrelated
// responses are skipped.
func (m *MCU) request(name string, args func(output protocol.OutputBuffer), oid int, want ...string) (response, error) {
	m.exchange.Lock()
	defer m.exchange.Unlock()

	if err := m.Send(name, args); err != nil {
		return response{}, err
	}
	return m.await(oid, want...)
}

// await waits for a response named in want. The caller holds m.exchange.
func (m *MCU) await(oid int, want ...string) (response, error) {
	deadline := time.Now().Add(m.timeout())
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return response{}, errors.Wrapf(protocol.ErrTimeout, "waiting for %s", strings.Join(want, "/"))
		}
		msg, err := m.transport.ReceiveResponse(remaining)
		if err != nil {
			return response{}, errors.Wrapf(err, "waiting for %s", strings.Join(want, "/"))
		}
		id, payload, err := msg.ID()
		if err != nil {
			continue
		}
		got := m.names[id]
		if !contains(want, got) || !matchOID(payload, oid) {
			m.logger.Debug("skipping response", "name", got, "id", id)
			continue
		}
		return response{name: got, payload: payload}, nil
	}
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func matchOID(payload []byte, oid int) bool {
	if oid == noOID {
		return true
	}
	got, err := protocol.DecodeVLQUint(&payload)
	return err == nil && int(got) == oid
}

// Clock returns the firmware clock.
func (m *MCU) Clock() (uint32, error) {
	resp, err := m.request("get_clock", nil, noOID, "clock")
	if err != nil {
		return 0, err
	}
	clock, err := protocol.DecodeVLQUint(&resp.payload)
	return clock, errors.Wrap(err, "decode clock")
}

// Uptime returns the firmware's 64-bit tick count.
func (m *MCU) Uptime() (uint64, error) {
	resp, err := m.request("get_uptime", nil, noOID, "uptime")
	if err != nil {
		return 0, err
	}
	a := protocol.NewArgs(&resp.payload)
	high, low := a.Uint(), a.Uint()
	return uint64(high)<<32 | uint64(low), errors.Wrap(a.Err(), "decode uptime")
}

// EmergencyStop halts every servo. The firmware refuses motion afterwards
// until reset.
func (m *MCU) EmergencyStop() error {
	return m.Send("emergency_stop", nil)
}

// Reset asks the firmware to restart its state.
func (m *MCU) Reset() error {
	return m.Send("reset", nil)
}
