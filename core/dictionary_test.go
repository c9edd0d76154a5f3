package core

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"
	"testing"

	"motionhub/protocol"
)

type dictionaryJSON struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations"`
}

func parseDictionary(t *testing.T, raw []byte) dictionaryJSON {
	t.Helper()
	var d dictionaryJSON
	if err := json.Unmarshal(raw, &d); err != nil {
		t.Fatalf("dictionary is not valid JSON: %v\n%s", err, raw)
	}
	return d
}

func TestDictionaryJSON(t *testing.T) {
	registry := NewCommandRegistry()
	registry.RegisterTable(protocol.Messages, nil)
	dict := NewDictionary(registry)
	dict.AddConstant("CLOCK_FREQ", uint32(1000000))
	dict.AddConstant("MCU", `rp2040 "test"`)
	dict.AddConstant("OFFSET", int32(-5))
	dict.AddEnumeration("pin", []string{"gpio0", "", "gpio2"})

	d := parseDictionary(t, dict.Generate())
	if d.Version != protocol.Version {
		t.Errorf("version = %q", d.Version)
	}
	if d.Config["CLOCK_FREQ"] != "1000000" || d.Config["MCU"] != `rp2040 "test"` || d.Config["OFFSET"] != "-5" {
		t.Errorf("config = %v", d.Config)
	}
	if got := d.Commands["trajectory_angle oid=%c clock=%u target=%i rate=%i continue=%c"]; got != int(mustID(t, "trajectory_angle")) {
		t.Errorf("trajectory_angle id = %d", got)
	}
	if got, ok := d.Commands["get_clock"]; !ok || got != int(mustID(t, "get_clock")) {
		t.Errorf("get_clock id = %d, %v", got, ok)
	}
	if got := d.Responses["servo_done oid=%c clock=%u count=%i"]; got != int(mustID(t, "servo_done")) {
		t.Errorf("servo_done id = %d", got)
	}
	if len(d.Commands)+len(d.Responses) != len(protocol.Messages) {
		t.Errorf("%d commands and %d responses for %d messages", len(d.Commands), len(d.Responses), len(protocol.Messages))
	}
	pins := d.Enumerations["pin"]
	if len(pins) != 2 || pins["gpio0"] != 0 || pins["gpio2"] != 2 {
		t.Errorf("pin enumeration = %v", pins)
	}
}

func mustID(t *testing.T, name string) uint16 {
	t.Helper()
	id, ok := protocol.MessageID(name)
	if !ok {
		t.Fatalf("no message %q", name)
	}
	return id
}

func TestDictionaryChunks(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())
	dict.AddConstant("TEST", uint32(123))
	full := dict.Generate()

	var joined []byte
	for offset := uint32(0); offset < uint32(len(full)); offset += 40 {
		chunk := dict.GetChunk(offset, 40)
		if len(chunk) == 0 || len(chunk) > 40 {
			t.Fatalf("chunk at %d has %d bytes", offset, len(chunk))
		}
		joined = append(joined, chunk...)
	}
	if string(joined) != string(full) {
		t.Errorf("chunks do not reassemble the dictionary")
	}
	if len(dict.GetChunk(uint32(len(full)), 40)) != 0 {
		t.Error("chunk at end is not empty")
	}
	if len(dict.GetChunk(uint32(len(full)+100), 40)) != 0 {
		t.Error("chunk past end is not empty")
	}
}

func TestDictionaryCacheInvalidation(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())
	dict.BuildDictionary()
	before := string(dict.Generate())

	dict.AddConstant("LATE", "1")
	after := parseDictionary(t, dict.Generate())
	if after.Config["LATE"] != "1" {
		t.Errorf("constant added after build missing: %v (was %s)", after.Config, before)
	}
}

func TestDictionaryCompression(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())
	dict.AddConstant("SERVO_MAX", 16)
	plain := dict.Generate()

	dict.SetCompression(true)
	packed := dict.Generate()
	if len(packed) < 2 || packed[0] != 0x78 {
		t.Fatalf("compressed dictionary starts %q", packed[:2])
	}
	r, err := zlib.NewReader(bytes.NewReader(packed))
	if err != nil {
		t.Fatal(err)
	}
	inflated, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(inflated, plain) {
		t.Errorf("inflated dictionary differs:\n%s\n%s", inflated, plain)
	}
}

func TestAppendInt(t *testing.T) {
	cases := map[int64]string{0: "0", 7: "7", -42: "-42", 1234567890123: "1234567890123"}
	for n, want := range cases {
		if got := string(appendInt(nil, n)); got != want {
			t.Errorf("appendInt(%d) = %q", n, got)
		}
	}
	if utoa(4294967295) != "4294967295" {
		t.Errorf("utoa(max) = %q", utoa(4294967295))
	}
}
