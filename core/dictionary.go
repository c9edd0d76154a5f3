package core

import (
	"sync"

	"motionhub/protocol"
	"motionhub/tinycompress"
)

// Constant is a firmware constant exposed to the host.
type Constant struct {
	Name  string
	Value interface{} // string or integer
}

// Dictionary builds the JSON data dictionary the host reads with identify.
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]*Constant
	enumerations  map[string][]string
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	compress      bool
	cached        []byte
}

var globalDictionary = NewDictionary(globalRegistry)

func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]*Constant),
		enumerations:  make(map[string][]string),
		commandReg:    cmdReg,
		version:       protocol.Version,
		buildVersions: "go-tinygo",
	}
}

func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}

// RegisterConstant adds a constant to the global dictionary.
func RegisterConstant(name string, value interface{}) {
	globalDictionary.AddConstant(name, value)
}

// RegisterEnumeration adds an enumeration to the global dictionary.
func RegisterEnumeration(name string, values []string) {
	globalDictionary.AddEnumeration(name, values)
}

func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = &Constant{Name: name, Value: value}
	d.cached = nil
}

// AddEnumeration adds a named list; each value maps to its index. Empty
// values are skipped in the output.
func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enumerations[name] = append([]string(nil), values...)
	d.cached = nil
}

func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cached = nil
}

func (d *Dictionary) SetBuildVersions(versions string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildVersions = versions
	d.cached = nil
}

// SetCompression makes identify serve the dictionary as a zlib stream, the
// form Klipper hosts expect.
func (d *Dictionary) SetCompression(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.compress = enabled
	d.cached = nil
}

// BuildDictionary renders and caches the dictionary. Call it after every
// command is registered; later registrations are not picked up until the
// next call or a constant change.
func (d *Dictionary) BuildDictionary() {
	// Read the registry before taking our own lock.
	commands := d.commandReg.Commands()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cached = d.render(commands)
	if d.compress {
		d.cached = append([]byte(nil), tinycompress.NewZlib(len(d.cached)).Compress(d.cached)...)
	}
	DebugPrintln("[dict] " + itoa(len(d.cached)) + " bytes")
}

// Generate returns the dictionary JSON, zlib wrapped when compression is on.
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cached
	d.mu.RUnlock()
	if cached != nil {
		return cached
	}
	d.BuildDictionary()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// GetChunk returns up to count bytes of the dictionary from offset. The
// chunk is a copy so the caller can hold it while the cache is rebuilt.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return []byte{}
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}

// render writes the dictionary JSON. Caller holds d.mu.
func (d *Dictionary) render(commands []*Command) []byte {
	out := make([]byte, 0, 2048)
	out = append(out, `{"version":`...)
	out = appendJSONString(out, d.version)
	out = append(out, `,"build_versions":`...)
	out = appendJSONString(out, d.buildVersions)

	out = append(out, `,"config":{`...)
	for i, name := range sortedKeys(d.constants) {
		if i > 0 {
			out = append(out, ',')
		}
		out = appendJSONString(out, name)
		out = append(out, ':')
		out = appendJSONString(out, valueToString(d.constants[name].Value))
	}

	out = append(out, `},"commands":{`...)
	out = appendMessages(out, commands, false)
	out = append(out, `},"responses":{`...)
	out = appendMessages(out, commands, true)
	out = append(out, '}')

	if len(d.enumerations) > 0 {
		out = append(out, `,"enumerations":{`...)
		for i, name := range sortedKeys(d.enumerations) {
			if i > 0 {
				out = append(out, ',')
			}
			out = appendJSONString(out, name)
			out = append(out, ":{"...)
			first := true
			for idx, value := range d.enumerations[name] {
				if value == "" {
					continue
				}
				if !first {
					out = append(out, ',')
				}
				out = appendJSONString(out, value)
				out = append(out, ':')
				out = appendInt(out, int64(idx))
				first = false
			}
			out = append(out, '}')
		}
		out = append(out, '}')
	}
	return append(out, '}')
}

func appendMessages(out []byte, commands []*Command, responses bool) []byte {
	first := true
	for _, cmd := range commands {
		if cmd.Response != responses {
			continue
		}
		if !first {
			out = append(out, ',')
		}
		out = appendJSONString(out, cmd.Signature())
		out = append(out, ':')
		out = appendInt(out, int64(cmd.ID))
		first = false
	}
	return out
}

func appendJSONString(out []byte, s string) []byte {
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			out = append(out, '\\', c)
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, c)
		}
	}
	return append(out, '"')
}

// sortedKeys returns the map keys in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
