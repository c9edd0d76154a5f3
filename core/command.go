package core

import (
	"errors"
	"sync"

	"motionhub/protocol"
)

// CommandHandler handles one command. It decodes its own arguments from
// data and leaves data positioned after them.
type CommandHandler func(data *[]byte) error

// Command is one registered message. Responses have no handler.
type Command struct {
	ID       uint16
	Name     string
	Format   string // argument format for the dictionary, e.g. "oid=%c clock=%u"
	Response bool
	Handler  CommandHandler
}

var (
	errUnknownCommand = errors.New("unknown command")
	errNoHandler      = errors.New("message has no handler")
)

// CommandRegistry assigns sequential IDs to messages in registration order.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands []*Command // indexed by ID
	nameToID map[string]uint16
}

var globalRegistry = NewCommandRegistry()

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{nameToID: make(map[string]uint16)}
}

// RegisterCommand registers a command handler in the global registry.
func RegisterCommand(name string, format string, handler CommandHandler) uint16 {
	return globalRegistry.Register(name, format, handler)
}

// RegisterResponse registers a response message (MCU -> host).
func RegisterResponse(name string, format string) uint16 {
	return globalRegistry.add(name, format, true, nil)
}

// Register adds a command. Registering a name twice returns the first ID.
func (r *CommandRegistry) Register(name string, format string, handler CommandHandler) uint16 {
	return r.add(name, format, false, handler)
}

// RegisterTable registers every message of defs in order, taking handlers
// by name. Commands missing from handlers are registered without one so
// that IDs still follow the table.
func (r *CommandRegistry) RegisterTable(defs []protocol.MessageDef, handlers map[string]CommandHandler) {
	for _, def := range defs {
		r.add(def.Name, def.Format, def.Response, handlers[def.Name])
	}
}

func (r *CommandRegistry) add(name, format string, response bool, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.nameToID[name]; exists {
		if handler != nil && r.commands[id].Handler == nil {
			r.commands[id].Handler = handler
		}
		return id
	}

	id := uint16(len(r.commands))
	r.commands = append(r.commands, &Command{
		ID:       id,
		Name:     name,
		Format:   format,
		Response: response,
		Handler:  handler,
	})
	r.nameToID[name] = id
	return id
}

// GetCommand retrieves a command by ID.
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return r.commands[id], true
}

// GetCommandByName retrieves a command by name.
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the handler registered for cmdID.
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok {
		return errUnknownCommand
	}
	if cmd.Handler == nil {
		return errNoHandler
	}
	return cmd.Handler(data)
}

// Commands returns the registered messages in ID order.
func (r *CommandRegistry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// GetDictionary returns the registry as text, one "name format" line per
// message in ID order.
func (r *CommandRegistry) GetDictionary() string {
	dict := ""
	for _, cmd := range r.Commands() {
		dict += cmd.Signature() + "\n"
	}
	return dict
}

// Signature returns the name and format as the host sees them.
func (c *Command) Signature() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

// DispatchCommand dispatches through the global registry.
func DispatchCommand(cmdID uint16, data *[]byte) error {
	return globalRegistry.Dispatch(cmdID, data)
}

func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}
