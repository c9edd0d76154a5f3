package core

import (
	"testing"

	"motionhub/protocol"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	var called bool
	id := registry.Register("test_command", "arg=%u", func(data *[]byte) error {
		called = true
		return nil
	})
	if id != 0 {
		t.Errorf("first command id = %d, want 0", id)
	}

	cmd, ok := registry.GetCommand(id)
	if !ok || cmd.Name != "test_command" {
		t.Fatalf("GetCommand(%d) = %+v, %v", id, cmd, ok)
	}

	var data []byte
	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch: %v", err)
	}
	if !called {
		t.Error("handler not called")
	}
	if err := registry.Dispatch(999, &data); err != errUnknownCommand {
		t.Errorf("unknown id: err = %v", err)
	}
}

func TestCommandRegistrySequentialIDs(t *testing.T) {
	registry := NewCommandRegistry()
	noop := func(data *[]byte) error { return nil }

	id1 := registry.Register("command1", "arg1=%u", noop)
	id2 := registry.Register("command2", "arg2=%u", noop)
	again := registry.Register("command1", "arg1=%u", noop)
	id3 := registry.Register("command3", "", noop)

	if id1 != 0 || id2 != 1 || id3 != 2 || again != id1 {
		t.Errorf("ids %d %d %d, duplicate got %d", id1, id2, id3, again)
	}
	if registry.Count() != 3 {
		t.Errorf("Count() = %d, want 3", registry.Count())
	}

	want := "command1 arg1=%u\ncommand2 arg2=%u\ncommand3\n"
	if got := registry.GetDictionary(); got != want {
		t.Errorf("GetDictionary() = %q, want %q", got, want)
	}
}

func TestCommandWithArguments(t *testing.T) {
	registry := NewCommandRegistry()

	var got int32
	id := registry.Register("test_args", "value=%i", func(data *[]byte) error {
		v, err := protocol.DecodeVLQInt(data)
		got = v
		return err
	})

	output := protocol.NewScratchOutput()
	protocol.EncodeVLQInt(output, -12345)
	data := output.Result()
	if err := registry.Dispatch(id, &data); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got != -12345 {
		t.Errorf("handler decoded %d", got)
	}

	empty := []byte{}
	if err := registry.Dispatch(id, &empty); err == nil {
		t.Error("missing argument not reported")
	}
}

func TestRegisterTableFollowsMessageOrder(t *testing.T) {
	registry := NewCommandRegistry()
	registry.RegisterTable(protocol.Messages, map[string]CommandHandler{
		"get_clock": func(data *[]byte) error { return nil },
	})

	for i, def := range protocol.Messages {
		cmd, ok := registry.GetCommandByName(def.Name)
		if !ok || cmd.ID != uint16(i) {
			t.Errorf("%s registered as %+v", def.Name, cmd)
			continue
		}
		if cmd.Response != def.Response {
			t.Errorf("%s response flag = %v", def.Name, cmd.Response)
		}
	}

	clockID, _ := protocol.MessageID("get_clock")
	uptimeID, _ := protocol.MessageID("get_uptime")
	var data []byte
	if err := registry.Dispatch(clockID, &data); err != nil {
		t.Errorf("get_clock: %v", err)
	}
	if err := registry.Dispatch(uptimeID, &data); err != errNoHandler {
		t.Errorf("get_uptime without handler: err = %v", err)
	}

	// A handler registered later fills in the table entry.
	id := registry.Register("get_uptime", "", func(data *[]byte) error { return nil })
	if id != uptimeID {
		t.Errorf("late registration moved get_uptime to %d", id)
	}
	if err := registry.Dispatch(uptimeID, &data); err != nil {
		t.Errorf("get_uptime after registration: %v", err)
	}
}
