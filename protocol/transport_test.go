package protocol

import (
	"bytes"
	"errors"
	"testing"
)

type recordedCommand struct {
	id   uint16
	args []int32
}

// newTestTransport returns a transport whose handler decodes argc
// integers for every command.
func newTestTransport(argc int) (*Transport, *ScratchOutput, *[]recordedCommand) {
	out := NewScratchOutput()
	var got []recordedCommand
	tr := NewTransport(out, func(id uint16, data *[]byte) error {
		a := NewArgs(data)
		cmd := recordedCommand{id: id}
		for i := 0; i < argc; i++ {
			cmd.args = append(cmd.args, a.Int())
		}
		got = append(got, cmd)
		return a.Err()
	})
	return tr, out, &got
}

func commandFrame(seq uint8, id uint16, args ...int32) []byte {
	payload := AppendVLQInt(nil, int32(id))
	for _, a := range args {
		payload = AppendVLQInt(payload, a)
	}
	return AppendFrame(nil, seq, payload)
}

func TestTransportDispatchesAndAcks(t *testing.T) {
	tr, out, got := newTestTransport(1)

	tr.Receive(NewSliceInputBuffer(commandFrame(0x10, 9, -500)))

	if len(*got) != 1 || (*got)[0].id != 9 || (*got)[0].args[0] != -500 {
		t.Fatalf("dispatched %+v", *got)
	}
	want := AppendFrame(nil, 0x11, nil)
	if !bytes.Equal(out.Result(), want) {
		t.Errorf("ack = % x, want % x", out.Result(), want)
	}
}

func TestTransportSeveralCommandsPerFrame(t *testing.T) {
	tr, _, got := newTestTransport(1)

	payload := AppendVLQInt(nil, 3)
	payload = AppendVLQInt(payload, 1)
	payload = AppendVLQInt(payload, 4)
	payload = AppendVLQInt(payload, 2)
	tr.Receive(NewSliceInputBuffer(AppendFrame(nil, 0x10, payload)))

	if len(*got) != 2 || (*got)[0].id != 3 || (*got)[1].id != 4 || (*got)[1].args[0] != 2 {
		t.Errorf("dispatched %+v", *got)
	}
}

func TestTransportOutOfSequence(t *testing.T) {
	tr, out, got := newTestTransport(0)

	input := NewSliceInputBuffer(commandFrame(0x10, 1))
	tr.Receive(input)
	out.Reset()

	// 0x13 is not the expected 0x11: the frame is ignored and the ACK
	// repeats the expected sequence.
	tr.Receive(NewSliceInputBuffer(commandFrame(0x13, 1)))
	if len(*got) != 1 {
		t.Errorf("out of sequence frame dispatched")
	}
	if !bytes.Equal(out.Result(), AppendFrame(nil, 0x11, nil)) {
		t.Errorf("nak = % x", out.Result())
	}
}

func TestTransportSequenceWraps(t *testing.T) {
	tr, out, got := newTestTransport(0)

	var stream []byte
	for i := 0; i < 17; i++ {
		stream = append(stream, commandFrame(uint8(0x10|i&MessageSeqMask), 1)...)
	}
	tr.Receive(NewSliceInputBuffer(stream))

	if len(*got) != 17 {
		t.Errorf("dispatched %d commands, want 17", len(*got))
	}
	last := out.Result()[out.CurPosition()-MessageLengthMin:]
	if !bytes.Equal(last, AppendFrame(nil, 0x11, nil)) {
		t.Errorf("last ack = % x", last)
	}
}

func TestTransportHostRestart(t *testing.T) {
	tr, _, got := newTestTransport(0)
	resets := 0
	tr.SetResetCallback(func() { resets++ })

	tr.Receive(NewSliceInputBuffer(commandFrame(0x10, 1)))
	tr.Receive(NewSliceInputBuffer(commandFrame(0x11, 1)))
	tr.Receive(NewSliceInputBuffer(commandFrame(0x10, 1)))

	if resets != 1 {
		t.Errorf("resets = %d, want 1", resets)
	}
	if len(*got) != 3 {
		t.Errorf("dispatched %d commands, want 3", len(*got))
	}
}

func TestTransportKeepsPartialFrame(t *testing.T) {
	tr, _, got := newTestTransport(1)
	frame := commandFrame(0x10, 2, 1000)

	input := NewSliceInputBuffer(frame[:4])
	tr.Receive(input)
	if len(*got) != 0 || input.Available() != 4 {
		t.Fatalf("partial frame consumed")
	}

	input = NewSliceInputBuffer(frame)
	tr.Receive(input)
	if len(*got) != 1 || input.Available() != 0 {
		t.Errorf("complete frame not dispatched")
	}
}

func TestTransportHandlerErrors(t *testing.T) {
	out := NewScratchOutput()
	tr := NewTransport(out, func(id uint16, data *[]byte) error {
		return errors.New("boom")
	})
	flushes := 0
	tr.SetFlushCallback(func() { flushes++ })

	tr.Receive(NewSliceInputBuffer(commandFrame(0x10, 1)))
	if tr.HandlerErrors() != 1 {
		t.Errorf("HandlerErrors() = %d, want 1", tr.HandlerErrors())
	}
	if flushes != 1 {
		t.Errorf("flushes = %d, want 1", flushes)
	}
}

func TestTransportRecoversFromPanic(t *testing.T) {
	out := NewScratchOutput()
	tr := NewTransport(out, func(id uint16, data *[]byte) error {
		panic("handler bug")
	})

	tr.Receive(NewSliceInputBuffer(commandFrame(0x10, 1)))
	if tr.reader.Synced() {
		t.Errorf("reader still synced after handler panic")
	}
}

func TestTransportSendCommand(t *testing.T) {
	tr, out, _ := newTestTransport(0)

	tr.SendCommand(17, func(output OutputBuffer) {
		EncodeVLQInt(output, 42)
	})

	r := newFrameReader(true)
	frames, n := scanAll(&r, out.Result())
	if len(frames) != 1 || n != out.CurPosition() {
		t.Fatalf("frames = %+v", frames)
	}
	if frames[0].seq != 0x10 {
		t.Errorf("response seq = %#x, want 0x10", frames[0].seq)
	}
	data := frames[0].payload
	a := NewArgs(&data)
	if id, arg := a.Uint(), a.Int(); id != 17 || arg != 42 || a.Err() != nil {
		t.Errorf("payload decoded to %d %d %v", id, arg, a.Err())
	}
}
