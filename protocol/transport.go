package protocol

import "sync/atomic"

// CommandHandler handles one decoded command. It decodes its own arguments
// from data, leaving data positioned at the next command of the frame.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware end of the link: it verifies incoming frames,
// dispatches the commands they carry, acknowledges each frame and encodes
// outgoing responses.
type Transport struct {
	reader frameReader

	// nextSequence is the sequence expected from the host. Responses and
	// ACKs carry the same value.
	nextSequence uint32

	output        OutputBuffer
	handler       CommandHandler
	resetCallback func()
	flushCallback func()

	// errors counts command handler failures.
	errors uint32
}

func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{
		reader:       newFrameReader(true),
		nextSequence: MessageDest,
		output:       output,
		handler:      handler,
	}
	t.reader.onResync = t.encodeAckNak
	return t
}

// Receive consumes complete frames from input.
func (t *Transport) Receive(input InputBuffer) {
	n := t.reader.scan(input.Data(), t.receiveFrame)
	if n > 0 {
		input.Pop(n)
	}
}

func (t *Transport) receiveFrame(seq uint8, frame []byte) {
	expected := uint8(atomic.LoadUint32(&t.nextSequence))
	if seq == MessageDest && expected != MessageDest {
		// host restarted its sequence
		atomic.StoreUint32(&t.nextSequence, MessageDest)
		expected = MessageDest
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}
	if seq == expected {
		next := (seq+1)&MessageSeqMask | MessageDest
		atomic.StoreUint32(&t.nextSequence, uint32(next))
		t.dispatch(frame)
	}
	// A frame out of sequence still gets an ACK, which then acts as a NAK
	// carrying the expected sequence.
	t.encodeAckNak()
}

// dispatch runs every command in the frame. A panicking handler drops the
// link out of sync instead of taking the firmware down.
func (t *Transport) dispatch(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.reader.setSynced(false)
		}
	}()
	for len(frame) > 0 {
		id, err := DecodeVLQUint(&frame)
		if err != nil {
			t.reader.setSynced(false)
			return
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(id), &frame); err != nil {
			atomic.AddUint32(&t.errors, 1)
			return
		}
	}
}

// encodeAckNak writes an empty frame with the expected sequence and flushes
// it immediately, ahead of any responses.
func (t *Transport) encodeAckNak() {
	var buf [MessageLengthMin]byte
	t.output.Output(AppendFrame(buf[:0], uint8(atomic.LoadUint32(&t.nextSequence)), nil))
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame encodes one frame in place in the output buffer.
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) {
	cursor := t.output.CurPosition()
	t.output.Output([]byte{0, uint8(atomic.LoadUint32(&t.nextSequence))})
	frameData(t.output)

	t.output.Update(cursor, uint8(len(t.output.DataSince(cursor))+MessageTrailerSize))
	crc := CRC16(t.output.DataSince(cursor))
	t.output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
}

// SendCommand encodes a message with the given ID and arguments.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns the transport to its power-on state.
func (t *Transport) Reset() {
	t.reader.setSynced(true)
	atomic.StoreUint32(&t.nextSequence, MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// HandlerErrors returns the number of commands whose handler failed.
func (t *Transport) HandlerErrors() uint32 {
	return atomic.LoadUint32(&t.errors)
}

// SetResetCallback sets a callback run when the host restarts its sequence.
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets a callback that pushes the output buffer to the
// link right away. It is called after every ACK.
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}
