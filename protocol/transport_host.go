//go:build !tinygo

package protocol

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// DefaultAckTimeout is how long SendCommand waits for the firmware's ACK.
const DefaultAckTimeout = 2 * time.Second

var (
	ErrTransportClosed  = errors.New("transport closed")
	ErrTimeout          = errors.New("timeout")
	ErrMessageTooLong   = errors.New("message too long")
	ErrSequenceMismatch = errors.New("sequence mismatch")
)

// ResponseHandler is called from the reader goroutine for every response.
type ResponseHandler func(cmdID uint16, data *[]byte) error

// Message is a received frame.
type Message struct {
	Sequence uint8
	Payload  []byte // frame data without header and trailer
}

// ID decodes the message ID at the start of the payload.
func (m *Message) ID() (uint16, []byte, error) {
	data := m.Payload
	id, err := DecodeVLQUint(&data)
	return uint16(id), data, err
}

// HostTransport is the host end of the link. Commands are sent one at a time
// and each waits for its ACK; responses arrive on a background reader.
type HostTransport struct {
	port io.ReadWriteCloser

	currentSeq uint32 // 0x10-0x1F
	reader     frameReader
	input      *FifoBuffer

	ackChan      chan *Message
	responseChan chan *Message

	handlerMu       sync.RWMutex
	responseHandler ResponseHandler
	logger          *slog.Logger

	sendMu sync.Mutex

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewHostTransport starts reading from port.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		currentSeq:   MessageDest,
		reader:       newFrameReader(false),
		input:        NewFifoBuffer(4 * MessageMax),
		ackChan:      make(chan *Message, 1),
		responseChan: make(chan *Message, 32),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
		logger:       slog.Default(),
	}
	go t.readLoop()
	return t
}

// SendCommand sends a command and waits for its ACK.
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, DefaultAckTimeout)
}

// SendCommandWithTimeout sends a command and waits up to timeout for its ACK.
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	seq := uint8(atomic.LoadUint32(&t.currentSeq))
	msg, err := buildCommandMessage(seq, cmdID, args)
	if err != nil {
		return err
	}
	if _, err := t.port.Write(msg); err != nil {
		return errors.Wrap(err, "write command")
	}
	return t.waitForAck(seq, timeout)
}

func buildCommandMessage(seq uint8, cmdID uint16, args func(output OutputBuffer)) ([]byte, error) {
	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}
	payload := scratch.Result()
	if n := len(payload) + MessageLengthMin; n > MessageLengthMax {
		return nil, errors.Wrapf(ErrMessageTooLong, "command %d is %d bytes (max %d)", cmdID, n, MessageLengthMax)
	}
	return AppendFrame(make([]byte, 0, MessageLengthMax), seq, payload), nil
}

func (t *HostTransport) waitForAck(seq uint8, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-t.ackChan:
			next := (seq+1)&MessageSeqMask | MessageDest
			if ack.Sequence == seq {
				// stale ACK or NAK for this frame
				continue
			}
			if ack.Sequence != next {
				return errors.Wrapf(ErrSequenceMismatch, "expected 0x%02x, got 0x%02x", next, ack.Sequence)
			}
			atomic.StoreUint32(&t.currentSeq, uint32(next))
			return nil
		case <-timer.C:
			return errors.Wrapf(ErrTimeout, "no ACK after %v", timeout)
		case <-t.doneChan:
			return ErrTransportClosed
		}
	}
}

// ReceiveResponse returns the next response, waiting up to timeout.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp := <-t.responseChan:
		return resp, nil
	case <-timer.C:
		return nil, errors.Wrapf(ErrTimeout, "no response after %v", timeout)
	case <-t.doneChan:
		return nil, ErrTransportClosed
	}
}

// SetResponseHandler installs a callback run for every response before it
// is queued for ReceiveResponse.
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.handlerMu.Lock()
	t.responseHandler = handler
	t.handlerMu.Unlock()
}

// SetLogger replaces the logger used for reader diagnostics. A nil logger
// restores slog.Default.
func (t *HostTransport) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	t.handlerMu.Lock()
	t.logger = logger
	t.handlerMu.Unlock()
}

// readLoop runs until Close. Read errors, including the io.EOF a serial
// port returns on a read timeout, only pause the loop.
func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			t.input.Write(buf[:n])
			consumed := t.reader.scan(t.input.Data(), t.dispatchMessage)
			t.input.Pop(consumed)
		}
		select {
		case <-t.stopChan:
			return
		default:
		}
		if err != nil {
			time.Sleep(time.Millisecond)
		}
	}
}

// dispatchMessage routes a received frame. Empty frames are ACKs.
func (t *HostTransport) dispatchMessage(seq uint8, payload []byte) {
	msg := &Message{Sequence: seq, Payload: append([]byte(nil), payload...)}
	if len(payload) == 0 {
		select {
		case t.ackChan <- msg:
		default:
			// keep the newest ACK
			select {
			case <-t.ackChan:
			default:
			}
			t.ackChan <- msg
		}
		return
	}

	t.handlerMu.RLock()
	handler, logger := t.responseHandler, t.logger
	t.handlerMu.RUnlock()
	if handler != nil {
		if id, data, err := msg.ID(); err == nil {
			if err := handler(id, &data); err != nil {
				logger.Debug("response handler failed", "id", id, "err", err)
			}
		}
	}

	select {
	case t.responseChan <- msg:
	default:
		// drop the oldest response
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- msg
	}
}

// Close stops the reader and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan
	})
	return err
}

// Reset restarts the sequence and drops everything buffered.
func (t *HostTransport) Reset() {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	atomic.StoreUint32(&t.currentSeq, MessageDest)
	for len(t.ackChan) > 0 {
		<-t.ackChan
	}
	for len(t.responseChan) > 0 {
		<-t.responseChan
	}
}

// CurrentSequence returns the sequence of the next command.
func (t *HostTransport) CurrentSequence() uint8 {
	return uint8(atomic.LoadUint32(&t.currentSeq))
}
