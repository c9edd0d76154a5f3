// Package protocol implements the Klipper-style serial framing shared by the
// firmware and the host tools, and the motion message table both sides use.
package protocol

// Version is the firmware version reported in the data dictionary.
const Version = "motionhub-0.2.0"

// Frame layout constants
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F

	// MessageMax is the size of a scratch output buffer. Several frames
	// may be queued in one buffer before it is flushed.
	MessageMax = 512
)
