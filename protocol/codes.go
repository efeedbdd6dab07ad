// Package protocol implements the STTP command channel: the
// length-prefixed frame codec, command and response codes, the
// operational-modes bitmask negotiated once per connection, and the
// handshake state machine that governs what a connection may send and
// receive at any point in its lifetime.
package protocol

// CommandCode identifies a frame sent subscriber → publisher.
type CommandCode byte

const (
	CommandConnect                  CommandCode = 0x00
	CommandMetadataRefresh          CommandCode = 0x01
	CommandSubscribe                CommandCode = 0x02
	CommandUnsubscribe              CommandCode = 0x03
	CommandRotateCipherKeys         CommandCode = 0x04
	CommandUpdateProcessingInterval CommandCode = 0x05
	CommandDefineOperationalModes   CommandCode = 0x06
	CommandConfirmNotification      CommandCode = 0x07
	CommandConfirmBufferBlock       CommandCode = 0x08

	// CommandUserFirst..CommandUserLast reserve a range for
	// deployment-specific extension commands.
	CommandUserFirst CommandCode = 0xD0
	CommandUserLast  CommandCode = 0xFF
)

// String returns a short name for known command codes, or "unknown" for
// anything outside the defined and user-reserved ranges.
func (c CommandCode) String() string {
	switch c {
	case CommandConnect:
		return "Connect"
	case CommandMetadataRefresh:
		return "MetadataRefresh"
	case CommandSubscribe:
		return "Subscribe"
	case CommandUnsubscribe:
		return "Unsubscribe"
	case CommandRotateCipherKeys:
		return "RotateCipherKeys"
	case CommandUpdateProcessingInterval:
		return "UpdateProcessingInterval"
	case CommandDefineOperationalModes:
		return "DefineOperationalModes"
	case CommandConfirmNotification:
		return "ConfirmNotification"
	case CommandConfirmBufferBlock:
		return "ConfirmBufferBlock"
	default:
		if c >= CommandUserFirst {
			return "UserCommand"
		}
		return "unknown"
	}
}

// Known reports whether c is a defined or user-reserved command code.
func (c CommandCode) Known() bool {
	return c.String() != "unknown"
}

// ResponseCode identifies a frame sent publisher → subscriber.
type ResponseCode byte

const (
	ResponseSucceeded              ResponseCode = 0x80
	ResponseFailed                 ResponseCode = 0x81
	ResponseDataPacket              ResponseCode = 0x82
	ResponseUpdateSignalIndexCache ResponseCode = 0x83
	ResponseUpdateBaseTimes        ResponseCode = 0x84
	ResponseUpdateCipherKeys       ResponseCode = 0x85
	ResponseDataStartTime          ResponseCode = 0x86
	ResponseProcessingComplete     ResponseCode = 0x87
	ResponseBufferBlock            ResponseCode = 0x88
	ResponseNotify                 ResponseCode = 0x89
	ResponseConfigurationChanged   ResponseCode = 0x8A

	ResponseUserFirst ResponseCode = 0xE0
	ResponseUserLast  ResponseCode = 0xFF
)

// String returns a short name for known response codes, or "unknown" for
// anything outside the defined and user-reserved ranges.
func (c ResponseCode) String() string {
	switch c {
	case ResponseSucceeded:
		return "Succeeded"
	case ResponseFailed:
		return "Failed"
	case ResponseDataPacket:
		return "DataPacket"
	case ResponseUpdateSignalIndexCache:
		return "UpdateSignalIndexCache"
	case ResponseUpdateBaseTimes:
		return "UpdateBaseTimes"
	case ResponseUpdateCipherKeys:
		return "UpdateCipherKeys"
	case ResponseDataStartTime:
		return "DataStartTime"
	case ResponseProcessingComplete:
		return "ProcessingComplete"
	case ResponseBufferBlock:
		return "BufferBlock"
	case ResponseNotify:
		return "Notify"
	case ResponseConfigurationChanged:
		return "ConfigurationChanged"
	default:
		if c >= ResponseUserFirst {
			return "UserResponse"
		}
		return "unknown"
	}
}

// Known reports whether c is a defined or user-reserved response code.
func (c ResponseCode) Known() bool {
	return c.String() != "unknown"
}
