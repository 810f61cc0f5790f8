package iso

import (
	nmea "github.com/sterwen-nav/nmea-router"
)

// Group Function codes (PGN 126208 byte 0), per the Python original's create_group_function dispatch.
const (
	GroupFunctionRequest     uint8 = 0
	GroupFunctionCommand     uint8 = 1
	GroupFunctionAcknowledge uint8 = 2
)

// Group Function PGN error codes (PGN 126208 Acknowledge), per spec.md.
const (
	GroupFunctionErrorOK          uint8 = 0
	GroupFunctionErrorUnsupported uint8 = 1
	GroupFunctionErrorOutOfRange  uint8 = 3
)

// GroupFunction is a decoded PGN 126208 message. Parameters are kept as raw field-number/value pairs
// rather than fully typed per-PGN parameter lists (the Python original's pgn_class.execute_command_parameters
// dispatch): no PGN this router hosts as a Controller Application currently accepts remote configuration,
// so every Command is acknowledged GroupFunctionErrorUnsupported, matching NMEA2000Application's default
// behavior when group_function.pgn_class is None.
type GroupFunction struct {
	Function    uint8
	FunctionPGN uint32
	ErrorCode   uint8
	Parameters  []byte
}

// ParseGroupFunction decodes a PGN 126208 payload.
func ParseGroupFunction(data []byte) (GroupFunction, error) {
	if len(data) < 4 {
		return GroupFunction{}, errInvalidGroupFunctionLength
	}
	gf := GroupFunction{
		Function:    data[0],
		FunctionPGN: uint32(data[1]) | uint32(data[2])<<8 | uint32(data[3])<<16,
	}
	if gf.Function == GroupFunctionAcknowledge && len(data) >= 5 {
		gf.ErrorCode = data[4]
	}
	if len(data) > 5 {
		gf.Parameters = append([]byte(nil), data[5:]...)
	}
	return gf, nil
}

// Bytes encodes the GroupFunction back to its PGN 126208 wire payload.
func (gf GroupFunction) Bytes() []byte {
	out := make([]byte, 5, 5+len(gf.Parameters))
	out[0] = gf.Function
	out[1] = byte(gf.FunctionPGN)
	out[2] = byte(gf.FunctionPGN >> 8)
	out[3] = byte(gf.FunctionPGN >> 16)
	out[4] = gf.ErrorCode
	out = append(out, gf.Parameters...)
	return out
}

func (a *Application) handleGroupFunction(msg nmea.RawMessage) error {
	gf, err := ParseGroupFunction(msg.Data)
	if err != nil {
		return nil
	}
	if gf.Function != GroupFunctionCommand {
		return nil
	}

	ack := GroupFunction{
		Function:    GroupFunctionAcknowledge,
		FunctionPGN: gf.FunctionPGN,
		ErrorCode:   GroupFunctionErrorUnsupported,
	}

	address := a.Address()
	return a.sender.Send(nmea.RawMessage{
		Time: a.now(),
		Header: nmea.CanBusHeader{
			PGN: 126208, Priority: 6, Source: address, Destination: msg.Header.Source,
		},
		Data: ack.Bytes(),
	}, false)
}
