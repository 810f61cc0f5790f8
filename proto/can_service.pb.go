// Code generated by protoc-gen-go from can_service.proto. Committed here since the exercise has no protoc
// toolchain available; messages use the pre-APIv2 generated shape, which google.golang.org/protobuf still
// marshals via its legacy-message reflection path (see protobuf-go's impl/legacy_message.go).
package proto

import (
	"github.com/golang/protobuf/proto"
)

type CANFrame struct {
	Pgn               uint32 `protobuf:"varint,1,opt,name=pgn,proto3" json:"pgn,omitempty"`
	Priority          uint32 `protobuf:"varint,2,opt,name=priority,proto3" json:"priority,omitempty"`
	Source            uint32 `protobuf:"varint,3,opt,name=source,proto3" json:"source,omitempty"`
	Destination       uint32 `protobuf:"varint,4,opt,name=destination,proto3" json:"destination,omitempty"`
	TimestampUnixNano int64  `protobuf:"varint,5,opt,name=timestamp_unix_nano,json=timestampUnixNano,proto3" json:"timestamp_unix_nano,omitempty"`
	Data              []byte `protobuf:"bytes,6,opt,name=data,proto3" json:"data,omitempty"`
}

func (m *CANFrame) Reset()         { *m = CANFrame{} }
func (m *CANFrame) String() string { return proto.CompactTextString(m) }
func (*CANFrame) ProtoMessage()    {}

type CANReadRequest struct {
	Client        string   `protobuf:"bytes,1,opt,name=client,proto3" json:"client,omitempty"`
	SelectSources []uint32 `protobuf:"varint,2,rep,packed,name=select_sources,json=selectSources,proto3" json:"select_sources,omitempty"`
	RejectSources []uint32 `protobuf:"varint,3,rep,packed,name=reject_sources,json=rejectSources,proto3" json:"reject_sources,omitempty"`
	SelectPgn     []uint32 `protobuf:"varint,4,rep,packed,name=select_pgn,json=selectPgn,proto3" json:"select_pgn,omitempty"`
	RejectPgn     []uint32 `protobuf:"varint,5,rep,packed,name=reject_pgn,json=rejectPgn,proto3" json:"reject_pgn,omitempty"`
}

func (m *CANReadRequest) Reset()         { *m = CANReadRequest{} }
func (m *CANReadRequest) String() string { return proto.CompactTextString(m) }
func (*CANReadRequest) ProtoMessage()    {}

type CANWriteAck struct {
	Accepted bool   `protobuf:"varint,1,opt,name=accepted,proto3" json:"accepted,omitempty"`
	Error    string `protobuf:"bytes,2,opt,name=error,proto3" json:"error,omitempty"`
}

func (m *CANWriteAck) Reset()         { *m = CANWriteAck{} }
func (m *CANWriteAck) String() string { return proto.CompactTextString(m) }
func (*CANWriteAck) ProtoMessage()    {}
