// Code generated by protoc-gen-go-grpc from can_service.proto. Committed here since the exercise has no
// protoc toolchain available.
package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	CANControllerService_ReadNmea2000Msg_FullMethodName  = "/nmearouter.CANControllerService/ReadNmea2000Msg"
	CANControllerService_WriteNmea2000Msg_FullMethodName = "/nmearouter.CANControllerService/WriteNmea2000Msg"
)

type CANControllerServiceClient interface {
	ReadNmea2000Msg(ctx context.Context, in *CANReadRequest, opts ...grpc.CallOption) (CANControllerService_ReadNmea2000MsgClient, error)
	WriteNmea2000Msg(ctx context.Context, in *CANFrame, opts ...grpc.CallOption) (*CANWriteAck, error)
}

type cANControllerServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCANControllerServiceClient(cc grpc.ClientConnInterface) CANControllerServiceClient {
	return &cANControllerServiceClient{cc}
}

func (c *cANControllerServiceClient) ReadNmea2000Msg(ctx context.Context, in *CANReadRequest, opts ...grpc.CallOption) (CANControllerService_ReadNmea2000MsgClient, error) {
	stream, err := c.cc.NewStream(ctx, &_CANControllerService_serviceDesc.Streams[0], CANControllerService_ReadNmea2000Msg_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &cANControllerServiceReadNmea2000MsgClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type CANControllerService_ReadNmea2000MsgClient interface {
	Recv() (*CANFrame, error)
	grpc.ClientStream
}

type cANControllerServiceReadNmea2000MsgClient struct {
	grpc.ClientStream
}

func (x *cANControllerServiceReadNmea2000MsgClient) Recv() (*CANFrame, error) {
	m := new(CANFrame)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *cANControllerServiceClient) WriteNmea2000Msg(ctx context.Context, in *CANFrame, opts ...grpc.CallOption) (*CANWriteAck, error) {
	out := new(CANWriteAck)
	err := c.cc.Invoke(ctx, CANControllerService_WriteNmea2000Msg_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type CANControllerServiceServer interface {
	ReadNmea2000Msg(*CANReadRequest, CANControllerService_ReadNmea2000MsgServer) error
	WriteNmea2000Msg(context.Context, *CANFrame) (*CANWriteAck, error)
}

// UnimplementedCANControllerServiceServer embeds to satisfy forward-compatible servers that only
// implement a subset of the service.
type UnimplementedCANControllerServiceServer struct{}

func (UnimplementedCANControllerServiceServer) ReadNmea2000Msg(*CANReadRequest, CANControllerService_ReadNmea2000MsgServer) error {
	return status.Error(codes.Unimplemented, "method ReadNmea2000Msg not implemented")
}

func (UnimplementedCANControllerServiceServer) WriteNmea2000Msg(context.Context, *CANFrame) (*CANWriteAck, error) {
	return nil, status.Error(codes.Unimplemented, "method WriteNmea2000Msg not implemented")
}

func RegisterCANControllerServiceServer(s grpc.ServiceRegistrar, srv CANControllerServiceServer) {
	s.RegisterService(&_CANControllerService_serviceDesc, srv)
}

func _CANControllerService_ReadNmea2000Msg_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(CANReadRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(CANControllerServiceServer).ReadNmea2000Msg(m, &cANControllerServiceReadNmea2000MsgServer{stream})
}

type CANControllerService_ReadNmea2000MsgServer interface {
	Send(*CANFrame) error
	grpc.ServerStream
}

type cANControllerServiceReadNmea2000MsgServer struct {
	grpc.ServerStream
}

func (x *cANControllerServiceReadNmea2000MsgServer) Send(m *CANFrame) error {
	return x.ServerStream.SendMsg(m)
}

func _CANControllerService_WriteNmea2000Msg_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CANFrame)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CANControllerServiceServer).WriteNmea2000Msg(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CANControllerService_WriteNmea2000Msg_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CANControllerServiceServer).WriteNmea2000Msg(ctx, req.(*CANFrame))
	}
	return interceptor(ctx, in, info, handler)
}

var _CANControllerService_serviceDesc = grpc.ServiceDesc{
	ServiceName: "nmearouter.CANControllerService",
	HandlerType: (*CANControllerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "WriteNmea2000Msg",
			Handler:    _CANControllerService_WriteNmea2000Msg_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ReadNmea2000Msg",
			Handler:       _CANControllerService_ReadNmea2000Msg_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "can_service.proto",
}
