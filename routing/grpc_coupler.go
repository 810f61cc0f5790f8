package routing

import (
	"context"
	"time"

	nmea "github.com/sterwen-nav/nmea-router"
	pb "github.com/sterwen-nav/nmea-router/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// GRPCCouplerConfig selects which source addresses / PGNs a GRPCCoupler asks the remote
// CANControllerService to stream, per spec.md's CAN-over-gRPC coupler variant (grounded on the original's
// can_grpc_stream_reader.py select/reject source and PGN filters).
type GRPCCouplerConfig struct {
	ClientName    string
	SelectSources []uint32
	RejectSources []uint32
	SelectPGN     []uint32
	RejectPGN     []uint32
}

// GRPCCoupler is a bidirectional Transport that reads NMEA2000 frames from, and writes them to, a remote
// CAN bus exposed over gRPC by another router instance's Active Controller.
type GRPCCoupler struct {
	target string
	config GRPCCouplerConfig

	conn   *grpc.ClientConn
	client pb.CANControllerServiceClient
	stream pb.CANControllerService_ReadNmea2000MsgClient
}

func NewGRPCCoupler(target string, config GRPCCouplerConfig) *GRPCCoupler {
	return &GRPCCoupler{target: target, config: config}
}

func (c *GRPCCoupler) Open(ctx context.Context) error {
	conn, err := grpc.DialContext(ctx, c.target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return err
	}
	c.conn = conn
	c.client = pb.NewCANControllerServiceClient(conn)

	stream, err := c.client.ReadNmea2000Msg(ctx, &pb.CANReadRequest{
		Client:        c.config.ClientName,
		SelectSources: c.config.SelectSources,
		RejectSources: c.config.RejectSources,
		SelectPgn:     c.config.SelectPGN,
		RejectPgn:     c.config.RejectPGN,
	})
	if err != nil {
		return err
	}
	c.stream = stream
	return nil
}

func (c *GRPCCoupler) Read(ctx context.Context) (nmea.RawMessage, error) {
	frame, err := c.stream.Recv()
	if err != nil {
		return nmea.RawMessage{}, err
	}
	return nmea.RawMessage{
		Time: time.Unix(0, frame.TimestampUnixNano),
		Header: nmea.CanBusHeader{
			PGN:         frame.Pgn,
			Priority:    uint8(frame.Priority),
			Source:      uint8(frame.Source),
			Destination: uint8(frame.Destination),
		},
		Data: frame.Data,
	}, nil
}

func (c *GRPCCoupler) Send(ctx context.Context, msg nmea.RawMessage) error {
	ack, err := c.client.WriteNmea2000Msg(ctx, &pb.CANFrame{
		Pgn:               msg.Header.PGN,
		Priority:          uint32(msg.Header.Priority),
		Source:            uint32(msg.Header.Source),
		Destination:       uint32(msg.Header.Destination),
		TimestampUnixNano: msg.Time.UnixNano(),
		Data:              msg.Data,
	})
	if err != nil {
		return err
	}
	if !ack.Accepted {
		return &grpcWriteRejected{reason: ack.Error}
	}
	return nil
}

func (c *GRPCCoupler) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

type grpcWriteRejected struct{ reason string }

func (e *grpcWriteRejected) Error() string { return "grpc: write rejected: " + e.reason }
