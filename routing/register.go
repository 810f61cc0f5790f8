package routing

import (
	"fmt"

	"github.com/sterwen-nav/nmea-router/config"
)

// codecFor resolves a Component's "codec" parameter ("canboat", "mxpgn", "pdgy") to a LineCodec, matching
// spec.md §6's wire format names.
func codecFor(c config.Component) (LineCodec, error) {
	switch c.String("codec", "canboat") {
	case "canboat":
		return CanboatCodec{}, nil
	case "mxpgn":
		return MXPGNCodec{}, nil
	case "pdgy":
		return PDGYCodec{}, nil
	default:
		return nil, fmt.Errorf("routing: unknown codec %q", c.String("codec", ""))
	}
}

// init registers this package's coupler/publisher classes into the process-wide component registry, per
// DESIGN NOTES §9's explicit-registry strategy.
func init() {
	config.Register("TCPCoupler", func(c config.Component) (interface{}, error) {
		codec, err := codecFor(c)
		if err != nil {
			return nil, err
		}
		return NewTCPCoupler(c.String("address", ""), codec), nil
	})

	config.Register("UDPCoupler", func(c config.Component) (interface{}, error) {
		codec, err := codecFor(c)
		if err != nil {
			return nil, err
		}
		return NewUDPCoupler(c.String("local_address", ""), c.String("remote_address", ""), codec), nil
	})

	config.Register("ReplayCoupler", func(c config.Component) (interface{}, error) {
		return nil, fmt.Errorf("routing: ReplayCoupler requires an io.Reader, construct with routing.NewReplayCoupler directly")
	})

	config.Register("GRPCCoupler", func(c config.Component) (interface{}, error) {
		return NewGRPCCoupler(c.String("target", ""), GRPCCouplerConfig{
			ClientName:    c.String("name", c.Name),
			SelectSources: toUint32List(c.StringList("select_sources", nil)),
			RejectSources: toUint32List(c.StringList("reject_sources", nil)),
			SelectPGN:     toUint32List(c.StringList("select_pgn", nil)),
			RejectPGN:     toUint32List(c.StringList("reject_pgn", nil)),
		}), nil
	})
}

func toUint32List(ss []string) []uint32 {
	out := make([]uint32, 0, len(ss))
	for _, s := range ss {
		var v uint32
		_, err := fmt.Sscanf(s, "%d", &v)
		if err == nil {
			out = append(out, v)
		}
	}
	return out
}
