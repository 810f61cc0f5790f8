package controller

import (
	"fmt"

	"github.com/sterwen-nav/nmea-router/config"
	"github.com/sterwen-nav/nmea-router/socketcan"
)

// init registers the Active Controller's class into the process-wide component registry, per DESIGN NOTES
// §9's explicit-registry strategy. The "servers" category fits it: it owns the CAN bus connection for the
// whole process lifetime, like the original's NMEA2KActiveController.
func init() {
	config.Register("ActiveController", func(c config.Component) (interface{}, error) {
		ifName := c.String("interface", "can0")
		conn, err := socketcan.NewConnection(ifName)
		if err != nil {
			return nil, fmt.Errorf("controller: opening %s: %w", ifName, err)
		}

		var opts []Option
		if percent := c.Int("bandwidth_percent", 0); percent > 0 {
			opts = append(opts, WithBandwidthPercent(percent))
		}
		if trace := c.String("trace_file", ""); trace != "" {
			opts = append(opts, WithTraceFile(trace))
		}

		can := NewCANInterface(conn, ifName, opts...)
		return NewController(can), nil
	})
}
