package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sterwen-nav/nmea-router/config"
)

func TestCodecFor(t *testing.T) {
	canboat, err := codecFor(config.Component{Params: map[string]interface{}{"codec": "canboat"}})
	require.NoError(t, err)
	assert.IsType(t, CanboatCodec{}, canboat)

	mxpgn, err := codecFor(config.Component{Params: map[string]interface{}{"codec": "mxpgn"}})
	require.NoError(t, err)
	assert.IsType(t, MXPGNCodec{}, mxpgn)

	_, err = codecFor(config.Component{Params: map[string]interface{}{"codec": "unknown"}})
	assert.Error(t, err)
}

func TestToUint32List(t *testing.T) {
	assert.Equal(t, []uint32{127245, 127250}, toUint32List([]string{"127245", "127250"}))
	assert.Empty(t, toUint32List(nil))
}

func TestTCPCoupler_registeredFactory(t *testing.T) {
	obj, err := config.Default().Build(config.Component{
		Name:  "t1",
		Class: "TCPCoupler",
		Params: map[string]interface{}{
			"address": "127.0.0.1:0",
			"codec":   "mxpgn",
		},
	})
	require.NoError(t, err)
	_, ok := obj.(*TCPCoupler)
	assert.True(t, ok)
}
