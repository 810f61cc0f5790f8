package pgn

import (
	"testing"

	nmea "github.com/sterwen-nav/nmea-router"
	"github.com/stretchr/testify/assert"
)

func rudderFields() []Field {
	return []Field{
		{ID: "instance", Name: "Instance", Kind: KindInstance, BitOffset: 0, BitLength: 8},
		{ID: "directionOrder", Name: "Direction Order", Kind: KindEnum, BitOffset: 8, BitLength: 2,
			Enum: []EnumPair{{Value: 0, Name: "No Order"}, {Value: 1, Name: "Move to starboard"}}},
		{ID: "angleOrder", Name: "Angle Order", Kind: KindInt, BitOffset: 16, BitLength: 16, Signed: true, Resolution: 0.0001},
		{ID: "position", Name: "Position", Kind: KindInt, BitOffset: 32, BitLength: 16, Signed: true, Resolution: 0.0001},
	}
}

func TestDecodeFields(t *testing.T) {
	payload := []byte{0x02, 0x01, 0x10, 0x27, 0x00, 0xF0, 0xD8, 0xFF}

	out, err := DecodeFields(rudderFields(), payload)
	assert.NoError(t, err)
	assert.Len(t, out, 4)

	instance, ok := out.FindByID("instance")
	assert.True(t, ok)
	assert.Equal(t, float64(2), instance.Value)

	direction, ok := out.FindByID("directionOrder")
	assert.True(t, ok)
	assert.Equal(t, nmea.EnumValue{Value: 1, Code: "Move to starboard"}, direction.Value)

	angle, ok := out.FindByID("angleOrder")
	assert.True(t, ok)
	assert.InDelta(t, 1.0, angle.Value.(float64), 0.0001)
}

func TestDecodeFields_noDataIsNil(t *testing.T) {
	payload := []byte{0xFF, 0x03, 0xFF, 0x7F, 0x00, 0x00, 0x00, 0x00}

	out, err := DecodeFields(rudderFields(), payload)
	assert.NoError(t, err)

	instance, ok := out.FindByID("instance")
	assert.True(t, ok)
	assert.Nil(t, instance.Value)

	angle, ok := out.FindByID("angleOrder")
	assert.True(t, ok)
	assert.Nil(t, angle.Value)
}

func deviceListFields() []Field {
	return []Field{
		{ID: "entryCount", Name: "Entry Count", Kind: KindUInt, BitOffset: 0, BitLength: 8},
		{
			ID: "entries", Name: "Entries", Kind: KindRepeatSet, BitOffset: 8, RepeatCountField: "entryCount",
			RepeatFields: []Field{
				{ID: "deviceIndex", Name: "Device Index", Kind: KindUInt, BitOffset: 0, BitLength: 8},
				{ID: "nodeAddress", Name: "Node Address", Kind: KindUInt, BitOffset: 8, BitLength: 8},
			},
		},
	}
}

func TestDecodeFields_repeatedFieldSet(t *testing.T) {
	payload := []byte{0x02, 0x00, 0x10, 0x01, 0x20}

	out, err := DecodeFields(deviceListFields(), payload)
	assert.NoError(t, err)

	entries, ok := out.FindByID("entries")
	assert.True(t, ok)
	groups := entries.Value.([][]nmea.FieldValue)
	assert.Len(t, groups, 2)

	group0 := nmea.FieldValues(groups[0])
	idx0, _ := group0.FindByID("deviceIndex")
	assert.Equal(t, float64(0), idx0.Value)
	addr0, _ := group0.FindByID("nodeAddress")
	assert.Equal(t, float64(0x10), addr0.Value)

	group1 := nmea.FieldValues(groups[1])
	idx1, _ := group1.FindByID("deviceIndex")
	assert.Equal(t, float64(1), idx1.Value)
	addr1, _ := group1.FindByID("nodeAddress")
	assert.Equal(t, float64(0x20), addr1.Value)
}
