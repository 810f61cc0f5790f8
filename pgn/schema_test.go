package pgn

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
)

const sampleSchemaXML = `<?xml version="1.0"?>
<PGNDefns>
  <PGNDefn PGN="127245">
    <Name>Rudder</Name>
    <ByteLength>8</ByteLength>
    <Fields>
      <InstanceField Name="Instance" BitOffset="0" BitLength="8"/>
      <EnumField Name="Direction Order" BitOffset="8" BitLength="2">
        <EnumValues>
          <EnumPair Value="0" Name="No Order"/>
          <EnumPair Value="1" Name="Move to starboard"/>
        </EnumValues>
      </EnumField>
      <IntField Name="Angle Order" BitOffset="16" BitLength="16" Signed="true" Resolution="0.0001"/>
      <IntField Name="Position" BitOffset="32" BitLength="16" Signed="true" Resolution="0.0001"/>
    </Fields>
  </PGNDefn>
  <PGNDefn PGN="130823">
    <Name>Device List Entry</Name>
    <ByteLength name="-1"/>
    <Fields>
      <UIntField Name="Entry Count" BitOffset="0" BitLength="8"/>
      <RepeatedFieldSet Count="entryCount" BitOffset="8">
        <UIntField Name="Device Index" BitOffset="0" BitLength="8"/>
        <UIntField Name="Node Address" BitOffset="8" BitLength="8"/>
      </RepeatedFieldSet>
    </Fields>
  </PGNDefn>
</PGNDefns>`

func TestLoadSchema(t *testing.T) {
	filesystem := fstest.MapFS{
		"schema.xml": &fstest.MapFile{Data: []byte(sampleSchemaXML)},
	}

	schema, err := LoadSchema(filesystem, "schema.xml")
	assert.NoError(t, err)

	def, err := schema.Lookup(127245, 0)
	assert.NoError(t, err)
	assert.Equal(t, "Rudder", def.Name)
	assert.Len(t, def.Fields, 4)
	assert.Equal(t, KindInstance, def.Fields[0].Kind)
	assert.Equal(t, "instance", def.Fields[0].ID)
	assert.Equal(t, []EnumPair{{Value: 0, Name: "No Order"}, {Value: 1, Name: "Move to starboard"}}, def.Fields[1].Enum)

	_, err = schema.Lookup(999999, 0)
	assert.ErrorIs(t, err, ErrUnknownPGN)
}

func TestLoadSchema_repeatedFieldSet(t *testing.T) {
	filesystem := fstest.MapFS{
		"schema.xml": &fstest.MapFile{Data: []byte(sampleSchemaXML)},
	}
	schema, err := LoadSchema(filesystem, "schema.xml")
	assert.NoError(t, err)

	def, err := schema.Lookup(130823, 0)
	assert.NoError(t, err)
	assert.Len(t, def.Fields, 2)
	rep := def.Fields[1]
	assert.Equal(t, KindRepeatSet, rep.Kind)
	assert.Equal(t, "entryCount", rep.RepeatCountField)
	assert.Len(t, rep.RepeatFields, 2)
}
