package nmea

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSentence(t *testing.T) {
	line := "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A\r\n"
	s, err := ParseSentence(line)
	assert.NoError(t, err)
	assert.False(t, s.Encapsulation)
	assert.Equal(t, "GP", s.Talker)
	assert.Equal(t, "RMC", s.Formatter)
	assert.Equal(t, "123519", s.Fields[0])
}

func TestParseSentence_encapsulation(t *testing.T) {
	body := "AIVDM,1,1,,A,15M67FC000G?ufbE`FepT@3n00Sa,0"
	line := "!" + body + "*" + fmtChecksum(Checksum(body))
	s, err := ParseSentence(line)
	assert.NoError(t, err)
	assert.True(t, s.Encapsulation)
	assert.Equal(t, "AI", s.Talker)
	assert.Equal(t, "VDM", s.Formatter)
}

func TestParseSentence_badChecksum(t *testing.T) {
	_, err := ParseSentence("$GPRMC,1*00")
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestParseSentence_proprietary(t *testing.T) {
	body := "PGRME,15.0,M,45.0,M,25.0,M"
	line := "$" + body + "*" + fmtChecksum(Checksum(body))
	s, err := ParseSentence(line)
	assert.NoError(t, err)
	assert.Equal(t, "", s.Talker)
	assert.Equal(t, "PGRME", s.Formatter)
}

func TestFormatSentence_roundTrip(t *testing.T) {
	s := Sentence{Talker: "GP", Formatter: "GLL", Fields: []string{"4807.038", "N"}}
	line := FormatSentence(s)
	parsed, err := ParseSentence(line)
	assert.NoError(t, err)
	assert.Equal(t, s.Talker, parsed.Talker)
	assert.Equal(t, s.Formatter, parsed.Formatter)
	assert.Equal(t, s.Fields, parsed.Fields)
}

func fmtChecksum(b byte) string {
	const hex = "0123456789ABCDEF"
	return string([]byte{hex[b>>4], hex[b&0xF]})
}
