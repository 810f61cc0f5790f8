package nmea

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrChecksum is returned by ParseSentence when the trailing checksum does not match the computed one.
var ErrChecksum = errors.New("nmea0183: checksum mismatch")

// ErrMalformedSentence is returned for a line that is not a well-formed NMEA0183 sentence.
var ErrMalformedSentence = errors.New("nmea0183: malformed sentence")

// Sentence is a parsed NMEA0183 line: `$GPRMC,...*hh` or `!AIVDM,...*hh`.
type Sentence struct {
	// Encapsulation is true for lines starting with '!' (e.g. AIS/encapsulation sentences) instead of '$'.
	Encapsulation bool
	// Talker is the two-letter (usually) talker ID, e.g. "GP", "II", "AI".
	Talker string
	// Formatter is the sentence type, e.g. "RMC", "GGA", "VDM".
	Formatter string
	// Fields holds the comma-separated fields after the talker+formatter, before the checksum.
	Fields []string
}

// Checksum computes the NMEA0183 checksum: the XOR of every byte between the leading '$'/'!' and the
// trailing '*', per spec.md §6.
func Checksum(s string) byte {
	var sum byte
	for i := 0; i < len(s); i++ {
		sum ^= s[i]
	}
	return sum
}

// FormatSentence rebuilds a sentence line with a trailing CRLF and a freshly computed checksum.
func FormatSentence(s Sentence) string {
	lead := '$'
	if s.Encapsulation {
		lead = '!'
	}
	body := s.Talker + s.Formatter
	if len(s.Fields) > 0 {
		body += "," + strings.Join(s.Fields, ",")
	}
	return fmt.Sprintf("%c%s*%02X\r\n", lead, body, Checksum(body))
}

// ParseSentence parses one NMEA0183 line (with or without the trailing CRLF), verifying its checksum.
// Talker/Formatter split follows the usual convention: the two characters after the leading '$'/'!' are
// the talker ID, the rest up to the first comma is the formatter - except for proprietary ("P...")
// sentences, where the whole prefix up to the comma is treated as the formatter with an empty talker.
// Query sentences get no special treatment.
func ParseSentence(line string) (Sentence, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 1 {
		return Sentence{}, ErrMalformedSentence
	}

	var encapsulation bool
	switch line[0] {
	case '$':
		encapsulation = false
	case '!':
		encapsulation = true
	default:
		return Sentence{}, ErrMalformedSentence
	}

	star := strings.LastIndexByte(line, '*')
	if star < 0 || star+3 > len(line) {
		return Sentence{}, ErrMalformedSentence
	}
	body := line[1:star]
	wantChecksum, err := strconv.ParseUint(line[star+1:star+3], 16, 8)
	if err != nil {
		return Sentence{}, fmt.Errorf("%w: invalid checksum digits", ErrMalformedSentence)
	}
	if byte(wantChecksum) != Checksum(body) {
		return Sentence{}, ErrChecksum
	}

	parts := strings.Split(body, ",")
	head := parts[0]
	talker, formatter := splitTalkerFormatter(head)

	return Sentence{
		Encapsulation: encapsulation,
		Talker:        talker,
		Formatter:     formatter,
		Fields:        parts[1:],
	}, nil
}

// splitTalkerFormatter separates a talker ID from a formatter: proprietary ("P...") sentences have no
// talker, everything else splits 2 letters of talker + remaining letters of formatter.
func splitTalkerFormatter(head string) (talker, formatter string) {
	if strings.HasPrefix(head, "P") {
		return "", head
	}
	if len(head) <= 2 {
		return head, ""
	}
	return head[:2], head[2:]
}
