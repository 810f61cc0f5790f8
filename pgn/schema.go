// Package pgn loads the NMEA2000 PGN dictionary from the XML <PGNDefns> schema format and
// decodes/encodes raw CAN payloads against it.
package pgn

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrUnknownPGN is returned by Lookup when no definition is registered for the requested PGN/manufacturer pair.
var ErrUnknownPGN = errors.New("pgn: unknown PGN")

// Schema is the full PGN dictionary loaded from one XML document.
type Schema struct {
	byPGN map[uint32][]PGNDef
}

// Lookup returns the PGNDef for pgnNumber, preferring one whose ManufacturerCode matches mfgID (0 = generic).
func (s *Schema) Lookup(pgnNumber uint32, mfgID uint16) (PGNDef, error) {
	defs, ok := s.byPGN[pgnNumber]
	if !ok || len(defs) == 0 {
		return PGNDef{}, fmt.Errorf("%w: %d", ErrUnknownPGN, pgnNumber)
	}
	if mfgID != 0 {
		for _, d := range defs {
			if d.ManufacturerCode == mfgID {
				return d, nil
			}
		}
	}
	for _, d := range defs {
		if d.ManufacturerCode == 0 {
			return d, nil
		}
	}
	return defs[0], nil
}

// --- XML wire shape -------------------------------------------------------

type xmlEnumPair struct {
	Value uint32 `xml:"Value,attr"`
	Name  string `xml:"Name,attr"`
}

type xmlEnumValues struct {
	Pairs []xmlEnumPair `xml:"EnumPair"`
}

type xmlField struct {
	XMLName    xml.Name
	Name       string        `xml:"Name,attr"`
	BitLength  uint16        `xml:"BitLength,attr"`
	BitOffset  uint16        `xml:"BitOffset,attr"`
	Signed     bool          `xml:"Signed,attr"`
	Resolution float64       `xml:"Resolution,attr"`
	Offset     float64       `xml:"Offset,attr"`
	Units      string        `xml:"Units,attr"`
	Count      string        `xml:"Count,attr"`
	EnumValues xmlEnumValues `xml:"EnumValues"`
	Fields     []xmlField    `xml:",any"`
}

type xmlPGNDefn struct {
	PGN              uint32 `xml:"PGN,attr"`
	ManufacturerCode uint16 `xml:"ManufacturerCode,attr"`
	Name             string `xml:"Name"`
	ByteLength       int32  `xml:"ByteLength"`
	Fields           struct {
		Items []xmlField `xml:",any"`
	} `xml:"Fields"`
}

type xmlPGNDefns struct {
	XMLName xml.Name     `xml:"PGNDefns"`
	Defns   []xmlPGNDefn `xml:"PGNDefn"`
}

// LoadSchema parses path from filesystem and builds a Schema, the same shape as the teacher's
// canboat.LoadCANBoatSchema(filesystem fs.FS, path string) but for the XML <PGNDefns> format.
func LoadSchema(filesystem fs.FS, path string) (*Schema, error) {
	raw, err := fs.ReadFile(filesystem, path)
	if err != nil {
		return nil, fmt.Errorf("pgn: failed to read schema file: %w", err)
	}

	var doc xmlPGNDefns
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("pgn: failed to parse schema xml: %w", err)
	}

	schema := &Schema{byPGN: make(map[uint32][]PGNDef, len(doc.Defns))}
	for _, defn := range doc.Defns {
		def := PGNDef{
			PGN:              defn.PGN,
			ManufacturerCode: defn.ManufacturerCode,
			Name:             defn.Name,
			ByteLength:       defn.ByteLength,
			Fields:           make([]Field, 0, len(defn.Fields.Items)),
		}
		for _, xf := range defn.Fields.Items {
			f, err := fieldFromXML(xf)
			if err != nil {
				return nil, fmt.Errorf("pgn %d: %w", defn.PGN, err)
			}
			def.Fields = append(def.Fields, f)
		}
		groupBitFields(def.Fields)
		schema.byPGN[def.PGN] = append(schema.byPGN[def.PGN], def)
	}
	return schema, nil
}

func fieldFromXML(xf xmlField) (Field, error) {
	kind := Kind(xf.XMLName.Local)

	f := Field{
		ID:         slugify(xf.Name),
		Name:       xf.Name,
		Kind:       kind,
		BitOffset:  xf.BitOffset,
		BitLength:  xf.BitLength,
		Signed:     xf.Signed,
		Resolution: xf.Resolution,
		Offset:     xf.Offset,
		Units:      xf.Units,
	}
	for _, p := range xf.EnumValues.Pairs {
		f.Enum = append(f.Enum, EnumPair{Value: p.Value, Name: p.Name})
	}

	if kind == KindRepeatSet {
		f.RepeatCountField = slugify(xf.Count)
		f.RepeatFields = make([]Field, 0, len(xf.Fields))
		for _, inner := range xf.Fields {
			innerField, err := fieldFromXML(inner)
			if err != nil {
				return Field{}, err
			}
			f.RepeatFields = append(f.RepeatFields, innerField)
		}
		groupBitFields(f.RepeatFields)
	}
	return f, nil
}

func slugify(name string) string {
	if name == "" {
		return ""
	}
	var b strings.Builder
	upperNext := false
	first := true
	for _, r := range name {
		switch {
		case r == ' ' || r == '_' || r == '-' || r == '#' || r == '/' || r == '.':
			upperNext = true
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			if first {
				b.WriteRune(toLower(r))
				first = false
			} else if upperNext {
				b.WriteRune(toUpper(r))
				upperNext = false
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}
