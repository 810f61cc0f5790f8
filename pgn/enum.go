package pgn

// enumName resolves an enum's integer value to its schema name; unknown values decode to "" rather
// than an error, matching canboat/enum.go's lenient lookup.
func enumName(enum []EnumPair, value uint32) string {
	for _, e := range enum {
		if e.Value == value {
			return e.Name
		}
	}
	return ""
}

// enumValue resolves an enum code name back to its integer value, the reverse direction used by Encode.
func enumValue(enum []EnumPair, code string) (uint32, bool) {
	for _, e := range enum {
		if e.Name == code {
			return e.Value, true
		}
	}
	return 0, false
}
