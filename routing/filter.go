package routing

import (
	"time"

	nmea "github.com/sterwen-nav/nmea-router"
)

// PredicateKind tags a Predicate as keeping or dropping a matching message, per spec.md §4.I.
type PredicateKind int

const (
	Select PredicateKind = iota // keep on match
	Discard                     // drop on match
)

// Predicate matches either an NMEA0183 (talker, formatter) pair or an NMEA2000 (pgn, source address).
// Exactly one of the two shapes is populated; Match inspects msg accordingly.
type Predicate struct {
	Kind PredicateKind

	// NMEA0183 shape: empty Talker/Formatter act as wildcards.
	Talker    string
	Formatter string

	// NMEA2000 shape: PGN == 0 and HasPGN == false means "match any PGN" (source-only predicate).
	HasPGN bool
	PGN    uint32
	HasSA  bool
	Source uint8

	// MinInterval throttles a matching (pgn, sa) pair to at most one message per interval.
	MinInterval time.Duration

	lastSeen map[uint64]time.Time
}

func predicateKey(pgn uint32, sa uint8) uint64 {
	return uint64(pgn)<<8 | uint64(sa)
}

// matchesN2K reports whether an NMEA2000 predicate matches msg's header, ignoring throttling.
func (p *Predicate) matchesN2K(msg nmea.RawMessage) bool {
	if p.HasPGN && p.PGN != msg.Header.PGN {
		return false
	}
	if p.HasSA && p.Source != msg.Header.Source {
		return false
	}
	return p.HasPGN || p.HasSA
}

// throttle reports whether msg should be suppressed by MinInterval even though it otherwise matches.
func (p *Predicate) throttle(msg nmea.RawMessage, now time.Time) bool {
	if p.MinInterval <= 0 {
		return false
	}
	if p.lastSeen == nil {
		p.lastSeen = make(map[uint64]time.Time)
	}
	key := predicateKey(msg.Header.PGN, msg.Header.Source)
	if last, ok := p.lastSeen[key]; ok && now.Sub(last) < p.MinInterval {
		return true
	}
	p.lastSeen[key] = now
	return false
}

// Match reports whether msg matches this predicate (NMEA2000 shape; NMEA0183 predicates are matched by
// FilterSet.KeepSentence against parsed talker/formatter instead).
func (p *Predicate) Match(msg nmea.RawMessage, now time.Time) bool {
	if !p.matchesN2K(msg) {
		return false
	}
	return !p.throttle(msg, now)
}

// matchesSentence reports whether an NMEA0183-shaped predicate (Talker/Formatter set, HasPGN/HasSA
// unset) matches s; empty Talker or Formatter acts as a wildcard for that part.
func (p *Predicate) matchesSentence(s nmea.Sentence) bool {
	if p.HasPGN || p.HasSA {
		return false
	}
	if p.Talker != "" && p.Talker != s.Talker {
		return false
	}
	if p.Formatter != "" && p.Formatter != s.Formatter {
		return false
	}
	return p.Talker != "" || p.Formatter != ""
}

// FilterSet is an ordered list of predicates applied with the policy from spec.md §4.I: any Discard
// match drops the message; else any Select match keeps it; else apply the default for whichever mode
// the list is predominantly in (a select-mode list with no match drops, a discard-mode list with no
// match keeps).
type FilterSet struct {
	Predicates []*Predicate
	now        func() time.Time
}

// NewFilterSet builds a FilterSet from predicates in declared order.
func NewFilterSet(predicates ...*Predicate) *FilterSet {
	return &FilterSet{Predicates: predicates, now: time.Now}
}

// Keep applies the filter policy to an NMEA2000 message.
func (f *FilterSet) Keep(msg nmea.RawMessage) bool {
	now := f.now()
	hasSelect, selected := false, false
	for _, p := range f.Predicates {
		if p.Kind == Select {
			hasSelect = true
		}
		if !p.Match(msg, now) {
			continue
		}
		if p.Kind == Discard {
			return false
		}
		selected = true
	}
	if selected {
		return true
	}
	// no predicate matched: select-mode list (has at least one Select predicate) defaults to drop,
	// discard-mode list (only Discard predicates, none matched) defaults to keep.
	return !hasSelect
}

// KeepSentence applies the same policy as Keep, but against a parsed NMEA0183 sentence's (talker,
// formatter) pair instead of an NMEA2000 (pgn, source) pair.
func (f *FilterSet) KeepSentence(s nmea.Sentence) bool {
	hasSelect, selected := false, false
	for _, p := range f.Predicates {
		if p.Kind == Select {
			hasSelect = true
		}
		if !p.matchesSentence(s) {
			continue
		}
		if p.Kind == Discard {
			return false
		}
		selected = true
	}
	if selected {
		return true
	}
	return !hasSelect
}
