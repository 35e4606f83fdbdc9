// Package identity generates and validates agent display names, and
// resolves window-to-name bindings for terminal sessions that don't carry
// a stable agent identity across restarts.
package identity

import (
	"math/rand"
	"regexp"
	"strings"

	"github.com/agentmail/agentmail-mcp/internal/apperr"
)

// EnforcementMode controls how register_agent reacts to a caller-supplied
// name that doesn't fit the Adjective+Noun convention.
type EnforcementMode string

const (
	// ModeStrict rejects any name failing Validate.
	ModeStrict EnforcementMode = "strict"
	// ModeCoerce accepts any syntactically safe name, sanitizing it.
	ModeCoerce EnforcementMode = "coerce"
	// ModeAlwaysAuto ignores the caller-supplied name entirely and always
	// generates one.
	ModeAlwaysAuto EnforcementMode = "always_auto"
)

var adjectives = []string{
	"Amber", "Azure", "Bold", "Bright", "Brisk", "Bronze", "Calm", "Charcoal",
	"Cobalt", "Coral", "Crimson", "Crystal", "Dawn", "Deft", "Dusky", "Eager",
	"Ebony", "Electric", "Emerald", "Faded", "Feral", "Fierce", "Frosty", "Gentle",
	"Gilded", "Golden", "Granite", "Gray", "Hasty", "Hollow", "Honest", "Humble",
	"Indigo", "Ivory", "Jade", "Jolly", "Keen", "Lively", "Lone", "Loyal",
	"Lucid", "Lunar", "Marble", "Mellow", "Midnight", "Mighty", "Misty", "Mossy",
	"Nimble", "Noble", "Obsidian", "Onyx", "Opal", "Pale", "Patient", "Pearl",
	"Placid", "Plucky", "Quartz", "Quick", "Quiet", "Radiant", "Restless", "Ruby",
	"Rustic", "Sable", "Sage", "Sandy", "Scarlet", "Sharp", "Silent", "Silver",
	"Slate", "Sleek", "Sly", "Solar", "Solemn", "Sparse", "Spry", "Steady",
	"Steel", "Stoic", "Stormy", "Sunny", "Swift", "Tawny", "Tidal", "Umber",
	"Valiant", "Velvet", "Vivid", "Weathered", "Whisper", "Wild", "Wily", "Wry",
	"Zealous", "Zephyr",
}

var nouns = []string{
	"Albatross", "Badger", "Basilisk", "Bear", "Beetle", "Bison", "Boar", "Cardinal",
	"Cheetah", "Cobra", "Condor", "Coral", "Cougar", "Coyote", "Crane", "Crow",
	"Dolphin", "Dragon", "Eagle", "Egret", "Elk", "Falcon", "Ferret", "Finch",
	"Fox", "Gazelle", "Gecko", "Grizzly", "Gull", "Harrier", "Hawk", "Heron",
	"Hornet", "Ibex", "Ibis", "Iguana", "Jackal", "Jaguar", "Kestrel", "Kite",
	"Kraken", "Lemur", "Leopard", "Lion", "Lynx", "Magpie", "Mantis", "Marlin",
	"Marmot", "Mongoose", "Moose", "Mustang", "Narwhal", "Newt", "Ocelot", "Orca",
	"Osprey", "Otter", "Owl", "Panther", "Peregrine", "Phoenix", "Pike", "Puma",
	"Python", "Quail", "Raccoon", "Raven", "Salamander", "Scorpion", "Serpent",
	"Shark", "Shrike", "Sparrow", "Sphinx", "Stag", "Stallion", "Stork", "Swan",
	"Tapir", "Tiger", "Toucan", "Viper", "Vulture", "Walrus", "Wasp", "Weasel",
	"Whale", "Wolf", "Wolverine", "Wombat", "Wren", "Yak", "Zebra",
}

var nameRE = regexp.MustCompile(`^[A-Z][a-zA-Z0-9]{1,31}$`)

var nounSet, adjSet map[string]bool
var combinedLower map[string]bool

func init() {
	nounSet = make(map[string]bool, len(nouns))
	for _, n := range nouns {
		nounSet[strings.ToLower(n)] = true
	}
	adjSet = make(map[string]bool, len(adjectives))
	for _, a := range adjectives {
		adjSet[strings.ToLower(a)] = true
	}
	combinedLower = make(map[string]bool, len(adjectives)*len(nouns))
	for _, a := range adjectives {
		for _, n := range nouns {
			combinedLower[strings.ToLower(a+n)] = true
		}
	}
}

// Generate returns a random PascalCase Adjective+Noun name. The caller is
// responsible for retrying against the store on a collision; the name pool
// (~9,200 combinations) makes repeated collisions within one project rare
// but not impossible.
func Generate(r *rand.Rand) string {
	a := adjectives[r.Intn(len(adjectives))]
	n := nouns[r.Intn(len(nouns))]
	return a + n
}

// IsWellFormed reports whether name matches the PascalCase shape expected
// of an Adjective+Noun name, independent of whether it's a *known*
// adjective/noun pair. Used by ModeCoerce, which only cares about safety.
func IsWellFormed(name string) bool {
	return nameRE.MatchString(name)
}

// IsKnownCombination reports whether name is exactly one of the generated
// Adjective+Noun combinations, in O(1) via a precomputed lowercase set.
func IsKnownCombination(name string) bool {
	return combinedLower[strings.ToLower(name)]
}

// Validate enforces ModeStrict: the name must be a well-formed, known
// Adjective+Noun combination.
func Validate(name string) error {
	if !IsWellFormed(name) {
		return apperr.Newf(apperr.InvalidAgentName, "agent name %q must be PascalCase, 2-32 characters", name)
	}
	if !IsKnownCombination(name) {
		return apperr.Newf(apperr.InvalidAgentName, "agent name %q is not a recognized Adjective+Noun combination", name)
	}
	return nil
}

// Sanitize strips anything outside [A-Za-z0-9] and forces PascalCase
// capitalization of the first rune and of the first letter after each
// stripped run, for ModeCoerce.
func Sanitize(name string) string {
	var b strings.Builder
	upperNext := false
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			if upperNext && r >= 'a' && r <= 'z' {
				r -= 'a' - 'A'
			}
			upperNext = false
			b.WriteRune(r)
		} else if b.Len() > 0 {
			upperNext = true
		}
	}
	out := b.String()
	if out == "" {
		return ""
	}
	if len(out) > 32 {
		out = out[:32]
	}
	return strings.ToUpper(out[:1]) + out[1:]
}

// Resolve applies mode to a caller-supplied name, returning the name to
// actually register (which may differ from requested) or an error.
func Resolve(mode EnforcementMode, requested string, r *rand.Rand) (string, error) {
	switch mode {
	case ModeAlwaysAuto:
		return Generate(r), nil
	case ModeStrict:
		if requested == "" {
			return Generate(r), nil
		}
		if err := Validate(requested); err != nil {
			return "", err
		}
		return requested, nil
	case ModeCoerce:
		if requested == "" {
			return Generate(r), nil
		}
		sanitized := Sanitize(requested)
		if sanitized == "" {
			return Generate(r), nil
		}
		return sanitized, nil
	default:
		return "", apperr.Newf(apperr.ConfigurationError, "unknown name enforcement mode %q", mode)
	}
}
