package identity

import (
	"regexp"
	"strings"
)

// MistakeKind classifies a likely-wrong agent name a caller supplied,
// surfaced as a warning (never a hard rejection) so the caller can correct
// course without losing the call.
type MistakeKind string

const (
	MistakeProgramName  MistakeKind = "program_name"
	MistakeUnixUsername MistakeKind = "unix_username"
	MistakeEmailShape   MistakeKind = "email_shape"
	MistakeBroadcast    MistakeKind = "broadcast_word"
	MistakeRoleWord     MistakeKind = "role_descriptive"
)

var programNames = map[string]bool{
	"claude": true, "gpt": true, "gpt4": true, "codex": true, "copilot": true,
	"cursor": true, "aider": true, "gemini": true, "llama": true, "bot": true,
	"assistant": true, "ai": true, "agent": true,
}

var broadcastWords = map[string]bool{
	"all": true, "everyone": true, "team": true, "anyone": true, "broadcast": true,
}

var roleWords = map[string]bool{
	"backend": true, "frontend": true, "reviewer": true, "tester": true,
	"developer": true, "engineer": true, "admin": true, "worker": true,
	"builder": true, "coder": true,
}

var emailShapeRE = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
var unixUsernameRE = regexp.MustCompile(`^[a-z][a-z0-9_-]{2,15}$`)

// DetectMistakes returns every heuristic mistake signal matched by name.
// Callers attach these as warnings on the register_agent response rather
// than rejecting the call — a false positive should never block a legal
// name, only suggest a likely-better one.
func DetectMistakes(name string) []MistakeKind {
	var out []MistakeKind
	lower := strings.ToLower(name)

	if programNames[lower] {
		out = append(out, MistakeProgramName)
	}
	if broadcastWords[lower] {
		out = append(out, MistakeBroadcast)
	}
	if roleWords[lower] {
		out = append(out, MistakeRoleWord)
	}
	if emailShapeRE.MatchString(name) {
		out = append(out, MistakeEmailShape)
	}
	if !IsWellFormed(name) && unixUsernameRE.MatchString(name) && strings.ToLower(name) == name {
		out = append(out, MistakeUnixUsername)
	}
	return out
}
