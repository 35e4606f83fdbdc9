package identity

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProducesKnownCombination(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	name := Generate(r)
	assert.True(t, IsKnownCombination(name))
	assert.True(t, IsWellFormed(name))
}

func TestValidateRejectsUnknownCombination(t *testing.T) {
	err := Validate("PurpleTrashPanda")
	assert.Error(t, err)
}

func TestValidateAcceptsKnownCombination(t *testing.T) {
	err := Validate("CrimsonFalcon")
	assert.NoError(t, err)
}

func TestSanitizeStripsInvalidCharacters(t *testing.T) {
	assert.Equal(t, "CoolAgent42", Sanitize("cool-agent_42!!"))
}

func TestResolveStrictRejectsBadName(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	_, err := Resolve(ModeStrict, "not-a-real-name", r)
	assert.Error(t, err)
}

func TestResolveCoerceSanitizes(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	name, err := Resolve(ModeCoerce, "weird_name!!", r)
	require.NoError(t, err)
	assert.Equal(t, "WeirdName", name)
}

func TestResolveAlwaysAutoIgnoresRequested(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	name, err := Resolve(ModeAlwaysAuto, "IgnoreMe", r)
	require.NoError(t, err)
	assert.NotEqual(t, "IgnoreMe", name)
	assert.True(t, IsKnownCombination(name))
}

func TestDetectMistakesFlagsBroadcastAndProgramNames(t *testing.T) {
	assert.Contains(t, DetectMistakes("all"), MistakeBroadcast)
	assert.Contains(t, DetectMistakes("claude"), MistakeProgramName)
	assert.Contains(t, DetectMistakes("backend"), MistakeRoleWord)
	assert.Empty(t, DetectMistakes("CrimsonFalcon"))
}

func TestValidateWindowUUID(t *testing.T) {
	assert.NoError(t, ValidateWindowUUID(NewWindowUUID()))
	assert.Error(t, ValidateWindowUUID("not-a-uuid"))
}
