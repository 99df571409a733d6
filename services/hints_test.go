package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvp-match-system/config"
)

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "sk-gaming", NormalizeKey("SK Gaming"))
	assert.Equal(t, NormalizeKey("T1"), NormalizeKey(" t1 "))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "zero cool", NormalizeName("  Zéro   Cool "))
}

func TestDisplayLabel(t *testing.T) {
	assert.Equal(t, "Birth Year", DisplayLabel("birth_year"))
	assert.Equal(t, "Team", DisplayLabel("team"))
}

func TestHintValueService(t *testing.T) {
	s := NewHintValueService(newStubPool())

	v, err := s.HintValue("lol", "faker", "team")
	require.NoError(t, err)
	assert.Equal(t, "T1", v)

	_, err = s.HintValue("lol", "faker", "shoe_size")
	require.Error(t, err)

	out, err := s.ResolveHints("lol", "caps", []string{"team", "country"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"team": "G2", "country": "DK"}, out)
}

func TestEvaluatePredicateNumber(t *testing.T) {
	meta := config.QuestionMeta{Type: "number", Operators: []string{"eq", "gt", "lte"}}

	ok, err := EvaluatePredicate(meta, "1996", "gt", "1995")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvaluatePredicate(meta, "1996", "lte", "1995")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = EvaluatePredicate(meta, "1996", "gt", "banana")
	require.Error(t, err)
}

func TestEvaluatePredicateBool(t *testing.T) {
	meta := config.QuestionMeta{Type: "bool", Operators: []string{"eq"}}

	ok, err := EvaluatePredicate(meta, "TRUE", "eq", "true")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvaluatePredicate(meta, "false", "eq", "true")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluatePredicateString(t *testing.T) {
	meta := config.QuestionMeta{Type: "string", Operators: []string{"eq", "neq", "contains"}}

	ok, err := EvaluatePredicate(meta, "SK Gaming", "eq", "sk gaming")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvaluatePredicate(meta, "SK Gaming", "contains", "gaming")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = EvaluatePredicate(meta, "KR", "gt", "DK")
	require.Error(t, err)
}
