package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pvp-match-system/config"
)

var titleCaser = cases.Title(language.English)

// NormalizeKey canonicalizes an attribute value for equality comparison
// ("SK Gaming" and "sk gaming" compare equal).
func NormalizeKey(v string) string {
	return slug.Make(v)
}

// NormalizeName transliterates and lowercases a free-text value. Used when
// matching player names typed by users against roster values.
func NormalizeName(v string) string {
	return strings.Join(strings.Fields(strings.ToLower(unidecode.Unidecode(v))), " ")
}

// DisplayLabel turns a hint key into a human-readable label
// ("birth_year" → "Birth Year").
func DisplayLabel(key string) string {
	return titleCaser.String(strings.ReplaceAll(key, "_", " "))
}

// HintValueService reads revealable attributes of a secret player from the
// external pool profile.
type HintValueService struct {
	Pool PlayerPoolService
}

func NewHintValueService(pool PlayerPoolService) *HintValueService {
	return &HintValueService{Pool: pool}
}

// HintValue returns the raw value of one attribute of a player.
func (s *HintValueService) HintValue(game, playerID, key string) (string, error) {
	profile, err := s.Pool.PlayerProfile(game, playerID)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "failed to load player profile: "+err.Error())
	}
	v, ok := profile[key]
	if !ok {
		return "", fiber.NewError(fiber.StatusNotFound, "unknown hint key: "+key)
	}
	return v, nil
}

// ResolveHints looks up several attributes of one player in a single
// profile fetch.
func (s *HintValueService) ResolveHints(game, playerID string, keys []string) (map[string]string, error) {
	profile, err := s.Pool.PlayerProfile(game, playerID)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load player profile: "+err.Error())
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok := profile[k]
		if !ok {
			return nil, fiber.NewError(fiber.StatusNotFound, "unknown hint key: "+k)
		}
		out[k] = v
	}
	return out, nil
}

// EvaluatePredicate answers a whois question against one attribute value.
// The operator must already be validated against the question metadata.
func EvaluatePredicate(meta config.QuestionMeta, attrValue, operator, value string) (bool, error) {
	switch meta.Type {
	case "number":
		a, err := strconv.ParseFloat(strings.TrimSpace(attrValue), 64)
		if err != nil {
			return false, fmt.Errorf("attribute %q is not numeric", attrValue)
		}
		b, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return false, fiber.NewError(fiber.StatusBadRequest, "question value must be numeric")
		}
		switch operator {
		case "eq":
			return a == b, nil
		case "neq":
			return a != b, nil
		case "gt":
			return a > b, nil
		case "gte":
			return a >= b, nil
		case "lt":
			return a < b, nil
		case "lte":
			return a <= b, nil
		}
	case "bool":
		a := strings.EqualFold(strings.TrimSpace(attrValue), "true")
		b := strings.EqualFold(strings.TrimSpace(value), "true")
		switch operator {
		case "eq":
			return a == b, nil
		case "neq":
			return a != b, nil
		}
	default: // string
		a := NormalizeKey(attrValue)
		b := NormalizeKey(value)
		switch operator {
		case "eq":
			return a == b, nil
		case "neq":
			return a != b, nil
		case "contains":
			return strings.Contains(a, b), nil
		}
	}
	return false, fiber.NewError(fiber.StatusBadRequest, "unsupported operator "+operator+" for question type "+meta.Type)
}
