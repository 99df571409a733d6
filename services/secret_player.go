package services

import (
	"github.com/gofiber/fiber/v2"
)

// SecretPlayerService picks the secret entity for a round. Selection itself
// is delegated to the external player pool.
type SecretPlayerService struct {
	Pool PlayerPoolService
}

func NewSecretPlayerService(pool PlayerPoolService) *SecretPlayerService {
	return &SecretPlayerService{Pool: pool}
}

// PickSecret returns a random player id from the game's active roster.
func (s *SecretPlayerService) PickSecret(game string) (string, error) {
	id, err := s.Pool.RandomPlayerID(game)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "failed to pick secret player: "+err.Error())
	}
	return id, nil
}
