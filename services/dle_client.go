// pvp-match-system/services/dle_client.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// PlayerPoolService is the external player-dataset collaborator: the active
// roster per game, random secret selection and per-player attribute
// profiles.
type PlayerPoolService interface {
	RandomPlayerID(game string) (string, error)
	Candidates(game string) ([]string, error)
	PlayerProfile(game, playerID string) (map[string]string, error)
}

// FieldDelta is one compared attribute of a guess.
type FieldDelta struct {
	Key        string `json:"key"`
	GuessValue string `json:"guess_value"`
	State      string `json:"state"` // exact / partial / higher / lower / wrong
}

// ComparisonResult is the structured hint set for one guess against the
// secret.
type ComparisonResult struct {
	Correct bool         `json:"correct"`
	Fields  []FieldDelta `json:"fields"`
}

// PlayerCompareService is the external field-by-field comparison
// collaborator.
type PlayerCompareService interface {
	Compare(game, secretPlayerID, guessPlayerID string) (*ComparisonResult, error)
}

// DleServiceClient talks to the DLE data service over HTTP. It implements
// both PlayerPoolService and PlayerCompareService.
type DleServiceClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewDleServiceClient(baseURL, token string) *DleServiceClient {
	return &DleServiceClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *DleServiceClient) RandomPlayerID(game string) (string, error) {
	var out struct {
		PlayerID string `json:"player_id"`
	}
	path := fmt.Sprintf("/api/v1/games/%s/players/random", url.PathEscape(game))
	if err := c.get(path, &out); err != nil {
		return "", err
	}
	if out.PlayerID == "" {
		return "", fmt.Errorf("dle service returned empty player id for game %s", game)
	}
	return out.PlayerID, nil
}

func (c *DleServiceClient) Candidates(game string) ([]string, error) {
	var out struct {
		PlayerIDs []string `json:"player_ids"`
	}
	path := fmt.Sprintf("/api/v1/games/%s/players", url.PathEscape(game))
	if err := c.get(path, &out); err != nil {
		return nil, err
	}
	return out.PlayerIDs, nil
}

func (c *DleServiceClient) PlayerProfile(game, playerID string) (map[string]string, error) {
	var out struct {
		Attributes map[string]string `json:"attributes"`
	}
	path := fmt.Sprintf("/api/v1/games/%s/players/%s", url.PathEscape(game), url.PathEscape(playerID))
	if err := c.get(path, &out); err != nil {
		return nil, err
	}
	return out.Attributes, nil
}

func (c *DleServiceClient) Compare(game, secretPlayerID, guessPlayerID string) (*ComparisonResult, error) {
	reqBody := map[string]any{
		"game":            game,
		"secret_player_id": secretPlayerID,
		"guess_player_id":  guessPlayerID,
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequest("POST", c.BaseURL+"/api/v1/players/compare", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("DLE service /compare returned %d: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("player comparison failed: %d", resp.StatusCode)
	}

	var out ComparisonResult
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *DleServiceClient) get(path string, out any) error {
	req, err := http.NewRequest("GET", c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("DLE service %s returned %d: %s", path, resp.StatusCode, string(body))
		return fmt.Errorf("dle service request failed: %d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}
