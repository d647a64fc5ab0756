package tmdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"ancine-dash/internal/domain"
)

// castLimit is how many billed cast members are kept.
const castLimit = 5

type detailsResponse struct {
	domain.MovieDetails
	Credits struct {
		Cast []struct {
			Name  string `json:"name"`
			Order int    `json:"order"`
		} `json:"cast"`
		Crew []struct {
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`
}

func decodeDetails(payload []byte) (*domain.MovieDetails, error) {
	var resp detailsResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode movie details: %w", err)
	}
	if resp.ID == 0 {
		return nil, fmt.Errorf("decode movie details: response has no id")
	}
	d := resp.MovieDetails
	for _, m := range resp.Credits.Crew {
		if m.Job == "Director" {
			d.Directors = append(d.Directors, m.Name)
		}
	}
	for _, m := range resp.Credits.Cast {
		if len(d.Cast) == castLimit {
			break
		}
		d.Cast = append(d.Cast, m.Name)
	}
	return &d, nil
}

func removeArtifact(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
