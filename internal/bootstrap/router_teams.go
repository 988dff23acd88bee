package bootstrap

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"query_router/core/domain"
)

type teamsFile struct {
	Teams []domain.Team `yaml:"teams"`
}

// LoadTeams reads a YAML team directory. An empty path yields the defaults.
func LoadTeams(path string) ([]domain.Team, error) {
	if path == "" {
		return domain.DefaultTeams, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read teams file: %w", err)
	}

	var f teamsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse teams file: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Teams))
	teams := make([]domain.Team, 0, len(f.Teams))
	for _, t := range f.Teams {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			return nil, fmt.Errorf("teams file %s: team without a name", path)
		}
		if _, dup := seen[t.Name]; dup {
			return nil, fmt.Errorf("teams file %s: duplicate team %q", path, t.Name)
		}
		seen[t.Name] = struct{}{}
		teams = append(teams, t)
	}
	if len(teams) == 0 {
		return nil, fmt.Errorf("teams file %s: no teams defined", path)
	}
	return teams, nil
}
