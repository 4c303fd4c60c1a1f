package store

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/ashureev/writepal/internal/domain"
	"github.com/containerd/errdefs"
	"gopkg.in/yaml.v3"
)

// ParseProfiles decodes profiles from YAML or JSON. Three shapes are accepted:
// a list of profiles, a document with a top-level "profiles" list, or a
// mapping from user id to profile as in a profiles.json file.
func ParseProfiles(r io.Reader) ([]domain.Profile, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}

	switch doc.Kind {
	case yaml.SequenceNode:
		var profiles []domain.Profile
		if err := doc.Decode(&profiles); err != nil {
			return nil, fmt.Errorf("decode profile list: %w", err)
		}
		return profiles, nil

	case yaml.MappingNode:
		var wrapped struct {
			Profiles []domain.Profile `yaml:"profiles"`
		}
		if err := doc.Decode(&wrapped); err == nil && len(wrapped.Profiles) > 0 {
			return wrapped.Profiles, nil
		}

		var byUser map[string]domain.Profile
		if err := doc.Decode(&byUser); err != nil {
			return nil, fmt.Errorf("decode profile map: %w", err)
		}
		ids := make([]string, 0, len(byUser))
		for id := range byUser {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		profiles := make([]domain.Profile, 0, len(ids))
		for _, id := range ids {
			p := byUser[id]
			if p.UserID == "" {
				p.UserID = id
			}
			profiles = append(profiles, p)
		}
		return profiles, nil

	default:
		return nil, fmt.Errorf("unsupported profile document: %w", errdefs.ErrInvalidArgument)
	}
}

// ImportProfiles parses r and upserts every profile into repo.
func ImportProfiles(ctx context.Context, repo Repository, r io.Reader) (int, error) {
	profiles, err := ParseProfiles(r)
	if err != nil {
		return 0, err
	}
	for i := range profiles {
		if err := repo.UpsertProfile(ctx, &profiles[i]); err != nil {
			return i, fmt.Errorf("import profile %q: %w", profiles[i].UserID, err)
		}
	}
	return len(profiles), nil
}
