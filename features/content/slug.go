package content

import (
	"context"
	"fmt"
	"time"

	"github.com/gosimple/slug"
)

// maxSlugProbes bounds collision probing before falling back to a timestamp
// suffix, which is unique enough in practice.
const maxSlugProbes = 10

type SlugChecker interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// UniqueSlug slugifies the title and probes the store for collisions,
// appending -1, -2, ... until a free slug is found.
func UniqueSlug(ctx context.Context, store SlugChecker, title string) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "untitled"
	}

	candidate := base
	for i := 1; i <= maxSlugProbes; i++ {
		exists, err := store.SlugExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("probe slug %q: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}

	return fmt.Sprintf("%s-%d", base, time.Now().Unix()), nil
}
