package seed

import (
	"context"
	"fmt"
	"log/slog"

	"simplesns/internal/backend"
	"simplesns/internal/middleware"
	"simplesns/internal/models"
)

// Options configuration for the seeder
type Options struct {
	NumUsers int
	NumPosts int
	// Seed makes generated content reproducible; zero is random.
	Seed int64
}

// Result reports what Seed wrote.
type Result struct {
	Profiles int
	Posts    int
}

// Seed creates NumUsers profiles and spreads NumPosts posts across them.
func Seed(ctx context.Context, b backend.Backend, opts Options) (Result, error) {
	var res Result
	if opts.NumUsers <= 0 {
		return res, fmt.Errorf("seed needs at least one user")
	}
	f := NewFactory(b, opts.Seed)

	callers := make([]models.Caller, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		caller := f.Caller(i + 1)
		if _, err := f.CreateProfile(ctx, caller); err != nil {
			return res, fmt.Errorf("create profile %s: %w", caller.UserID, err)
		}
		callers = append(callers, caller)
		res.Profiles++
	}

	for i := 0; i < opts.NumPosts; i++ {
		caller := callers[f.faker.Number(0, len(callers)-1)]
		if _, err := f.CreatePost(ctx, caller); err != nil {
			return res, fmt.Errorf("create post %d: %w", i, err)
		}
		res.Posts++
	}

	middleware.Logger.InfoContext(ctx, "seed complete",
		slog.String("provider", b.Provider()),
		slog.Int("profiles", res.Profiles),
		slog.Int("posts", res.Posts),
	)
	return res, nil
}
