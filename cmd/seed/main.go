// Command main seeds the configured backend with fake profiles and posts.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"simplesns/internal/bootstrap"
	"simplesns/internal/config"
	"simplesns/internal/seed"
)

func main() {
	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	// Parse command line flags
	numUsers := flag.Int("users", 10, "Number of profiles to create")
	numPosts := flag.Int("posts", 60, "Number of posts to create")
	seedValue := flag.Int64("seed", 0, "Random seed for reproducible content (0 = random)")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall seeding timeout")
	flag.Parse()

	log.Printf("Target: %d users, %d posts", *numUsers, *numPosts)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ServiceName: "simplesns-seed", SkipTracing: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() {
		if err := rt.Backend.Close(); err != nil {
			log.Printf("Backend close failed: %v", err)
		}
	}()

	res, err := seed.Seed(ctx, rt.Backend, seed.Options{
		NumUsers: *numUsers,
		NumPosts: *numPosts,
		Seed:     *seedValue,
	})
	if err != nil {
		// Fatal would skip the deferred Close.
		log.Printf("Seeding failed after %d profiles, %d posts: %v", res.Profiles, res.Posts, err)
		exitCode = 1
		return
	}

	log.Printf("Seeded %d profiles and %d posts into the %s backend", res.Profiles, res.Posts, rt.Backend.Provider())
}
