// Package seed provides helpers to create demo data through the backend
// facade. These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"strings"

	"simplesns/internal/backend"
	"simplesns/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

var tagPool = []string{
	"golang", "cloud", "aws", "azure", "gcp", "serverless", "devops", "travel",
	"food", "music", "photography", "books", "running", "coffee", "weekend",
}

// Factory builds fake profiles and posts and writes them through a Backend.
type Factory struct {
	backend backend.Backend
	faker   *gofakeit.Faker
}

// NewFactory creates a Factory. A zero seed draws a random one.
func NewFactory(b backend.Backend, seed int64) *Factory {
	return &Factory{backend: b, faker: gofakeit.New(seed)}
}

// Caller returns a fake identity with a stable user id derived from n.
func (f *Factory) Caller(n int) models.Caller {
	return models.Caller{
		UserID:   fmt.Sprintf("seed-user-%03d", n),
		Nickname: f.faker.Username(),
	}
}

// BuildProfile returns a profile update for caller without persisting it.
func (f *Factory) BuildProfile() models.UpdateProfileInput {
	nickname := f.faker.FirstName() + " " + f.faker.LastName()
	bio := f.faker.Sentence(f.faker.Number(6, 16))
	return models.UpdateProfileInput{Nickname: &nickname, Bio: &bio}
}

// BuildPost returns a post body without persisting it. Roughly a third of
// posts are markdown and most carry one to three tags.
func (f *Factory) BuildPost() models.CreatePostInput {
	in := models.CreatePostInput{
		Content: f.faker.Paragraph(1, f.faker.Number(1, 4), f.faker.Number(6, 14), "\n\n"),
	}
	if f.faker.Number(0, 2) == 0 {
		in.IsMarkdown = true
		in.Content = "## " + strings.TrimSuffix(f.faker.Sentence(4), ".") + "\n\n" + in.Content
	}
	if f.faker.Number(0, 4) > 0 {
		in.Tags = f.tags(f.faker.Number(1, 3))
	}
	return in
}

func (f *Factory) tags(n int) []string {
	picked := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for len(picked) < n {
		t := tagPool[f.faker.Number(0, len(tagPool)-1)]
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		picked = append(picked, t)
	}
	return picked
}

// CreateProfile writes a fake profile for caller.
func (f *Factory) CreateProfile(ctx context.Context, caller models.Caller) (*models.Profile, error) {
	return f.backend.UpdateProfile(ctx, caller, f.BuildProfile())
}

// CreatePost writes a fake post authored by caller.
func (f *Factory) CreatePost(ctx context.Context, caller models.Caller, overrides ...func(*models.CreatePostInput)) (*models.Post, error) {
	in := f.BuildPost()
	for _, o := range overrides {
		o(&in)
	}
	return f.backend.CreatePost(ctx, caller, in)
}
