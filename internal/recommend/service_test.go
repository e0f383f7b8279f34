package recommend

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yunichie/Play-This-Next/internal/library"
)

type fakeGenerator struct {
	calls  int
	output string
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

type fakeLister struct {
	games []library.Game
}

func (f *fakeLister) List(_ context.Context, _ string, _ library.Filter) ([]library.Game, error) {
	return f.games, nil
}

func sampleLibrary() []library.Game {
	rating := 9
	return []library.Game{
		{AppID: 570, Name: "Dota 2", PlaytimeForever: 12000, Status: "playing", UserRating: &rating},
		{AppID: 292030, Name: "The Witcher 3", PlaytimeForever: 0, Status: "backlog"},
		{AppID: 1245620, Name: "Elden Ring", PlaytimeForever: 30, Status: "backlog"},
	}
}

const modelOutput = `[{"appid":292030,"name":"The Witcher 3","reasoning":"Long RPG for long sessions","match_score":92}]`

func newTestService(t *testing.T, gen *fakeGenerator, lister *fakeLister) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	return NewService(gen, lister, cache)
}

func TestRecommendGeneratesAndParses(t *testing.T) {
	gen := &fakeGenerator{output: modelOutput}
	svc := newTestService(t, gen, &fakeLister{games: sampleLibrary()})

	recs, err := svc.Recommend(context.Background(), "user-1", "something long")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(292030), recs[0].AppID)
	assert.Equal(t, 92, recs[0].MatchScore)
}

func TestRecommendCachesResult(t *testing.T) {
	gen := &fakeGenerator{output: modelOutput}
	svc := newTestService(t, gen, &fakeLister{games: sampleLibrary()})
	ctx := context.Background()

	first, err := svc.Recommend(ctx, "user-1", "rpg please")
	require.NoError(t, err)
	second, err := svc.Recommend(ctx, "user-1", "rpg please")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, gen.calls)

	// a different query misses the cache
	_, err = svc.Recommend(ctx, "user-1", "shooters please")
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls)
}

func TestRecommendCacheIsPerUser(t *testing.T) {
	gen := &fakeGenerator{output: modelOutput}
	svc := newTestService(t, gen, &fakeLister{games: sampleLibrary()})
	ctx := context.Background()

	_, err := svc.Recommend(ctx, "user-1", "rpg please")
	require.NoError(t, err)
	_, err = svc.Recommend(ctx, "user-2", "rpg please")
	require.NoError(t, err)

	assert.Equal(t, 2, gen.calls)
}

func TestRecommendEmptyLibrary(t *testing.T) {
	gen := &fakeGenerator{output: modelOutput}
	svc := newTestService(t, gen, &fakeLister{})

	_, err := svc.Recommend(context.Background(), "user-1", "")
	assert.ErrorIs(t, err, ErrEmptyLibrary)
	assert.Equal(t, 0, gen.calls)
}

func TestRecommendStripsMarkdownFence(t *testing.T) {
	gen := &fakeGenerator{output: "```json\n" + modelOutput + "\n```"}
	svc := newTestService(t, gen, &fakeLister{games: sampleLibrary()})

	recs, err := svc.Recommend(context.Background(), "user-1", "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "The Witcher 3", recs[0].Name)
}

func TestRecommendRejectsUnparseableOutput(t *testing.T) {
	gen := &fakeGenerator{output: "Sorry, I cannot help with that."}
	svc := newTestService(t, gen, &fakeLister{games: sampleLibrary()})

	_, err := svc.Recommend(context.Background(), "user-1", "")
	require.Error(t, err)
}

func TestBuildPromptShape(t *testing.T) {
	prompt := buildPrompt("cozy games", sampleLibrary())

	// most played feeds taste, backlog feeds candidates
	assert.Contains(t, prompt, "Dota 2 (200h played, rated 9/10)")
	assert.Contains(t, prompt, "- The Witcher 3 (ID: 292030, 0h played)")
	assert.Contains(t, prompt, `"cozy games"`)
	// unplayed games never appear in the most-played list
	assert.NotContains(t, prompt, "The Witcher 3 (0h played)")
}
