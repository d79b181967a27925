package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidequest/backend/internal/adapters/events"
	"github.com/sidequest/backend/internal/adapters/store"
	"github.com/sidequest/backend/internal/application/services"
	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
)

func TestLevelForQuestCount(t *testing.T) {
	tests := []struct {
		completed int
		want      int
	}{
		{0, 1},
		{2, 1},
		{3, 2},
		{5, 2},
		{6, 3},
		{30, 11},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, services.LevelForQuestCount(tt.completed), "completed=%d", tt.completed)
	}
}

func TestLevelService_RecomputeNeverLowers(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()

	p := entities.NewUserProfile("u1", "Ada")
	p.Quests = []string{"q1", "q2", "q3", "q4"}
	seedProfile(mem, p)

	high := entities.NewUserProfile("u2", "Grace")
	high.Level = 7
	seedProfile(mem, high)

	svc := services.NewLevelService(mem, nil)

	level, err := svc.Recompute(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, level)
	assert.Equal(t, 2, loadProfile(t, mem, "u1").Level)

	level, err = svc.Recompute(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 7, level)

	level, err = svc.Recompute(ctx, "ghost")
	require.NoError(t, err)
	assert.Zero(t, level)
}

// staleUsersStore serves an old snapshot of one profile, as a replica that
// read before another replica's write would see it
type staleUsersStore struct {
	*store.MemoryStore
	uid   string
	stale *entities.UserProfile
}

func (s *staleUsersStore) Get(ctx context.Context, collection, id string) (*providers.Document, error) {
	if collection == services.CollectionUsers && id == s.uid {
		data, err := entities.ToDocument(s.stale)
		if err != nil {
			return nil, err
		}
		return &providers.Document{ID: id, Data: data}, nil
	}
	return s.MemoryStore.Get(ctx, collection, id)
}

func TestLevelService_StaleReadDoesNotLowerLevel(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()

	current := entities.NewUserProfile("u1", "Ada")
	current.Quests = []string{"q1", "q2", "q3", "q4", "q5", "q6"}
	current.Level = 3
	seedProfile(mem, current)

	stale := entities.NewUserProfile("u1", "Ada")
	stale.Quests = []string{"q1", "q2", "q3"}
	stale.Level = 1

	svc := services.NewLevelService(&staleUsersStore{MemoryStore: mem, uid: "u1", stale: stale}, nil)
	_, err := svc.Recompute(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, 3, loadProfile(t, mem, "u1").Level)
}

func TestLevelService_RunLevelsUpOnQuestEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := store.NewMemoryStore()
	seedProfile(mem, entities.NewUserProfile("u1", "Ada"))
	for _, id := range []string{"q1", "q2", "q3"} {
		data, _ := entities.ToDocument(&entities.Quest{QuestID: id, EstablishmentID: "e1", QuestName: "Quest " + id})
		require.NoError(t, mem.Set(ctx, services.CollectionQuests, id, data))
	}

	bus := events.NewInMemoryEventBus()
	defer bus.Close()

	levels := services.NewLevelService(mem, bus)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = levels.Run(ctx)
	}()

	mutations := services.NewProfileMutationService(mem, bus, fastRetry())
	// give Run time to subscribe before events are published
	time.Sleep(20 * time.Millisecond)
	for _, id := range []string{"q1", "q2", "q3"} {
		_, err := mutations.CompleteQuest(ctx, "u1", id)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return loadProfile(t, mem, "u1").Level == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
