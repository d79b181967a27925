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
	apperrors "github.com/sidequest/backend/pkg/errors"
	"github.com/sidequest/backend/pkg/retry"
)

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
}

func loadProfile(t *testing.T, s providers.DocumentStore, uid string) *entities.UserProfile {
	t.Helper()
	p, err := services.NewProfileService(s, nil).Get(context.Background(), uid)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func TestProfileMutationService_LikeIsIdempotent(t *testing.T) {
	mem := store.NewMemoryStore()
	seedProfile(mem, entities.NewUserProfile("u1", "Ada"))
	svc := services.NewProfileMutationService(mem, nil, fastRetry())
	ctx := context.Background()

	require.NoError(t, svc.Like(ctx, "u1", "e1"))
	require.NoError(t, svc.Like(ctx, "u1", "e1"))

	p := loadProfile(t, mem, "u1")
	assert.Equal(t, []string{"e1"}, p.LikedEstablishments)
	assert.Empty(t, p.DislikedEstablishments)
}

func TestProfileMutationService_DislikeAfterLikeMovesID(t *testing.T) {
	mem := store.NewMemoryStore()
	seedProfile(mem, entities.NewUserProfile("u1", "Ada"))
	svc := services.NewProfileMutationService(mem, nil, fastRetry())
	ctx := context.Background()

	require.NoError(t, svc.Like(ctx, "u1", "e1"))
	require.NoError(t, svc.Dislike(ctx, "u1", "e1"))

	p := loadProfile(t, mem, "u1")
	assert.Empty(t, p.LikedEstablishments)
	assert.Equal(t, []string{"e1"}, p.DislikedEstablishments)
}

func TestProfileMutationService_LikeDislikeStayMutuallyExclusive(t *testing.T) {
	mem := store.NewMemoryStore()
	seedProfile(mem, entities.NewUserProfile("u1", "Ada"))
	svc := services.NewProfileMutationService(mem, nil, fastRetry())
	ctx := context.Background()

	ops := []struct {
		like bool
		id   string
	}{
		{true, "a"}, {false, "b"}, {false, "a"}, {true, "b"}, {true, "c"}, {true, "a"}, {false, "c"}, {false, "c"},
	}
	for _, op := range ops {
		if op.like {
			require.NoError(t, svc.Like(ctx, "u1", op.id))
		} else {
			require.NoError(t, svc.Dislike(ctx, "u1", op.id))
		}
	}

	p := loadProfile(t, mem, "u1")
	for _, id := range p.LikedEstablishments {
		assert.NotContains(t, p.DislikedEstablishments, id, "%s in both lists", id)
	}
	assert.ElementsMatch(t, []string{"b", "a"}, p.LikedEstablishments)
	assert.ElementsMatch(t, []string{"c"}, p.DislikedEstablishments)
}

func TestProfileMutationService_LikeUnknownProfile(t *testing.T) {
	svc := services.NewProfileMutationService(store.NewMemoryStore(), nil, fastRetry())

	err := svc.Like(context.Background(), "ghost", "e1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestProfileMutationService_SendFriendRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("appends sender once", func(t *testing.T) {
		mem := store.NewMemoryStore()
		seedProfile(mem, entities.NewUserProfile("bob", "Bob"))
		svc := services.NewProfileMutationService(mem, nil, fastRetry())

		require.NoError(t, svc.SendFriendRequest(ctx, "ann", "bob"))
		require.NoError(t, svc.SendFriendRequest(ctx, "ann", "bob"))

		assert.Equal(t, []string{"ann"}, loadProfile(t, mem, "bob").IncomingRequests)
	})

	t.Run("skips existing friends", func(t *testing.T) {
		mem := store.NewMemoryStore()
		bob := entities.NewUserProfile("bob", "Bob")
		bob.Friends = []string{"ann"}
		seedProfile(mem, bob)
		svc := services.NewProfileMutationService(mem, nil, fastRetry())

		require.NoError(t, svc.SendFriendRequest(ctx, "ann", "bob"))

		p := loadProfile(t, mem, "bob")
		assert.Empty(t, p.IncomingRequests)
		assert.Equal(t, 0, mem.Calls(store.OpUpdate))
	})

	t.Run("rejects self request", func(t *testing.T) {
		svc := services.NewProfileMutationService(store.NewMemoryStore(), nil, fastRetry())
		err := svc.SendFriendRequest(ctx, "ann", "ann")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}

func TestProfileMutationService_AcceptFriendRequest(t *testing.T) {
	ctx := context.Background()

	setup := func() *store.MemoryStore {
		mem := store.NewMemoryStore()
		bob := entities.NewUserProfile("bob", "Bob")
		bob.IncomingRequests = []string{"ann"}
		seedProfile(mem, bob)
		seedProfile(mem, entities.NewUserProfile("ann", "Ann"))
		return mem
	}

	t.Run("links both users", func(t *testing.T) {
		mem := setup()
		svc := services.NewProfileMutationService(mem, nil, fastRetry())

		require.NoError(t, svc.AcceptFriendRequest(ctx, "bob", "ann"))

		bob := loadProfile(t, mem, "bob")
		assert.Equal(t, []string{"ann"}, bob.Friends)
		assert.Empty(t, bob.IncomingRequests)
		assert.Equal(t, []string{"bob"}, loadProfile(t, mem, "ann").Friends)
	})

	t.Run("second write retried", func(t *testing.T) {
		mem := setup()
		flaky := &flakyStore{MemoryStore: mem, failID: "ann", failures: 2, err: apperrors.NewStoreUnavailableError("blip", nil)}
		svc := services.NewProfileMutationService(flaky, nil, fastRetry())

		require.NoError(t, svc.AcceptFriendRequest(ctx, "bob", "ann"))
		assert.Equal(t, []string{"bob"}, loadProfile(t, mem, "ann").Friends)
	})

	t.Run("partial write is repaired by calling again", func(t *testing.T) {
		mem := setup()
		flaky := &flakyStore{MemoryStore: mem, failID: "ann", failures: -1, err: apperrors.NewStoreUnavailableError("down", nil)}
		svc := services.NewProfileMutationService(flaky, nil, fastRetry())

		err := svc.AcceptFriendRequest(ctx, "bob", "ann")
		require.True(t, apperrors.IsType(err, apperrors.ErrorTypePartialWrite))
		assert.Equal(t, []string{"ann"}, loadProfile(t, mem, "bob").Friends)
		assert.Empty(t, loadProfile(t, mem, "ann").Friends)

		flaky.failures = 0
		require.NoError(t, svc.AcceptFriendRequest(ctx, "bob", "ann"))
		assert.Equal(t, []string{"ann"}, loadProfile(t, mem, "bob").Friends)
		assert.Equal(t, []string{"bob"}, loadProfile(t, mem, "ann").Friends)
	})

	t.Run("mutual requests leave both lists disjoint", func(t *testing.T) {
		mem := store.NewMemoryStore()
		seedProfile(mem, entities.NewUserProfile("ann", "Ann"))
		seedProfile(mem, entities.NewUserProfile("bob", "Bob"))
		svc := services.NewProfileMutationService(mem, nil, fastRetry())

		require.NoError(t, svc.SendFriendRequest(ctx, "ann", "bob"))
		require.NoError(t, svc.SendFriendRequest(ctx, "bob", "ann"))
		require.NoError(t, svc.AcceptFriendRequest(ctx, "ann", "bob"))

		for uid, friend := range map[string]string{"ann": "bob", "bob": "ann"} {
			p := loadProfile(t, mem, uid)
			assert.Equal(t, []string{friend}, p.Friends, uid)
			assert.NotContains(t, p.IncomingRequests, friend, uid)
		}
	})

	t.Run("no pending request", func(t *testing.T) {
		mem := setup()
		svc := services.NewProfileMutationService(mem, nil, fastRetry())

		err := svc.AcceptFriendRequest(ctx, "ann", "bob")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})
}

func TestProfileMutationService_CompleteQuest(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	seedProfile(mem, entities.NewUserProfile("u1", "Ada"))
	questData, _ := entities.ToDocument(&entities.Quest{QuestID: "q1", EstablishmentID: "e1", QuestName: "Try the special"})
	require.NoError(t, mem.Set(ctx, services.CollectionQuests, "q1", questData))

	bus := events.NewInMemoryEventBus()
	defer bus.Close()
	sub, err := bus.Subscribe(ctx, providers.EventChannelProfileUpdates)
	require.NoError(t, err)

	svc := services.NewProfileMutationService(mem, bus, fastRetry())

	flipped, err := svc.CompleteQuest(ctx, "u1", "q1")
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = svc.CompleteQuest(ctx, "u1", "q1")
	require.NoError(t, err)
	assert.False(t, flipped)

	assert.Equal(t, []string{"q1"}, loadProfile(t, mem, "u1").Quests)

	select {
	case ev := <-sub:
		assert.Equal(t, entities.ProfileEventQuestCompleted, ev.Type)
		assert.Equal(t, "e1", ev.EstablishmentID)
	case <-time.After(time.Second):
		t.Fatal("expected quest completed event")
	}
	select {
	case ev := <-sub:
		t.Fatalf("unexpected second event %v", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}

	done, err := services.NewQuestService(mem, nil, nil).IsCompleted(ctx, "u1", "q1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestProfileMutationService_CompleteUnknownQuest(t *testing.T) {
	mem := store.NewMemoryStore()
	seedProfile(mem, entities.NewUserProfile("u1", "Ada"))
	svc := services.NewProfileMutationService(mem, nil, fastRetry())

	_, err := svc.CompleteQuest(context.Background(), "u1", "nope")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
