package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
	"github.com/sidequest/backend/internal/infrastructure/observability"
	apperrors "github.com/sidequest/backend/pkg/errors"
	"github.com/sidequest/backend/pkg/retry"
)

// ProfileMutationService applies idempotent changes to profile sets.
// List fields are only ever changed with array-union / array-remove.
type ProfileMutationService struct {
	store    providers.DocumentStore
	events   providers.EventBus
	retryCfg retry.Config
}

// FriendAcceptRetryConfig bounds the retry of the second friend-accept write
func FriendAcceptRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:     3,
		InitialDelay:    50 * time.Millisecond,
		MaxDelay:        500 * time.Millisecond,
		BackoffFactor:   2.0,
		MaxTotalTimeout: 5 * time.Second,
	}
}

// NewProfileMutationService creates a new profile mutation service.
// events may be nil.
func NewProfileMutationService(store providers.DocumentStore, events providers.EventBus, retryCfg retry.Config) *ProfileMutationService {
	return &ProfileMutationService{store: store, events: events, retryCfg: retryCfg}
}

// Like adds the establishment to liked and removes it from disliked in one update
func (s *ProfileMutationService) Like(ctx context.Context, uid, establishmentID string) error {
	return s.swipe(ctx, uid, establishmentID, entities.FieldLikedEstablishments, entities.FieldDislikedEstablishments)
}

// Dislike adds the establishment to disliked and removes it from liked in one update
func (s *ProfileMutationService) Dislike(ctx context.Context, uid, establishmentID string) error {
	return s.swipe(ctx, uid, establishmentID, entities.FieldDislikedEstablishments, entities.FieldLikedEstablishments)
}

func (s *ProfileMutationService) swipe(ctx context.Context, uid, establishmentID, addTo, removeFrom string) error {
	if uid == "" || establishmentID == "" {
		return apperrors.NewValidationError("uid and establishment id are required")
	}
	return s.store.Update(ctx, CollectionUsers, uid, []providers.FieldUpdate{
		providers.ArrayUnion(addTo, establishmentID),
		providers.ArrayRemove(removeFrom, establishmentID),
	})
}

// SendFriendRequest records from in to's incoming requests unless they are
// already friends or the request is already pending.
func (s *ProfileMutationService) SendFriendRequest(ctx context.Context, from, to string) error {
	if from == "" || to == "" {
		return apperrors.NewValidationError("both users are required")
	}
	if from == to {
		return apperrors.NewValidationError("cannot send a friend request to yourself")
	}

	target, err := s.loadProfile(ctx, to)
	if err != nil {
		return err
	}
	if target.IsFriend(from) || target.HasIncomingRequest(from) {
		return nil
	}

	return s.store.Update(ctx, CollectionUsers, to, []providers.FieldUpdate{
		providers.ArrayUnion(entities.FieldIncomingRequests, from),
	})
}

// AcceptFriendRequest moves other from self's incoming requests to friends and
// self into other's friends, clearing any request self had sent the other way
// so friends and incoming requests stay disjoint on both profiles. The two writes are not atomic; when the second
// one keeps failing a PARTIAL_WRITE error is returned and calling again
// completes the link.
func (s *ProfileMutationService) AcceptFriendRequest(ctx context.Context, self, other string) error {
	if self == "" || other == "" {
		return apperrors.NewValidationError("both users are required")
	}
	if self == other {
		return apperrors.NewValidationError("cannot befriend yourself")
	}

	profile, err := s.loadProfile(ctx, self)
	if err != nil {
		return err
	}

	pending := profile.HasIncomingRequest(other)
	if !pending && !profile.IsFriend(other) {
		return apperrors.NewNotFoundError(fmt.Sprintf("no friend request from %s", other))
	}

	if pending {
		err := s.store.Update(ctx, CollectionUsers, self, []providers.FieldUpdate{
			providers.ArrayRemove(entities.FieldIncomingRequests, other),
			providers.ArrayUnion(entities.FieldFriends, other),
		})
		if err != nil {
			return err
		}
	}

	err = retry.DoWithLog(ctx, s.retryCfg, "friend-accept", func() error {
		err := s.store.Update(ctx, CollectionUsers, other, []providers.FieldUpdate{
			providers.ArrayRemove(entities.FieldIncomingRequests, self),
			providers.ArrayUnion(entities.FieldFriends, self),
		})
		if err != nil && !apperrors.Retryable(err) {
			return retry.Permanent(err)
		}
		return err
	}, func(attempt int, err error, nextDelay time.Duration) {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("uid", self).
			Str("friend_uid", other).
			Int("attempt", attempt).
			Dur("next_delay", nextDelay).
			Msg("friend link write failed, retrying")
	})
	if err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("uid", self).
			Str("friend_uid", other).
			Msg("friend accept left one-sided")
		return apperrors.NewPartialWriteError(fmt.Sprintf("%s accepted %s but the reverse link was not written", self, other), err)
	}

	if pending {
		event := entities.NewProfileEvent(entities.ProfileEventFriendAccepted, self)
		event.OtherUserID = other
		s.publish(ctx, event)
	}
	return nil
}

// CompleteQuest marks the quest completed for uid. It reports whether this call
// flipped the flag; completing an already completed quest is a no-op.
func (s *ProfileMutationService) CompleteQuest(ctx context.Context, uid, questID string) (bool, error) {
	if uid == "" || questID == "" {
		return false, apperrors.NewValidationError("uid and quest id are required")
	}

	existing, err := s.store.Get(ctx, userQuestsCollection(uid), questID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		if done, _ := existing.Data["completed"].(bool); done {
			return false, nil
		}
	}

	questDoc, err := s.store.Get(ctx, CollectionQuests, questID)
	if err != nil {
		return false, err
	}
	if questDoc == nil {
		return false, apperrors.NewNotFoundError(fmt.Sprintf("quest %s not found", questID))
	}
	establishmentID, _ := questDoc.Data["establishmentId"].(string)

	now := time.Now().UTC()
	completion, err := entities.ToDocument(&entities.QuestCompletion{QuestID: questID, Completed: true, CompletedAt: &now})
	if err != nil {
		return false, apperrors.NewInternalError("failed to encode quest completion", err)
	}
	if err := s.store.Set(ctx, userQuestsCollection(uid), questID, completion); err != nil {
		return false, err
	}
	if err := s.store.Update(ctx, CollectionUsers, uid, []providers.FieldUpdate{
		providers.ArrayUnion(entities.FieldQuests, questID),
	}); err != nil {
		return false, err
	}

	event := entities.NewProfileEvent(entities.ProfileEventQuestCompleted, uid)
	event.QuestID = questID
	event.EstablishmentID = establishmentID
	s.publish(ctx, event)
	return true, nil
}

func (s *ProfileMutationService) loadProfile(ctx context.Context, uid string) (*entities.UserProfile, error) {
	doc, err := s.store.Get(ctx, CollectionUsers, uid)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("profile %s not found", uid))
	}
	return decodeProfile(doc)
}

func (s *ProfileMutationService) publish(ctx context.Context, event *entities.ProfileEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, providers.EventChannelProfileUpdates, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("event_type", string(event.Type)).
			Str("uid", event.UserID).
			Msg("failed to publish profile event")
	}
}
