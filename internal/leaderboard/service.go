package leaderboard

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/edusync/internal/domain"
	"github.com/victornm/edusync/internal/errors"
	"github.com/victornm/edusync/internal/event"
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

// Service keeps one sorted set per assessment, fed by result events.
// A member is "<result ID>:<user ID>" scored with the attempt's score.
type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameResultSaved, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventResultSaved))
	})

	s.eb.Subscribe(domain.EventNameResultDeleted, func(ctx context.Context, e event.Event) error {
		return s.RemoveEntry(ctx, e.(domain.EventResultDeleted))
	})

	return s
}

type GetLeaderboardRequest struct {
	AssessmentID uuid.UUID
}

// GetLeaderboard returns all attempts at an assessment, best score first.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.getLeaderboardKey(req.AssessmentID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.NotFound("leaderboard not found: assessment=%s", req.AssessmentID)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		resultID, userID, err := parseMember(z.Member.(string))
		if err != nil {
			return nil, fmt.Errorf("get leaderboard: %w", err)
		}

		entries = append(entries, domain.LeaderboardEntry{
			ResultID: resultID,
			UserID:   userID,
			Score:    z.Score,
		})
	}

	return &domain.Leaderboard{
		AssessmentID: req.AssessmentID,
		Entries:      entries,
	}, nil
}

// UpdateLeaderboard writes the attempt's score. If an update moved the result to another
// assessment or user, the previous entry is removed.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventResultSaved) error {
	r := e.Result
	key, member := s.getLeaderboardKey(r.AssessmentID), formatMember(r)

	prev, err := s.redis.Get(ctx, s.getIndexKey(r.ResultID)).Result()
	if err != nil && !stderrors.Is(err, redis.Nil) {
		return fmt.Errorf("update leaderboard: get index: %w", err)
	}

	_, err = s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if prevKey, prevMember, ok := strings.Cut(prev, "|"); ok && (prevKey != key || prevMember != member) {
			p.ZRem(ctx, prevKey, prevMember)
		}

		p.ZAdd(ctx, key, redis.Z{
			Score:  r.Score.InexactFloat64(),
			Member: member,
		})
		p.Set(ctx, s.getIndexKey(r.ResultID), key+"|"+member, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return nil
}

// RemoveEntry drops a deleted result from its leaderboard.
func (s *Service) RemoveEntry(ctx context.Context, e domain.EventResultDeleted) error {
	r := e.Result

	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, s.getLeaderboardKey(r.AssessmentID), formatMember(r))
		p.Del(ctx, s.getIndexKey(r.ResultID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove leaderboard entry: %w", err)
	}

	return nil
}

func (s *Service) getLeaderboardKey(assessment uuid.UUID) string {
	return fmt.Sprintf("%s:assessment:%s:leaderboard", s.prefix, assessment)
}

func (s *Service) getIndexKey(result uuid.UUID) string {
	return fmt.Sprintf("%s:result:%s:leaderboard", s.prefix, result)
}

func formatMember(r domain.Result) string {
	return r.ResultID.String() + ":" + r.UserID.String()
}

func parseMember(m string) (resultID, userID uuid.UUID, err error) {
	rs, us, ok := strings.Cut(m, ":")
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("malformed member %q", m)
	}

	if resultID, err = uuid.Parse(rs); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("malformed member %q: %w", m, err)
	}
	if userID, err = uuid.Parse(us); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("malformed member %q: %w", m, err)
	}

	return resultID, userID, nil
}
