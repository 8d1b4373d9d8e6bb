// Package perms is responsible for determining if a particular user has
// access to the LoansBot. Interactions are not privileged and are often
// subject to review.
package perms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/redditproxy"
	"github.com/LoansBot/loansbot/pkg/cache"
	"github.com/LoansBot/loansbot/pkg/config"
	"github.com/LoansBot/loansbot/pkg/logger"
)

const cacheKeyPrefix = "perms/"

// snapshotTTL bounds how long user info is trusted without any
// invalidation event.
const snapshotTTL = 365 * 24 * time.Hour

// Snapshot is the cached information on a user.
type Snapshot struct {
	Karma             int     `json:"karma"`
	CommentKarma      int     `json:"comment_karma"`
	LinkKarma         int     `json:"link_karma"`
	AccountCreatedAt  float64 `json:"account_created_at"`
	ApprovedSubmitter bool    `json:"borrow_approved_submitter"`
	Moderator         bool    `json:"borrow_moderator"`
	Banned            bool    `json:"borrow_banned"`
	CheckedKarmaAt    float64 `json:"checked_karma_at"`
}

// Manager caches user metadata and applies the interaction gate.
type Manager struct {
	cache   cache.Cache
	proxy   *redditproxy.Client
	cfg     config.PermissionsConfig
	primary string
	logger  *logger.Logger
	now     func() time.Time
}

// NewManager builds a Manager. primarySubreddit is where moderator,
// approved-submitter and ban state is checked.
func NewManager(c cache.Cache, proxy *redditproxy.Client, cfg config.PermissionsConfig, primarySubreddit string, log *logger.Logger) *Manager {
	return &Manager{
		cache:   c,
		proxy:   proxy,
		cfg:     cfg,
		primary: primarySubreddit,
		logger:  log,
		now:     time.Now,
	}
}

// CanInteract determines if the user may interact via the LoansBot. Ignored
// users and deleted accounts never can; bans always block; moderators and
// approved submitters always may; everyone else passes the karma and
// account-age gate.
func (m *Manager) CanInteract(ctx context.Context, username, workerID string, version float64) (bool, error) {
	if m.cfg.IsIgnored(username) {
		return false, nil
	}
	info, err := m.FetchInfo(ctx, username, workerID, version)
	if err != nil {
		return false, err
	}
	if info == nil {
		return false, nil
	}

	accountAge := time.Duration(float64(m.now().Unix())-info.AccountCreatedAt) * time.Second
	return !info.Banned && (info.Moderator || info.ApprovedSubmitter ||
		(info.Karma > m.cfg.KarmaMin &&
			info.CommentKarma > m.cfg.CommentKarmaMin &&
			accountAge > m.cfg.AccountAgeMin)), nil
}

// FetchInfo returns the information we have on the user, from the cache
// when it is fresh enough and from the proxy otherwise. Nil without error
// means the account does not exist.
func (m *Manager) FetchInfo(ctx context.Context, username, workerID string, version float64) (*Snapshot, error) {
	snapshot, hit, err := m.cachedSnapshot(ctx, username)
	if err != nil {
		return nil, err
	}
	if hit {
		return snapshot, nil
	}

	userInfo, exists, err := m.proxy.ShowUser(ctx, workerID, version, username)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	isModerator, err := m.proxy.UserIsModerator(ctx, workerID, version, m.primary, username)
	if err != nil {
		return nil, err
	}
	isApproved, err := m.proxy.UserIsApproved(ctx, workerID, version, m.primary, username)
	if err != nil {
		return nil, err
	}
	isBanned, err := m.proxy.UserIsBanned(ctx, workerID, version, m.primary, username)
	if err != nil {
		return nil, err
	}

	fresh := &Snapshot{
		Karma:             userInfo.CumulativeKarma,
		CommentKarma:      userInfo.CommentKarma,
		LinkKarma:         userInfo.LinkKarma,
		AccountCreatedAt:  userInfo.CreatedAtUTCSeconds,
		ApprovedSubmitter: isApproved,
		Moderator:         isModerator,
		Banned:            isBanned,
		CheckedKarmaAt:    float64(m.now().Unix()),
	}

	encoded, err := json.Marshal(fresh)
	if err != nil {
		return nil, err
	}
	if err := m.cache.Set(ctx, cacheKey(username), encoded, snapshotTTL); err != nil {
		return nil, fmt.Errorf("cache snapshot for %s: %w", username, err)
	}
	return fresh, nil
}

// FlushCache deletes any cached information on the user, e.g. after a
// moderator event invalidated it. Reports whether there was a cache entry.
func (m *Manager) FlushCache(ctx context.Context, username string) (bool, error) {
	return m.cache.Delete(ctx, cacheKey(username))
}

func (m *Manager) cachedSnapshot(ctx context.Context, username string) (*Snapshot, bool, error) {
	raw, err := m.cache.Get(ctx, cacheKey(username))
	if errors.Is(err, cache.ErrMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	// A legacy snapshot predates the comment_karma field; treat it as
	// a miss so it gets refreshed.
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		m.logger.Warn("malformed permission snapshot", zap.String("username", username), zap.Error(err))
		return nil, false, nil
	}
	if _, ok := fields["comment_karma"]; !ok {
		return nil, false, nil
	}

	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, false, nil
	}

	// If they earned 100 karma/day they would have enough karma by now;
	// recheck rather than trusting the stale count.
	age := float64(m.now().Unix()) - snapshot.CheckedKarmaAt
	if age > 86400 &&
		snapshot.Karma < m.cfg.KarmaMin &&
		snapshot.Karma+int(age*100/86400) >= m.cfg.KarmaMin {
		return nil, false, nil
	}

	return &snapshot, true, nil
}

func cacheKey(username string) string {
	return cacheKeyPrefix + strings.ToLower(username)
}
