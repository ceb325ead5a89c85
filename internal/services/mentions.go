package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/anonto42/snapfeed/backend/internal/repositories"
	"github.com/samber/lo"
)

var mentionPattern = regexp.MustCompile(`(?:^|[^\w@.])@([A-Za-z0-9_.]{3,30})`)

// ExtractMentions returns the distinct lower-cased usernames mentioned in
// text, in order of first appearance.
func ExtractMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.ToLower(strings.TrimRight(m[1], "."))
		if usernamePattern.MatchString(name) {
			names = append(names, name)
		}
	}
	return lo.Uniq(names)
}

// notifyMentions enqueues one mention per distinct existing user named in
// text, skipping the actor and anyone in skip.
func (s *EngagementService) notifyMentions(ctx context.Context, tx *repositories.Repos, actorID uint, text string, postID uint, commentID *uint, skip ...uint) error {
	names := ExtractMentions(text)
	if len(names) == 0 {
		return nil
	}

	users, err := tx.Users.GetUsersByUsernames(ctx, names)
	if err != nil {
		return fmt.Errorf("resolve mentions: %w", err)
	}
	// Lock recipients in id order.
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	for _, u := range users {
		if lo.Contains(skip, u.ID) {
			continue
		}
		_, err := s.notifications.Enqueue(ctx, tx, Event{
			Recipient: u.ID,
			Actor:     actorID,
			Kind:      models.NotificationMention,
			PostID:    &postID,
			CommentID: commentID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
