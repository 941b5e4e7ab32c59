package actionlog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/kazuki388/Threads/internal/domain/enums"
	pgrepo "github.com/kazuki388/Threads/internal/repo/postgres"
)

const maxFieldsPerEmbed = 5

var actionColors = map[enums.ActionType]int{
	enums.ActionLock:        0xED4245,
	enums.ActionUnlock:      0x57F287,
	enums.ActionBan:         0xED4245,
	enums.ActionUnban:       0x57F287,
	enums.ActionDelete:      0xED4245,
	enums.ActionEdit:        0xFEE75C,
	enums.ActionPin:         0x5865F2,
	enums.ActionUnpin:       0x99AAB5,
	enums.ActionShareGrant:  0x57F287,
	enums.ActionRevokeGrant: 0xFEE75C,
	enums.ActionTimeout:     0xED4245,
}

const defaultColor = 0x5865F2

// Entry is one moderation action to record and announce.
type Entry struct {
	Action     enums.ActionType
	ChannelID  string
	ThreadID   string
	ThreadName string
	ActorID    string
	TargetID   string
	Reason     string
	Result     string
	Details    map[string]string
}

// Store persists entries for the ops API.
type Store interface {
	Insert(ctx context.Context, rec pgrepo.ActionLogRecord) error
	ListRecent(ctx context.Context, limit int) ([]pgrepo.ActionLogRecord, error)
}

// Notifier is the Discord surface the log posts through.
type Notifier interface {
	SendEmbeds(ctx context.Context, channelID string, embeds []*discordgo.MessageEmbed) error
	SendForumPostEmbeds(ctx context.Context, forumID, postID string, embeds []*discordgo.MessageEmbed) error
	NotifyUser(ctx context.Context, userID, content, appealURL string) error
}

type Config struct {
	LogChannelID string
	LogForumID   string
	LogPostID    string
	AppealURL    string
}

type Service struct {
	store    Store
	notifier Notifier
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	lastKey string
}

func NewService(store Store, notifier Notifier, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Record persists the entry, posts it to the log channel and log forum
// post, and notifies the target. Announcement failures never fail the
// caller: the action itself already happened, the log is best effort.
// Identical actions (same action, thread and target) landing in the same
// second are announced once; only the first occurrence is posted.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	if !entry.Action.Valid() {
		return fmt.Errorf("invalid action type %q", entry.Action)
	}
	if entry.ActorID == "" {
		return fmt.Errorf("actor id is required")
	}

	if s.store != nil {
		rec := pgrepo.ActionLogRecord{
			Action:     string(entry.Action),
			ChannelID:  entry.ChannelID,
			ThreadID:   entry.ThreadID,
			ThreadName: entry.ThreadName,
			ActorID:    entry.ActorID,
			TargetID:   entry.TargetID,
			Reason:     entry.Reason,
			Result:     entry.Result,
			Details:    entry.Details,
		}
		if err := s.store.Insert(ctx, rec); err != nil {
			return fmt.Errorf("persist action log: %w", err)
		}
	}

	if s.notifier == nil {
		return nil
	}

	if s.suppressed(entry) {
		s.logger.Debug("suppressing duplicate action announcement",
			zap.String("action", string(entry.Action)),
			zap.String("thread_id", entry.ThreadID),
			zap.String("target_id", entry.TargetID))
		return nil
	}

	embeds := s.buildEmbeds(entry)

	if s.cfg.LogChannelID != "" {
		if err := s.notifier.SendEmbeds(ctx, s.cfg.LogChannelID, embeds); err != nil {
			s.logger.Warn("failed to post action log to channel",
				zap.String("channel_id", s.cfg.LogChannelID), zap.Error(err))
		}
	}
	if s.cfg.LogForumID != "" && s.cfg.LogPostID != "" {
		if err := s.notifier.SendForumPostEmbeds(ctx, s.cfg.LogForumID, s.cfg.LogPostID, embeds); err != nil {
			s.logger.Warn("failed to post action log to forum post",
				zap.String("forum_id", s.cfg.LogForumID), zap.Error(err))
		}
	}

	if entry.TargetID != "" && entry.TargetID != entry.ActorID {
		notice := noticeFor(entry)
		if notice != "" {
			appealURL := ""
			if entry.Action == enums.ActionLock {
				appealURL = s.cfg.AppealURL
			}
			if err := s.notifier.NotifyUser(ctx, entry.TargetID, notice, appealURL); err != nil {
				s.logger.Debug("failed to notify user",
					zap.String("user_id", entry.TargetID), zap.Error(err))
			}
		}
	}

	return nil
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]pgrepo.ActionLogRecord, error) {
	if s.store == nil {
		return nil, fmt.Errorf("action log store is not configured")
	}
	return s.store.ListRecent(ctx, limit)
}

func (s *Service) suppressed(entry Entry) bool {
	// Keyed to the second so only same-instant duplicates are dropped; the
	// same action repeated later is a new event and must be announced.
	key := fmt.Sprintf("%s|%s|%s|%d",
		entry.Action, entry.ThreadID, entry.TargetID, s.now().Unix())

	s.mu.Lock()
	defer s.mu.Unlock()
	if key == s.lastKey {
		return true
	}
	s.lastKey = key
	return false
}

func (s *Service) buildEmbeds(entry Entry) []*discordgo.MessageEmbed {
	color, ok := actionColors[entry.Action]
	if !ok {
		color = defaultColor
	}

	var fields []*discordgo.MessageEmbedField
	addField := func(name, value string, inline bool) {
		if value == "" {
			return
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: name, Value: value, Inline: inline,
		})
	}

	if entry.ThreadID != "" {
		label := entry.ThreadName
		if label == "" {
			label = entry.ThreadID
		}
		addField("Thread", fmt.Sprintf("%s (<#%s>)", label, entry.ThreadID), true)
	}
	addField("Moderator", fmt.Sprintf("<@%s>", entry.ActorID), true)
	if entry.TargetID != "" {
		addField("Target", fmt.Sprintf("<@%s>", entry.TargetID), true)
	}
	addField("Reason", entry.Reason, false)
	addField("Result", entry.Result, false)

	keys := make([]string, 0, len(entry.Details))
	for k := range entry.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		addField(k, entry.Details[k], true)
	}

	title := strings.ToUpper(string(entry.Action)[:1]) + strings.ReplaceAll(string(entry.Action)[1:], "_", " ")
	ts := s.now().UTC().Format(time.RFC3339)

	var embeds []*discordgo.MessageEmbed
	for start := 0; start < len(fields) || start == 0; start += maxFieldsPerEmbed {
		end := start + maxFieldsPerEmbed
		if end > len(fields) {
			end = len(fields)
		}
		embed := &discordgo.MessageEmbed{
			Color:     color,
			Fields:    fields[start:end],
			Timestamp: ts,
		}
		if start == 0 {
			embed.Title = title
		}
		embeds = append(embeds, embed)
	}
	return embeds
}

func noticeFor(entry Entry) string {
	switch entry.Action {
	case enums.ActionBan:
		return fmt.Sprintf("You have been banned from the thread **%s**. Reason: %s", entry.ThreadName, orNone(entry.Reason))
	case enums.ActionUnban:
		return fmt.Sprintf("Your ban from the thread **%s** has been lifted.", entry.ThreadName)
	case enums.ActionTimeout:
		return fmt.Sprintf("You have been timed out. Reason: %s", orNone(entry.Reason))
	case enums.ActionDelete:
		return fmt.Sprintf("Your message in **%s** was removed. Reason: %s", entry.ThreadName, orNone(entry.Reason))
	case enums.ActionLock:
		return fmt.Sprintf("Your thread **%s** has been locked. Reason: %s", entry.ThreadName, orNone(entry.Reason))
	case enums.ActionUnlock:
		return fmt.Sprintf("Your thread **%s** has been unlocked.", entry.ThreadName)
	case enums.ActionShareGrant:
		return fmt.Sprintf("You have been granted management permissions in **%s**.", entry.ThreadName)
	case enums.ActionRevokeGrant:
		return fmt.Sprintf("Your management permissions in **%s** have been revoked.", entry.ThreadName)
	default:
		return ""
	}
}

func orNone(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return "no reason given"
	}
	return reason
}
