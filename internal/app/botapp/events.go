package botapp

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/kazuki388/Threads/internal/domain/enums"
	discordinfra "github.com/kazuki388/Threads/internal/infra/discord"
	"github.com/kazuki388/Threads/internal/services/actionlog"
	"github.com/kazuki388/Threads/internal/services/aimod"
)

const (
	eventTimeout   = 15 * time.Second
	pollDuration   = 48 // hours
	repostHookName = "threads-repost"
)

func (a *App) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if a.cfg.Discord.GuildID != "" && m.GuildID != a.cfg.Discord.GuildID {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	ch, err := a.fetchChannel(m.ChannelID)
	if err != nil {
		a.logger.Warn("failed to resolve message channel",
			zap.String("channel_id", m.ChannelID), zap.Error(err))
		return
	}
	if !a.channelAllowed(ch.ID, ch.ParentID) {
		return
	}

	if discordinfra.IsThread(ch) {
		if a.enforceThreadBan(ctx, ch, m) {
			return
		}
		if err := a.statsSvc.Record(ctx, ch.ParentID, ch.ID); err != nil {
			a.logger.Warn("failed to record message stats",
				zap.String("thread_id", ch.ID), zap.Error(err))
		}
	}

	if a.rewriteTrackedLinks(ctx, ch, m) {
		return
	}

	a.scanMessage(ctx, ch, m)
}

// enforceThreadBan removes messages from users banned in the thread. The
// removed message is archived first so an appeal can see it.
func (a *App) enforceThreadBan(ctx context.Context, ch *discordgo.Channel, m *discordgo.MessageCreate) bool {
	banned, err := a.banSvc.IsBanned(ctx, ch.ParentID, ch.ID, m.Author.ID)
	if err != nil {
		a.logger.Warn("ban check failed",
			zap.String("thread_id", ch.ID), zap.Error(err))
		return false
	}
	if !banned {
		return false
	}

	a.archiveMessage(ctx, ch, m.Message, "", "banned in thread")
	if err := a.session.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
		a.logger.Warn("failed to delete banned user's message",
			zap.String("message_id", m.ID), zap.Error(err))
		return true
	}

	a.logger.Info("removed message from banned user",
		zap.String("thread_id", ch.ID),
		zap.String("user_id", m.Author.ID))
	return true
}

// rewriteTrackedLinks replaces a message carrying tracking links with a
// webhook repost under the author's name and avatar, then deletes the
// original. Reports whether the message was replaced.
func (a *App) rewriteTrackedLinks(ctx context.Context, ch *discordgo.Channel, m *discordgo.MessageCreate) bool {
	// Without member data the roles are unknown; treat the author as
	// non-exempt and rewrite anyway.
	if m.Member != nil && a.sanitizer.Exempt(m.Member.Roles) {
		return false
	}

	cleaned, changed := a.sanitizer.Sanitize(m.Content)
	if !changed {
		return false
	}

	if err := a.repostAs(ch, m, cleaned); err != nil {
		a.logger.Warn("failed to repost sanitized message",
			zap.String("message_id", m.ID), zap.Error(err))
		return false
	}
	if err := a.session.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
		a.logger.Warn("failed to delete original tracked-link message",
			zap.String("message_id", m.ID), zap.Error(err))
	}

	a.recordAction(ctx, actionlog.Entry{
		Action:     enums.ActionEdit,
		ChannelID:  ch.ParentID,
		ThreadID:   ch.ID,
		ThreadName: ch.Name,
		ActorID:    a.botUserID(),
		TargetID:   m.Author.ID,
		Reason:     "tracking link rewrite",
		Result:     "success",
	})

	notice := "Your message contained tracking links and was reposted with clean URLs."
	if err := a.gateway.NotifyUser(ctx, m.Author.ID, notice, ""); err != nil {
		a.logger.Debug("failed to warn author about link rewrite",
			zap.String("user_id", m.Author.ID), zap.Error(err))
	}
	return true
}

func (a *App) repostAs(ch *discordgo.Channel, m *discordgo.MessageCreate, content string) error {
	hookChannel := ch.ID
	threadID := ""
	if discordinfra.IsThread(ch) {
		hookChannel = ch.ParentID
		threadID = ch.ID
	}

	hook, err := a.repostWebhook(hookChannel)
	if err != nil {
		return err
	}

	params := &discordgo.WebhookParams{
		Content:   content,
		Username:  m.Author.Username,
		AvatarURL: m.Author.AvatarURL(""),
	}
	if threadID != "" {
		_, err = a.session.WebhookThreadExecute(hook.ID, hook.Token, false, threadID, params)
	} else {
		_, err = a.session.WebhookExecute(hook.ID, hook.Token, false, params)
	}
	if err != nil {
		return fmt.Errorf("execute repost webhook: %w", err)
	}
	return nil
}

// repostWebhook reuses the bot's webhook on the channel, creating it once.
func (a *App) repostWebhook(channelID string) (*discordgo.Webhook, error) {
	a.webhookMu.Lock()
	defer a.webhookMu.Unlock()

	if hook, ok := a.webhooks[channelID]; ok {
		return hook, nil
	}

	existing, err := a.session.ChannelWebhooks(channelID)
	if err != nil {
		return nil, fmt.Errorf("list channel webhooks: %w", err)
	}
	for _, hook := range existing {
		if hook.Name == repostHookName && hook.Token != "" {
			a.webhooks[channelID] = hook
			return hook, nil
		}
	}

	hook, err := a.session.WebhookCreate(channelID, repostHookName, "")
	if err != nil {
		return nil, fmt.Errorf("create repost webhook: %w", err)
	}
	a.webhooks[channelID] = hook
	return hook, nil
}

// scanMessage submits the message to the moderation model and escalates a
// timeout when the verdict clears the severity floor.
func (a *App) scanMessage(ctx context.Context, ch *discordgo.Channel, m *discordgo.MessageCreate) {
	if !a.aimodSvc.Enabled() {
		return
	}

	res, err := a.aimodSvc.Scan(ctx, aimod.Message{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		AuthorID:  m.Author.ID,
		Content:   m.Content,
	})
	if err != nil {
		a.logger.Warn("moderation scan failed",
			zap.String("message_id", m.ID), zap.Error(err))
		return
	}
	if !res.Actionable {
		return
	}

	a.archiveMessage(ctx, ch, m.Message, "", res.Verdict.Reason)
	if err := a.session.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
		a.logger.Warn("failed to delete flagged message",
			zap.String("message_id", m.ID), zap.Error(err))
	}

	state, err := a.timeoutSvc.Escalate(ctx, m.GuildID, m.Author.ID, res.Verdict.Reason, res.Verdict.Severity)
	if err != nil {
		a.logger.Error("timeout escalation failed",
			zap.String("user_id", m.Author.ID), zap.Error(err))
		return
	}

	a.recordAction(ctx, actionlog.Entry{
		Action:     enums.ActionTimeout,
		ChannelID:  ch.ParentID,
		ThreadID:   ch.ID,
		ThreadName: ch.Name,
		ActorID:    a.botUserID(),
		TargetID:   m.Author.ID,
		Reason:     res.Verdict.Reason,
		Result:     "success",
		Details: map[string]string{
			"severity": fmt.Sprintf("%d", res.Verdict.Severity),
			"duration": state.Duration.String(),
		},
	})
}

// handleThreadCreate stamps new posts in the poll forum with a sortable
// timestamp prefix and opens a 48 hour reception poll.
func (a *App) handleThreadCreate(s *discordgo.Session, t *discordgo.ThreadCreate) {
	if a.cfg.Discord.PollForumID == "" || t.ParentID != a.cfg.Discord.PollForumID {
		return
	}
	// Thread updates (unarchive etc.) also arrive here; only stamp fresh posts.
	if !t.NewlyCreated {
		return
	}
	if t.OwnerID == "" || t.OwnerID == a.botUserID() {
		return
	}

	prefix := "[" + time.Now().UTC().Format("0601021504") + "] "
	if _, err := a.session.ChannelEditComplex(t.ID, &discordgo.ChannelEdit{
		Name: prefix + t.Name,
	}); err != nil {
		a.logger.Warn("failed to stamp new post name",
			zap.String("thread_id", t.ID), zap.Error(err))
	}

	_, err := a.session.ChannelMessageSendComplex(t.ID, &discordgo.MessageSend{
		Poll: &discordgo.Poll{
			Question: discordgo.PollMedia{Text: "How do you feel about this post?"},
			Answers: []discordgo.PollAnswer{
				{Media: &discordgo.PollMedia{Text: "Support"}},
				{Media: &discordgo.PollMedia{Text: "Oppose"}},
				{Media: &discordgo.PollMedia{Text: "Abstain"}},
			},
			Duration: pollDuration,
		},
	})
	if err != nil {
		a.logger.Warn("failed to open reception poll",
			zap.String("thread_id", t.ID), zap.Error(err))
	}
}

func (a *App) botUserID() string {
	if a.session.State != nil && a.session.State.User != nil {
		return a.session.State.User.ID
	}
	return ""
}
