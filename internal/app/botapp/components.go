package botapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/kazuki388/Threads/internal/domain/enums"
	discordinfra "github.com/kazuki388/Threads/internal/infra/discord"
	"github.com/kazuki388/Threads/internal/services/actionlog"
	"github.com/kazuki388/Threads/internal/services/bans"
	"github.com/kazuki388/Threads/internal/services/evidence"
	"github.com/kazuki388/Threads/internal/services/grants"
)

const (
	componentManageUser    = "manage_user"
	componentMessageAction = "message_action"
	componentManageTags    = "manage_tags"
)

func (a *App) handleManageUserMenu(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	thread, err := a.fetchChannel(i.ChannelID)
	if err != nil || !discordinfra.IsThread(thread) {
		a.respondError(i, "This action only works inside a thread.")
		return
	}
	if !a.requireThreadManager(ctx, i, thread) {
		return
	}

	targetID := data.TargetID
	if targetID == "" {
		a.respondError(i, "No user selected.")
		return
	}

	customID := strings.Join([]string{componentManageUser, thread.ParentID, thread.ID, targetID}, ":")
	menu := discordgo.SelectMenu{
		CustomID:    customID,
		Placeholder: "Choose an action",
		Options: []discordgo.SelectMenuOption{
			{Label: "Ban from thread", Value: "ban", Emoji: &discordgo.ComponentEmoji{Name: "🚫"}},
			{Label: "Lift thread ban", Value: "unban", Emoji: &discordgo.ComponentEmoji{Name: "✅"}},
			{Label: "Share permissions", Value: "share", Emoji: &discordgo.ComponentEmoji{Name: "🤝"}},
			{Label: "Revoke permissions", Value: "revoke", Emoji: &discordgo.ComponentEmoji{Name: "↩️"}},
			{Label: "Timeout", Value: "timeout", Emoji: &discordgo.ComponentEmoji{Name: "⏲️"}},
		},
	}
	a.respondMenu(i, fmt.Sprintf("Manage <@%s> in this thread:", targetID), menu)
}

func (a *App) handleMessageActionMenu(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	thread, err := a.fetchChannel(i.ChannelID)
	if err != nil {
		a.respondError(i, "Could not resolve this channel.")
		return
	}
	if discordinfra.IsThread(thread) && !a.requireThreadManager(ctx, i, thread) {
		return
	}
	if !discordinfra.IsThread(thread) && !a.isModerator(i) {
		a.respondError(i, "Only moderators can act on messages outside threads.")
		return
	}

	customID := componentMessageAction + ":" + data.TargetID
	menu := discordgo.SelectMenu{
		CustomID:    customID,
		Placeholder: "Choose a message action",
		Options: []discordgo.SelectMenuOption{
			{Label: "Delete", Value: "delete", Emoji: &discordgo.ComponentEmoji{Name: "🗑️"}},
			{Label: "Pin", Value: "pin", Emoji: &discordgo.ComponentEmoji{Name: "📌"}},
			{Label: "Unpin", Value: "unpin", Emoji: &discordgo.ComponentEmoji{Name: "📍"}},
		},
	}
	a.respondMenu(i, "Pick what to do with the message:", menu)
}

func (a *App) handleComponent(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	parts := strings.Split(data.CustomID, ":")

	switch parts[0] {
	case componentManageUser:
		if len(parts) != 4 || len(data.Values) != 1 {
			a.respondError(i, "Malformed action.")
			return
		}
		a.runManageUserAction(ctx, i, parts[1], parts[2], parts[3], data.Values[0])

	case componentMessageAction:
		if len(parts) != 2 || len(data.Values) != 1 {
			a.respondError(i, "Malformed action.")
			return
		}
		a.runMessageAction(ctx, i, parts[1], data.Values[0])

	case componentManageTags:
		if len(parts) != 2 {
			a.respondError(i, "Malformed action.")
			return
		}
		a.runManageTags(ctx, i, parts[1], data.Values)
	}
}

func (a *App) runManageUserAction(ctx context.Context, i *discordgo.InteractionCreate, channelID, threadID, userID, action string) {
	thread, err := a.fetchChannel(threadID)
	if err != nil {
		a.respondError(i, "The thread no longer exists.")
		return
	}
	if !a.requireThreadManager(ctx, i, thread) {
		return
	}

	actorID := interactionUserID(i)

	switch action {
	case "ban":
		if userID == thread.OwnerID {
			a.respondError(i, "The thread owner cannot be banned from their own thread.")
			return
		}
		if err := a.banSvc.Ban(ctx, channelID, threadID, userID, actorID, ""); err != nil {
			a.respondError(i, "Could not ban the user.")
			return
		}
		a.recordAction(ctx, actionlog.Entry{
			Action: enums.ActionBan, ChannelID: channelID, ThreadID: threadID,
			ThreadName: thread.Name, ActorID: actorID, TargetID: userID, Result: "success",
		})
		a.respondEphemeral(i, fmt.Sprintf("<@%s> is now banned from this thread.", userID))

	case "unban":
		if err := a.banSvc.Unban(ctx, channelID, threadID, userID); err != nil {
			if errors.Is(err, bans.ErrNotBanned) {
				a.respondError(i, "That user is not banned in this thread.")
				return
			}
			a.respondError(i, "Could not lift the ban.")
			return
		}
		a.recordAction(ctx, actionlog.Entry{
			Action: enums.ActionUnban, ChannelID: channelID, ThreadID: threadID,
			ThreadName: thread.Name, ActorID: actorID, TargetID: userID, Result: "success",
		})
		a.respondEphemeral(i, fmt.Sprintf("<@%s> is no longer banned from this thread.", userID))

	case "share":
		if err := a.grantSvc.Share(ctx, threadID, userID, actorID); err != nil {
			a.respondError(i, "Could not share permissions.")
			return
		}
		a.recordAction(ctx, actionlog.Entry{
			Action: enums.ActionShareGrant, ChannelID: channelID, ThreadID: threadID,
			ThreadName: thread.Name, ActorID: actorID, TargetID: userID, Result: "success",
		})
		a.respondEphemeral(i, fmt.Sprintf("<@%s> can now manage this thread.", userID))

	case "revoke":
		if err := a.grantSvc.Revoke(ctx, threadID, userID); err != nil {
			if errors.Is(err, grants.ErrNotGranted) {
				a.respondError(i, "That user has no shared permissions here.")
				return
			}
			a.respondError(i, "Could not revoke permissions.")
			return
		}
		a.recordAction(ctx, actionlog.Entry{
			Action: enums.ActionRevokeGrant, ChannelID: channelID, ThreadID: threadID,
			ThreadName: thread.Name, ActorID: actorID, TargetID: userID, Result: "success",
		})
		a.respondEphemeral(i, fmt.Sprintf("<@%s> can no longer manage this thread.", userID))

	case "timeout":
		if !a.isModerator(i) {
			a.respondError(i, "Only moderators can time users out.")
			return
		}
		state, err := a.timeoutSvc.Escalate(ctx, a.cfg.Discord.GuildID, userID, "manual moderation", 1)
		if err != nil {
			a.logger.Error("timeout failed", zap.String("user_id", userID), zap.Error(err))
			a.respondError(i, "Could not time the user out.")
			return
		}
		a.recordAction(ctx, actionlog.Entry{
			Action: enums.ActionTimeout, ChannelID: channelID, ThreadID: threadID,
			ThreadName: thread.Name, ActorID: actorID, TargetID: userID,
			Reason: "manual moderation", Result: "success",
			Details: map[string]string{"duration": state.Duration.String()},
		})
		a.respondEphemeral(i, fmt.Sprintf("<@%s> timed out for %s.", userID, state.Duration))

	default:
		a.respondError(i, "Unknown action.")
	}
}

func (a *App) runMessageAction(ctx context.Context, i *discordgo.InteractionCreate, messageID, action string) {
	channelID := i.ChannelID
	actorID := interactionUserID(i)

	thread, err := a.fetchChannel(channelID)
	if err != nil {
		a.respondError(i, "Could not resolve this channel.")
		return
	}

	msg, err := a.session.ChannelMessage(channelID, messageID)
	if err != nil {
		a.respondError(i, "The message no longer exists.")
		return
	}

	entry := actionlog.Entry{
		ChannelID:  thread.ParentID,
		ThreadID:   channelID,
		ThreadName: thread.Name,
		ActorID:    actorID,
		Result:     "success",
	}
	if msg.Author != nil {
		entry.TargetID = msg.Author.ID
	}

	switch action {
	case "delete":
		a.archiveMessage(ctx, thread, msg, actorID, "moderator delete")
		if err := a.session.ChannelMessageDelete(channelID, messageID); err != nil {
			a.respondError(i, "Could not delete the message.")
			return
		}
		entry.Action = enums.ActionDelete
		a.recordAction(ctx, entry)
		a.respondEphemeral(i, "Message deleted.")

	case "pin":
		if err := a.session.ChannelMessagePin(channelID, messageID); err != nil {
			a.respondError(i, "Could not pin the message.")
			return
		}
		entry.Action = enums.ActionPin
		a.recordAction(ctx, entry)
		a.respondEphemeral(i, "Message pinned.")

	case "unpin":
		if err := a.session.ChannelMessageUnpin(channelID, messageID); err != nil {
			a.respondError(i, "Could not unpin the message.")
			return
		}
		entry.Action = enums.ActionUnpin
		a.recordAction(ctx, entry)
		a.respondEphemeral(i, "Message unpinned.")

	default:
		a.respondError(i, "Unknown message action.")
	}
}

func (a *App) runManageTags(ctx context.Context, i *discordgo.InteractionCreate, threadID string, tagIDs []string) {
	thread, err := a.fetchChannel(threadID)
	if err != nil {
		a.respondError(i, "The thread no longer exists.")
		return
	}
	if !a.requireThreadManager(ctx, i, thread) {
		return
	}

	if err := a.gateway.ApplyTags(ctx, threadID, tagIDs); err != nil {
		a.logger.Error("failed to apply tags", zap.String("thread_id", threadID), zap.Error(err))
		a.respondError(i, "Could not update the tags.")
		return
	}

	a.recordAction(ctx, actionlog.Entry{
		Action:     enums.ActionEdit,
		ChannelID:  thread.ParentID,
		ThreadID:   threadID,
		ThreadName: thread.Name,
		ActorID:    interactionUserID(i),
		Result:     "success",
		Details:    map[string]string{"tags": strings.Join(tagIDs, ", ")},
	})
	a.respondEphemeral(i, "Tags updated.")
}

// archiveMessage writes the evidence snapshot before a moderation delete.
// Failures are logged only; losing the archive must not block the delete.
func (a *App) archiveMessage(ctx context.Context, thread *discordgo.Channel, msg *discordgo.Message, removedBy, reason string) {
	if a.archive == nil || msg == nil {
		return
	}

	snap := evidence.Snapshot{
		GuildID:   a.cfg.Discord.GuildID,
		ChannelID: thread.ParentID,
		ThreadID:  thread.ID,
		MessageID: msg.ID,
		Content:   msg.Content,
		RemovedBy: removedBy,
		Reason:    reason,
		SentAt:    msg.Timestamp,
	}
	if msg.Author != nil {
		snap.AuthorID = msg.Author.ID
	}
	for _, att := range msg.Attachments {
		snap.Attachments = append(snap.Attachments, att.URL)
	}

	key, err := a.archive.Store(ctx, snap)
	if err != nil {
		a.logger.Warn("failed to archive message evidence",
			zap.String("message_id", msg.ID), zap.Error(err))
		return
	}
	a.logger.Info("message evidence archived",
		zap.String("message_id", msg.ID), zap.String("object_key", key))
}
