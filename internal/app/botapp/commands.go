package botapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/kazuki388/Threads/internal/domain/enums"
	discordinfra "github.com/kazuki388/Threads/internal/infra/discord"
	pgrepo "github.com/kazuki388/Threads/internal/repo/postgres"
	"github.com/kazuki388/Threads/internal/services/actionlog"
	"github.com/kazuki388/Threads/internal/services/bans"
	"github.com/kazuki388/Threads/internal/services/grants"
)

const (
	cmdThreads       = "threads"
	cmdManageUser    = "Manage User in Thread"
	cmdMessageAction = "Message Actions"

	interactionTimeout = 10 * time.Second
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	reasonOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Why this action is taken",
	}
	userOption := func(required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "Target user",
			Required:    required,
		}
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        cmdThreads,
			Description: "Thread moderation",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "lock",
					Description: "Lock the current thread",
					Options:     []*discordgo.ApplicationCommandOption{reasonOption},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "unlock",
					Description: "Unlock the current thread",
					Options:     []*discordgo.ApplicationCommandOption{reasonOption},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "ban",
					Description: "Ban a user from the current thread",
					Options:     []*discordgo.ApplicationCommandOption{userOption(true), reasonOption},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "unban",
					Description: "Lift a user's ban in the current thread",
					Options:     []*discordgo.ApplicationCommandOption{userOption(true)},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "share",
					Description: "Share thread management permissions with a user",
					Options:     []*discordgo.ApplicationCommandOption{userOption(true)},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "revoke",
					Description: "Revoke shared thread management permissions",
					Options:     []*discordgo.ApplicationCommandOption{userOption(true)},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "top",
					Description: "Jump to the top of the current thread",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List bans or shared permissions in this thread",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "kind",
							Description: "What to list",
							Required:    true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "banned users", Value: "banned"},
								{Name: "shared permissions", Value: "grants"},
								{Name: "post statistics", Value: "stats"},
							},
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "tags",
					Description: "Edit the tags applied to this post",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "debug",
					Description: "Inspect global moderation state",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "kind",
							Description: "What to inspect",
							Required:    true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "banned users", Value: "banned"},
								{Name: "shared permissions", Value: "grants"},
								{Name: "post statistics", Value: "stats"},
								{Name: "featured posts", Value: "featured"},
							},
						},
					},
				},
			},
		},
		{
			Name: cmdManageUser,
			Type: discordgo.UserApplicationCommand,
		},
		{
			Name: cmdMessageAction,
			Type: discordgo.MessageApplicationCommand,
		},
	}
}

func (a *App) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		switch data.Name {
		case cmdThreads:
			a.handleThreadsCommand(ctx, i, data)
		case cmdManageUser:
			a.handleManageUserMenu(ctx, i, data)
		case cmdMessageAction:
			a.handleMessageActionMenu(ctx, i, data)
		}
	case discordgo.InteractionMessageComponent:
		a.handleComponent(ctx, i)
	}
}

func (a *App) handleThreadsCommand(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]

	thread, err := a.fetchChannel(i.ChannelID)
	if err != nil {
		a.respondError(i, "Could not resolve this channel.")
		return
	}

	switch sub.Name {
	case "lock":
		a.runLock(ctx, i, thread, true, optionString(sub, "reason"))
	case "unlock":
		a.runLock(ctx, i, thread, false, optionString(sub, "reason"))
	case "ban":
		a.runBan(ctx, i, thread, optionUserID(sub, "user"), optionString(sub, "reason"))
	case "unban":
		a.runUnban(ctx, i, thread, optionUserID(sub, "user"))
	case "share":
		a.runShare(ctx, i, thread, optionUserID(sub, "user"))
	case "revoke":
		a.runRevoke(ctx, i, thread, optionUserID(sub, "user"))
	case "top":
		a.runTop(ctx, i, thread)
	case "list":
		a.runList(ctx, i, thread, optionString(sub, "kind"))
	case "tags":
		a.runTagMenu(ctx, i, thread)
	case "debug":
		a.runDebug(ctx, i, optionString(sub, "kind"))
	}
}

func (a *App) runLock(ctx context.Context, i *discordgo.InteractionCreate, thread *discordgo.Channel, lock bool, reason string) {
	if !a.requireThreadManager(ctx, i, thread) {
		return
	}

	verb := "locked"
	if !lock {
		verb = "unlocked"
	}
	if thread.ThreadMetadata != nil {
		if thread.ThreadMetadata.Archived {
			a.respondError(i, "This thread is archived and cannot be changed.")
			return
		}
		if thread.ThreadMetadata.Locked == lock {
			a.respondError(i, fmt.Sprintf("The thread is already %s.", verb))
			return
		}
	}

	editCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	locked := lock
	if _, err := a.session.ChannelEditComplex(thread.ID, &discordgo.ChannelEdit{
		Locked: &locked,
	}, discordgo.WithContext(editCtx)); err != nil {
		a.logger.Error("failed to toggle thread lock", zap.String("thread_id", thread.ID), zap.Error(err))
		a.respondError(i, "Could not update the thread.")
		return
	}

	action := enums.ActionLock
	if !lock {
		action = enums.ActionUnlock
	}
	a.recordAction(ctx, actionlog.Entry{
		Action:     action,
		ChannelID:  thread.ParentID,
		ThreadID:   thread.ID,
		ThreadName: thread.Name,
		ActorID:    interactionUserID(i),
		TargetID:   thread.OwnerID,
		Reason:     reason,
		Result:     "success",
	})
	a.respondEphemeral(i, fmt.Sprintf("Thread has been %s.", verb))
}

func (a *App) runBan(ctx context.Context, i *discordgo.InteractionCreate, thread *discordgo.Channel, userID, reason string) {
	if userID == "" {
		a.respondError(i, "No user given.")
		return
	}
	if !a.requireThreadManager(ctx, i, thread) {
		return
	}
	if userID == thread.OwnerID {
		a.respondError(i, "The thread owner cannot be banned from their own thread.")
		return
	}

	if err := a.banSvc.Ban(ctx, thread.ParentID, thread.ID, userID, interactionUserID(i), reason); err != nil {
		a.logger.Error("ban failed", zap.String("thread_id", thread.ID), zap.Error(err))
		a.respondError(i, "Could not ban the user.")
		return
	}

	a.recordAction(ctx, actionlog.Entry{
		Action:     enums.ActionBan,
		ChannelID:  thread.ParentID,
		ThreadID:   thread.ID,
		ThreadName: thread.Name,
		ActorID:    interactionUserID(i),
		TargetID:   userID,
		Reason:     reason,
		Result:     "success",
	})
	a.respondEphemeral(i, fmt.Sprintf("<@%s> is now banned from this thread.", userID))
}

func (a *App) runUnban(ctx context.Context, i *discordgo.InteractionCreate, thread *discordgo.Channel, userID string) {
	if userID == "" {
		a.respondError(i, "No user given.")
		return
	}
	if !a.requireThreadManager(ctx, i, thread) {
		return
	}

	if err := a.banSvc.Unban(ctx, thread.ParentID, thread.ID, userID); err != nil {
		if errors.Is(err, bans.ErrNotBanned) {
			a.respondError(i, "That user is not banned in this thread.")
			return
		}
		a.logger.Error("unban failed", zap.String("thread_id", thread.ID), zap.Error(err))
		a.respondError(i, "Could not lift the ban.")
		return
	}

	a.recordAction(ctx, actionlog.Entry{
		Action:     enums.ActionUnban,
		ChannelID:  thread.ParentID,
		ThreadID:   thread.ID,
		ThreadName: thread.Name,
		ActorID:    interactionUserID(i),
		TargetID:   userID,
		Result:     "success",
	})
	a.respondEphemeral(i, fmt.Sprintf("<@%s> is no longer banned from this thread.", userID))
}

func (a *App) runShare(ctx context.Context, i *discordgo.InteractionCreate, thread *discordgo.Channel, userID string) {
	if userID == "" {
		a.respondError(i, "No user given.")
		return
	}
	if !a.requireThreadManager(ctx, i, thread) {
		return
	}

	if err := a.grantSvc.Share(ctx, thread.ID, userID, interactionUserID(i)); err != nil {
		a.logger.Error("share failed", zap.String("thread_id", thread.ID), zap.Error(err))
		a.respondError(i, "Could not share permissions.")
		return
	}

	a.recordAction(ctx, actionlog.Entry{
		Action:     enums.ActionShareGrant,
		ChannelID:  thread.ParentID,
		ThreadID:   thread.ID,
		ThreadName: thread.Name,
		ActorID:    interactionUserID(i),
		TargetID:   userID,
		Result:     "success",
	})
	a.respondEphemeral(i, fmt.Sprintf("<@%s> can now manage this thread.", userID))
}

func (a *App) runRevoke(ctx context.Context, i *discordgo.InteractionCreate, thread *discordgo.Channel, userID string) {
	if userID == "" {
		a.respondError(i, "No user given.")
		return
	}
	if !a.requireThreadManager(ctx, i, thread) {
		return
	}

	if err := a.grantSvc.Revoke(ctx, thread.ID, userID); err != nil {
		if errors.Is(err, grants.ErrNotGranted) {
			a.respondError(i, "That user has no shared permissions here.")
			return
		}
		a.logger.Error("revoke failed", zap.String("thread_id", thread.ID), zap.Error(err))
		a.respondError(i, "Could not revoke permissions.")
		return
	}

	a.recordAction(ctx, actionlog.Entry{
		Action:     enums.ActionRevokeGrant,
		ChannelID:  thread.ParentID,
		ThreadID:   thread.ID,
		ThreadName: thread.Name,
		ActorID:    interactionUserID(i),
		TargetID:   userID,
		Result:     "success",
	})
	a.respondEphemeral(i, fmt.Sprintf("<@%s> can no longer manage this thread.", userID))
}

// runTop links the very start of the thread. Message id 0 makes the
// client jump to the oldest message.
func (a *App) runTop(_ context.Context, i *discordgo.InteractionCreate, thread *discordgo.Channel) {
	if !discordinfra.IsThread(thread) {
		a.respondError(i, "This command only works inside a thread.")
		return
	}

	url := fmt.Sprintf("https://discord.com/channels/%s/%s/0", i.GuildID, thread.ID)
	a.respondEphemeral(i, fmt.Sprintf("Here's the link to the top of the thread: [Click here](%s).", url))
}

func (a *App) runList(ctx context.Context, i *discordgo.InteractionCreate, thread *discordgo.Channel, kind string) {
	if !discordinfra.IsThread(thread) {
		a.respondError(i, "This command only works inside a thread.")
		return
	}

	switch kind {
	case "banned":
		records, err := a.banSvc.ListThread(ctx, thread.ParentID, thread.ID)
		if err != nil {
			a.respondError(i, "Could not list bans.")
			return
		}
		if len(records) == 0 {
			a.respondEphemeral(i, "No users are banned in this thread.")
			return
		}
		var b strings.Builder
		b.WriteString("Banned in this thread:\n")
		for _, rec := range records {
			fmt.Fprintf(&b, "- <@%s> (by <@%s>)\n", rec.UserID, rec.BannedBy)
		}
		a.respondEphemeral(i, b.String())

	case "grants":
		records, err := a.grantSvc.ListThread(ctx, thread.ID)
		if err != nil {
			a.respondError(i, "Could not list shared permissions.")
			return
		}
		if len(records) == 0 {
			a.respondEphemeral(i, "No shared permissions in this thread.")
			return
		}
		var b strings.Builder
		b.WriteString("Shared permissions:\n")
		for _, rec := range records {
			fmt.Fprintf(&b, "- <@%s> (granted by <@%s>)\n", rec.UserID, rec.GrantedBy)
		}
		a.respondEphemeral(i, b.String())

	case "stats":
		var b strings.Builder
		rec, err := a.statsSvc.Get(ctx, thread.ID)
		switch {
		case err == nil:
			fmt.Fprintf(&b, "This post: %d messages, last activity %s.\n",
				rec.MessageCount, rec.LastActivity.UTC().Format(time.RFC3339))
		case errors.Is(err, pgrepo.ErrStatsNotFound):
			b.WriteString("This post has no recorded activity yet.\n")
		default:
			a.respondError(i, "Could not read post statistics.")
			return
		}

		active, err := a.gateway.ActiveThreads(ctx, thread.ParentID)
		if err == nil && len(active) > 0 {
			ids := make([]string, 0, len(active))
			for _, th := range active {
				ids = append(ids, th.ID)
			}
			if top, err := a.statsSvc.TopByForum(ctx, thread.ParentID, ids); err == nil {
				fmt.Fprintf(&b, "Most active post in this forum: <#%s> (%d messages).",
					top.ThreadID, top.MessageCount)
			}
		}
		a.respondEphemeral(i, b.String())

	default:
		a.respondError(i, "Unknown list kind.")
	}
}

func (a *App) runTagMenu(ctx context.Context, i *discordgo.InteractionCreate, thread *discordgo.Channel) {
	if !a.requireThreadManager(ctx, i, thread) {
		return
	}

	tags, err := a.gateway.ForumTags(ctx, thread.ParentID)
	if err != nil {
		a.logger.Error("failed to list forum tags", zap.Error(err))
		a.respondError(i, "Could not read the forum's tags.")
		return
	}
	if len(tags) == 0 {
		a.respondError(i, "This forum has no tags to apply.")
		return
	}

	applied := make(map[string]struct{}, len(thread.AppliedTags))
	for _, id := range thread.AppliedTags {
		applied[id] = struct{}{}
	}

	options := make([]discordgo.SelectMenuOption, 0, len(tags))
	for _, tag := range tags {
		_, isApplied := applied[tag.ID]
		options = append(options, discordgo.SelectMenuOption{
			Label:   tag.Name,
			Value:   tag.ID,
			Default: isApplied,
		})
	}

	maxValues := len(options)
	if maxValues > 5 {
		maxValues = 5
	}
	zero := 0
	menu := discordgo.SelectMenu{
		CustomID:    componentManageTags + ":" + thread.ID,
		Placeholder: "Select the tags for this post",
		MinValues:   &zero,
		MaxValues:   maxValues,
		Options:     options,
	}
	a.respondMenu(i, "Update this post's tags:", menu)
}

func (a *App) runDebug(ctx context.Context, i *discordgo.InteractionCreate, kind string) {
	if !a.isModerator(i) {
		a.respondError(i, "Only moderators can inspect bot state.")
		return
	}

	switch kind {
	case "banned":
		records, err := a.banSvc.ListAll(ctx)
		if err != nil {
			a.respondError(i, "Could not read the ban list.")
			return
		}
		if len(records) == 0 {
			a.respondEphemeral(i, "No banned users found.")
			return
		}
		fields := make([]*discordgo.MessageEmbedField, 0, len(records))
		for _, rec := range records {
			fields = append(fields, &discordgo.MessageEmbedField{
				Name:   "Ban Entry",
				Value:  fmt.Sprintf("Thread: <#%s>\nUser: <@%s>\nChannel: <#%s>", rec.ThreadID, rec.UserID, rec.ChannelID),
				Inline: true,
			})
		}
		a.respondEmbeds(i, "", chunkEmbeds("Banned Users List", fields))

	case "grants":
		records, err := a.grantSvc.ListAll(ctx)
		if err != nil {
			a.respondError(i, "Could not read the permission list.")
			return
		}
		if len(records) == 0 {
			a.respondEphemeral(i, "No thread permissions found.")
			return
		}
		fields := make([]*discordgo.MessageEmbedField, 0, len(records))
		for _, rec := range records {
			fields = append(fields, &discordgo.MessageEmbedField{
				Name:   "Permission Entry",
				Value:  fmt.Sprintf("Thread: <#%s>\nUser: <@%s>", rec.ThreadID, rec.UserID),
				Inline: true,
			})
		}
		a.respondEmbeds(i, "", chunkEmbeds("Thread Permissions List", fields))

	case "stats":
		th := a.statsSvc.Thresholds()
		records, err := a.statsSvc.ListAll(ctx)
		if err != nil {
			a.respondError(i, "Could not read post statistics.")
			return
		}

		var total int64
		fields := make([]*discordgo.MessageEmbedField, 0, len(records))
		for _, rec := range records {
			total += rec.MessageCount
			fields = append(fields, &discordgo.MessageEmbedField{
				Name:   "Post",
				Value:  fmt.Sprintf("<#%s>\nMessages: %d\nLast activity: %s", rec.ThreadID, rec.MessageCount, rec.LastActivity.UTC().Format(time.RFC3339)),
				Inline: true,
			})
		}

		summary := fmt.Sprintf(
			"Message threshold: %d\nRotation interval: %s\nTracked posts: %d\nTotal counted messages: %d",
			th.MessageThreshold, th.RotationInterval, len(records), total)
		if usage, ok, err := a.aimodSvc.ScanBudget(ctx, a.cfg.Discord.GuildID); ok && err == nil {
			summary += fmt.Sprintf("\nScan budget: %d/%d this minute, %d/%d burst",
				usage.MinuteUsed, usage.MinuteLimit, usage.BurstUsed, usage.BurstLimit)
		}
		a.respondEmbeds(i, summary, chunkEmbeds("Post Statistics", fields))

	case "featured":
		records, err := a.featuredHistory.ListAll(ctx)
		if err != nil {
			a.respondError(i, "Could not read featured posts.")
			return
		}
		if len(records) == 0 {
			a.respondEphemeral(i, "No featured threads found.")
			return
		}
		fields := make([]*discordgo.MessageEmbedField, 0, len(records))
		for _, rec := range records {
			fields = append(fields, &discordgo.MessageEmbedField{
				Name:   "Featured Post",
				Value:  fmt.Sprintf("Forum: <#%s>\nThread: <#%s>\nRotated: %s", rec.ForumID, rec.ThreadID, rec.RotatedAt.UTC().Format(time.RFC3339)),
				Inline: true,
			})
		}
		a.respondEmbeds(i, "", chunkEmbeds("Featured Threads List", fields))

	default:
		a.respondError(i, "Unknown debug kind.")
	}
}

// chunkEmbeds splits fields across embeds, five per embed, titling only
// the first.
func chunkEmbeds(title string, fields []*discordgo.MessageEmbedField) []*discordgo.MessageEmbed {
	const perEmbed = 5

	var embeds []*discordgo.MessageEmbed
	for start := 0; start < len(fields) || start == 0; start += perEmbed {
		end := start + perEmbed
		if end > len(fields) {
			end = len(fields)
		}
		embed := &discordgo.MessageEmbed{Fields: fields[start:end]}
		if start == 0 {
			embed.Title = title
		}
		embeds = append(embeds, embed)
	}
	return embeds
}

// requireThreadManager answers with an ephemeral refusal when the caller
// may not manage the thread. Moderators always pass.
func (a *App) requireThreadManager(ctx context.Context, i *discordgo.InteractionCreate, thread *discordgo.Channel) bool {
	if !discordinfra.IsThread(thread) {
		a.respondError(i, "This command only works inside a thread.")
		return false
	}
	if a.isModerator(i) {
		return true
	}

	member := grants.Member{UserID: interactionUserID(i)}
	if i.Member != nil {
		member.Roles = i.Member.Roles
	}

	ok, err := a.grantSvc.CanManageThread(ctx, grants.Thread{
		ID:       thread.ID,
		ParentID: thread.ParentID,
		OwnerID:  thread.OwnerID,
	}, member)
	if err != nil {
		a.logger.Error("permission check failed", zap.String("thread_id", thread.ID), zap.Error(err))
		a.respondError(i, "Could not verify your permissions.")
		return false
	}
	if !ok {
		a.respondError(i, "You do not have permission to manage this thread.")
		return false
	}
	return true
}

func (a *App) isModerator(i *discordgo.InteractionCreate) bool {
	if a.cfg.Discord.ModeratorRoleID == "" || i.Member == nil {
		return false
	}
	for _, role := range i.Member.Roles {
		if role == a.cfg.Discord.ModeratorRoleID {
			return true
		}
	}
	return false
}

func (a *App) recordAction(ctx context.Context, entry actionlog.Entry) {
	if err := a.logSvc.Record(ctx, entry); err != nil {
		a.logger.Error("failed to record action",
			zap.String("action", string(entry.Action)), zap.Error(err))
	}
}

func (a *App) fetchChannel(channelID string) (*discordgo.Channel, error) {
	if ch, err := a.session.State.Channel(channelID); err == nil {
		return ch, nil
	}
	return a.session.Channel(channelID)
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func optionString(sub *discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range sub.Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}

func optionUserID(sub *discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range sub.Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionUser {
			if v, ok := opt.Value.(string); ok {
				return v
			}
		}
	}
	return ""
}
