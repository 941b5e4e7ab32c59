package botapp

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	discordinfra "github.com/kazuki388/Threads/internal/infra/discord"
	"github.com/kazuki388/Threads/internal/services/featured"
)

// gateway adapts the discordgo session to the narrow surfaces the domain
// services depend on. Keeping it in one place means the services stay
// testable with fakes.
type gateway struct {
	session *discordinfra.Session
	guildID string
}

func newGateway(session *discordinfra.Session, guildID string) *gateway {
	return &gateway{session: session, guildID: guildID}
}

func (g *gateway) ActiveThreads(_ context.Context, forumID string) ([]featured.Thread, error) {
	list, err := g.session.GuildThreadsActive(g.guildID)
	if err != nil {
		return nil, fmt.Errorf("list active threads: %w", err)
	}

	var out []featured.Thread
	for _, ch := range list.Threads {
		if ch.ParentID != forumID {
			continue
		}
		out = append(out, featured.Thread{
			ID:          ch.ID,
			Name:        ch.Name,
			AppliedTags: ch.AppliedTags,
		})
	}
	return out, nil
}

func (g *gateway) ForumTags(_ context.Context, forumID string) ([]featured.Tag, error) {
	ch, err := g.session.Channel(forumID)
	if err != nil {
		return nil, fmt.Errorf("fetch forum channel: %w", err)
	}

	out := make([]featured.Tag, 0, len(ch.AvailableTags))
	for _, tag := range ch.AvailableTags {
		out = append(out, featured.Tag{ID: tag.ID, Name: tag.Name})
	}
	return out, nil
}

func (g *gateway) ApplyTags(_ context.Context, threadID string, tagIDs []string) error {
	_, err := g.session.ChannelEditComplex(threadID, &discordgo.ChannelEdit{
		AppliedTags: &tagIDs,
	})
	if err != nil {
		return fmt.Errorf("edit thread tags: %w", err)
	}
	return nil
}

func (g *gateway) TimeoutMember(_ context.Context, guildID, userID string, until time.Time) error {
	if err := g.session.GuildMemberTimeout(guildID, userID, &until); err != nil {
		return fmt.Errorf("timeout guild member: %w", err)
	}
	return nil
}

func (g *gateway) SendEmbeds(_ context.Context, channelID string, embeds []*discordgo.MessageEmbed) error {
	_, err := g.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{Embeds: embeds})
	if err != nil {
		return fmt.Errorf("send log embeds: %w", err)
	}
	return nil
}

// SendForumPostEmbeds unarchives the log post first; forum posts
// auto-archive and an archived thread rejects new messages.
func (g *gateway) SendForumPostEmbeds(ctx context.Context, forumID, postID string, embeds []*discordgo.MessageEmbed) error {
	ch, err := g.session.Channel(postID)
	if err != nil {
		return fmt.Errorf("fetch log post: %w", err)
	}
	if ch.ParentID != forumID {
		return fmt.Errorf("log post %s does not belong to forum %s", postID, forumID)
	}
	if ch.ThreadMetadata != nil && ch.ThreadMetadata.Archived {
		archived := false
		if _, err := g.session.ChannelEditComplex(postID, &discordgo.ChannelEdit{Archived: &archived}); err != nil {
			return fmt.Errorf("unarchive log post: %w", err)
		}
	}
	return g.SendEmbeds(ctx, postID, embeds)
}

func (g *gateway) NotifyUser(_ context.Context, userID, content, appealURL string) error {
	msg := &discordgo.MessageSend{Content: content}
	if appealURL != "" {
		msg.Components = []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label: "Appeal",
						Style: discordgo.LinkButton,
						URL:   appealURL,
					},
				},
			},
		}
	}
	return g.session.DM(userID, msg)
}
