package botapp

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (a *App) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	err := a.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		a.logger.Warn("failed to respond to interaction", zap.Error(err))
	}
}

func (a *App) respondError(i *discordgo.InteractionCreate, content string) {
	a.respondEphemeral(i, "⚠️ "+content)
}

func (a *App) respondEmbeds(i *discordgo.InteractionCreate, content string, embeds []*discordgo.MessageEmbed) {
	// Discord caps a single response at ten embeds.
	if len(embeds) > 10 {
		embeds = embeds[:10]
	}
	err := a.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Embeds:  embeds,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		a.logger.Warn("failed to respond with embeds", zap.Error(err))
	}
}

func (a *App) respondMenu(i *discordgo.InteractionCreate, content string, menu discordgo.SelectMenu) {
	err := a.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{menu},
				},
			},
		},
	})
	if err != nil {
		a.logger.Warn("failed to respond with menu", zap.Error(err))
	}
}
