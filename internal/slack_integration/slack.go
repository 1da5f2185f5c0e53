package slack_integration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/dynoinc/vulnreport/internal/render"
	"github.com/dynoinc/vulnreport/internal/report"
)

type Config struct {
	BotToken     string `split_words:"true"`
	ChannelID    string `split_words:"true"`
	DevChannelID string `split_words:"true"`
}

func (c Config) Enabled() bool {
	return c.BotToken != "" && c.ChannelID != ""
}

type Poster struct {
	c Config

	BotUserID string
	client    *slack.Client
}

func New(ctx context.Context, c Config, opts ...slack.Option) (*Poster, error) {
	api := slack.New(c.BotToken, opts...)

	authTest, err := api.AuthTestContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("slack API test failed: %w", err)
	}

	return &Poster{
		c:         c,
		BotUserID: authTest.UserID,
		client:    api,
	}, nil
}

// Post sends the rendered report to the configured channel, or to the dev
// channel when one is set.
func (p *Poster) Post(ctx context.Context, rep *report.Report) error {
	channelID := p.c.ChannelID
	if p.c.DevChannelID != "" {
		channelID = p.c.DevChannelID
	}

	fallback := "Vulnerability report"
	if rep.Incomplete() {
		fallback += " (incomplete)"
	}

	_, ts, err := p.client.PostMessageContext(ctx,
		channelID,
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionBlocks(render.SlackBlocks(rep)...),
	)
	if err != nil {
		return fmt.Errorf("posting report message: %w", err)
	}

	slog.InfoContext(ctx, "posted report to slack", "channel_id", channelID, "ts", ts)
	return nil
}
