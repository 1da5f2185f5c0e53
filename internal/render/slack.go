package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/slack-go/slack"

	"github.com/dynoinc/vulnreport/internal/report"
)

// Slack rejects section text over 3000 characters.
const maxSectionText = 3000

func codeBlock(title string, render func(sb *strings.Builder)) *slack.SectionBlock {
	var sb strings.Builder
	sb.WriteString("```\n")
	render(&sb)
	sb.WriteString("```\n")

	const cut = "\n...\n```\n"
	text := sb.String()
	if len(title)+len(text)+1 > maxSectionText {
		title = truncateUTF8(title, maxSectionText/2)
		keep := maxSectionText - len(title) - len("\n```") - len(cut)
		text = truncateUTF8(text, keep) + cut
	}
	return slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", title+"\n"+text, false, false), nil, nil)
}

// truncateUTF8 returns at most n bytes of s without splitting a rune.
func truncateUTF8(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// SlackBlocks lays the report out as a Slack message: summary and percent
// change first, then one table per group.
func SlackBlocks(rep *report.Report) []slack.Block {
	var blocks []slack.Block

	header := slack.NewTextBlockObject("mrkdwn",
		fmt.Sprintf("*Vulnerability Report*\nWindows: %s days", joinInts(rep.Windows)),
		false, false)
	blocks = append(blocks, slack.NewSectionBlock(header, nil, nil))

	blocks = append(blocks,
		slack.NewDividerBlock(),
		codeBlock("*Summary:*", func(sb *strings.Builder) { summaryTable(sb, rep) }),
		codeBlock("*Percent Change:*", func(sb *strings.Builder) { changeTable(sb, rep) }),
		slack.NewContextBlock("", slack.NewTextBlockObject("mrkdwn", "_"+undefinedNote+"_", false, false)),
	)

	for _, g := range rep.Groups {
		blocks = append(blocks,
			slack.NewDividerBlock(),
			codeBlock(fmt.Sprintf("*Group: %s*", g.Name), func(sb *strings.Builder) { groupTable(sb, g, rep.Windows) }))
	}

	if notes := footnotes(rep); len(notes) > 0 {
		var sb strings.Builder
		sb.WriteString("*Incomplete rows:*\n")
		for _, n := range notes {
			sb.WriteString("• " + n + "\n")
		}
		blocks = append(blocks,
			slack.NewDividerBlock(),
			slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", sb.String(), false, false), nil, nil))
	}

	blocks = append(blocks,
		slack.NewDividerBlock(),
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn",
				fmt.Sprintf("_Generated by vulnreport at %s_", rep.GeneratedAt.Format("2006-01-02 15:04:05 MST")),
				false, false),
			nil, nil))

	return blocks
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "/")
}
