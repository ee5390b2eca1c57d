package biz

import (
	"fmt"
	"strings"

	"github.com/kart-io/sentinel-cluster/internal/model"
)

const condenseSystemPrompt = `You summarize conversations between users and a conversational assistant.
Answer with exactly one short sentence. Do not add any preamble, quotes or explanation.`

const summarizeSystemPrompt = `You analyze groups of similar items produced by clustering the usage data of a conversational product.
Be specific and concise. Do not add any preamble or quotes.`

// descriptionPrompt 各输出格式的簇描述提示。
func descriptionPrompt(format model.OutputFormat, scope model.Scope, instruction string, samples []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Here are %d samples of %s that belong to the same group:\n\n", len(samples), scope)
	for i, s := range samples {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.TrimSpace(s))
	}
	sb.WriteString("\n")

	switch format {
	case model.FormatUserPersona:
		fmt.Fprintf(&sb, "Describe the user persona shared by this group in two sentences, focusing on their %s.", instruction)
	case model.FormatQuestionAndAnswer:
		sb.WriteString("Write the question these users most commonly ask, then the best answer to it. ")
		sb.WriteString("Use the form:\nQuestion: ...\nAnswer: ...")
	default:
		fmt.Fprintf(&sb, "Describe in two sentences the common %s of this group.", instruction)
	}
	return sb.String()
}

func titlePrompt(description string) string {
	return "Description of a group:\n" + description +
		"\n\nWrite a short title for this group, at most 6 words."
}
