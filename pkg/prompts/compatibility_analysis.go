// Package prompts builds the prompts sent to the scoring oracle.
package prompts

import (
	"fmt"
	"strings"

	"github.com/pairlink-inc/pairlink-engine/pkg/models"
)

// CompatibilityAnalysisSystemMessage frames the oracle as a relationship
// counselor and pins down the required JSON output shape.
const CompatibilityAnalysisSystemMessage = `You are a relationship counselor analyzing a couple's compatibility test. Both partners answered the same questions independently. Compare their answers and produce a balanced, constructive assessment.

Respond with ONLY a JSON object in this exact shape:
{
  "score": <integer 0-100>,
  "strengths": [{"area": "<short area name>", "details": "<one or two sentences>"}],
  "weaknesses": [{"area": "<short area name>", "details": "<one or two sentences>"}],
  "suggestions": [{"title": "<short title>", "description": "<one or two sentences>"}]
}

Each list must contain between 1 and 5 entries. Do not include any text outside the JSON object.`

// BuildCompatibilityAnalysisPrompt creates the analysis prompt from the paired
// responses. Questions are referenced by their text when available, falling
// back to the question id.
func BuildCompatibilityAnalysisPrompt(paired []models.PairedResponse, questionText map[string]string) string {
	var prompt strings.Builder

	prompt.WriteString("# Compatibility Test Responses\n\n")
	if len(paired) == 0 {
		prompt.WriteString("No questions were answered by both partners. Provide a best-effort neutral assessment encouraging the couple to retake the test together.\n")
		return prompt.String()
	}

	prompt.WriteString("Each question below was answered by both partners.\n\n")
	for i, p := range paired {
		label := questionText[p.QuestionID.String()]
		if label == "" {
			label = fmt.Sprintf("Question %s", p.QuestionID)
		}
		prompt.WriteString(fmt.Sprintf("## %d. %s\n", i+1, label))
		prompt.WriteString(fmt.Sprintf("Partner A: %s\n", p.PartyAAnswer))
		prompt.WriteString(fmt.Sprintf("Partner B: %s\n\n", p.PartyBAnswer))
	}

	prompt.WriteString("Analyze the alignment and divergence between the partners' answers and produce the JSON assessment.\n")
	return prompt.String()
}
