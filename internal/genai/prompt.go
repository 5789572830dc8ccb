// internal/genai/prompt.go
package genai

import (
	"fmt"

	"dataverse-agent/internal/retrieval"
)

// BuildPrompt assembles the user prompt for the completion call. The
// grounded form carries the retrieved context; when retrieval found
// nothing the prompt says so explicitly, so the model acknowledges the
// gap instead of inventing records.
func BuildPrompt(result retrieval.Result, question string) string {
	if !result.Found {
		return fmt.Sprintf(
			"No relevant data was found in the Dataverse environment for this question.\n\n"+
				"User Question: %s\n\n"+
				"Please let the user know that no matching records were found, and suggest "+
				"how they might rephrase or narrow their question.", question)
	}
	return fmt.Sprintf(
		"Context from knowledge base:\n%s\n\n"+
			"User Question: %s\n\n"+
			"Please provide a helpful and accurate answer based on the context provided.",
		result.Context, question)
}
