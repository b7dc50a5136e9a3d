package agentry

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	// defaultMessage is sent when a task carries no data.
	defaultMessage = "Begin."

	reasoningSuffix = "\n\nExplain your thoughts step by step. " +
		"If you made an error, go right ahead to fix the problem and try again. " +
		"When you have figured out the answer, restate clearly what the final response is " +
		"with the full details but without the intermediate steps.\n"

	toolsSuffix = "\n\nIf you are calling functions, be careful to escape the quotes inside strings properly."

	extractionPrompt = "I will give you a passage that may have both the intermediate step-by-step thoughts " +
		"and the final conclusion. Ignore the intermediate steps but extract the conclusion of the passage " +
		"into a JSON object. Use this JSON schema: "

	// JSONMIMEType is the response MIME type of extraction calls.
	JSONMIMEType = "application/json"
)

// fieldDoc is one line of the final-response description.
type fieldDoc struct {
	Name        string
	Description string
}

// systemInstruction composes the primary conversation's system prompt.
// final is nil for free-text outputs.
func systemInstruction(instruction string, final *finalResponse, hasTools bool) string {
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString(reasoningSuffix)
	if final != nil {
		b.WriteString("Your final response should include the following information:\n")
		b.WriteString(final.describe())
	}
	if hasTools {
		b.WriteString(toolsSuffix)
	}
	return b.String()
}

// finalResponse describes what a structured answer must contain.
type finalResponse struct {
	Description string
	Fields      []fieldDoc
}

func (f *finalResponse) describe() string {
	blocks := make([]string, 0, len(f.Fields)+2)
	blocks = append(blocks, "\nFinal response:\n```\n"+f.Description+"\n```\n")
	blocks = append(blocks, "Details to include in the final response.")
	for _, field := range f.Fields {
		blocks = append(blocks, "\n"+field.Name+":\n```\n"+field.Description+"\n```\n")
	}
	return strings.Join(blocks, "\n")
}

// extractionInstruction is the system prompt of the deterministic extraction call.
func extractionInstruction(schema map[string]any) (string, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}
	return extractionPrompt + string(data) + ".\n\n", nil
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// stripFences returns the content of the first fenced code block when text holds one,
// otherwise the trimmed text.
func stripFences(text string) string {
	if strings.Contains(text, "```") {
		if m := fencedBlock.FindStringSubmatch(text); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return strings.TrimSpace(text)
}
