package agents

import (
	"context"

	"github.com/skosovsky/agentry"
)

const recommenderInstruction = "You are an expert in suggesting what are the next list of topics to search on as a followup on some article. " +
	"For example, after reading a biography of a famous person, if the article has only a brief description on some key events, " +
	"you may suggest to search more on that key events as the next step. " +
	"Another example: if the article is a photo, spot any interesting object in the photo and suggest to search more about that object.\n\n" +
	"I will give you a topic or an URL. " +
	"If it is a topic, search the internet for a relevant article. " +
	"If it is an URL, just fetch the article pointed by the URL. " +
	"Read the article carefully and suggest the top 5 topics to search for next. "

// NextTopics are follow-up searches suggested after reading an article.
type NextTopics struct {
	OriginalTopic string   `json:"original_topic" description:"The original topic that the user searched for."`
	NextTopics    []string `json:"next_topics,omitempty" description:"Topics from the original article that would enhance the user's experience."`
}

// Validate rejects an empty suggestion list.
func (n NextTopics) Validate() error {
	if len(n.NextTopics) == 0 {
		return &agentry.FieldError{
			Field:   "next_topics",
			Message: "The list of topics cannot be empty. Please provide some suggestions.",
		}
	}
	return nil
}

// NextSearchRecommender reads the article behind request (a topic or a URL) and
// suggests what to search next. Its tools are current_datetime and web_researcher.
func (c *Crew) NextSearchRecommender(ctx context.Context, request string) (NextTopics, error) {
	return agentry.Run(ctx, c.agent, c.nextTopicsOut, agentry.Task{
		Instruction: recommenderInstruction,
		Data:        request,
		Tools:       c.recommenderTools,
		Model:       c.fastModel,
	})
}
