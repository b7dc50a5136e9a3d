package agents

import (
	"context"

	"github.com/skosovsky/agentry"
)

const (
	mathInstruction = "You are an expert with math. Please solve this math problem."

	searcherInstruction = "You are an expert with Google search. " +
		"You know how to find the best query to search for information on the internet."

	scraperInstruction = "You are an expert at scraping content from an URL. " +
		"You know how to extract text and links from a webpage."

	researcherInstruction = "You are an expert at researching on the internet. " +
		"Search the web for the best pages about the request, read the most relevant ones, " +
		"and report their content together with their URLs."

	flattererInstruction = "You are an expert with flattering languages. Please flatter me."

	emailerInstruction = "You are an expert with email. Please send an email on behalf of John to Bob."

	clockInstruction = `You have the clock to tell the current date and time.

Easter Dates:
Easter dates vary each year as it is based on the lunar calendar. Here are the dates for Easter Sunday:

2020: April 12
2021: April 4
2022: April 17
2023: April 9
2024: March 31
2025: April 20

Christmas Dates:
Christmas is always on December 25th every year.

2020: December 25
2021: December 25
2022: December 25
2023: December 25
2024: December 25
2025: December 25
`
)

// MathProfessor solves arithmetic and date-difference problems with math and diff_date.
func (c *Crew) MathProfessor(ctx context.Context, request string) (string, error) {
	return c.agent.Text(ctx, agentry.Task{
		Instruction: mathInstruction,
		Data:        request,
		Tools:       c.mathTools,
		Model:       c.fastModel,
	})
}

// WebSearcher answers from web_search results.
func (c *Crew) WebSearcher(ctx context.Context, request string) (string, error) {
	return c.agent.Text(ctx, agentry.Task{
		Instruction: searcherInstruction,
		Data:        request,
		Tools:       []agentry.Tool{c.searchTool},
	})
}

// WebScraper returns the content of the URLs named in request.
func (c *Crew) WebScraper(ctx context.Context, request string) (string, error) {
	return c.agent.Text(ctx, agentry.Task{
		Instruction: scraperInstruction,
		Data:        request,
		Tools:       []agentry.Tool{c.scrapeTool},
	})
}

// WebResearcher searches and then reads the pages it found.
func (c *Crew) WebResearcher(ctx context.Context, request string) (string, error) {
	return c.agent.Text(ctx, agentry.Task{
		Instruction: researcherInstruction,
		Data:        request,
		Tools:       []agentry.Tool{c.searchTool, c.scrapeTool},
	})
}

// Flatterer rewrites request in flattering language. It has no tools.
func (c *Crew) Flatterer(ctx context.Context, request string) (string, error) {
	return c.agent.Text(ctx, agentry.Task{
		Instruction: flattererInstruction,
		Data:        request,
	})
}

// Emailer sends mail on John's behalf with send_mail.
func (c *Crew) Emailer(ctx context.Context, request string) (string, error) {
	return c.agent.Text(ctx, agentry.Task{
		Instruction: emailerInstruction,
		Data:        request,
		Tools:       []agentry.Tool{c.mailTool},
	})
}

// Clock knows the current date and time and the dates of Easter and Christmas.
func (c *Crew) Clock(ctx context.Context, request string) (string, error) {
	return c.agent.Text(ctx, agentry.Task{
		Instruction: clockInstruction,
		Data:        request,
		Tools:       []agentry.Tool{c.clockTool},
	})
}
