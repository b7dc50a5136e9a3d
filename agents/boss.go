package agents

import (
	"context"

	"github.com/skosovsky/agentry"
)

const bossInstruction = "You are the boss. Please assign tasks to your workers."

// Date is a calendar date.
type Date struct {
	Day   int `json:"day" description:"the day of the month"`
	Month int `json:"month" description:"the month of the year"`
	Year  int `json:"year" description:"the year"`
}

// Payment is the boss's structured answer.
type Payment struct {
	Amount    float64 `json:"amount" description:"the amount of the payment"`
	Recipient string  `json:"recipient" description:"the recipient of the payment"`
	Date      Date    `json:"date" description:"the date of the payment"`
}

// Boss delegates work to the other workers and returns the resulting payment.
// Its tools are alice, carol, dave, math_professor, web_scraper and web_searcher.
func (c *Crew) Boss(ctx context.Context, work string) (Payment, error) {
	return agentry.Run(ctx, c.agent, c.paymentOut, agentry.Task{
		Instruction: bossInstruction,
		Data:        work,
		Tools:       c.bossTools,
	})
}
