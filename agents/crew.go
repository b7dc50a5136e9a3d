// Package agents provides a crew of ready-made agents built on agentry and the toolkits.
//
// Every worker is a method on Crew taking a free-text request. Workers can be handed to
// other agents as tools (Crew.Tool), which is how Boss delegates: the model calls a worker
// by name with {"request": "..."} and receives the worker's answer as the tool result.
package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skosovsky/agentry"
	"github.com/skosovsky/agentry/toolkits/mail"
	"github.com/skosovsky/agentry/toolkits/mathtool"
	"github.com/skosovsky/agentry/toolkits/timetool"
	"github.com/skosovsky/agentry/toolkits/web"
)

// DefaultFastModel runs the math professor and the search recommender.
const DefaultFastModel = "gemini-2.5-flash"

// ErrNoSearcher is returned by web_search when the crew has no Searcher.
var ErrNoSearcher = errors.New("agents: web search is not configured")

// Request is the argument of every worker tool.
type Request struct {
	Request string `json:"request" description:"The request to the worker."`
}

// Crew holds the shared agent and the collaborators the workers' tools need.
// It is safe for concurrent use.
type Crew struct {
	agent     *agentry.Agent
	fastModel string
	logger    *slog.Logger

	mathTools        []agentry.Tool
	searchTool       agentry.Tool
	scrapeTool       agentry.Tool
	clockTool        agentry.Tool
	mailTool         agentry.Tool
	bossTools        []agentry.Tool
	recommenderTools []agentry.Tool

	paymentOut    agentry.Output[Payment]
	nextTopicsOut agentry.Output[NextTopics]
}

type crewOptions struct {
	searcher  web.Searcher
	sender    mail.Sender
	webOpts   []web.Option
	now       func() time.Time
	fastModel string
	logger    *slog.Logger
}

// Option configures NewCrew.
type Option func(*crewOptions)

// WithSearcher sets the search backend of web_search.
func WithSearcher(s web.Searcher) Option {
	return func(o *crewOptions) {
		o.searcher = s
	}
}

// WithSender sets the mail backend of send_mail. Defaults to a mail.LogSender.
func WithSender(s mail.Sender) Option {
	return func(o *crewOptions) {
		o.sender = s
	}
}

// WithWebOptions configures web_scrape and web_search.
func WithWebOptions(opts ...web.Option) Option {
	return func(o *crewOptions) {
		o.webOpts = append(o.webOpts, opts...)
	}
}

// WithClock overrides the clock of current_datetime.
func WithClock(now func() time.Time) Option {
	return func(o *crewOptions) {
		o.now = now
	}
}

// WithFastModel overrides DefaultFastModel.
func WithFastModel(model string) Option {
	return func(o *crewOptions) {
		o.fastModel = model
	}
}

// WithLogger sets the logger of the toolkits. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *crewOptions) {
		o.logger = l
	}
}

// NewCrew builds the crew's tools and outputs around agent.
func NewCrew(agent *agentry.Agent, opts ...Option) (*Crew, error) {
	if agent == nil {
		return nil, errors.New("agents: nil agent")
	}
	o := crewOptions{
		searcher: web.SearcherFunc(func(context.Context, string, int) ([]web.Result, error) {
			return nil, ErrNoSearcher
		}),
		now:       time.Now,
		fastModel: DefaultFastModel,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sender == nil {
		o.sender = mail.LogSender{Logger: o.logger}
	}
	webOpts := append([]web.Option{web.WithLogger(o.logger)}, o.webOpts...)

	c := &Crew{agent: agent, fastModel: o.fastModel, logger: o.logger}
	var err error
	if c.mathTools, err = mathtool.Tools(mathtool.WithLogger(o.logger)); err != nil {
		return nil, err
	}
	if c.searchTool, err = web.SearchTool(o.searcher, webOpts...); err != nil {
		return nil, err
	}
	if c.scrapeTool, err = web.ScrapeTool(webOpts...); err != nil {
		return nil, err
	}
	if c.clockTool, err = timetool.Tool(timetool.WithClock(o.now), timetool.WithLogger(o.logger)); err != nil {
		return nil, err
	}
	if c.mailTool, err = mail.Tool(o.sender); err != nil {
		return nil, err
	}
	if err := c.buildDelegates(); err != nil {
		return nil, err
	}
	if c.paymentOut, err = agentry.Structured[Payment](agentry.WithDescription("A payment entity.")); err != nil {
		return nil, err
	}
	if c.nextTopicsOut, err = agentry.Structured[NextTopics](agentry.WithDescription("Top N topics to search for next from an article.")); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Crew) buildDelegates() error {
	workers := []struct {
		name, description string
		fn                func(context.Context, string) (string, error)
	}{
		{"alice", "Alice is an expert in flattery languages.", c.Flatterer},
		{"carol", "Carol is an emailer. She can send email on behalf of others.", c.Emailer},
		{"dave", "Dave knows the current date and time. He also knows all dates for holidays and events.", c.Clock},
		{"math_professor", "Bob is an expert in math. Can handle arithmetic operations and date differences.", c.MathProfessor},
		{"web_scraper", "web_scraper is an expert in returning web content from an URL.", c.WebScraper},
		{"web_searcher", "web_searcher is an expert in google search.", c.WebSearcher},
	}
	for _, w := range workers {
		t, err := c.Tool(w.name, w.description, w.fn)
		if err != nil {
			return err
		}
		c.bossTools = append(c.bossTools, t)
	}
	researcher, err := c.Tool("web_researcher",
		"web_researcher is an expert in searching the web and reading the pages it finds.", c.WebResearcher)
	if err != nil {
		return err
	}
	c.recommenderTools = []agentry.Tool{c.clockTool, researcher}
	return nil
}

// Tool wraps a worker as a tool taking {"request": string}.
func (c *Crew) Tool(name, description string, worker func(ctx context.Context, request string) (string, error)) (agentry.Tool, error) {
	if worker == nil {
		return nil, fmt.Errorf("agents: nil worker %s", name)
	}
	return agentry.NewTool(name, description, func(ctx context.Context, req Request) (string, error) {
		c.logger.InfoContext(ctx, "delegating", "worker", name, "request", req.Request)
		return worker(ctx, req.Request)
	})
}
