package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/mohammad-safakhou/researchbot/config"
	"github.com/mohammad-safakhou/researchbot/models"
	"github.com/mohammad-safakhou/researchbot/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	deepDivePrefix     = "/dig-deeper"
	deepDiveUsage      = "Usage: /dig-deeper <your query>\n\nExample: /dig-deeper Tell me about Tesla"
	noResultsAnswer    = "I couldn't find any information. Please try rephrasing."
	turnFailureAnswer  = "I apologize, but I encountered an error. Please try again."
	newChatMessage     = "Started a new chat session!"
	downloadPath       = "/api/download-document"
	NoDocumentMessage  = "No document available yet. Start a conversation to generate content."
	turnOutcomeFailure = "failure"
)

// ErrTurnFailed marks a turn that ended in the generic failure answer.
var ErrTurnFailed = errors.New("turn failed")

// TurnResponse is the result of one chat message. Answer is nil for commands.
type TurnResponse struct {
	*models.Answer
	SessionID   string `json:"session_id,omitempty"`
	Intent      string `json:"intent,omitempty"`
	Command     string `json:"command,omitempty"`
	Content     string `json:"content,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Deps are the collaborators of a Pipeline. Documents may be nil.
type Deps struct {
	Config    *config.Config
	LLM       Generator
	Search    Searcher
	Fetch     PageFetcher
	Sessions  session.Store
	Documents Documents
}

// Pipeline runs chat turns through resolve, retrieve, filter and synthesize.
type Pipeline struct {
	cfg         *config.Config
	sessions    session.Store
	docs        Documents
	resolver    *Resolver
	retriever   *Retriever
	filter      *Filter
	synthesizer *Synthesizer
	opts        options
}

func NewPipeline(d Deps, opts ...Option) (*Pipeline, error) {
	if d.Config == nil {
		return nil, errors.New("pipeline: config is required")
	}
	if d.LLM == nil {
		return nil, errors.New("pipeline: generation provider is required")
	}
	if d.Sessions == nil {
		return nil, errors.New("pipeline: session store is required")
	}
	model := d.Config.LLM.Model
	return &Pipeline{
		cfg:         d.Config,
		sessions:    d.Sessions,
		docs:        d.Documents,
		resolver:    NewResolver(d.LLM, model, opts...),
		retriever:   NewRetriever(d.Search, d.Fetch, RetrieverConfigFrom(d.Config), opts...),
		filter:      NewFilter(d.LLM, model, opts...),
		synthesizer: NewSynthesizer(d.LLM, model, opts...),
		opts:        buildOptions("[PIPELINE] ", opts),
	}, nil
}

// HandleTurn answers one chat message in sessionID, creating the session
// when it is empty or unknown. Commands start with "/". A fault inside the
// turn yields the generic failure answer together with ErrTurnFailed.
func (p *Pipeline) HandleTurn(ctx context.Context, sessionID, message string) (resp TurnResponse, err error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return TurnResponse{}, ErrEmptyMessage
	}
	mode := ModeNormal
	if strings.HasPrefix(strings.ToLower(message), deepDivePrefix) {
		mode = ModeDeep
		message = strings.TrimSpace(message[len(deepDivePrefix):])
		if message == "" {
			return TurnResponse{SessionID: sessionID, Answer: textAnswer(deepDiveUsage, models.ConfidenceLow)}, ErrEmptyDeepQuery
		}
	}
	if strings.HasPrefix(message, "/") {
		return p.handleCommand(ctx, sessionID, message)
	}

	ctx, span := p.opts.telemetry.Tracer().Start(ctx, "agent.turn")
	span.SetAttributes(attribute.String("turn.mode", string(mode)))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			p.opts.logger.Printf("panic in turn: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("%w: panic: %v", ErrTurnFailed, r)
		}
		if errors.Is(err, ErrTurnFailed) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			p.opts.telemetry.Turn(turnOutcomeFailure)
			resp = TurnResponse{SessionID: sessionID, Answer: textAnswer(turnFailureAnswer, models.ConfidenceLow)}
		}
	}()

	sessionID, err = p.ensureSession(ctx, sessionID)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("%w: %v", ErrTurnFailed, err)
	}
	history, err := p.sessions.Read(ctx, sessionID)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("%w: read history: %v", ErrTurnFailed, err)
	}
	if w := p.cfg.Pipeline.ContextWindow; w > 0 && len(history) > w {
		history = history[len(history)-w:]
	}
	limits := LimitsFor(p.cfg.Pipeline, mode)
	p.opts.logger.Printf("session %s: %s turn, %d history turns, %d sub-queries, %d sources",
		shortID(sessionID), mode, len(history), limits.SubQueries, limits.Sources)

	plan := p.resolver.Resolve(ctx, message, history, limits.SubQueries)
	if plan.Terminal() {
		answer := plan.Shortcut.Response
		p.opts.telemetry.Shortcut(plan.Shortcut.Tag)
		p.opts.telemetry.Turn(string(plan.Shortcut.Kind))
		p.append(ctx, sessionID, models.RoleUser, message, nil)
		p.append(ctx, sessionID, models.RoleAssistant, answer.Answer, nil)
		return TurnResponse{Answer: &answer, SessionID: sessionID, Intent: plan.Intent}, nil
	}

	p.append(ctx, sessionID, models.RoleUser, message, nil)
	hits := p.retriever.Search(ctx, plan.SubQueries, p.cfg.Search.MaxResults)
	if len(hits) == 0 {
		p.opts.telemetry.Turn("no_results")
		p.append(ctx, sessionID, models.RoleAssistant, noResultsAnswer, nil)
		return TurnResponse{Answer: textAnswer(noResultsAnswer, models.ConfidenceLow), SessionID: sessionID, Intent: plan.Intent}, nil
	}
	candidates := p.retriever.Fetch(ctx, hits, limits.Sources)
	evidence := p.filter.Analyze(ctx, plan.ResolvedQuery, candidates)
	answer := p.synthesizer.Write(ctx, plan.ResolvedQuery, evidence)

	p.append(ctx, sessionID, models.RoleAssistant, answer.Answer, answer.Sources)
	if p.docs != nil {
		entry := DocumentEntry{
			SessionID: sessionID,
			Query:     message,
			Answer:    answer.Answer,
			Sources:   answer.Sources,
			DeepDive:  mode == ModeDeep,
		}
		if err := p.docs.Record(ctx, entry); err != nil {
			p.opts.logger.Printf("record document for %s: %v", shortID(sessionID), err)
		}
	}
	p.opts.telemetry.Turn("answered")
	return TurnResponse{Answer: &answer, SessionID: sessionID, Intent: plan.Intent}, nil
}

func (p *Pipeline) handleCommand(ctx context.Context, sessionID, command string) (TurnResponse, error) {
	switch command {
	case "/doc-preview":
		content := NoDocumentMessage
		if p.docs != nil && sessionID != "" {
			html, err := p.docs.Preview(ctx, sessionID)
			switch {
			case err == nil:
				content = html
			case !errors.Is(err, models.ErrNoDocument):
				return TurnResponse{}, fmt.Errorf("preview document: %w", err)
			}
		}
		return TurnResponse{Command: "doc-preview", Content: content, SessionID: sessionID}, nil
	case "/doc-download":
		return TurnResponse{
			Command:     "doc-download",
			DownloadURL: downloadPath + "?session_id=" + sessionID,
			SessionID:   sessionID,
		}, nil
	case "/new-chat":
		id, err := p.sessions.Create(ctx)
		if err != nil {
			return TurnResponse{}, fmt.Errorf("create session: %w", err)
		}
		p.opts.logger.Printf("new chat session %s (previous %s)", shortID(id), shortID(sessionID))
		return TurnResponse{Command: "new-chat", Message: newChatMessage, SessionID: id}, nil
	}
	return TurnResponse{}, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
}

// NewSession creates an empty conversation.
func (p *Pipeline) NewSession(ctx context.Context) (string, error) {
	return p.sessions.Create(ctx)
}

// History returns the turns of sessionID; an unknown session has none.
func (p *Pipeline) History(ctx context.Context, sessionID string) ([]models.Turn, error) {
	if sessionID == "" {
		return []models.Turn{}, nil
	}
	turns, err := p.sessions.Read(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return []models.Turn{}, nil
	}
	return turns, err
}

// Suggestions proposes follow-ups for the last exchange of sessionID.
func (p *Pipeline) Suggestions(ctx context.Context, sessionID, lastQuery, lastAnswer string) []string {
	if sessionID == "" {
		return []string{}
	}
	history, err := p.History(ctx, sessionID)
	if err != nil {
		p.opts.logger.Printf("suggestions for %s: %v", shortID(sessionID), err)
		return []string{}
	}
	return Suggest(strings.TrimSpace(lastQuery), strings.TrimSpace(lastAnswer), history)
}

func (p *Pipeline) ensureSession(ctx context.Context, id string) (string, error) {
	if id != "" {
		ok, err := p.sessions.Exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("check session: %w", err)
		}
		if ok {
			return id, nil
		}
	}
	id, err := p.sessions.Create(ctx)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	p.opts.logger.Printf("created session %s", shortID(id))
	return id, nil
}

func (p *Pipeline) append(ctx context.Context, id string, role models.Role, content string, sources []models.Source) {
	turn := models.Turn{Role: role, Content: content, Sources: sources, Timestamp: p.opts.now().UTC()}
	if err := p.sessions.Append(ctx, id, turn); err != nil {
		p.opts.logger.Printf("append %s turn to %s: %v", role, shortID(id), err)
	}
}

func textAnswer(text string, c models.Confidence) *models.Answer {
	return &models.Answer{Answer: text, KeyPoints: []string{}, Confidence: c, Sources: []models.Source{}}
}

func shortID(id string) string { return prefixRunes(id, 8) }
