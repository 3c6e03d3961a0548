// Package flow implements the quotation flow engine: the step-sequencing
// state machine that turns inbound answers into the next prompt instruction.
//
// The engine is stateless per invocation. Every call loads the session from
// the store, computes a new session, and writes it back as a whole record;
// resumability across independent invocations falls out of that contract.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/brightvolt/quotebot/internal/flowdef"
	"github.com/brightvolt/quotebot/internal/models"
	"github.com/brightvolt/quotebot/internal/store"
)

var nonDigitRegex = regexp.MustCompile(`\D`)

// Engine drives a conversation through the flow definition.
type Engine struct {
	store store.Store
	def   *flowdef.Definition
}

// NewEngine creates a flow engine over a session store and flow definition.
// The definition must already be validated.
func NewEngine(st store.Store, def *flowdef.Definition) *Engine {
	slog.Debug("Creating flow engine", "main_fields", len(def.MainSequence), "branch_fields", len(def.BranchSequence))
	return &Engine{store: st, def: def}
}

// Definition exposes the flow definition for transports that render menus.
func (e *Engine) Definition() *flowdef.Definition { return e.def }

// Start creates a fresh session positioned at the first field, overwriting
// any flow already in progress for the conversation.
func (e *Engine) Start(ctx context.Context, conversationID string) (models.StepResult, error) {
	slog.Debug("Engine Start", "conversation_id", conversationID)

	sess := models.NewSession(conversationID, e.def.First())
	existing, err := e.store.LoadSession(ctx, conversationID)
	if err != nil {
		return models.StepResult{}, err
	}
	if existing != nil {
		// Preserve the version chain so the overwrite passes the store's
		// optimistic check.
		sess.Version = existing.Version
		sess.CreatedAt = existing.CreatedAt
	}
	if err := e.store.SaveSession(ctx, sess); err != nil {
		slog.Error("Engine Start save failed", "error", err, "conversation_id", conversationID)
		return models.StepResult{}, err
	}
	slog.Info("Engine started flow", "conversation_id", conversationID, "first", e.def.First())
	return e.instruction(e.def.First()), nil
}

// CurrentStep returns the session's current step, or ErrNoActiveSession.
func (e *Engine) CurrentStep(ctx context.Context, conversationID string) (models.Step, error) {
	sess, err := e.store.LoadSession(ctx, conversationID)
	if err != nil {
		return models.Step{}, err
	}
	if sess == nil {
		return models.Step{}, models.ErrNoActiveSession
	}
	return sess.Step, nil
}

// AcceptChoice processes a button press on a choice menu.
//
// Selecting "Other" does not record an answer: the session moves to the
// awaiting-override state and the transport is told to prompt for free text.
func (e *Engine) AcceptChoice(ctx context.Context, ev models.ButtonEvent) (models.StepResult, error) {
	slog.Debug("Engine AcceptChoice", "conversation_id", ev.ConversationID, "field", ev.Field, "selection", ev.Selection)

	sess, err := e.store.LoadSession(ctx, ev.ConversationID)
	if err != nil {
		return models.StepResult{}, err
	}
	if sess == nil {
		return models.StepResult{}, models.ErrNoActiveSession
	}
	if sess.Step.Kind == models.StepComplete {
		// Stale button after completion: just re-offer the finished flow.
		return completeResult(sess), nil
	}
	if sess.Step.Kind != models.StepAwaitingField || sess.Step.Field != ev.Field {
		slog.Warn("Engine rejected stale button press", "conversation_id", ev.ConversationID,
			"pressed", ev.Field, "current", sess.Step.Field)
		return models.StepResult{}, models.ErrStaleInteraction
	}

	if ev.Selection == models.OtherSelection {
		sess.Step = models.AwaitingOverride(ev.Field)
		if err := e.store.SaveSession(ctx, sess); err != nil {
			return models.StepResult{}, err
		}
		slog.Debug("Engine awaiting override", "conversation_id", ev.ConversationID, "field", ev.Field)
		return models.StepResult{Kind: models.ResultPrompt, Field: ev.Field, Label: flowdef.Label(ev.Field)}, nil
	}

	option, err := e.def.Option(ev.Field, ev.Selection)
	if err != nil {
		slog.Warn("Engine rejected option index", "error", err, "conversation_id", ev.ConversationID)
		return models.StepResult{}, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	sess.Answers[ev.Field] = option
	return e.advance(ctx, sess, ev.Field)
}

// AcceptText processes a typed message for the current step.
//
// When the session is awaiting a free-text override, the text is stored
// verbatim for the overridden choice field, bypassing the option list.
// Otherwise the text answers the current field, trimmed; the price field is
// additionally reduced to its digits and rejected when none remain, leaving
// the session unchanged so the caller re-prompts the same step.
func (e *Engine) AcceptText(ctx context.Context, ev models.TextEvent) (models.StepResult, error) {
	slog.Debug("Engine AcceptText", "conversation_id", ev.ConversationID)

	sess, err := e.store.LoadSession(ctx, ev.ConversationID)
	if err != nil {
		return models.StepResult{}, err
	}
	if sess == nil {
		return models.StepResult{}, models.ErrNoActiveSession
	}
	if sess.Step.Kind == models.StepComplete {
		return completeResult(sess), nil
	}

	field := sess.Step.Field
	if sess.Step.Kind == models.StepAwaitingOverride {
		sess.Answers[field] = ev.Text
		return e.advance(ctx, sess, field)
	}

	value := strings.TrimSpace(ev.Text)
	if field == models.FieldPrice {
		value = nonDigitRegex.ReplaceAllString(value, "")
		if value == "" {
			slog.Warn("Engine rejected non-numeric price", "conversation_id", ev.ConversationID)
			return models.StepResult{
				Kind:   models.ResultRejected,
				Field:  field,
				Label:  flowdef.Label(field),
				Reason: "price must contain digits",
			}, nil
		}
	}
	sess.Answers[field] = value
	return e.advance(ctx, sess, field)
}

// advance records the step transition after field was answered and returns
// the next prompt instruction or the completed answer-set.
func (e *Engine) advance(ctx context.Context, sess *models.Session, answered models.Field) (models.StepResult, error) {
	next, done := e.NextStep(answered, sess.Answers)
	if done {
		sess.Step = models.Complete()
	} else {
		sess.Step = models.AwaitingField(next)
	}
	if err := e.store.SaveSession(ctx, sess); err != nil {
		slog.Error("Engine advance save failed", "error", err, "conversation_id", sess.ConversationID)
		return models.StepResult{}, err
	}
	if done {
		slog.Info("Engine flow complete", "conversation_id", sess.ConversationID, "answers", len(sess.Answers))
		return completeResult(sess), nil
	}
	slog.Debug("Engine advanced", "conversation_id", sess.ConversationID, "answered", answered, "next", next)
	return e.instruction(next), nil
}

// NextStep computes the field following the one just answered, honoring the
// branch: after the last main-sequence field the branch sequence is entered
// only when the trigger field's answer matches the trigger value. The second
// return value is true when the flow is complete.
func (e *Engine) NextStep(answered models.Field, answers map[models.Field]string) (models.Field, bool) {
	main := e.def.MainSequence
	if answered == main[len(main)-1] && answers[e.def.BranchField] == e.def.BranchTrigger && len(e.def.BranchSequence) > 0 {
		return e.def.BranchSequence[0], false
	}
	for i, f := range e.def.BranchSequence {
		if f != answered {
			continue
		}
		if i+1 < len(e.def.BranchSequence) {
			return e.def.BranchSequence[i+1], false
		}
		return "", true
	}
	for i, f := range main {
		if f != answered {
			continue
		}
		if i+1 < len(main) {
			return main[i+1], false
		}
		return "", true
	}
	return "", true
}

// ClearSession removes the session after confirmed delivery.
func (e *Engine) ClearSession(ctx context.Context, conversationID string) error {
	return e.store.DeleteSession(ctx, conversationID)
}

func (e *Engine) instruction(f models.Field) models.StepResult {
	if opts, ok := e.def.Choices[f]; ok {
		return models.StepResult{
			Kind:       models.ResultMenu,
			Field:      f,
			Label:      flowdef.Label(f),
			Options:    opts,
			AllowOther: true,
		}
	}
	return models.StepResult{Kind: models.ResultPrompt, Field: f, Label: flowdef.Label(f)}
}

func completeResult(sess *models.Session) models.StepResult {
	return models.StepResult{Kind: models.ResultComplete, Answers: sess.Answers}
}
