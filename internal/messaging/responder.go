package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/brightvolt/quotebot/internal/flow"
	"github.com/brightvolt/quotebot/internal/merge"
	"github.com/brightvolt/quotebot/internal/models"
)

// menuOptionFormat is the format string for one numbered menu option.
const menuOptionFormat = "\n%d. %s"

// Responder routes inbound SMS turns through the flow engine. Menus are
// rendered as numbered lists; a numeric reply selects the option with that
// number and "other" switches the field to free text.
type Responder struct {
	engine *flow.Engine
	merger *merge.Merger
	sender Sender
}

// NewResponder creates an SMS responder.
func NewResponder(engine *flow.Engine, merger *merge.Merger, sender Sender) *Responder {
	return &Responder{engine: engine, merger: merger, sender: sender}
}

// HandleInbound processes one inbound SMS from a conversation. It always
// answers with something; unexpected errors degrade to a retry message.
func (r *Responder) HandleInbound(ctx context.Context, from, body string) error {
	slog.Debug("SMS inbound", "conversation_id", from)
	text := strings.TrimSpace(body)

	switch strings.ToLower(text) {
	case "quote", "/quote":
		res, err := r.engine.Start(ctx, from)
		if err != nil {
			return r.reportError(ctx, from, err)
		}
		return r.render(ctx, from, res)
	case "cancel", "/cancel":
		if err := r.engine.ClearSession(ctx, from); err != nil {
			return r.reportError(ctx, from, err)
		}
		return r.sender.SendMessage(ctx, from, "Quotation cancelled. Text QUOTE to start a new one.")
	}

	res, err := r.route(ctx, from, text)
	if err != nil {
		return r.reportError(ctx, from, err)
	}
	return r.render(ctx, from, res)
}

// route maps the text onto the current step: numeric replies on a choice
// step become option selections, everything else is a text answer.
func (r *Responder) route(ctx context.Context, from, text string) (models.StepResult, error) {
	step, err := r.engine.CurrentStep(ctx, from)
	if err != nil {
		return models.StepResult{}, err
	}

	if step.Kind == models.StepAwaitingField && r.engine.Definition().IsChoice(step.Field) {
		if strings.EqualFold(text, "other") {
			return r.engine.AcceptChoice(ctx, models.ButtonEvent{
				ConversationID: from, Field: step.Field, Selection: models.OtherSelection,
			})
		}
		if n, convErr := strconv.Atoi(text); convErr == nil {
			res, err := r.engine.AcceptChoice(ctx, models.ButtonEvent{
				ConversationID: from, Field: step.Field, Selection: n - 1,
			})
			if errors.Is(err, models.ErrInvalidInput) {
				return models.StepResult{
					Kind:   models.ResultRejected,
					Field:  step.Field,
					Reason: fmt.Sprintf("there is no option %d", n),
				}, nil
			}
			return res, err
		}
		// Non-numeric text on a menu: treat it as a free-text answer, same
		// as typing instead of tapping a button.
	}
	return r.engine.AcceptText(ctx, models.TextEvent{ConversationID: from, Text: text})
}

// render sends the engine's instruction as SMS text.
func (r *Responder) render(ctx context.Context, from string, res models.StepResult) error {
	switch res.Kind {
	case models.ResultMenu:
		var sb strings.Builder
		sb.WriteString("Select " + res.Label + " by replying with a number:")
		for i, opt := range res.Options {
			sb.WriteString(fmt.Sprintf(menuOptionFormat, i+1, opt))
		}
		if res.AllowOther {
			sb.WriteString("\nOr reply OTHER to type your own.")
		}
		return r.sender.SendMessage(ctx, from, sb.String())
	case models.ResultPrompt:
		return r.sender.SendMessage(ctx, from, "Enter "+res.Label+":")
	case models.ResultRejected:
		label := res.Label
		if label == "" {
			label = string(res.Field)
		}
		return r.sender.SendMessage(ctx, from, "Sorry, "+res.Reason+". Enter "+label+":")
	case models.ResultComplete:
		return r.deliver(ctx, from, res.Answers)
	default:
		return fmt.Errorf("unknown step result kind %q", res.Kind)
	}
}

// deliver merges the completed answer-set and texts the download links,
// clearing the session only after the send succeeds.
func (r *Responder) deliver(ctx context.Context, from string, answers map[models.Field]string) error {
	artifacts, err := r.merger.Generate(ctx, answers)
	if err != nil && len(artifacts) == 0 {
		slog.Error("SMS delivery: generation failed", "error", err, "conversation_id", from)
		_ = r.sender.SendMessage(ctx, from, "Couldn't generate your quotation right now. Your answers are saved, text anything to retry.")
		return err
	}

	var sb strings.Builder
	sb.WriteString("Quotation ready!")
	for _, a := range artifacts {
		sb.WriteString("\n" + a.Name + ": " + a.URL)
	}
	if err != nil && errors.Is(err, models.ErrConversionFailure) {
		sb.WriteString("\nPDF conversion is unavailable right now; the document above is ready.")
	}
	if sendErr := r.sender.SendMessage(ctx, from, sb.String()); sendErr != nil {
		return fmt.Errorf("%w: %v", models.ErrDeliveryFailure, sendErr)
	}

	if err := r.engine.ClearSession(ctx, from); err != nil {
		slog.Error("SMS delivery: session cleanup failed", "error", err, "conversation_id", from)
	}
	slog.Info("SMS quotation delivered", "conversation_id", from, "artifacts", len(artifacts))
	return nil
}

// reportError maps engine errors onto SMS replies.
func (r *Responder) reportError(ctx context.Context, from string, err error) error {
	switch {
	case errors.Is(err, models.ErrNoActiveSession):
		return r.sender.SendMessage(ctx, from, "Text QUOTE to start a quotation.")
	case errors.Is(err, models.ErrVersionConflict):
		return r.sender.SendMessage(ctx, from, "Messages crossed mid-save, please resend your last answer.")
	default:
		slog.Error("SMS unhandled engine error", "error", err, "conversation_id", from)
		return r.sender.SendMessage(ctx, from, "Something went wrong, please try again.")
	}
}
