// Package telegram is the Telegram transport for the quotation flow. It owns
// the long-polling bot, turns flow instructions into messages and inline
// keyboards, and triggers merge and delivery when a flow completes.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/brightvolt/quotebot/internal/flow"
	"github.com/brightvolt/quotebot/internal/merge"
	"github.com/brightvolt/quotebot/internal/models"

	"gopkg.in/telebot.v3"
)

// menuColumns is how many option buttons share a keyboard row.
const menuColumns = 2

// otherData marks the free-text escape button, matching the FIELD__OTHER
// callback convention.
const otherData = "OTHER"

// Bot wires the flow engine and merger to a Telegram bot.
type Bot struct {
	bot    *telebot.Bot
	engine *flow.Engine
	merger *merge.Merger
}

// NewBot creates the Telegram bot with long polling and registers handlers.
func NewBot(token string, engine *flow.Engine, merger *merge.Merger) (*Bot, error) {
	tb, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			slog.Error("Telegram handler failed", "error", err)
			if c != nil {
				// Best effort: the user should never see the bot go silent.
				_ = c.Send("Something went wrong, please try again.")
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	b := &Bot{bot: tb, engine: engine, merger: merger}
	b.setupHandlers()
	return b, nil
}

func (b *Bot) setupHandlers() {
	b.bot.Handle("/quote", b.handleQuote)
	b.bot.Handle("/cancel", b.handleCancel)
	b.bot.Handle(telebot.OnText, b.handleText)
	b.bot.Handle(telebot.OnCallback, b.handleCallback)
}

// Start begins long polling. It blocks until Stop is called.
func (b *Bot) Start() {
	slog.Info("Telegram bot polling started")
	b.bot.Start()
}

// Stop stops long polling.
func (b *Bot) Stop() {
	b.bot.Stop()
}

func conversationID(c telebot.Context) string {
	return strconv.FormatInt(c.Chat().ID, 10)
}

// handleQuote resets any in-progress session and starts a fresh flow.
func (b *Bot) handleQuote(c telebot.Context) error {
	ctx := context.Background()
	id := conversationID(c)
	slog.Debug("Telegram /quote", "conversation_id", id)

	res, err := b.engine.Start(ctx, id)
	if err != nil {
		return b.reportError(c, err)
	}
	return b.render(c, res)
}

// handleCancel discards the in-progress session.
func (b *Bot) handleCancel(c telebot.Context) error {
	ctx := context.Background()
	id := conversationID(c)
	if err := b.engine.ClearSession(ctx, id); err != nil {
		return b.reportError(c, err)
	}
	return c.Send("Quotation cancelled. Send /quote to start a new one.")
}

// handleText routes a typed message as the answer to the current step.
func (b *Bot) handleText(c telebot.Context) error {
	ctx := context.Background()
	id := conversationID(c)

	res, err := b.engine.AcceptText(ctx, models.TextEvent{ConversationID: id, Text: c.Text()})
	if err != nil {
		return b.reportError(c, err)
	}
	return b.render(c, res)
}

// handleCallback routes a button press. Callback data is FIELD__<index> or
// FIELD__OTHER.
func (b *Bot) handleCallback(c telebot.Context) error {
	ctx := context.Background()
	id := conversationID(c)
	defer func() { _ = c.Respond() }()

	data := strings.TrimSpace(c.Callback().Data)
	field, selection, ok := parseCallbackData(data)
	if !ok {
		slog.Warn("Telegram callback with malformed data", "conversation_id", id, "data", data)
		return c.Send("That button is no longer valid. Send /quote to start over.")
	}

	res, err := b.engine.AcceptChoice(ctx, models.ButtonEvent{
		ConversationID: id,
		Field:          field,
		Selection:      selection,
	})
	if err != nil {
		return b.reportError(c, err)
	}
	return b.render(c, res)
}

// parseCallbackData splits FIELD__<index|OTHER> callback payloads.
func parseCallbackData(data string) (models.Field, int, bool) {
	idx := strings.LastIndex(data, "__")
	if idx <= 0 || idx+2 >= len(data) {
		return "", 0, false
	}
	field := models.Field(data[:idx])
	value := data[idx+2:]
	if value == otherData {
		return field, models.OtherSelection, true
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return "", 0, false
	}
	return field, n, true
}

// render sends the engine's instruction to the chat.
func (b *Bot) render(c telebot.Context, res models.StepResult) error {
	switch res.Kind {
	case models.ResultMenu:
		return c.Send("Select "+res.Label+":", menuMarkup(res))
	case models.ResultPrompt:
		return c.Send("Enter " + res.Label + ":")
	case models.ResultRejected:
		return c.Send("Sorry, " + res.Reason + ". Enter " + res.Label + ":")
	case models.ResultComplete:
		return b.deliver(c, res.Answers)
	default:
		return fmt.Errorf("unknown step result kind %q", res.Kind)
	}
}

// menuMarkup lays out the option buttons two per row with a trailing Other
// row, callback data FIELD__<index>.
func menuMarkup(res models.StepResult) *telebot.ReplyMarkup {
	var rows [][]telebot.InlineButton
	var row []telebot.InlineButton
	for i, opt := range res.Options {
		row = append(row, telebot.InlineButton{
			Text: opt,
			Data: fmt.Sprintf("%s__%d", res.Field, i),
		})
		if len(row) == menuColumns {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if res.AllowOther {
		rows = append(rows, []telebot.InlineButton{{
			Text: "Other",
			Data: string(res.Field) + "__" + otherData,
		}})
	}
	return &telebot.ReplyMarkup{InlineKeyboard: rows}
}

// deliver merges the completed answer-set, sends the download links, and only
// then clears the session. Any failure before the links are sent keeps the
// session so the user can retry by sending another message.
func (b *Bot) deliver(c telebot.Context, answers map[models.Field]string) error {
	ctx := context.Background()
	id := conversationID(c)

	artifacts, err := b.merger.Generate(ctx, answers)
	if err != nil && len(artifacts) == 0 {
		slog.Error("Telegram delivery: generation failed", "error", err, "conversation_id", id)
		_ = c.Send("Couldn't generate your quotation right now. Your answers are saved, send any message to retry.")
		return err
	}

	var sb strings.Builder
	sb.WriteString("<b>Quotation ready 📄</b>\n")
	for _, a := range artifacts {
		sb.WriteString(fmt.Sprintf("\n<a href=\"%s\">⬇️ Download %s</a>", a.URL, a.Name))
	}
	if err != nil && errors.Is(err, models.ErrConversionFailure) {
		sb.WriteString("\n\nPDF conversion is unavailable right now; the document above is ready.")
	}
	if sendErr := c.Send(sb.String(), telebot.ModeHTML); sendErr != nil {
		slog.Error("Telegram delivery: send failed", "error", sendErr, "conversation_id", id)
		return fmt.Errorf("%w: %v", models.ErrDeliveryFailure, sendErr)
	}

	if err := b.engine.ClearSession(ctx, id); err != nil {
		slog.Error("Telegram delivery: session cleanup failed", "error", err, "conversation_id", id)
	}
	slog.Info("Telegram quotation delivered", "conversation_id", id, "artifacts", len(artifacts))
	return nil
}

// reportError maps engine errors to user-facing messages. It never leaves the
// user without a response.
func (b *Bot) reportError(c telebot.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrNoActiveSession):
		return c.Send("Send /quote to start a quotation.")
	case errors.Is(err, models.ErrStaleInteraction):
		return c.Send("That button belongs to an earlier question. Please answer the latest one.")
	case errors.Is(err, models.ErrVersionConflict):
		return c.Send("Messages crossed mid-save, please resend your last answer.")
	case errors.Is(err, models.ErrInvalidInput):
		return c.Send("That choice wasn't recognized, please pick one of the buttons.")
	default:
		slog.Error("Telegram unhandled engine error", "error", err)
		return c.Send("Something went wrong, please try again.")
	}
}
