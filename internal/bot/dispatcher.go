package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/wagerdeck/wagerdeck-bot/internal/bot/keyboard"
	"github.com/wagerdeck/wagerdeck-bot/internal/catalog"
	"github.com/wagerdeck/wagerdeck-bot/internal/session"
)

// Dispatcher feeds raw update input into the user's builder session. It is
// the counterpart of the Surface: the Surface speaks, the Dispatcher listens.
type Dispatcher struct {
	engine  *session.Engine
	surface *Surface
	log     *slog.Logger
}

// NewDispatcher wires the dispatcher to the session engine.
func NewDispatcher(engine *session.Engine, surface *Surface, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		engine:  engine,
		surface: surface,
		log:     log,
	}
}

// Active reports whether the sender has a live session the dispatcher would
// deliver this update to.
func (d *Dispatcher) Active(c telebot.Context) bool {
	if c == nil || c.Sender() == nil {
		return false
	}

	return d.engine.Active(c.Sender().ID)
}

// Dispatch converts the update into a step input and advances the session.
func (d *Dispatcher) Dispatch(c telebot.Context) error {
	if c == nil || c.Sender() == nil {
		d.log.Warn("cannot dispatch without sender information")
		return nil
	}

	ownerID := c.Sender().ID
	ctx := context.Background()

	in, flow, ok := decodeInput(c)
	if !ok {
		return d.surface.ack(c, "")
	}

	if flow == flowCancel {
		if err := d.engine.Cancel(ctx, ownerID, "inline cancel"); err != nil {
			if errors.Is(err, session.ErrNoSession) {
				return d.surface.ack(c, "")
			}
			return err
		}
		if err := d.surface.ack(c, ""); err != nil {
			d.log.Debug("callback ack failed", slog.Any("error", err))
		}
		return c.Send(d.surface.translate("builder.cancelled", "Draft discarded."))
	}

	res, err := d.engine.Advance(ctx, ownerID, in)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			if err := d.surface.ack(c, ""); err != nil {
				d.log.Debug("callback ack failed", slog.Any("error", err))
			}
			return c.Send(d.surface.translate("builder.no_session", "No slip in progress. Start one with /bet or /parlay."))
		}
		return err
	}

	return d.surface.Present(c, res)
}

// HandlePage flips the current choice prompt to another page without
// advancing the session. Any failure just drops the redraw; the existing
// prompt stays usable.
func (d *Dispatcher) HandlePage(c telebot.Context) error {
	if c == nil || c.Sender() == nil || c.Callback() == nil {
		return nil
	}

	_, data, err := keyboard.DecodeCallback(trimCallbackData(c.Callback().Data))
	if err != nil {
		return d.surface.ack(c, "")
	}

	page, err := strconv.Atoi(data)
	if err != nil {
		return d.surface.ack(c, "")
	}

	spec, err := d.engine.CurrentSpec(context.Background(), c.Sender().ID)
	if err != nil {
		return d.surface.ack(c, "")
	}

	return d.surface.PresentPage(c, spec, page)
}

// decodeInput maps the update onto a step input. Returns ok=false for
// callbacks outside the option and flow namespaces.
func decodeInput(c telebot.Context) (in catalog.Input, flow string, ok bool) {
	if cb := c.Callback(); cb != nil {
		unique, data, err := keyboard.DecodeCallback(trimCallbackData(cb.Data))
		if err != nil {
			return catalog.Input{}, "", false
		}

		switch unique {
		case CallbackOption:
			return catalog.Input{Kind: catalog.InputChoice, Value: data}, "", true
		case CallbackFlow:
			return catalog.Input{}, data, true
		default:
			return catalog.Input{}, "", false
		}
	}

	return catalog.Input{Kind: catalog.InputText, Value: c.Text()}, "", true
}

// trimCallbackData strips the \f prefix telebot injects on callback payloads.
func trimCallbackData(data string) string {
	if len(data) > 0 && data[0] == '\f' {
		return data[1:]
	}
	return data
}
