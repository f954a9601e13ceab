// Package handlers holds the bot's command handlers plus the plumbing types
// the router and middleware chain are built from.
package handlers

import (
	telebot "gopkg.in/telebot.v3"
)

// Handler processes one incoming update. Returning an error hands the update
// to the error-handling middleware rather than the user.
type Handler func(c telebot.Context) error

// CallbackHandler processes inline button callbacks matched by payload
// prefix.
type CallbackHandler func(c telebot.Context) error

// Middleware decorates a Handler. Applied outermost-first, so the first
// registered middleware sees the update before the rest of the chain.
type Middleware func(Handler) Handler
