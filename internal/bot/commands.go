package bot

// Command constants for Telegram bot commands.
const (
	CommandStart  = "/start"
	CommandBet    = "/bet"
	CommandParlay = "/parlay"
	CommandBrowse = "/browse"
	CommandCancel = "/cancel"
	CommandHelp   = "/help"
)

// Callback namespaces for inline button interactions. Option payloads are
// "opt:<value>"; flow controls are "flow:<action>".
const (
	CallbackOption = "opt"
	CallbackFlow   = "flow"

	flowCancel = "cancel"
)
