package keyboard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wagerdeck/wagerdeck-bot/internal/i18n"
)

// PageUnique is the callback namespace for keyboard paging. A page flip
// redraws the current prompt without advancing the session.
const PageUnique = "page"

// PaginationButtons renders the prev / position / next row appended under a
// paged option list. The position button re-requests its own page, which is a
// harmless redraw.
func PaginationButtons(t i18n.Translator, page, totalPages int) []InlineButton {
	if totalPages < 1 {
		totalPages = 1
	}
	page = clampPage(page, totalPages)

	buttons := make([]InlineButton, 0, 3)

	if page > 1 {
		buttons = append(buttons, InlineButton{
			Text:   lookup(t, "pagination.pagination_prev", "◀️ Prev"),
			Unique: PageUnique,
			Data:   strconv.Itoa(page - 1),
		})
	}

	buttons = append(buttons, InlineButton{
		Text:   pageLabel(t, page, totalPages),
		Unique: PageUnique,
		Data:   strconv.Itoa(page),
	})

	if page < totalPages {
		buttons = append(buttons, InlineButton{
			Text:   lookup(t, "pagination.pagination_next", "Next ▶️"),
			Unique: PageUnique,
			Data:   strconv.Itoa(page + 1),
		})
	}

	return buttons
}

func clampPage(page, total int) int {
	if page < 1 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}

func lookup(t i18n.Translator, key, fallback string) string {
	if t == nil {
		return fallback
	}

	text := strings.TrimSpace(t.T(key))
	if text == "" || text == key {
		return fallback
	}

	return text
}

func pageLabel(t i18n.Translator, page, total int) string {
	label := lookup(t, "pagination.pagination_page", "Page {{.Page}}/{{.Total}}")
	label = strings.ReplaceAll(label, "{{.Page}}", strconv.Itoa(page))
	label = strings.ReplaceAll(label, "{{.Total}}", strconv.Itoa(total))

	// A mistranslated template degrades to the plain form.
	if strings.Contains(label, "{{") {
		return fmt.Sprintf("Page %d/%d", page, total)
	}

	return label
}
