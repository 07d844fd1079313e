package telegram

import (
	"html"
	"strings"

	tele "gopkg.in/telebot.v4"

	"notifymanager/internal/capability"
)

const (
	textLimit    = 4000
	captionLimit = 1000
	// Telegram rejects callback_data above 64 bytes.
	maxCallbackData = 64
)

// outgoing is a notification rendered for the Bot API.
type outgoing struct {
	text   string
	photo  string
	markup *tele.ReplyMarkup
	// replyAction is the textInput action id, if the message asks for text.
	replyAction string
	tag         string
}

// render maps the cross-platform payload onto a Telegram message: title in
// bold, buttons as an inline keyboard, an absolute image URL as a photo.
// The length limit counts visible text, so parts are clipped before escaping.
func render(n capability.Notification) outgoing {
	var out outgoing
	out.tag, _ = n.Data["tag"].(string)
	if img, _ := n.Data["image"].(string); strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://") {
		out.photo = img
	}

	budget := textLimit
	if out.photo != "" {
		budget = captionLimit
	}
	var b strings.Builder
	if n.Title != "" {
		b.WriteString("<b>")
		b.WriteString(html.EscapeString(clip(n.Title, &budget)))
		b.WriteString("</b>\n")
		budget--
	}
	if sub, _ := n.Data["subtitle"].(string); sub != "" {
		b.WriteString("<i>")
		b.WriteString(html.EscapeString(clip(sub, &budget)))
		b.WriteString("</i>\n")
		budget--
	}
	b.WriteString(html.EscapeString(clip(n.Message, &budget)))
	out.text = b.String()

	var row []tele.InlineButton
	for _, a := range actionsOf(n.Data["actions"]) {
		id, _ := a["action"].(string)
		title, _ := a["title"].(string)
		if id == "" {
			continue
		}
		if title == "" {
			title = id
		}
		if uri, _ := a["uri"].(string); strings.HasPrefix(uri, "http") {
			row = append(row, tele.InlineButton{Text: title, URL: uri})
			continue
		}
		data := truncateBytes(id, maxCallbackData)
		// the press comes back as data, so the prompt must match on it
		if beh, _ := a["behavior"].(string); beh == "textInput" && out.replyAction == "" {
			out.replyAction = data
		}
		row = append(row, tele.InlineButton{Text: title, Data: data})
	}
	if len(row) > 0 {
		out.markup = &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{row}}
	}
	return out
}

// actionsOf accepts the builder's []map[string]any as well as the []any a
// JSON round trip produces.
func actionsOf(v any) []map[string]any {
	switch acts := v.(type) {
	case []map[string]any:
		return acts
	case []any:
		out := make([]map[string]any, 0, len(acts))
		for _, a := range acts {
			if m, ok := a.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// clip cuts s to the remaining rune budget, ending in an ellipsis when cut,
// and charges the budget.
func clip(s string, budget *int) string {
	rs := []rune(s)
	if len(rs) <= *budget {
		*budget -= len(rs)
		return s
	}
	n := *budget
	*budget = 0
	if n <= 0 {
		return ""
	}
	return string(rs[:n-1]) + "…"
}

func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// back off to a rune boundary
	for n > 0 && (s[n]&0xC0) == 0x80 {
		n--
	}
	return s[:n]
}
