package telegram

// Update is one inbound Bot API event. Only the fields the bot uses are mapped.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
	Contact   *struct {
		PhoneNumber string `json:"phone_number"`
		UserID      int64  `json:"user_id,omitempty"`
	} `json:"contact,omitempty"`
}

// Command splits "/cmd@bot args" into "cmd" and "args". ok is false for
// plain text.
func (m *Message) Command() (cmd string, args string, ok bool) {
	if len(m.Text) < 2 || m.Text[0] != '/' {
		return "", "", false
	}
	text := m.Text[1:]
	cmd = text
	for i, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			cmd, args = text[:i], text[i+1:]
			break
		}
	}
	for i, r := range cmd {
		if r == '@' {
			cmd = cmd[:i]
			break
		}
	}
	return cmd, args, true
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// Keyboard builds a markup with one button per row.
func Keyboard(buttons ...InlineKeyboardButton) *InlineKeyboardMarkup {
	rows := make([][]InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []InlineKeyboardButton{b})
	}
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

func CallbackButton(text, data string) InlineKeyboardButton {
	return InlineKeyboardButton{Text: text, CallbackData: data}
}

func URLButton(text, url string) InlineKeyboardButton {
	return InlineKeyboardButton{Text: text, URL: url}
}
