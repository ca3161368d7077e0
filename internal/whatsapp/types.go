package whatsapp

import "encoding/json"

// Interactive is the body of an interactive (reply button) message.
type Interactive struct {
	Type   string             `json:"type"` // "button"
	Header *InteractiveHeader `json:"header,omitempty"`
	Body   InteractiveText    `json:"body"`
	Footer *InteractiveText   `json:"footer,omitempty"`
	Action InteractiveAction  `json:"action"`
}

type InteractiveHeader struct {
	Type string `json:"type"` // "text"
	Text string `json:"text,omitempty"`
}

type InteractiveText struct {
	Text string `json:"text"`
}

type InteractiveAction struct {
	Buttons []ReplyButton `json:"buttons,omitempty"`
}

// ReplyButton is one quick-reply button. The provider accepts at most three.
type ReplyButton struct {
	Type  string     `json:"type"` // "reply"
	Reply ReplyTitle `json:"reply"`
}

type ReplyTitle struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// NewButtonMessage builds a reply-button interactive message.
func NewButtonMessage(body string, buttons ...ReplyTitle) Interactive {
	msg := Interactive{
		Type: "button",
		Body: InteractiveText{Text: body},
	}
	for _, b := range buttons {
		msg.Action.Buttons = append(msg.Action.Buttons, ReplyButton{Type: "reply", Reply: b})
	}
	return msg
}

// sendRequest is the Cloud API message envelope.
type sendRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textBody    `json:"text,omitempty"`
	Image            *mediaBody   `json:"image,omitempty"`
	Interactive      *Interactive `json:"interactive,omitempty"`
}

type textBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

type mediaBody struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type sendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type errorResponse struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		FbtraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

// rawOrString keeps a JSON body as-is, or quotes it when it is not JSON.
func rawOrString(body []byte) json.RawMessage {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}
