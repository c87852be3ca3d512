package websocket

import "github.com/stemsi/exstem-session/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer        Action = "answer"
	ActionGoTo          Action = "goto"
	ActionBack          Action = "back"
	ActionConfirmExit   Action = "confirm_exit"
	ActionCancelExit    Action = "cancel_exit"
	ActionSubmit        Action = "submit"
	ActionOpenOverview  Action = "open_overview"
	ActionCloseOverview Action = "close_overview"
	ActionPing          Action = "ping"
)

// ActionRequest is every client message. QuestionID and Option are read by
// the actions that need them.
type ActionRequest struct {
	Action     Action `json:"action"`
	QuestionID int    `json:"question_id,omitempty"`
	Option     *int   `json:"option,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState    Event = "state"
	EventTick     Event = "tick"
	EventFinished Event = "finished"
	EventError    Event = "error"
	EventPong     Event = "pong"
)

// SessionEvent carries a full snapshot after any change.
type SessionEvent struct {
	Event   Event                 `json:"event"`
	Session model.SessionSnapshot `json:"session"`
}

// TickEvent is the compact once-per-second clock update.
type TickEvent struct {
	Event            Event  `json:"event"`
	SecondsRemaining int    `json:"seconds_remaining"`
	Clock            string `json:"clock"`
}

// FinishedEvent closes the stream once the session is terminal.
type FinishedEvent struct {
	Event   Event                 `json:"event"`
	Outcome model.SessionState    `json:"outcome"`
	Session model.SessionSnapshot `json:"session"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
