package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/examsession"
	"github.com/stemsi/exstem-session/internal/middleware"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
	ws "github.com/stemsi/exstem-session/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a live exam session over WebSocket.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/sessions/:session_id/stream?token=...
// Pushes state, tick and finished events; accepts session actions.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	studentID := claims.UserID

	// SECURITY: subscribe before upgrading so foreign or finished sessions get a plain 404.
	events, unsubscribe, err := h.sessionService.Subscribe(sessionID, studentID)
	if err != nil {
		failFromError(c, err)
		return
	}
	defer unsubscribe()

	snap, err := h.sessionService.Snapshot(sessionID, studentID)
	if err != nil {
		failFromError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	out := ws.NewWriter(conn)
	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("session_id", sessionID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	_ = out.WriteTyped(ws.SessionEvent{Event: ws.EventState, Session: snap})

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.pump(out, events, wsLog)
	}()

	for {
		var msg ws.ActionRequest
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}
		h.dispatch(out, sessionID, studentID, &msg, wsLog)
	}

	unsubscribe()
	<-done
}

// pump forwards session events until the session ends or the client leaves.
func (h *WSHandler) pump(out *ws.Writer, events <-chan examsession.Event, log zerolog.Logger) {
	for ev := range events {
		var err error
		switch ev.Type {
		case examsession.EventTick:
			err = out.WriteTyped(ws.TickEvent{
				Event:            ws.EventTick,
				SecondsRemaining: ev.Snapshot.SecondsRemaining,
				Clock:            ev.Snapshot.Clock,
			})
		case examsession.EventFinished:
			err = out.WriteTyped(ws.FinishedEvent{
				Event:   ws.EventFinished,
				Outcome: ev.Snapshot.State,
				Session: ev.Snapshot,
			})
			if err == nil {
				_ = out.Close("session finished")
			}
		default:
			err = out.WriteTyped(ws.SessionEvent{Event: ws.EventState, Session: ev.Snapshot})
		}
		if err != nil {
			log.Debug().Err(err).Msg("Stream write failed")
			return
		}
	}
}

// dispatch applies one client action. State changes reach the client through
// the event stream; only failures and pongs are answered directly.
func (h *WSHandler) dispatch(out *ws.Writer, sessionID uuid.UUID, studentID int, msg *ws.ActionRequest, log zerolog.Logger) {
	var err error
	switch msg.Action {
	case ws.ActionPing:
		_ = out.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		return
	case ws.ActionAnswer:
		if msg.QuestionID < 1 || msg.Option == nil || *msg.Option < 0 {
			_ = out.WriteError(string(response.ErrValidation), "question_id and option are required")
			return
		}
		_, err = h.sessionService.Answer(sessionID, studentID, msg.QuestionID, *msg.Option)
	case ws.ActionGoTo:
		if msg.QuestionID < 1 {
			_ = out.WriteError(string(response.ErrValidation), "question_id is required")
			return
		}
		_, err = h.sessionService.GoTo(sessionID, studentID, msg.QuestionID)
	case ws.ActionBack:
		_, err = h.sessionService.Back(sessionID, studentID)
	case ws.ActionConfirmExit:
		_, err = h.sessionService.ConfirmExit(sessionID, studentID)
	case ws.ActionCancelExit:
		_, err = h.sessionService.CancelExit(sessionID, studentID)
	case ws.ActionSubmit:
		_, err = h.sessionService.Submit(sessionID, studentID)
	case ws.ActionOpenOverview:
		_, err = h.sessionService.OpenOverview(sessionID, studentID)
	case ws.ActionCloseOverview:
		_, err = h.sessionService.CloseOverview(sessionID, studentID)
	default:
		log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		_ = out.WriteError(string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		return
	}

	if err != nil {
		_, code := classify(err)
		_ = out.WriteError(string(code), response.GetMessage(code))
	}
}
