package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stemsi/exstem-session/internal/model"
	ws "github.com/stemsi/exstem-session/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type streamMessage struct {
	Event   ws.Event              `json:"event"`
	Code    string                `json:"code"`
	Outcome model.SessionState    `json:"outcome"`
	Session model.SessionSnapshot `json:"session"`
}

func dialStream(t *testing.T, env *testEnv, srv *httptest.Server, sessionPath string, studentID int) *websocket.Conn {
	t.Helper()
	token, err := env.auth.GenerateStudentToken(studentID)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + sessionPath + "?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) streamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg streamMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestSessionStream(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.engine)
	t.Cleanup(srv.Close)

	id := env.start(t, 61).SessionID
	conn := dialStream(t, env, srv, "/ws/v1/student/sessions/"+id.String()+"/stream", 61)

	first := readMessage(t, conn)
	assert.Equal(t, ws.EventState, first.Event)
	assert.Equal(t, id, first.Session.SessionID)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "ping"}))
	assert.Equal(t, ws.EventPong, readMessage(t, conn).Event)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "answer", "question_id": 2, "option": 4}))
	msg := readMessage(t, conn)
	assert.Equal(t, ws.EventState, msg.Event)
	assert.Equal(t, 1, msg.Session.AnsweredCount)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "answer", "question_id": 7, "option": 0}))
	msg = readMessage(t, conn)
	assert.Equal(t, ws.EventError, msg.Event)
	assert.Equal(t, "UNKNOWN_QUESTION", msg.Code)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "dance"}))
	msg = readMessage(t, conn)
	assert.Equal(t, ws.EventError, msg.Event)
	assert.Equal(t, "INVALID_PAYLOAD", msg.Code)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "submit"}))
	msg = readMessage(t, conn)
	assert.Equal(t, ws.EventFinished, msg.Event)
	assert.Equal(t, model.SessionStateSubmittedManually, msg.Outcome)

	// The server closes the stream after the finished event.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestSessionStreamRejectsForeignSession(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.engine)
	t.Cleanup(srv.Close)

	id := env.start(t, 71).SessionID
	token, err := env.auth.GenerateStudentToken(72)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/student/sessions/" + id.String() + "/stream?token=" + token
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
