package adaptor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/zmahdi/wasla/server/domain"
)

type Adaptor struct {
	uc     Usecase
	secret string
	logger *slog.Logger
}

func NewAdaptor(uc Usecase, jwtSecret string, logger *slog.Logger) *Adaptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adaptor{uc: uc, secret: jwtSecret, logger: logger}
}

// Register mounts the websocket endpoint and the thin REST surface.
func (a *Adaptor) Register(app *fiber.App) {
	app.Get("/healthz", a.health)

	api := app.Group("/api")
	api.Get("/rooms/:room/history", a.roomHistory)
	api.Get("/rooms/:room/count", a.roomCount)
	api.Get("/users/:username/stats", a.userStats)
	api.Get("/users/:username/requests", a.userRequests)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		// Browsers cannot set headers on the native WebSocket handshake,
		// so identity pinning rides a query parameter.
		if token := c.Query("token"); token != "" {
			username, err := a.usernameFromToken(token)
			if err != nil {
				return fiber.ErrUnauthorized
			}
			c.Locals("username", username)
		}
		return c.Next()
	})
	app.Get("/ws", websocket.New(a.handleSocket))
}

func (a *Adaptor) usernameFromToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.secret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	username, _ := claims["username"].(string)
	if username == "" {
		return "", fmt.Errorf("token carries no username")
	}
	return username, nil
}

// inbound is one client frame: a named operation with a JSON payload.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (a *Adaptor) handleSocket(conn *websocket.Conn) {
	pinned, _ := conn.Locals("username").(string)
	wc := newWSConn(conn)
	session := domain.NewSession(uuid.New().String(), conn.RemoteAddr().String(), wc)

	a.logger.Info("connection opened", "session", session.ID, "remote", session.Remote, "pinned", pinned)
	defer func() {
		a.uc.Disconnect(session)
		_ = wc.Close()
		a.logger.Info("connection closed", "session", session.String())
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.logger.Warn("read failed", "session", session.ID, "err", err)
			}
			return
		}

		var frame inbound
		if err := json.Unmarshal(raw, &frame); err != nil {
			a.sendError(session, "invalid frame")
			continue
		}
		a.handleFrame(session, pinned, frame)
	}
}

func (a *Adaptor) handleFrame(s *domain.Session, pinned string, frame inbound) {
	switch frame.Event {
	case "joinRoom":
		a.handleJoinRoom(s, pinned, frame.Data)
	case "leaveRoom":
		a.handleLeaveRoom(s, frame.Data)
	case "chatMessage":
		a.handleChatMessage(s, pinned, frame.Data)
	case "sendFriendRequest":
		a.handleSendFriendRequest(s, pinned, frame.Data)
	case "respondToFriendRequest":
		a.handleRespondToFriendRequest(s, frame.Data)
	case "cancelFriendRequest":
		a.handleCancelFriendRequest(s, pinned, frame.Data)
	case "getPendingRequests":
		a.handleGetPendingRequests(s, pinned, frame.Data)
	case "getFriendsList":
		a.handleGetFriendsList(s, pinned, frame.Data)
	case "getOnlineFriends":
		a.handleGetOnlineFriends(s, pinned, frame.Data)
	case "removeFriend":
		a.handleRemoveFriend(s, frame.Data)
	case "searchUsers":
		a.handleSearchUsers(s, pinned, frame.Data)
	case "updateUserStatus":
		a.handleUpdateUserStatus(s, pinned, frame.Data)
	case "userOnline":
		a.handleUserOnline(s, pinned, frame.Data)
	case "userOffline":
		a.uc.Offline(s)
	default:
		a.sendError(s, "unknown event: "+frame.Event)
	}
}

func (a *Adaptor) handleJoinRoom(s *domain.Session, pinned string, data json.RawMessage) {
	var payload struct {
		Username string `json:"username"`
		Room     string `json:"room"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		a.sendError(s, "invalid joinRoom payload")
		return
	}
	username := resolveUser(pinned, payload.Username)
	if err := a.uc.JoinRoom(s, username, payload.Room); err != nil {
		a.sendError(s, userMessage(err))
	}
}

func (a *Adaptor) handleLeaveRoom(s *domain.Session, data json.RawMessage) {
	var room string
	if err := json.Unmarshal(data, &room); err != nil {
		var payload struct {
			Room string `json:"room"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			a.sendError(s, "invalid leaveRoom payload")
			return
		}
		room = payload.Room
	}
	if err := a.uc.LeaveRoom(s, room); err != nil {
		a.sendError(s, userMessage(err))
	}
}

func (a *Adaptor) handleChatMessage(s *domain.Session, pinned string, data json.RawMessage) {
	var payload struct {
		Username  string          `json:"username"`
		Room      string          `json:"room"`
		Text      string          `json:"text"`
		Type      string          `json:"type"`
		File      *domain.FileRef `json:"file"`
		ReplyTo   json.RawMessage `json:"replyTo"`
		MediaURL  string          `json:"mediaUrl"`
		MediaType string          `json:"mediaType"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		a.sendError(s, "invalid chatMessage payload")
		return
	}

	msg := domain.Message{
		Username:  resolveUser(pinned, payload.Username),
		Room:      payload.Room,
		Text:      payload.Text,
		Type:      domain.MessageType(payload.Type),
		File:      payload.File,
		ReplyTo:   a.parseReply(payload.ReplyTo),
		MediaURL:  payload.MediaURL,
		MediaType: payload.MediaType,
	}
	if _, err := a.uc.PostMessage(msg); err != nil {
		a.sendError(s, userMessage(err))
	}
}

// parseReply accepts either an embedded object or a JSON string containing
// one. Malformed references are dropped with a log line, never fatal to the
// message itself.
func (a *Adaptor) parseReply(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil || !json.Valid([]byte(inner)) {
			a.logger.Warn("dropping malformed reply reference")
			return nil
		}
		return json.RawMessage(inner)
	}
	if !json.Valid(raw) {
		a.logger.Warn("dropping malformed reply reference")
		return nil
	}
	return raw
}

type requestAck struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID int64  `json:"requestId,omitempty"`
	To        string `json:"to,omitempty"`
	Response  string `json:"response,omitempty"`
}

func (a *Adaptor) handleSendFriendRequest(s *domain.Session, pinned string, data json.RawMessage) {
	var payload struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		a.sendError(s, "invalid sendFriendRequest payload")
		return
	}
	from := resolveUser(pinned, payload.From)

	request, err := a.uc.SendRequest(from, payload.To)
	if err != nil {
		a.push(s, domain.EventFriendRequestSent, requestAck{Success: false, Message: userMessage(err)})
		return
	}
	a.push(s, domain.EventFriendRequestSent, requestAck{
		Success:   true,
		Message:   "friend request sent",
		RequestID: request.ID,
		To:        request.ToUser,
	})
}

func (a *Adaptor) handleRespondToFriendRequest(s *domain.Session, data json.RawMessage) {
	var payload struct {
		RequestID int64  `json:"requestId"`
		Response  string `json:"response"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		a.sendError(s, "invalid respondToFriendRequest payload")
		return
	}

	request, err := a.uc.RespondToRequest(payload.RequestID, domain.RequestStatus(payload.Response))
	if err != nil {
		a.push(s, domain.EventFriendRequestResponded, requestAck{Success: false, Message: userMessage(err)})
		return
	}
	a.push(s, domain.EventFriendRequestResponded, requestAck{
		Success:   true,
		Message:   "friend request " + string(request.Status),
		RequestID: request.ID,
		Response:  string(request.Status),
	})
}

func (a *Adaptor) handleCancelFriendRequest(s *domain.Session, pinned string, data json.RawMessage) {
	var payload struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		a.sendError(s, "invalid cancelFriendRequest payload")
		return
	}
	from := resolveUser(pinned, payload.From)
	if _, err := a.uc.CancelRequest(from, payload.To); err != nil {
		a.sendError(s, userMessage(err))
	}
}

func (a *Adaptor) handleGetPendingRequests(s *domain.Session, pinned string, data json.RawMessage) {
	username := a.usernameFor(s, pinned, data)
	if username == "" {
		a.push(s, domain.EventPendingRequests, fiber.Map{
			"success": false, "message": "username is required", "requests": []domain.FriendRequest{},
		})
		return
	}
	requests, err := a.uc.PendingRequests(username)
	if err != nil {
		a.push(s, domain.EventPendingRequests, fiber.Map{
			"success": false, "message": userMessage(err), "requests": []domain.FriendRequest{},
		})
		return
	}
	a.push(s, domain.EventPendingRequests, fiber.Map{"success": true, "requests": requests})
}

func (a *Adaptor) handleGetFriendsList(s *domain.Session, pinned string, data json.RawMessage) {
	username := a.usernameFor(s, pinned, data)
	if username == "" {
		a.push(s, domain.EventFriendsList, fiber.Map{
			"success": false, "message": "username is required", "friends": []domain.Friend{},
		})
		return
	}
	friends, err := a.uc.FriendsList(username)
	if err != nil {
		a.push(s, domain.EventFriendsList, fiber.Map{
			"success": false, "message": userMessage(err), "friends": []domain.Friend{},
		})
		return
	}
	a.push(s, domain.EventFriendsList, fiber.Map{"success": true, "friends": friends})
}

func (a *Adaptor) handleGetOnlineFriends(s *domain.Session, pinned string, data json.RawMessage) {
	username := a.usernameFor(s, pinned, data)
	if username == "" {
		a.push(s, domain.EventFriendsList, fiber.Map{
			"success": false, "message": "username is required", "friends": []domain.Friend{},
		})
		return
	}
	friends, err := a.uc.OnlineFriends(username)
	if err != nil {
		a.push(s, domain.EventFriendsList, fiber.Map{
			"success": false, "message": userMessage(err), "friends": []domain.Friend{},
		})
		return
	}
	a.push(s, domain.EventFriendsList, fiber.Map{"success": true, "friends": friends})
}

func (a *Adaptor) handleRemoveFriend(s *domain.Session, data json.RawMessage) {
	var payload struct {
		Username1 string `json:"username1"`
		Username2 string `json:"username2"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		a.sendError(s, "invalid removeFriend payload")
		return
	}
	if _, err := a.uc.RemoveFriend(payload.Username1, payload.Username2); err != nil {
		a.sendError(s, userMessage(err))
	}
}

func (a *Adaptor) handleSearchUsers(s *domain.Session, pinned string, data json.RawMessage) {
	var payload struct {
		Term     string `json:"term"`
		Username string `json:"username"`
		Limit    int    `json:"limit"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		a.sendError(s, "invalid searchUsers payload")
		return
	}
	username := resolveUser(pinned, payload.Username)
	if username == "" {
		username = s.Username
	}
	candidates, err := a.uc.SearchCandidates(payload.Term, username, payload.Limit)
	if err != nil {
		a.push(s, domain.EventSearchResults, fiber.Map{
			"success": false, "message": userMessage(err), "users": []domain.Candidate{},
		})
		return
	}
	a.push(s, domain.EventSearchResults, fiber.Map{"success": true, "users": candidates})
}

func (a *Adaptor) handleUpdateUserStatus(s *domain.Session, pinned string, data json.RawMessage) {
	var payload struct {
		Username string `json:"username"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		a.sendError(s, "invalid updateUserStatus payload")
		return
	}
	username := resolveUser(pinned, payload.Username)
	if username == "" {
		username = s.Username
	}
	if err := a.uc.UpdateStatus(username, payload.Status); err != nil {
		a.sendError(s, userMessage(err))
	}
}

func (a *Adaptor) handleUserOnline(s *domain.Session, pinned string, data json.RawMessage) {
	var payload struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		a.sendError(s, "invalid userOnline payload")
		return
	}
	username := resolveUser(pinned, payload.Username)
	if err := a.uc.Online(s, username); err != nil {
		a.sendError(s, userMessage(err))
	}
}

// usernameFor resolves the acting username for fetch-style ops: pinned
// identity wins, then the payload, then whatever the session authenticated
// as earlier.
func (a *Adaptor) usernameFor(s *domain.Session, pinned string, data json.RawMessage) string {
	if pinned != "" {
		return pinned
	}
	var payload struct {
		Username string `json:"username"`
	}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &payload)
	}
	if payload.Username != "" {
		return payload.Username
	}
	return s.Username
}

func resolveUser(pinned, claimed string) string {
	if pinned != "" {
		return pinned
	}
	return claimed
}

func (a *Adaptor) push(s *domain.Session, name domain.EventName, data any) {
	if err := s.Conn.Send(domain.NewEvent(name, data)); err != nil {
		a.logger.Warn("failed to push event", "event", name, "session", s.ID, "err", err)
	}
}

func (a *Adaptor) sendError(s *domain.Session, message string) {
	a.push(s, domain.EventError, fiber.Map{"message": message})
}

// REST surface

func (a *Adaptor) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (a *Adaptor) roomHistory(c *fiber.Ctx) error {
	room := c.Params("room")
	limit, _ := strconv.Atoi(c.Query("limit"))
	messages, err := a.uc.History(room, limit)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(fiber.Map{"room": room, "messages": messages, "total": len(messages)})
}

func (a *Adaptor) roomCount(c *fiber.Ctx) error {
	room := c.Params("room")
	return c.JSON(domain.RoomUserCountPayload{Room: room, Count: a.uc.Occupancy(room)})
}

func (a *Adaptor) userStats(c *fiber.Ctx) error {
	stats, err := a.uc.Stats(c.Params("username"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(stats)
}

func (a *Adaptor) userRequests(c *fiber.Ctx) error {
	username := c.Params("username")
	incoming, err := a.uc.PendingRequests(username)
	if err != nil {
		return httpError(c, err)
	}
	outgoing, err := a.uc.OutgoingRequests(username)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(fiber.Map{"incoming": incoming, "outgoing": outgoing})
}
