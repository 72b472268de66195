package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/pixelgrove/holospace/holospace-backend/lobby"
	"github.com/pixelgrove/holospace/holospace-backend/responses"
	"github.com/pixelgrove/holospace/holospace-backend/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientRequest is the inbound websocket frame. The sender identity always
// comes from the authenticated connection; any identity field a client puts
// in the payload is ignored.
type clientRequest struct {
	Action   string `json:"action"`
	Name     string `json:"name,omitempty"`
	Scene    string `json:"scene,omitempty"`
	Capacity int    `json:"capacity,omitempty"`
	Password string `json:"password,omitempty"`
	LobbyID  string `json:"lobbyId,omitempty"`
	Text     string `json:"text,omitempty"`
	TargetID string `json:"targetId,omitempty"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type lobbyListFrame struct {
	Type    string           `json:"type"`
	Lobbies []lobby.Metadata `json:"lobbies"`
}

// WsHandler upgrades an authenticated client to a websocket connection and
// runs its read loop until the transport drops.
func (s *Server) WsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tokenStr := vars["token"]

	claims, err := ValidateToken(tokenStr, s.jwtSecret)
	if err != nil {
		log.Println(err)
		utils.HandleError(w, responses.UnauthorizedError{Msg: "Error validating token."})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	connection := &Connection{
		ws:       conn,
		send:     make(chan []byte, 256),
		userID:   claims.ID,
		username: claims.Username,
	}

	if old := s.Hub.add(connection); old != nil {
		// Same user reconnected; cut the stale connection loose without
		// touching its lobby membership.
		old.shutdown()
	}
	log.Printf("User %s connected", connection.userID)

	go connection.writePump()
	s.readPump(connection)
}

func (s *Server) readPump(c *Connection) {
	defer func() {
		s.Hub.remove(c)
		c.shutdown()
		// The implicit leave must run exactly once per dropped client. A
		// superseded connection skips it: the user is still online through
		// its replacement.
		if !s.Hub.wasSuperseded(c) {
			s.Coordinator.Disconnect(c.userID)
		}
		log.Printf("User %s disconnected", c.userID)
	}()

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			log.Printf("Error reading message from user %s: %v", c.userID, err)
			return
		}
		s.processMessage(c, message)
	}
}

func (s *Server) processMessage(c *Connection, rawMessage []byte) {
	var req clientRequest
	if err := json.Unmarshal(rawMessage, &req); err != nil {
		log.Printf("Error unmarshalling request from user %s: %v", c.userID, err)
		s.sendError(c, lobby.ErrInvalidArgument, "malformed request")
		return
	}

	switch req.Action {
	case "create_lobby":
		_, err := s.Coordinator.CreateLobby(c.userID, c.username, req.Name, req.Scene, req.Capacity, req.Password)
		if err != nil {
			s.sendError(c, err, "could not create lobby")
		}
	case "join_lobby":
		if err := s.Coordinator.JoinLobby(c.userID, c.username, req.LobbyID, req.Password); err != nil {
			s.sendError(c, err, "could not join lobby")
		}
	case "leave_lobby":
		s.Coordinator.LeaveLobby(c.userID)
	case "close_lobby":
		if err := s.Coordinator.CloseLobby(c.userID); err != nil {
			s.sendError(c, err, "could not close lobby")
		}
	case "chat":
		if err := s.Coordinator.SendChat(c.userID, req.Text); err != nil {
			s.sendError(c, err, "could not send message")
		}
	case "promote":
		if err := s.Coordinator.PromoteAdmin(c.userID, req.TargetID); err != nil {
			s.sendError(c, err, "could not promote member")
		}
	case "list_lobbies":
		s.sendFrame(c, lobbyListFrame{Type: "lobby_list", Lobbies: s.Coordinator.ListLobbies()})
	default:
		log.Printf("Unhandled action %q from user %s", req.Action, c.userID)
		s.sendError(c, lobby.ErrInvalidArgument, "unsupported action")
	}
}

func (s *Server) sendError(c *Connection, err error, message string) {
	s.sendFrame(c, errorFrame{Type: "error", Code: lobby.ErrorCode(err), Message: message})
}

func (s *Server) sendFrame(c *Connection, frame interface{}) {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("failed to marshal frame: %v", err)
		return
	}
	s.Hub.deliver(c, payload)
}
