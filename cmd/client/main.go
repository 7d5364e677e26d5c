// Terminal client for manual testing against a running engine.
// It signs its own development token, joins one room, and turns stdin
// lines into commands (plain text sends a message, /commands do the rest).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lecture-chat/auth"
	"lecture-chat/domain"

	"github.com/Netflix/go-env"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	RoomID        string `env:"CHAT_ROOM_ID,default=room-1"`
	LectureID     string `env:"CHAT_LECTURE_ID,default=lecture-1"`
	UserName      string `env:"CHAT_USER_NAME,default=tester"`
	Role          string `env:"CHAT_ROLE,default=STUDENT"`
	AuthSecret    string `env:"AUTH_SECRET,required=true"`
}

type frame struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	identity := domain.Identity{
		UserID:   uuid.NewString(),
		UserName: config.UserName,
		Role:     domain.Role(config.Role),
	}
	verifier := auth.NewVerifier([]byte(config.AuthSecret))
	token, err := verifier.GenerateToken(identity, time.Hour)
	if err != nil {
		return exitConfig, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	url := fmt.Sprintf("ws://%s/ws?token=%s", config.ServerAddress, token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerAddress, err)
	}
	defer func() { _ = conn.Close() }()

	if err := send(conn, "join-room", map[string]any{
		"roomId":    config.RoomID,
		"lectureId": config.LectureID,
		"sessionId": uuid.NewString(),
	}); err != nil {
		return exitRuntime, err
	}
	color.Green.Printf("Joined %s as %s (%s)\n", config.RoomID, config.UserName, config.Role)

	go receive(conn)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := dispatch(conn, line); err != nil {
			color.Red.Println(err)
		}
		if line == "/quit" {
			break
		}
	}
	return exitOK, scanner.Err()
}

func dispatch(conn *websocket.Conn, line string) error {
	if !strings.HasPrefix(line, "/") {
		return send(conn, "send-message", map[string]any{
			"messageId": uuid.NewString(),
			"content":   line,
			"type":      "TEXT",
		})
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/pin":
		if len(fields) < 2 {
			return fmt.Errorf("usage: /pin <messageId>")
		}
		return send(conn, "pin-message", map[string]any{"messageId": fields[1]})
	case "/unpin":
		return send(conn, "unpin-message", nil)
	case "/delete":
		if len(fields) < 2 {
			return fmt.Errorf("usage: /delete <messageId>")
		}
		return send(conn, "delete-message", map[string]any{"messageId": fields[1]})
	case "/mute":
		if len(fields) < 3 {
			return fmt.Errorf("usage: /mute <userId> <minutes>")
		}
		var minutes int
		if _, err := fmt.Sscanf(fields[2], "%d", &minutes); err != nil {
			return fmt.Errorf("usage: /mute <userId> <minutes>")
		}
		return send(conn, "mute-user", map[string]any{"userId": fields[1], "durationMinutes": minutes})
	case "/unmute":
		if len(fields) < 2 {
			return fmt.Errorf("usage: /unmute <userId>")
		}
		return send(conn, "unmute-user", map[string]any{"userId": fields[1]})
	case "/poll":
		if len(fields) < 4 {
			return fmt.Errorf("usage: /poll <question> <optionA> <optionB> [more...]")
		}
		return send(conn, "create-poll", map[string]any{"question": fields[1], "options": fields[2:]})
	case "/vote":
		if len(fields) < 3 {
			return fmt.Errorf("usage: /vote <pollId> <optionId>")
		}
		return send(conn, "vote-poll", map[string]any{"pollId": fields[1], "optionId": fields[2]})
	case "/closepoll":
		if len(fields) < 2 {
			return fmt.Errorf("usage: /closepoll <pollId>")
		}
		return send(conn, "close-poll", map[string]any{"pollId": fields[1]})
	case "/live":
		return send(conn, "toggle-lecture", map[string]any{"isLive": fields[len(fields)-1] != "off"})
	case "/activate":
		return send(conn, "activate-chat", nil)
	case "/deactivate":
		return send(conn, "deactivate-chat", nil)
	case "/quit":
		return send(conn, "leave-room", nil)
	}
	return fmt.Errorf("unknown command %s", fields[0])
}

func send(conn *websocket.Conn, frameType string, payload any) error {
	var raw json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		raw = bytes
	}
	return conn.WriteJSON(frame{Type: frameType, Ref: uuid.NewString(), Payload: raw})
}

func receive(conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			color.Red.Println("Connection closed:", err)
			return
		}
		render(f)
	}
}

func render(f frame) {
	switch f.Type {
	case "ack":
		var ack struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(f.Payload, &ack)
		if !ack.Success {
			color.Red.Printf("rejected: %s\n", ack.Error)
		}
	case "room-data":
		renderSnapshot(f.Payload)
	case "new-message":
		var msg struct {
			ID       string `json:"id"`
			Seq      uint64 `json:"seq"`
			UserName string `json:"userName"`
			Content  string `json:"content"`
		}
		_ = json.Unmarshal(f.Payload, &msg)
		color.Cyan.Printf("[%d] %s: %s (%s)\n", msg.Seq, msg.UserName, msg.Content, msg.ID)
	case "new-poll", "poll-updated", "poll-closed":
		renderPoll(f.Type, f.Payload)
	default:
		color.Yellow.Printf("%s %s\n", f.Type, string(f.Payload))
	}
}

func renderSnapshot(payload json.RawMessage) {
	var data struct {
		Participants []struct {
			UserID   string `json:"userId"`
			UserName string `json:"userName"`
			Role     string `json:"role"`
			IsOnline bool   `json:"isOnline"`
		} `json:"participants"`
	}
	_ = json.Unmarshal(payload, &data)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"User ID", "Name", "Role", "Online"})
	for _, p := range data.Participants {
		table.Append([]string{p.UserID, p.UserName, p.Role, fmt.Sprintf("%t", p.IsOnline)})
	}
	table.Render()
}

func renderPoll(frameType string, payload json.RawMessage) {
	var poll struct {
		ID       string `json:"id"`
		Question string `json:"question"`
		Status   string `json:"status"`
		Options  []struct {
			ID    string `json:"id"`
			Text  string `json:"text"`
			Votes int    `json:"votes"`
		} `json:"options"`
	}
	_ = json.Unmarshal(payload, &poll)

	color.Magenta.Printf("%s %s [%s] (%s)\n", frameType, poll.Question, poll.Status, poll.ID)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Option", "Text", "Votes"})
	for _, opt := range poll.Options {
		table.Append([]string{opt.ID, opt.Text, fmt.Sprintf("%d", opt.Votes)})
	}
	table.Render()
}
