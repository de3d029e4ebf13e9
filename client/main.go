package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gorilla/websocket"

	"github.com/wfunc/connect4bot/network"
	"github.com/wfunc/connect4bot/round"
)

type CLI struct {
	Addr    string `default:"localhost:8080" help:"Server address"`
	Channel string `default:"lobby" help:"Channel to join"`
	User    string `required:"" help:"User id"`
	Name    string `help:"Display name (defaults to the user id)"`
}

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	packet, err := network.Encode(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

// show prints one server packet; it returns the id of the last board seen.
func show(packet *network.Packet, lastBoard string) string {
	switch packet.MsgID {
	case network.MsgTypeWelcome:
		var p network.WelcomePayload
		_ = json.Unmarshal(packet.Data, &p)
		log.Printf("Joined #%s as %s", p.ChannelID, p.UserID)
	case network.MsgTypeChatEcho:
		var p network.ChatEchoPayload
		_ = json.Unmarshal(packet.Data, &p)
		fmt.Printf("<%s> %s\n", p.Name, p.Text)
	case network.MsgTypeMessage, network.MsgTypeEdit:
		var p network.MessagePayload
		_ = json.Unmarshal(packet.Data, &p)
		fmt.Printf("[%s] %s\n", short(p.MessageID), p.Text)
		if p.Board != "" {
			fmt.Println(p.Board)
			return p.MessageID
		}
	case network.MsgTypeReply:
		var p network.ReplyPayload
		_ = json.Unmarshal(packet.Data, &p)
		fmt.Printf("[%s] > %s\n", short(p.MessageID), p.Text)
	case network.MsgTypeOptions:
		var p network.OptionsPayload
		_ = json.Unmarshal(packet.Data, &p)
		fmt.Printf("[%s] options: %s\n", short(p.MessageID), strings.Join(p.Symbols, " "))
	case network.MsgTypeOptionRemoved:
	default:
		log.Printf("<- RECV (ID: %d): %s", packet.MsgID, string(packet.Data))
	}
	return lastBoard
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// keycap lets "/react 3" stand for 3️⃣ and "/react x" for ❌.
func keycap(symbol string) string {
	switch {
	case len(symbol) == 1 && symbol >= "1" && symbol <= "9":
		return symbol + "\u20e3"
	case symbol == "x":
		return round.CancelSymbol
	}
	return symbol
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("connect4-client"),
		kong.Description("Terminal client for the connect4bot websocket chat. Type chat lines; '/react <symbol>' reacts on the last board."),
	)
	if cli.Name == "" {
		cli.Name = cli.User
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	q := url.Values{"channel": {cli.Channel}, "user": {cli.User}, "name": {cli.Name}}
	u := url.URL{Scheme: "ws", Host: cli.Addr, Path: "/ws", RawQuery: q.Encode()}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})
	boards := make(chan string, 16)

	// Read loop
	go func() {
		defer close(done)
		last := ""
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			packet, err := network.Decode(message)
			if err != nil {
				log.Printf("Received invalid packet: %v", err)
				continue
			}
			if next := show(packet, last); next != last {
				last = next
				boards <- last
			}
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	board := ""
	for {
		select {
		case <-done:
			return
		case board = <-boards:
		case <-heartbeat.C:
			packet, _ := network.Encode(network.MsgTypeHeartbeat, nil)
			if err := c.WriteMessage(websocket.BinaryMessage, packet); err != nil {
				log.Println("Write error:", err)
				return
			}
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case text := <-lines:
			if text == "" {
				continue
			}
			var err error
			if symbol, ok := strings.CutPrefix(text, "/react "); ok {
				if board == "" {
					log.Println("No board to react on yet.")
					continue
				}
				err = send(c, network.MsgTypeReact, network.ReactRequest{MessageID: board, Symbol: keycap(strings.TrimSpace(symbol))})
			} else {
				err = send(c, network.MsgTypeChat, network.ChatRequest{Text: text})
			}
			if err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
