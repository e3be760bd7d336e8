package main

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"qms/dispatch-service/internal/protocol"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect to a server and print queue updates",
		Long: `watch opens a WebSocket to a running dispatch-service, optionally sends
commands for one office, and prints every line the server pushes.

  dispatch-service watch --office 1
  dispatch-service watch --office 1 --send newticket --send queuestatus`,
		RunE: runWatch,
	}
	cmd.Flags().String("url", "ws://localhost:8080/ws", "WebSocket endpoint")
	cmd.Flags().Int64("office", 0, "Office id used for --send commands")
	cmd.Flags().StringArray("send", nil, "Command to send after connecting (newticket, nextticket, queuestatus)")
	cmd.Flags().Int("count", 0, "Exit after this many messages (0 runs until interrupted)")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	officeID, _ := cmd.Flags().GetInt64("office")
	commands, _ := cmd.Flags().GetStringArray("send")
	count, _ := cmd.Flags().GetInt("count")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", url, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	for _, command := range commands {
		msg := fmt.Sprintf("%d:%s", officeID, strings.TrimSpace(command))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return fmt.Errorf("send %q: %w", msg, err)
		}
	}

	out := cmd.OutOrStdout()
	for received := 0; count == 0 || received < count; received++ {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		printLine(out, string(message))
	}
	return nil
}

func printLine(out io.Writer, line string) {
	if items, ok := protocol.ParseQueueStatus(line); ok {
		if len(items) == 0 {
			fmt.Fprintln(out, color.New(color.FgCyan).Sprint("queue empty"))
			return
		}
		fmt.Fprintf(out, "%s %d waiting\n", color.New(color.FgCyan).Sprint("queue:"), len(items))
		for i, item := range items {
			fmt.Fprintf(out, "  %2d. %s\n", i+1, item)
		}
		return
	}

	switch {
	case strings.HasPrefix(line, "Serving: "):
		fmt.Fprintln(out, color.New(color.FgGreen, color.Bold).Sprint(line))
	case strings.HasPrefix(line, "New ticket issued: "), strings.HasPrefix(line, "Ticket receipt generated: "):
		fmt.Fprintln(out, color.New(color.FgGreen).Sprint(line))
	case strings.HasPrefix(line, "Error"), strings.HasPrefix(line, "Invalid"), strings.HasPrefix(line, "Unknown"),
		line == protocol.MsgEmptyQueue, line == protocol.MsgReceiptFailed:
		fmt.Fprintln(out, color.New(color.FgRed).Sprint(line))
	default:
		fmt.Fprintln(out, line)
	}
}
