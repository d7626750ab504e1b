// Command boardwatch follows one board live and redraws it in the terminal
// on every change.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CrowderSoup/collab-board/board"
	"github.com/CrowderSoup/collab-board/client"
	"github.com/CrowderSoup/collab-board/realtime"
	"github.com/CrowderSoup/collab-board/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "http://localhost:3001", "board server base URL")
	token := flag.String("token", os.Getenv("BOARD_TOKEN"), "session token (defaults to $BOARD_TOKEN)")
	boardID := flag.String("board", "", "id of the board to watch; lists your boards when empty")
	reconnect := flag.Duration("reconnect", realtime.DefaultReconnectDelay, "delay before reconnecting the push stream")
	width := flag.Int("width", 120, "terminal width used for the columns")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *token == "" {
		return errors.New("a session token is required (-token or $BOARD_TOKEN)")
	}

	api, err := client.New(*addr, *token)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *boardID == "" {
		return listBoards(ctx, api)
	}

	ch := realtime.NewChannel(api.BaseURL(), api.Token())
	ch.ReconnectDelay = *reconnect
	ch.Logger = logger
	ch.OnStatus = func(id string, s realtime.Status) {
		logger.Info("push stream", "board", id, "status", s)
	}

	// Only the latest snapshot matters; a slow terminal skips frames.
	frames := make(chan board.Snapshot, 1)
	sess := session.New(api, session.Realtime(ch),
		session.WithLogger(logger),
		session.WithOnChange(func(s board.Snapshot) {
			select {
			case <-frames:
			default:
			}
			frames <- s
		}))

	if err := sess.Open(ctx, *boardID); err != nil {
		return err
	}
	defer sess.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-frames:
			fmt.Print("\033[H\033[2J")
			fmt.Println(renderBoard(snap, *width))
			fmt.Printf("updated %s\n", time.Now().Format(time.TimeOnly))
		}
	}
}

func listBoards(ctx context.Context, api *client.Client) error {
	boards, err := api.ListBoards(ctx)
	if err != nil {
		return err
	}
	if len(boards) == 0 {
		fmt.Println("no boards")
		return nil
	}
	for _, b := range boards {
		fmt.Printf("%s\t%s\n", b.ID, b.Name)
	}
	return nil
}
