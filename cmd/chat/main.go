// Command chat is a terminal client for direct messages and the rest timer.
//
//	chat -api http://localhost:8082 -token $TOKEN -me <id> -peer <id>
//
// Plain lines are sent as messages. Commands:
//
//	/edit <id> <text>   /delete <id>   /unsend <id>   /clear
//	/audio <file>       /badge         /timer start|pause|reset|<seconds>
//	/quit
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gymsmart/gymsmart-backend/internal/chat"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"github.com/gymsmart/gymsmart-backend/internal/localstore"
	"github.com/gymsmart/gymsmart-backend/internal/timer"
	"github.com/gymsmart/gymsmart-backend/pkg/apiclient"
	pkglogger "github.com/gymsmart/gymsmart-backend/pkg/logger"
)

func main() {
	apiURL := flag.String("api", getEnv("GYMSMART_API_URL", "http://localhost:8082"), "API base URL")
	token := flag.String("token", os.Getenv("GYMSMART_TOKEN"), "access token")
	me := flag.String("me", os.Getenv("GYMSMART_USER_ID"), "my user id")
	peer := flag.String("peer", "", "user id to chat with")
	role := flag.String("role", string(domain.RoleAthlete), "ATHLETE, COACH or ADMIN")
	coach := flag.String("coach", "", "selected coach id (athletes)")
	dbPath := flag.String("db", getEnv("GYMSMART_LOCAL_DB", "gymsmart-local.db"), "local cache file")
	flag.Parse()

	pkglogger.InitStructured(getEnv("APP_ENV", "local"))

	if *me == "" || *peer == "" {
		log.Fatal("-me and -peer are required")
	}

	client, err := apiclient.New(*apiURL, *token)
	if err != nil {
		log.Fatalf("Invalid API URL: %v", err)
	}
	store, err := localstore.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rest, err := timer.New(ctx, store)
	if err != nil {
		log.Fatalf("Failed to restore timer: %v", err)
	}

	badge := chat.NewBadge(client, domain.Role(strings.ToUpper(*role)), *coach)
	badge.OnChange(func(n int64) { fmt.Printf("* unread: %d\n", n) })
	badge.Refresh(ctx)

	session := chat.NewSession(client, store, *me, badge, chat.Options{
		OnChange: func(msgs []domain.Message) { render(*me, msgs) },
		OnOtherPeer: func(m domain.Message) {
			fmt.Printf("* new message from %s\n", m.SenderID)
		},
	})
	conv, err := session.Open(ctx, *peer)
	if err != nil && conv == nil {
		log.Fatalf("Failed to open conversation: %v", err)
	}
	if err != nil {
		fmt.Printf("* realtime unavailable: %v\n", err)
	}
	defer session.Close()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "/quit" {
				return
			}
			if err := handleLine(ctx, conv, badge, rest, line); err != nil {
				fmt.Printf("! %v\n", err)
			}
		}
	}
}

func handleLine(ctx context.Context, conv *chat.Conversation, badge *chat.Badge, rest *timer.Timer, line string) error {
	if !strings.HasPrefix(line, "/") {
		_, err := conv.Send(ctx, chat.Draft{Text: line})
		if errors.Is(err, chat.ErrEmptyDraft) {
			return nil
		}
		return err
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/edit":
		if len(fields) < 3 {
			return fmt.Errorf("usage: /edit <id> <text>")
		}
		return conv.Edit(ctx, fields[1], strings.Join(fields[2:], " "))
	case "/delete", "/unsend":
		if len(fields) != 2 {
			return fmt.Errorf("usage: %s <id>", fields[0])
		}
		return conv.Delete(ctx, fields[1], fields[0] == "/unsend")
	case "/clear":
		return conv.Clear(ctx)
	case "/audio":
		if len(fields) != 2 {
			return fmt.Errorf("usage: /audio <file>")
		}
		data, err := os.ReadFile(fields[1])
		if err != nil {
			return err
		}
		_, err = conv.Send(ctx, chat.Draft{Audio: data})
		return err
	case "/badge":
		badge.Refresh(ctx)
		fmt.Printf("* unread: %d\n", badge.Count())
		return nil
	case "/timer":
		return handleTimer(ctx, rest, fields[1:])
	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}
}

func handleTimer(ctx context.Context, rest *timer.Timer, args []string) error {
	if len(args) == 0 {
		left, finished, err := rest.Remaining(ctx)
		if err != nil {
			return err
		}
		if finished {
			fmt.Println("* rest over")
		} else {
			fmt.Printf("* %ds left (running=%t)\n", left, rest.Running())
		}
		return nil
	}
	switch args[0] {
	case "start":
		return rest.Start(ctx)
	case "pause":
		return rest.Pause(ctx)
	case "reset":
		return rest.Reset(ctx)
	default:
		seconds, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("usage: /timer start|pause|reset|<seconds>")
		}
		return rest.SetDuration(ctx, time.Duration(seconds)*time.Second)
	}
}

func render(me string, msgs []domain.Message) {
	fmt.Println("----")
	for _, m := range msgs {
		who := m.SenderID
		if m.SenderID == me {
			who = "me"
		}
		text := m.DisplayText()
		switch {
		case m.IsDeleted:
		case m.AudioURL != nil:
			text = strings.TrimSpace(text + " [voice] " + *m.AudioURL)
		case m.ImageURL != nil:
			text = strings.TrimSpace(text + " [image]")
		}
		flags := ""
		if m.IsEdited() && !m.IsDeleted {
			flags += " (edited)"
		}
		if m.IsTemporary() {
			flags += " (sending)"
		}
		fmt.Printf("%s %-8s %s%s  #%s\n", m.CreatedAt.Local().Format("15:04"), who, text, flags, m.ID)
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
