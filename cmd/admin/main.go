package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"supportdesk/backend/internal/auth"
	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]

Commands:
  sessions                  list every chat session, newest first
  messages <session_id>     print the history of a session
  online                    list principals the server reports online
  token <user_id> <role>    mint a development token (role: customer, agent, admin)`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	ctx := context.Background()

	switch command := os.Args[1]; command {
	case "sessions":
		s := openStorage(cfg)
		if err := listSessions(ctx, s); err != nil {
			log.Fatalf("Error listing sessions: %v", err)
		}
	case "messages":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin messages <session_id>")
			os.Exit(1)
		}
		id, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil || id == 0 {
			fmt.Println("Invalid session ID. Please provide a positive integer.")
			os.Exit(1)
		}
		s := openStorage(cfg)
		if err := printMessages(ctx, s, uint(id)); err != nil {
			log.Fatalf("Error reading messages: %v", err)
		}
	case "online":
		if cfg.RedisAddr == "" {
			log.Fatal("REDIS_ADDR is not set; presence is only mirrored to Redis")
		}
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		ids, err := storage.NewPresenceMirror(rdb).OnlineUsers(ctx)
		if err != nil {
			log.Fatalf("Error reading presence: %v", err)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	case "token":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin token <user_id> <role>")
			os.Exit(1)
		}
		role := models.Role(os.Args[3])
		if !role.Valid() {
			fmt.Println("Invalid role. Use customer, agent or admin.")
			os.Exit(1)
		}
		token, err := auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer).Issue(models.Principal{ID: os.Args[2], Role: role}, config.DefaultTokenTTL)
		if err != nil {
			log.Fatalf("Error signing token: %v", err)
		}
		fmt.Println(token)
	default:
		fmt.Printf("Unknown command %q\n\n%s\n", command, usage)
		os.Exit(1)
	}
}

func openStorage(cfg config.AppConfig) storage.Storage {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	return storage.NewStorageService(db)
}

func listSessions(ctx context.Context, s storage.Storage) error {
	sessions, err := s.ListAllSessions(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCUSTOMER\tAGENT\tPRODUCT\tCREATED")
	for _, row := range sessions {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			row.ID, row.Status, nameOr(row.CustomerName, row.CustomerID), nameOr(row.AgentName, row.AgentID),
			row.AgentProductName, row.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func printMessages(ctx context.Context, s storage.Storage, sessionID uint) error {
	status, err := s.GetSessionStatus(ctx, sessionID)
	if err != nil {
		return err
	}
	messages, err := s.ListMessages(ctx, sessionID)
	if err != nil {
		return err
	}
	fmt.Printf("Session %d (%s), %d messages\n", sessionID, status, len(messages))
	for _, m := range messages {
		fmt.Printf("[%s] %s: %s\n", m.SentAt.Format(time.RFC3339), m.SenderID, m.Body)
	}
	return nil
}

func nameOr(name, id string) string {
	if name == "" {
		return id
	}
	return name
}
