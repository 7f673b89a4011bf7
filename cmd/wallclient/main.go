package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"wall/models"
	"wall/services"
)

// Клиент стены: логинится, подключается к комнате и гоняет цикл
// optimistic -> confirm через SyncController. Удобен для ручной проверки
// и нагрузочных прогонов.

type Config struct {
	BaseURL  string
	Nickname string
	Password string
	Posts    int
	Interval time.Duration
}

type Stats struct {
	Confirmed int64
	RolledOut int64
	Received  int64
}

var stats Stats

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "Wall API base URL")
	flag.StringVar(&cfg.Nickname, "user", "", "Nickname to log in with")
	flag.StringVar(&cfg.Password, "password", "", "Password")
	flag.IntVar(&cfg.Posts, "posts", 10, "Number of posts to create")
	flag.DurationVar(&cfg.Interval, "interval", time.Second, "Delay between mutations")
	flag.Parse()
	return cfg
}

func login(cfg Config) (string, models.User, error) {
	body, _ := json.Marshal(map[string]string{
		"nickname": cfg.Nickname,
		"password": cfg.Password,
	})
	resp, err := http.Post(cfg.BaseURL+"/api/v1/auth/login", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return "", models.User{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", models.User{}, fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var loginResp struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", models.User{}, err
	}
	return loginResp.Token, *loginResp.User, nil
}

func main() {
	cfg := parseFlags()
	if cfg.Nickname == "" || cfg.Password == "" {
		log.Fatal("both -user and -password are required")
	}

	token, user, err := login(cfg)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	log.Printf("Logged in as %s (id=%d, role=%s)", user.Nickname, user.ID, user.Role)

	session := services.NewSession()
	session.Login(token, user)

	wsURL := "ws" + strings.TrimPrefix(cfg.BaseURL, "http") + "/api/v1/ws/wall"
	channel, err := services.NewWSChannel(wsURL, token)
	if err != nil {
		log.Fatalf("Failed to open realtime channel: %v", err)
	}
	defer channel.Close()

	store := services.NewFeedStore(user)
	controller := services.NewSyncController(store, services.NewHTTPConfirmClient(cfg.BaseURL), channel, session)
	if err := controller.Start(); err != nil {
		log.Fatalf("Failed to start sync controller: %v", err)
	}

	// Считаем чужие события для статистики
	channel.Subscribe(models.EventPostCreated, func(event string, payload interface{}) {
		atomic.AddInt64(&stats.Received, 1)
	})
	channel.Subscribe(models.EventReactionAdded, func(event string, payload interface{}) {
		atomic.AddInt64(&stats.Received, 1)
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx := context.Background()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	created := 0
	var lastPostID int64
loop:
	for created < cfg.Posts {
		select {
		case <-sigChan:
			break loop
		case <-ticker.C:
			post, err := controller.CreatePost(ctx, fmt.Sprintf("wall post %d from %s", created+1, user.Nickname), "")
			if err != nil {
				atomic.AddInt64(&stats.RolledOut, 1)
				log.Printf("Post rolled back: %v", err)
				continue
			}
			atomic.AddInt64(&stats.Confirmed, 1)
			lastPostID = post.ID
			created++

			if _, err := controller.AddReaction(ctx, lastPostID, "like"); err != nil {
				log.Printf("Reaction failed: %v", err)
			}
		}
	}

	log.Printf("Done: confirmed=%d rolled_back=%d remote_events=%d local_posts=%d",
		atomic.LoadInt64(&stats.Confirmed),
		atomic.LoadInt64(&stats.RolledOut),
		atomic.LoadInt64(&stats.Received),
		store.Len())
}
