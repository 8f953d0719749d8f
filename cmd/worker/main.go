package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/queue"
	"rollcall/internal/store"
)

// Worker consumes attendance events and maintains the Redis per-session
// counters the dashboard reads as a fast path.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "rollcall:events")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		switch msg.Type {
		case queue.TypeMark:
			var evt queue.MarkEvent
			if err := json.Unmarshal(msg.Body, &evt); err != nil {
				log.Printf("bad mark event: %v", err)
				continue
			}
			if err := redisClient.IncrSessionStatus(ctx, evt.SessionID, evt.Status, 1); err != nil {
				log.Printf("counter update failed: %v", err)
			}
			log.Printf("session %d: student %d marked %s", evt.SessionID, evt.StudentID, evt.Status)

		case queue.TypeSessionClosed:
			var evt queue.SessionClosedEvent
			if err := json.Unmarshal(msg.Body, &evt); err != nil {
				log.Printf("bad session_closed event: %v", err)
				continue
			}
			if evt.Backfilled > 0 {
				if err := redisClient.IncrSessionStatus(ctx, evt.SessionID, string(attendance.StatusAbsent), evt.Backfilled); err != nil {
					log.Printf("counter update failed: %v", err)
				}
			}
			log.Printf("session %d closed, %d absences backfilled", evt.SessionID, evt.Backfilled)

		default:
			log.Printf("ignoring message type %q", msg.Type)
		}
	}

	log.Println("worker exited")
}
