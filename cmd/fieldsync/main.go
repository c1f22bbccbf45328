// Command fieldsync buffers incident reports and spill kit checks on a field
// device and replays them to the API once it is reachable.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/metrics"
	"github.com/portaprosoftware/fleet-compliance/internal/offline"
	log "github.com/sirupsen/logrus"
)

const (
	defaultAPIURL   = "http://localhost:8080/api"
	defaultQueueDir = "./fieldsync-queue"
	defaultTick     = 30 * time.Second
)

func main() {
	enqueueKind := flag.String("enqueue", "", "queue a submission of this kind (incident, spill_kit_check) and exit")
	file := flag.String("file", "", "JSON payload for -enqueue")
	showDead := flag.Bool("dead", false, "list dead-lettered submissions and exit")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	queueDir := os.Getenv("QUEUE_DIR")
	if queueDir == "" {
		queueDir = defaultQueueDir
	}
	q, err := offline.Open(queueDir)
	if err != nil {
		log.Fatalf("Failed to open queue: %v", err)
	}
	defer q.Close()

	switch {
	case *enqueueKind != "":
		pending, err := enqueueFile(q, offline.Kind(*enqueueKind), *file)
		if err != nil {
			log.Fatalf("Enqueue failed: %v", err)
		}
		fmt.Printf("queued, %d pending\n", pending)
		return
	case *showDead:
		if err := printDeadLetters(q); err != nil {
			log.Fatalf("Failed to list dead letters: %v", err)
		}
		return
	}

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	authToken := os.Getenv("FIELD_AUTH_TOKEN")
	if authToken == "" {
		log.Warn("FIELD_AUTH_TOKEN is not set, submissions will be rejected")
	}
	tick := tickFromEnv(os.Getenv("SYNC_TICK_SECONDS"))

	m := metrics.New()
	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		go func() {
			log.WithField("addr", addr).Info("Serving metrics")
			if err := http.ListenAndServe(addr, m.Handler()); err != nil {
				log.WithError(err).Error("Metrics listener stopped")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{"api": apiURL, "queue": queueDir, "tick": tick}).Info("Field sync started")
	syncLoop(ctx, q, offline.NewHTTPSender(apiURL, authToken), m, tick)
	log.Info("Field sync stopped")
}

// enqueueFile reads a JSON payload from path and queues it. It returns the
// number of pending submissions afterwards.
func enqueueFile(q *offline.Queue, kind offline.Kind, path string) (int, error) {
	if path == "" {
		return 0, errors.New("-file is required with -enqueue")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if !json.Valid(data) {
		return 0, fmt.Errorf("%s is not valid JSON", path)
	}
	s, err := q.Enqueue(kind, json.RawMessage(data))
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"idempotency_key": s.IdempotencyKey, "kind": s.Kind}).Info("Submission queued")
	return q.Pending()
}

func printDeadLetters(q *offline.Queue) error {
	dead, err := q.DeadLetters()
	if err != nil {
		return err
	}
	for _, s := range dead {
		fmt.Printf("%s\t%s\t%d attempts\t%s\n", s.IdempotencyKey, s.Kind, s.Attempts, s.LastError)
	}
	return nil
}

func tickFromEnv(v string) time.Duration {
	if v == "" {
		return defaultTick
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.WithField("value", v).Warn("Invalid SYNC_TICK_SECONDS, using default")
		return defaultTick
	}
	return time.Duration(n) * time.Second
}

// syncLoop replays the queue immediately and then on every tick until ctx
// is done.
func syncLoop(ctx context.Context, q *offline.Queue, sender offline.Sender, m *metrics.Metrics, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		if _, err := replayOnce(ctx, q, sender, m); err != nil {
			log.WithError(err).Error("Replay pass failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// replayOnce runs one replay pass and records its outcomes.
func replayOnce(ctx context.Context, q *offline.Queue, sender offline.Sender, m *metrics.Metrics) (offline.ReplayResult, error) {
	res, err := q.Replay(ctx, sender)
	for i := 0; i < res.Sent; i++ {
		m.OfflineReplay("sent")
	}
	for i := 0; i < res.Retried; i++ {
		m.OfflineReplay("retried")
	}
	for i := 0; i < res.Dead; i++ {
		m.OfflineReplay("dead")
	}
	if err != nil {
		return res, err
	}
	if res.Sent+res.Retried+res.Dead > 0 {
		log.WithFields(log.Fields{
			"sent":    res.Sent,
			"retried": res.Retried,
			"dead":    res.Dead,
			"waiting": res.Waiting,
		}).Info("Replay pass finished")
	}
	return res, nil
}
