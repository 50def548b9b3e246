package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var severities = []string{"info", "warning", "error"}

func main() {
	targetURL := flag.String("url", "http://localhost:8080/logs", "Target URL for ingestion")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 1000, "Requests per second limit")
	readEvery := flag.Int("read-every", 50, "Issue a GET for the recent page every N writes per worker (0 disables)")
	flag.Parse()

	log.Printf("Starting load test on %s", *targetURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	var wg sync.WaitGroup
	var successCount, errorCount, readCount, readErrorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: 5 * time.Second,
			}
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

			for n := 1; ; n++ {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				payload, _ := json.Marshal(map[string]string{
					"severity": severities[rng.Intn(len(severities))],
					"message":  "load test record " + uuid.NewString(),
				})

				req, err := http.NewRequestWithContext(ctx, http.MethodPost, *targetURL, bytes.NewReader(payload))
				if err != nil {
					continue
				}
				req.Header.Set("Content-Type", "application/json")

				resp, err := client.Do(req)
				if err != nil {
					errorCount.Add(1)
					continue
				}
				if resp.StatusCode == http.StatusCreated {
					successCount.Add(1)
				} else {
					errorCount.Add(1)
				}
				resp.Body.Close()

				if *readEvery > 0 && n%*readEvery == 0 {
					resp, err := client.Get(*targetURL)
					if err != nil || resp.StatusCode != http.StatusOK {
						readErrorCount.Add(1)
					} else {
						readCount.Add(1)
					}
					if resp != nil {
						resp.Body.Close()
					}
				}
			}
		}(i)
	}

	wg.Wait()

	totalRequests := successCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Successful (201 Created): %d", successCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Recent reads: %d ok, %d failed", readCount.Load(), readErrorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
}
