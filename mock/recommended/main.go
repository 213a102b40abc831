package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"
)

type request struct {
	Count      int      `json:"count"`
	ExcludeIDs []string `json:"exclude_ids"`
	UserID     string   `json:"user_id"`
}

type item struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Teaser      string  `json:"teaser"`
	ImageURL    string  `json:"image_url"`
	Section     string  `json:"section"`
	Score       float64 `json:"score"`
	PublishedAt string  `json:"published_at"`
}

type response struct {
	Items []item `json:"items"`
}

// totalPool bounds how many items the mock ever hands out, so clients can
// observe the short-page exhaustion path.
const totalPool = 60

var issued int64

func main() {
	http.HandleFunc("/api/recommendations", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(50+time.Now().UnixNano()%150) * time.Millisecond)

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)

			return
		}

		excluded := make(map[string]bool, len(req.ExcludeIDs))
		for _, id := range req.ExcludeIDs {
			excluded[id] = true
		}

		items := []item{}
		for len(items) < req.Count {
			n := atomic.AddInt64(&issued, 1)
			if n > totalPool {
				break
			}

			id := fmt.Sprintf("rec-%03d", n)
			if excluded["r-"+id] {
				continue
			}

			items = append(items, item{
				ID:          id,
				Title:       fmt.Sprintf("Recommended Story %d", n),
				Teaser:      "Picked for you by the ranking model.",
				ImageURL:    fmt.Sprintf("https://img.example.com/%s.jpg", id),
				Section:     "recommended",
				Score:       1.0 - float64(n)/float64(totalPool),
				PublishedAt: time.Now().UTC().Format(time.RFC3339),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(response{Items: items}); err != nil {
			log.Printf("[Recommended] Write error: %v", err)
		}

		log.Printf("[Recommended] %s %s count=%d excluded=%d served=%d - 200 OK",
			r.Method, r.URL.Path, req.Count, len(req.ExcludeIDs), len(items))
	})

	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"healthy"}`)); err != nil {
			log.Printf("[Recommended] Health write error: %v", err)
		}
	})

	log.Println("Mock Recommendation Service running on :8082")
	server := &http.Server{
		Addr:         ":8082",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
