package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

type reserveRequest struct {
	SlotPosition int `json:"slot_position"`
}

type reserveResponse struct {
	Handle string `json:"handle"`
}

type releaseRequest struct {
	Handle string `json:"handle"`
}

var (
	seq int64

	mu   sync.Mutex
	live = map[string]int{}
)

func main() {
	http.HandleFunc("/api/ads/reserve", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(30+time.Now().UnixNano()%120) * time.Millisecond)

		var req reserveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)

			return
		}

		n := atomic.AddInt64(&seq, 1)

		// Every 7th reservation is a no-fill, so clients exercise their
		// failed-slot handling.
		if n%7 == 0 {
			log.Printf("[AdServer] reserve position=%d - 503 no fill", req.SlotPosition)
			http.Error(w, "no fill", http.StatusServiceUnavailable)

			return
		}

		handle := fmt.Sprintf("ad-%06d", n)
		mu.Lock()
		live[handle] = req.SlotPosition
		held := len(live)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(reserveResponse{Handle: handle}); err != nil {
			log.Printf("[AdServer] Write error: %v", err)
		}

		log.Printf("[AdServer] reserve position=%d handle=%s live=%d - 200 OK", req.SlotPosition, handle, held)
	})

	http.HandleFunc("/api/ads/release", func(w http.ResponseWriter, r *http.Request) {
		var req releaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)

			return
		}

		mu.Lock()
		_, known := live[req.Handle]
		delete(live, req.Handle)
		held := len(live)
		mu.Unlock()

		if !known {
			log.Printf("[AdServer] release handle=%s - 410 unknown", req.Handle)
			http.Error(w, "unknown handle", http.StatusGone)

			return
		}

		w.WriteHeader(http.StatusOK)
		log.Printf("[AdServer] release handle=%s live=%d - 200 OK", req.Handle, held)
	})

	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"healthy"}`)); err != nil {
			log.Printf("[AdServer] Health write error: %v", err)
		}
	})

	log.Println("Mock Ad Server running on :8083")
	server := &http.Server{
		Addr:         ":8083",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
