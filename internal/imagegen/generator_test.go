package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

type staticTokens struct{ token string }

func (s staticTokens) Ensure(ctx context.Context) (string, error) { return s.token, nil }

func readAndRemove(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read artifact: %v", err)
	}
	os.Remove(path)
	return data
}

func TestSeedStable(t *testing.T) {
	a := Seed("зайчик в волшебном замке")
	b := Seed("зайчик в волшебном замке")
	if a != b {
		t.Errorf("seed not stable: %d != %d", a, b)
	}
	if a >= 10000 {
		t.Errorf("seed %d out of range", a)
	}
}

func TestPayloadNormalization(t *testing.T) {
	image := []byte("fake-image-bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(image)
	}))
	defer srv.Close()

	payloads := map[string]Payload{
		"url":    ClassifyPayload(srv.URL),
		"base64": ClassifyPayload(base64.StdEncoding.EncodeToString(image)),
		"raw":    RawPayload(image),
	}

	for name, p := range payloads {
		t.Run(name, func(t *testing.T) {
			path, err := p.Materialize(context.Background(), srv.Client())
			if err != nil {
				t.Fatalf("Materialize failed: %v", err)
			}
			if got := readAndRemove(t, path); !bytes.Equal(got, image) {
				t.Errorf("artifact content mismatch: got %q, want %q", got, image)
			}
		})
	}
}

func TestPayloadEmptyBody(t *testing.T) {
	if _, err := RawPayload(nil).Materialize(context.Background(), http.DefaultClient); err == nil {
		t.Error("expected error for empty payload, got artifact")
	}
	if _, err := ClassifyPayload("").Materialize(context.Background(), http.DefaultClient); err == nil {
		t.Error("expected error for empty base64 payload, got artifact")
	}
}

func TestGenerateSynchronousBytes(t *testing.T) {
	image := []byte{0xff, 0xd8, 0xff, 0xe0, 0x01, 0x02}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("unexpected auth header %q", auth)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(image)
	}))
	defer srv.Close()

	gen := NewGenerator(srv.URL, srv.URL+"/ops/", "art://model", 1, 1, 30, time.Millisecond, staticTokens{"test-token"}, srv.Client())

	path, err := gen.Generate(context.Background(), "ночной лес")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got := readAndRemove(t, path); !bytes.Equal(got, image) {
		t.Error("artifact content mismatch")
	}
}

func TestGeneratePollsUntilDone(t *testing.T) {
	image := []byte("polled-image")
	var polls int

	mux := http.NewServeMux()
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad submit body: %v", err)
		}
		if req.GenerationOptions.Seed != Seed("замок на горе") {
			t.Errorf("seed mismatch: %d", req.GenerationOptions.Seed)
		}
		json.NewEncoder(w).Encode(jobDescriptor{ID: "job-42"})
	})
	mux.HandleFunc("/ops/job-42", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls <= 5 {
			json.NewEncoder(w).Encode(operationStatus{Done: false})
			return
		}
		json.NewEncoder(w).Encode(operationStatus{
			Done:     true,
			Response: &operationImage{Image: base64.StdEncoding.EncodeToString(image)},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gen := NewGenerator(srv.URL+"/submit", srv.URL+"/ops/", "art://model", 1, 1, 30, time.Millisecond, staticTokens{"t"}, srv.Client())

	path, err := gen.Generate(context.Background(), "замок на горе")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if polls != 6 {
		t.Errorf("expected exactly 6 polls, got %d", polls)
	}
	if got := readAndRemove(t, path); !bytes.Equal(got, image) {
		t.Error("artifact content mismatch")
	}
}

func TestGeneratePollCapExhausted(t *testing.T) {
	var polls int

	mux := http.NewServeMux()
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jobDescriptor{ID: "job-slow"})
	})
	mux.HandleFunc("/ops/job-slow", func(w http.ResponseWriter, r *http.Request) {
		polls++
		json.NewEncoder(w).Encode(operationStatus{Done: false})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gen := NewGenerator(srv.URL+"/submit", srv.URL+"/ops/", "art://model", 1, 1, 30, time.Millisecond, staticTokens{"t"}, srv.Client())

	if _, err := gen.Generate(context.Background(), "p"); err == nil {
		t.Fatal("expected timeout error, got artifact")
	}
	if polls != 30 {
		t.Errorf("expected 30 polls, got %d", polls)
	}
}

func TestGenerateJobError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jobDescriptor{ID: "job-bad"})
	})
	mux.HandleFunc("/ops/job-bad", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(operationStatus{
			Done:  true,
			Error: &operationError{Code: 13, Message: "model exploded"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gen := NewGenerator(srv.URL+"/submit", srv.URL+"/ops/", "art://model", 1, 1, 30, time.Millisecond, staticTokens{"t"}, srv.Client())

	if _, err := gen.Generate(context.Background(), "p"); err == nil {
		t.Fatal("expected job error, got artifact")
	}
}

func TestGenerateSkipsTransientPollFailures(t *testing.T) {
	image := []byte("eventually")
	var polls int

	mux := http.NewServeMux()
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jobDescriptor{ID: "job-flaky"})
	})
	mux.HandleFunc("/ops/job-flaky", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 3 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(operationStatus{
			Done:     true,
			Response: &operationImage{Image: base64.StdEncoding.EncodeToString(image)},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gen := NewGenerator(srv.URL+"/submit", srv.URL+"/ops/", "art://model", 1, 1, 30, time.Millisecond, staticTokens{"t"}, srv.Client())

	path, err := gen.Generate(context.Background(), "p")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	readAndRemove(t, path)
	if polls != 3 {
		t.Errorf("expected 3 polls, got %d", polls)
	}
}

func TestGenerateSubmitRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	gen := NewGenerator(srv.URL, srv.URL+"/ops/", "art://model", 1, 1, 30, time.Millisecond, staticTokens{"t"}, srv.Client())

	_, err := gen.Generate(context.Background(), "p")
	if err == nil {
		t.Fatal("expected submission error")
	}
	if want := fmt.Sprintf("status %d", http.StatusTooManyRequests); err != nil && !bytes.Contains([]byte(err.Error()), []byte(want)) {
		t.Errorf("error %q does not mention %s", err, want)
	}
}

func TestPayloadURLFetchHonorsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("late"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ClassifyPayload(srv.URL).Materialize(ctx, srv.Client()); err == nil {
		t.Error("expected error when the context is already cancelled")
	}
}
