package categorize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpalmeida/spendsight/internal/domain/normalize"
)

func echoCategory(category string, confidence float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var batch Batch
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var out classifyResponse
		for _, item := range batch.Items {
			out.Results = append(out.Results, ClassificationResult{
				ID: item.ID, Category: category, Confidence: confidence,
			})
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

func sampleBatch() Batch {
	return Batch{
		Items: []BatchItem{
			{ID: "a", Description: "OBSCURE BISTRO", Merchant: "Obscure Bistro", AmountCents: -5600, Date: "2025-06-01"},
			{ID: "b", Description: "CORNER BAKERY", Merchant: "Corner Bakery", AmountCents: -850, Date: "2025-06-02"},
		},
		Categories: []string{"Groceries", "Dining"},
	}
}

func TestHTTPClassifier(t *testing.T) {
	t.Run("happy path preserves order", func(t *testing.T) {
		srv := httptest.NewServer(echoCategory("Dining", 0.92))
		defer srv.Close()

		c := NewHTTPClassifier(HTTPClassifierConfig{URL: srv.URL}, discardLogger())
		results, err := c.Classify(context.Background(), sampleBatch())
		require.NoError(t, err)

		require.Len(t, results, 2)
		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "b", results[1].ID)
		assert.Equal(t, "Dining", results[0].Category)
	})

	t.Run("auth header sent", func(t *testing.T) {
		var got string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("Authorization")
			echoCategory("Dining", 0.9)(w, r)
		}))
		defer srv.Close()

		c := NewHTTPClassifier(HTTPClassifierConfig{URL: srv.URL, APIKey: "sekret"}, discardLogger())
		_, err := c.Classify(context.Background(), sampleBatch())
		require.NoError(t, err)
		assert.Equal(t, "Bearer sekret", got)
	})

	t.Run("retries transient 500 then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				http.Error(w, "flaky", http.StatusInternalServerError)
				return
			}
			echoCategory("Dining", 0.9)(w, r)
		}))
		defer srv.Close()

		c := NewHTTPClassifier(HTTPClassifierConfig{URL: srv.URL, MaxRetries: 3}, discardLogger())
		results, err := c.Classify(context.Background(), sampleBatch())
		require.NoError(t, err)
		assert.Len(t, results, 2)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := NewHTTPClassifier(HTTPClassifierConfig{URL: srv.URL, MaxRetries: 2}, discardLogger())
		_, err := c.Classify(context.Background(), sampleBatch())
		require.Error(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("4xx is not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "bad request", http.StatusBadRequest)
		}))
		defer srv.Close()

		c := NewHTTPClassifier(HTTPClassifierConfig{URL: srv.URL, MaxRetries: 3}, discardLogger())
		_, err := c.Classify(context.Background(), sampleBatch())
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("timeout surfaces as error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		c := NewHTTPClassifier(HTTPClassifierConfig{
			URL: srv.URL, Timeout: 20 * time.Millisecond, MaxRetries: 1,
		}, discardLogger())
		_, err := c.Classify(context.Background(), sampleBatch())
		assert.Error(t, err)
	})

	t.Run("missing ids come back empty", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(classifyResponse{Results: []ClassificationResult{
				{ID: "b", Category: "Dining", Confidence: 0.8},
			}})
		}))
		defer srv.Close()

		c := NewHTTPClassifier(HTTPClassifierConfig{URL: srv.URL}, discardLogger())
		results, err := c.Classify(context.Background(), sampleBatch())
		require.NoError(t, err)

		assert.Equal(t, "", results[0].Category, "service skipped item a")
		assert.Equal(t, "Dining", results[1].Category)
	})
}

// One slow batch degrading only its own items, end to end through the HTTP
// backend and the service.
func TestTimedOutBatchIsolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch Batch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))

		if batch.Items[0].Merchant == "Slowpoke" {
			time.Sleep(300 * time.Millisecond) // beyond the client timeout
		}
		var out classifyResponse
		for _, item := range batch.Items {
			out.Results = append(out.Results, ClassificationResult{ID: item.ID, Category: "Dining", Confidence: 0.9})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	classifier := NewHTTPClassifier(HTTPClassifierConfig{
		URL: srv.URL, Timeout: 50 * time.Millisecond, MaxRetries: 1,
	}, discardLogger())

	svc, err := NewService(testConfig(), classifier, ServiceConfig{BatchSize: 1}, discardLogger())
	require.NoError(t, err)

	items := svc.Categorize(context.Background(), []normalize.Transaction{
		tx("Slowpoke", "SLOWPOKE DINER", -2100),
		tx("Obscure Bistro", "OBSCURE BISTRO 77", -5600),
	})
	require.Len(t, items, 2)

	var slow, fast *Item
	for i := range items {
		if items[i].Transaction.Merchant == "Slowpoke" {
			slow = &items[i]
		} else {
			fast = &items[i]
		}
	}
	assert.Equal(t, StatusStillUncategorized, slow.Status, "timed-out batch degrades")
	assert.Equal(t, StatusExternallyMatched, fast.Status, "other batch unaffected")
}
