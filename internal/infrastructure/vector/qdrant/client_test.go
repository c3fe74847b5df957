package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

func TestCreateSendsDimensionAndDistance(t *testing.T) {
	var got map[string]map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/collections/docs" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"result":true}`))
	}))
	defer server.Close()

	client := New(server.URL, domain.DefaultIndexSchema(384))
	if err := client.Create(context.Background(), "docs", domain.DefaultIndexSchema(384)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got["vectors"]["size"] != float64(384) || got["vectors"]["distance"] != "Cosine" {
		t.Fatalf("unexpected create body %+v", got)
	}
}

func TestCreateReportsExistingCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"status":{"error":"Collection docs already exists"}}`))
	}))
	defer server.Close()

	err := New(server.URL, domain.DefaultIndexSchema(2)).Create(context.Background(), "docs", domain.DefaultIndexSchema(2))
	if !domain.IsKind(err, domain.ErrIndexExists) {
		t.Fatalf("expected index exists, got %v", err)
	}
}

func TestCreateIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	err := New(server.URL, domain.DefaultIndexSchema(2)).Create(context.Background(), "docs", domain.DefaultIndexSchema(2))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
	if domain.IsKind(err, domain.ErrIndexExists) {
		t.Fatalf("server failure must not look like an existing collection")
	}
}

func TestWriteUsesSchemaPayloadKeys(t *testing.T) {
	var got struct {
		Points []struct {
			ID      string         `json:"id"`
			Vector  []float32      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/collections/docs/points" || r.URL.Query().Get("wait") != "true" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := New(server.URL, domain.DefaultIndexSchema(2))
	record := domain.IndexedRecord{
		Embedding: []float32{0.1, 0.2},
		Text:      "passage",
		Metadata:  domain.RecordMetadata{Source: "s3://b/k.txt"},
	}
	if err := client.Write(context.Background(), "docs", record); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(got.Points) != 1 || got.Points[0].ID == "" {
		t.Fatalf("unexpected points %+v", got.Points)
	}
	payload := got.Points[0].Payload
	if payload["text_field"] != "passage" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	meta, _ := payload["metadata"].(map[string]any)
	if meta["source"] != "s3://b/k.txt" {
		t.Fatalf("unexpected metadata %+v", payload["metadata"])
	}
}

func TestSearchParsesHitsInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/docs/points/search" {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["limit"] != float64(2) {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.91,"payload":{"text_field":"one","metadata":{"source":"s3://b/1.txt"}}},
			{"score":0.72,"payload":{"text_field":"two","metadata":{"source":"s3://b/2.txt"}}}
		]}`))
	}))
	defer server.Close()

	hits, err := New(server.URL, domain.DefaultIndexSchema(2)).Search(context.Background(), "docs", []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 || hits[0].Text != "one" || hits[1].Source != "s3://b/2.txt" || hits[0].Score != domain.CosineScore(0.91) {
		t.Fatalf("unexpected hits %+v", hits)
	}
}

func TestSearchMissingCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(server.URL, domain.DefaultIndexSchema(2)).Search(context.Background(), "docs", []float32{1, 0}, 1)
	if !domain.IsKind(err, domain.ErrIndexNotFound) {
		t.Fatalf("expected index not found, got %v", err)
	}
}
