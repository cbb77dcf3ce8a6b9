package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/boardwise/movecoach/internal/llmfast"
)

func main() {
	apiKey := strings.TrimSpace(os.Getenv("LLM_API_KEY"))
	baseURL := strings.TrimSpace(os.Getenv("LLM_BASE_URL"))
	model := strings.TrimSpace(os.Getenv("LLM_MODEL"))

	if apiKey == "" {
		log.Fatal("LLM_API_KEY is required")
	}

	opts := []llmfast.Option{llmfast.WithTimeout(8 * time.Second)}
	if model != "" {
		opts = append(opts, llmfast.WithModel(model))
	}
	client, err := llmfast.New(baseURL, apiKey, opts...)
	if err != nil {
		log.Fatalf("client error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	reply, err := client.Ping(ctx)
	if err != nil {
		log.Fatalf("completion check failed (model=%s): %v", client.Model(), err)
	}
	log.Printf("completion ok: model=%s took=%s reply=%q",
		client.Model(), time.Since(start).Round(time.Millisecond), reply)
}
