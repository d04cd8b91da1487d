// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command server starts the tubechat gateway: the websocket session
// endpoint, its supporting pipeline (classify, retrieve, grade, generate),
// and the row/vector stores behind it.
//
// # Environment Variables
//
// See internal/config for the full list; the ones most often overridden
// in development are PORT, DATABASE_URL, QDRANT_ADDR, and OPENAI_API_KEY.
//
// # Usage
//
//	go build -o tubechat-server ./cmd/server
//	./tubechat-server
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tubechat/tubechat/internal/auth"
	"github.com/tubechat/tubechat/internal/classify"
	"github.com/tubechat/tubechat/internal/config"
	"github.com/tubechat/tubechat/internal/convo"
	"github.com/tubechat/tubechat/internal/domain"
	"github.com/tubechat/tubechat/internal/embedding"
	"github.com/tubechat/tubechat/internal/gateway"
	"github.com/tubechat/tubechat/internal/generate"
	"github.com/tubechat/tubechat/internal/grade"
	"github.com/tubechat/tubechat/internal/llm"
	"github.com/tubechat/tubechat/internal/observability"
	"github.com/tubechat/tubechat/internal/pipeline"
	"github.com/tubechat/tubechat/internal/ratelimit"
	"github.com/tubechat/tubechat/internal/retrieval"
	"github.com/tubechat/tubechat/internal/store"
	"github.com/tubechat/tubechat/internal/vectorstore"
	"github.com/tubechat/tubechat/pkg/logging"
)

func main() {
	log := logging.New(logging.Config{Level: logging.LevelInfo, Service: "tubechat-gateway"})
	defer log.Close()

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err.Error())
		os.Exit(1)
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		cfg, err = config.LoadFile(path, cfg)
		if err != nil {
			log.Error("failed to load config file overlay", "path", path, "error", err.Error())
			os.Exit(1)
		}
	}
	cfgStore := config.NewStore(cfg)

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.ServiceName, cfg.OTELEndpoint)
	if err != nil {
		log.Error("failed to set up tracer", "error", err.Error())
		os.Exit(1)
	}
	defer shutdownTracer(context.Background())

	metrics := observability.Default()

	rows, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, log)
	if err != nil {
		log.Error("failed to open database", "error", err.Error())
		os.Exit(1)
	}
	defer rows.Close()
	if err := rows.Migrate(cfg.DatabaseURL); err != nil {
		log.Error("failed to apply migrations", "error", err.Error())
		os.Exit(1)
	}

	vectors, err := vectorstore.Open(vectorstore.Config{Host: qdrantHost(cfg.QdrantAddr), Port: qdrantPort(cfg.QdrantAddr)})
	if err != nil {
		log.Error("failed to connect to qdrant", "error", err.Error())
		os.Exit(1)
	}
	defer vectors.Close()

	chatClient := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ChatModel)
	embedClient := embedding.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel)

	classifier := classify.New(chatClient)
	retriever := retrieval.New(embedClient, vectors, rows, cfg.RetrievalTopK)
	grader := grade.New(chatClient, cfg.GraderConcurrency)
	generator := generate.New(chatClient, generate.NoopVideoIngestor{})

	retrieveFn := func(ctx context.Context, s pipeline.State) []domain.RetrievedChunk {
		metrics.RetrieverCallsTotal.Inc()
		collection := retrieval.CollectionFor(s.ChannelID, s.ChannelCollectionName)
		return retriever.Retrieve(ctx, s.UserID, s.ChannelID, collection, s.UserQuery)
	}
	listingsFn := func(ctx context.Context, s pipeline.State) []generate.VideoListing {
		videos, err := rows.ListUserVideos(ctx, s.UserID)
		if err != nil {
			return nil
		}
		return generate.SearchListings(videos, s.Intent, s.UserQuery)
	}
	executor := pipeline.New(classifier, retrieveFn, grader, generator, listingsFn)

	personal := convo.NewPersonal(rows)
	channel := convo.NewChannel(rows)
	limiter := ratelimit.New(cfg.RatePerMinute, time.Minute)

	processor := gateway.NewProcessor(limiter, personal, channel, rows, executor, cfg.ContextMessagesMax)
	registry := gateway.NewRegistry()
	validator := auth.NewValidator(cfg.JWTSigningKey)
	handler := gateway.NewHandler(validator, processor, registry, metrics, log, cfgStore.Get().HeartbeatInterval, rows)

	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", handler.ServeWS)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}

	go func() {
		log.Info("tubechat gateway listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down", "open_connections", registry.Count())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", "error", err.Error())
	}
}

// qdrantHost and qdrantPort split the "host:port" form QDRANT_ADDR is
// documented to take; a malformed value falls back to the localhost
// gRPC default so startup never panics on a bad env var.
func qdrantHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return "localhost"
	}
	return host
}

func qdrantPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 6334
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 6334
	}
	return port
}
