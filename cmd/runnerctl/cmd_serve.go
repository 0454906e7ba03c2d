// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/RunnerForge/internal/proc"
	"github.com/AleutianAI/RunnerForge/pkg/logging"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// runServe runs the probe and metrics endpoint. Intended to run as a
// sidecar process inside the container for orchestrators that probe
// over HTTP instead of exec'ing the health verbs.
func runServe(cmd *cobra.Command, args []string) {
	log := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: "runnerctl-serve",
		JSON:    true,
	})
	defer log.Close()

	port := servePort
	if port == 0 {
		port = runtimeEnv.ProbePort
	}

	metrics, metricsHandler, shutdownMetrics, err := InitProbeMetrics(runtimeEnv.ServiceName)
	if err != nil {
		log.Error("metrics init failed", "error", err)
		os.Exit(1)
	}

	pm := proc.NewDefaultManager()
	checker := NewDefaultHealthChecker(pm, DefaultHealthCheckerConfig(runtimeEnv))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if runtimeEnv.OTELEnabled {
		supervisor := NewCollectorSupervisor(pm, log, metrics, runtimeEnv)
		go supervisor.Run(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/livez", func(c *gin.Context) {
		c.JSON(http.StatusOK, checker.Live())
	})

	router.GET("/readyz", func(c *gin.Context) {
		started := time.Now()
		report := checker.Ready(c.Request.Context())
		metrics.ObserveReport(c.Request.Context(), report, time.Since(started))

		code := http.StatusOK
		if report.Status != CheckStatusHealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, report)
	})

	router.GET("/metrics", gin.WrapH(metricsHandler))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("probe server listening", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("probe server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", "error", err)
	}
	if err := shutdownMetrics(shutdownCtx); err != nil {
		log.Warn("metrics shutdown", "error", err)
	}
}
