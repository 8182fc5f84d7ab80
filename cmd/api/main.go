package main

import (
	"fmt"
	"log"
	"os"

	"github.com/toman-eng/devflow-metrics/internal/aggregator"
	"github.com/toman-eng/devflow-metrics/internal/api"
	"github.com/toman-eng/devflow-metrics/internal/collector"
	"github.com/toman-eng/devflow-metrics/internal/config"
	"github.com/toman-eng/devflow-metrics/internal/identity"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Load aggregation rules
	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		log.Fatalf("Failed to load rules: %v", err)
	}
	ruleSet, err := rules.Compile()
	if err != nil {
		log.Fatalf("Failed to compile rules: %v", err)
	}
	filter, err := identity.NewFilter(rules.BotPatterns)
	if err != nil {
		log.Fatalf("Failed to compile bot patterns: %v", err)
	}

	// Initialize collector
	col, err := collector.NewGitLabCollector(cfg.GitLabURL, cfg.GitLabToken)
	if err != nil {
		log.Fatalf("Failed to initialize GitLab collector: %v", err)
	}

	// Initialize aggregation service
	service := aggregator.NewService(ruleSet, filter, cfg.MaxWindowDays)

	// Initialize handler
	handler := api.NewHandler(col, service, cfg.DefaultWindowDays, cfg.MaxWindowDays)

	// Setup routes
	router := api.SetupRoutes(handler)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	fmt.Printf("Starting API server on %s\n", addr)
	fmt.Printf("GitLab endpoint: %s\n", cfg.GitLabURL)

	if err := router.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}
