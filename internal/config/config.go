// Package config resolves the core's runtime configuration from the
// environment. Flag parsing, config files, and credential persistence are
// front-end concerns; the core only consumes the resolved values below.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/example/proverclient/pkg/proverapi"
)

// Config is the fully resolved set of knobs the supervisor needs to start
// the pipeline.
type Config struct {
	NodeID            string
	OrchestratorURL   string
	Environment       string
	MaxTasks          int // 0 means unbounded
	MaxDifficulty     *proverapi.Difficulty
	MaxThreads        int // 0 means "let the resource oracle decide"
	CheckMemory       bool
	EventBusCapacity  int
	RequestTimeout    time.Duration
	OverallTimeout    time.Duration
	SubmissionRetries int
}

// FromEnv resolves Config from environment variables, falling back to
// sensible defaults for a local/dev orchestrator.
func FromEnv() Config {
	nodeID := getenv("NEXUS_NODE_ID", "")
	orchestratorURL := getenv("PROVER_ORCHESTRATOR_URL", "http://localhost:8080")
	environment := getenv("PROVER_ENV", "production")
	maxTasks := getenvInt("PROVER_MAX_TASKS", 0)
	maxThreads := getenvInt("PROVER_MAX_THREADS", 0)
	checkMemory := getenvBool("PROVER_CHECK_MEMORY", true)
	busCapacity := getenvInt("PROVER_EVENT_BUS_CAPACITY", 256)
	requestTimeoutSec := getenvInt("PROVER_REQUEST_TIMEOUT_SECONDS", 30)
	overallTimeoutSec := getenvInt("PROVER_OVERALL_TIMEOUT_SECONDS", 60)
	submissionRetries := getenvInt("PROVER_SUBMISSION_RETRIES", 5)

	var maxDifficulty *proverapi.Difficulty
	if raw := os.Getenv("PROVER_MAX_DIFFICULTY"); raw != "" {
		if lvl, ok := parseDifficulty(raw); ok {
			maxDifficulty = &lvl
		}
	}

	return Config{
		NodeID:            nodeID,
		OrchestratorURL:   orchestratorURL,
		Environment:       environment,
		MaxTasks:          maxTasks,
		MaxDifficulty:     maxDifficulty,
		MaxThreads:        maxThreads,
		CheckMemory:       checkMemory,
		EventBusCapacity:  busCapacity,
		RequestTimeout:    time.Duration(requestTimeoutSec) * time.Second,
		OverallTimeout:    time.Duration(overallTimeoutSec) * time.Second,
		SubmissionRetries: submissionRetries,
	}
}

func parseDifficulty(raw string) (proverapi.Difficulty, bool) {
	switch raw {
	case "Small":
		return proverapi.DifficultySmall, true
	case "SmallMedium":
		return proverapi.DifficultySmallMedium, true
	case "Medium":
		return proverapi.DifficultyMedium, true
	case "Large":
		return proverapi.DifficultyLarge, true
	case "ExtraLarge":
		return proverapi.DifficultyExtraLarge, true
	case "ExtraLarge2":
		return proverapi.DifficultyExtraLarge2, true
	case "ExtraLarge3":
		return proverapi.DifficultyExtraLarge3, true
	case "ExtraLarge4":
		return proverapi.DifficultyExtraLarge4, true
	case "ExtraLarge5":
		return proverapi.DifficultyExtraLarge5, true
	default:
		return 0, false
	}
}

func getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}
