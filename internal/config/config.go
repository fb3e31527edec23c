package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Client side.
	ServerWSURL        string
	AssemblyAIKey      string
	DeepgramAPIKey     string
	DeepgramTTSModel   string
	AnswerTimeout      time.Duration
	SettleDelay        time.Duration
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string
	ResultsDir         string

	// Development interview server.
	HTTPAddress     string
	CerebrasKey     string
	CerebrasModelID string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded")
	}

	wsURL := os.Getenv("SERVER_WS_URL")
	if wsURL == "" {
		wsURL = "ws://localhost:8080/ws"
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	assemblyAIKey := os.Getenv("ASSEMBLYAI_API_KEY")
	if assemblyAIKey == "" {
		log.Println("Warning: ASSEMBLYAI_API_KEY not set - speech capture will not work")
	}

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if deepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - speech synthesis will not work")
	}
	deepgramModel := os.Getenv("DEEPGRAM_TTS_MODEL")

	cerebrasKey := os.Getenv("CEREBRAS_API_KEY")
	cerebrasModel := os.Getenv("CEREBRAS_MODEL_ID")
	if cerebrasModel == "" {
		cerebrasModel = "gpt-oss-120b"
	}

	resultsDir := os.Getenv("RESULTS_DIR")
	if resultsDir == "" {
		resultsDir = "results"
	}

	bucket := os.Getenv("SUPABASE_BUCKET")
	if bucket == "" {
		bucket = "interview-results"
	}

	log.Printf("config: SERVER_WS_URL=%s HTTP_ADDRESS=%s", wsURL, addr)
	return Config{
		ServerWSURL:        wsURL,
		AssemblyAIKey:      assemblyAIKey,
		DeepgramAPIKey:     deepgramKey,
		DeepgramTTSModel:   deepgramModel,
		AnswerTimeout:      secondsEnv("ANSWER_TIMEOUT_SECONDS", 60),
		SettleDelay:        millisEnv("SETTLE_DELAY_MS", 1000),
		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:     bucket,
		ResultsDir:         resultsDir,
		HTTPAddress:        addr,
		CerebrasKey:        cerebrasKey,
		CerebrasModelID:    cerebrasModel,
	}
}

func secondsEnv(key string, def int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
		log.Printf("Warning: invalid %s=%q, using %ds", key, v, def)
	}
	return time.Duration(def) * time.Second
}

func millisEnv(key string, def int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Millisecond
		}
		log.Printf("Warning: invalid %s=%q, using %dms", key, v, def)
	}
	return time.Duration(def) * time.Millisecond
}
