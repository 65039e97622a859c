package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"

	"pagechat/pkg/config"
	"pagechat/server"
)

func main() {
	_ = godotenv.Load()

	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("config error: %v", e)
		}
		log.Fatal("invalid configuration")
	}

	if cfg.LLM.APIKey == "" {
		log.Fatal("OPENAI_API_KEY is required")
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("Starting pagechat server on %s (store: %s)", cfg.Server.Addr, cfg.Store.Dir)
	if err := srv.Run(); err != nil {
		log.Fatal(err)
	}
}
