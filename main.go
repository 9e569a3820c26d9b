package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/open-sauced/git-quality/pkg/database"
	"github.com/open-sauced/git-quality/pkg/github"
	"github.com/open-sauced/git-quality/pkg/gitlog"
	"github.com/open-sauced/git-quality/pkg/providers"
	"github.com/open-sauced/git-quality/pkg/server"
)

type config struct {
	NeverEvictRepos []string `yaml:"never-evict-repos"`
	CodeSuffix      string   `yaml:"code-suffix"`
}

func main() {
	var logger *zap.Logger
	var err error

	// Initialize & parse flags
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to .yaml file config")
	debugMode := flag.Bool("debug", false, "run in debug mode")
	flag.Parse()

	if *debugMode {
		logger, err = zap.NewDevelopment()
		if err != nil {
			log.Fatalf("Could not initiate debug zap logger: %v", err)
		}
	} else {
		logger, err = zap.NewProduction()
		if err != nil {
			log.Fatalf("Could not initiate production zap logger: %v", err)
		}
	}

	sugarLogger := logger.Sugar()
	sugarLogger.Infof("initiated zap logger with level: %d", sugarLogger.Level())

	// Load the environment variables from the .env file
	err = godotenv.Load()
	if err != nil {
		sugarLogger.Warnf("Failed to load the dot env file. Continuing with existing environment: %v", err)
	}

	// Envs for the quality database handler
	databaseHost := os.Getenv("DATABASE_HOST")
	databasePort := os.Getenv("DATABASE_PORT")
	databaseUser := os.Getenv("DATABASE_USER")
	databasePwd := os.Getenv("DATABASE_PASSWORD")
	databaseDbName := os.Getenv("DATABASE_DBNAME")

	// Env vars for the quality server
	serverPort := os.Getenv("SERVER_PORT")
	githubToken := os.Getenv("GITHUB_TOKEN")

	// User specify which git provider to use
	gitProvider := os.Getenv("GIT_PROVIDER")

	// Initializes configuration using a provided yaml file
	var cfg config
	if configPath != "" {
		configFile, err := os.ReadFile(configPath)
		if err != nil {
			sugarLogger.Fatalf("Could not read yaml configuration file: %s", err.Error())
		}

		err = yaml.Unmarshal(configFile, &cfg)
		if err != nil {
			sugarLogger.Fatalf("Could not unmarshal configuration file: %s", err.Error())
		}
		sugarLogger.Infof("Configuration for server was set using yaml file")
	}

	neverEvictRepos := make(map[string]bool)
	for _, repo := range cfg.NeverEvictRepos {
		neverEvictRepos[repo] = true
	}

	// Patterns are compiled once and shared by every request
	patterns, err := gitlog.NewPatterns(cfg.CodeSuffix)
	if err != nil {
		sugarLogger.Fatalf("Could not compile log patterns: %s", err.Error())
	}
	sugarLogger.Infow("Compiled log patterns", "version", patterns.Version, "code_suffix", patterns.CodeSuffix)

	// Initialize the database handler
	qualityDb, err := database.NewQualityDbHandler(databaseHost, databasePort, databaseUser, databasePwd, databaseDbName)
	if err != nil {
		sugarLogger.Fatalf("Could not connect to database: %s", err.Error())
	}
	defer qualityDb.Close()

	if err := qualityDb.EnsureSchema(context.Background()); err != nil {
		sugarLogger.Fatalf("Could not create database schema: %s", err.Error())
	}

	var source providers.Source
	switch gitProvider {
	case "cache":
		sugarLogger.Infof("Initiating cache git provider")

		// Env vars for the git provider
		cacheDir := os.Getenv("CACHE_DIR")
		minFreeDisk := os.Getenv("MIN_FREE_DISK_GB")

		minFreeDiskUint64, err := strconv.ParseUint(minFreeDisk, 10, 64)
		if err != nil {
			sugarLogger.Fatalf("Could not parse MIN_FREE_DISK_GB: %s", err.Error())
		}

		source, err = providers.NewCachedSource(cacheDir, minFreeDiskUint64, sugarLogger, neverEvictRepos)
		if err != nil {
			sugarLogger.Fatalf("Could not create a cache git provider: %s", err.Error())
		}
	case "memory":
		sugarLogger.Infof("Initiating in-memory git provider")
		source = providers.NewInMemorySource(sugarLogger)
	default:
		sugarLogger.Fatal("must specify the GIT_PROVIDER env variable (i.e. cache, memory)")
	}

	if githubToken == "" {
		sugarLogger.Warnf("GITHUB_TOKEN is not set. Organisation requests use anonymous, rate limited access")
	}
	githubClient := github.NewTokenClient(context.Background(), githubToken)

	parser := gitlog.NewParser(patterns, sugarLogger)
	qualityServer := server.NewQualityServer(qualityDb, source, parser, githubClient, sugarLogger)
	if err := qualityServer.Run(serverPort); err != nil {
		sugarLogger.Fatalf("Server stopped: %s", err.Error())
	}
}
