package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/gmsas95/skysense/internal/app"
	"github.com/gmsas95/skysense/internal/cli"
	"github.com/gmsas95/skysense/internal/config"
	"github.com/gmsas95/skysense/internal/metrics"
	"github.com/gmsas95/skysense/internal/store"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	version    = "dev"
)

func main() {
	flag.Parse()
	cli.Version = version

	args := flag.Args()
	command := "run"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "help", "--help", "-h":
		cli.PrintExtendedHelp(os.Stdout)
		return
	case "version", "--version", "-v":
		fmt.Printf("SkySense version %s\n", version)
		return
	}

	logger := newLogger()
	defer logger.Sync()

	if err := config.LoadEnvFiles(); err != nil {
		logger.Warn("Failed to load .env files", zap.Error(err))
	}

	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	switch command {
	case "doctor":
		if cli.HandleDoctorCommand(os.Stdout, cfg) > 0 {
			os.Exit(1)
		}
		return
	case "token":
		exitOnError(cli.HandleTokenCommand(os.Stdout, args, cfg))
		return
	}

	st, err := store.New(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	switch command {
	case "status":
		exitOnError(cli.HandleStatusCommand(os.Stdout, cfg, st))
		return
	case "markers":
		exitOnError(cli.HandleMarkersCommand(os.Stdout, args, cfg, st))
		return
	}

	m := metrics.Default()
	application, err := app.New(cfg, st, logger, m, version, app.DefaultOptions(cfg, logger, m))
	if err != nil {
		logger.Fatal("Failed to initialize app", zap.Error(err))
	}

	switch command {
	case "run":
		logger.Info("Starting SkySense", zap.String("version", version))
		application.RunServer()
	case "profile":
		exitOnError(cli.HandleProfileCommand(context.Background(), os.Stdout, args, application))
		application.Stop()
	case "doses":
		exitOnError(cli.HandleDosesCommand(os.Stdout, args, application))
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		cli.PrintExtendedHelp(os.Stdout)
		os.Exit(2)
	}
}

// newLogger is human readable on a terminal and JSON otherwise
func newLogger() *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return logger
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
