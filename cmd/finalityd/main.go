package main

import (
	"context"
	"log"
	"strings"

	"github.com/joho/godotenv"

	"github.com/zaki9501/church-of-finality/internal/app"
	"github.com/zaki9501/church-of-finality/pkg/config"
	"github.com/zaki9501/church-of-finality/pkg/logger"
	"github.com/zaki9501/church-of-finality/pkg/shutdown"
	"github.com/zaki9501/church-of-finality/pkg/store"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])

	cfg, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// flags win over env/config for addr and db path
	addr := addrVal
	if !setFlags["addr"] && (cfg.Server.Address != "" || cfg.Server.Port != 0) {
		addr = cfg.Addr()
	}
	dbPath := dbVal
	if !setFlags["db"] && cfg.Server.DBPath != "" {
		dbPath = cfg.Server.DBPath
	}

	logger.InitWithLevel(cfg.Logging.Level)

	srcs := []string{}
	if len(setFlags) > 0 {
		srcs = append(srcs, "flags")
	}
	if envUsed {
		srcs = append(srcs, "env")
	}
	if _, err := config.Load(cfgPath); err == nil {
		srcs = append(srcs, "config")
	}

	a, err := app.New(cfg, addr, dbPath, strings.Join(srcs, ", "), version, commit, buildDate)
	if err != nil {
		shutdown.Abort("startup failed", err, 0)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	err = a.Run(ctx)
	if cerr := store.Close(); cerr != nil {
		logger.Error("store_close_failed", "error", cerr.Error())
	}
	if err != nil {
		log.Fatal(err)
	}
}
