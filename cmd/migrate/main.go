package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"sudooom.date.chat/internal/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	migrationsDir := flag.String("path", "migrations", "迁移文件目录")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// config.Load 会读取 .env，CHAT_DATABASE_* 可覆盖连接信息
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	absPath, err := filepath.Abs(*migrationsDir)
	if err != nil {
		logger.Error("Invalid migrations path", "path", *migrationsDir, "error", err)
		os.Exit(1)
	}
	if info, err := os.Stat(absPath); err != nil || !info.IsDir() {
		logger.Error("Migrations directory not found", "path", absPath)
		os.Exit(1)
	}

	m, err := migrate.New("file://"+absPath, cfg.Database.DSN())
	if err != nil {
		logger.Error("Failed to create migrator", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	cmd := "up"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			logger.Error("Failed to read migration version", "error", verr)
			os.Exit(1)
		}
		logger.Info("Migration version", "version", version, "dirty", dirty)
		return
	default:
		logger.Error("Unknown command, expected up, down or version", "command", cmd)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Migration failed", "command", cmd, "error", err)
		os.Exit(1)
	}
	logger.Info("Migration completed", "command", cmd)
}
