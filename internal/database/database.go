// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/lunametrics/internal/attribution"
	"github.com/tomtom215/lunametrics/internal/config"
	"github.com/tomtom215/lunametrics/internal/logging"
)

// DB wraps the DuckDB connection and provides the engagement engine.
type DB struct {
	conn       *sql.DB
	cfg        *config.DatabaseConfig
	engine     config.EngineConfig
	classifier *attribution.Classifier
}

// New opens the event store, creates the engine's tables and returns a DB
// configured with the given engine settings.
func New(cfg *config.DatabaseConfig, engine config.EngineConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	preserveOrder := "true"
	if !cfg.PreserveInsertionOrder {
		preserveOrder = "false"
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&preserve_insertion_order=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, maxMemory, preserveOrder)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if engine.QueryTimeout <= 0 {
		engine.QueryTimeout = 30 * time.Second
	}
	if len(engine.ActivityEventTypes) == 0 {
		engine.ActivityEventTypes = config.DefaultEngineConfig().ActivityEventTypes
	}
	if engine.TestEmailDomain == "" && engine.TestEmailLiteral == "" {
		defaults := config.DefaultEngineConfig()
		engine.TestEmailDomain = defaults.TestEmailDomain
		engine.TestEmailLiteral = defaults.TestEmailLiteral
	}

	db := &DB{
		conn:       conn,
		cfg:        cfg,
		engine:     engine,
		classifier: attribution.NewClassifier(engine.ProductDomains),
	}

	db.configureConnectionPool(numThreads)

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// configureConnectionPool sizes the pool for parallel read queries.
func (db *DB) configureConnectionPool(threads int) {
	db.conn.SetMaxOpenConns(threads * 2)
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Conn returns the underlying SQL database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Engine returns the engine settings the DB was opened with.
func (db *DB) Engine() config.EngineConfig {
	return db.engine
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}
	cancel()
	return db.conn.Close()
}

// Ping checks if the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return errorContext("ping", fmt.Errorf("database connection is nil"))
	}
	return errorContext("ping", db.conn.PingContext(ctx))
}

// initialize creates tables and indexes and flushes the WAL.
func (db *DB) initialize() error {
	if err := db.createTables(); err != nil {
		return err
	}
	if err := db.createIndexes(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after schema initialization")
	}
	return nil
}
