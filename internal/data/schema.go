package data

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect names accepted by Open
const (
	DialectSQLite = "sqlite"
	DialectMySQL  = "mysql"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS channels (
		bot_user_id TEXT NOT NULL,
		room_id TEXT NOT NULL,
		channel_name TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		max_message_length INTEGER NOT NULL DEFAULT 450,
		PRIMARY KEY (bot_user_id, room_id)
	)`,
	`CREATE TABLE IF NOT EXISTS command_groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS command_group_links (
		command_group_id INTEGER NOT NULL,
		bot_user_id TEXT NOT NULL,
		room_id TEXT NOT NULL,
		PRIMARY KEY (command_group_id, bot_user_id, room_id)
	)`,
	`CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		command_group_id INTEGER NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		is_regex INTEGER NOT NULL DEFAULT 0,
		should_reply INTEGER NOT NULL DEFAULT 0,
		trigger_phrase TEXT NOT NULL,
		response TEXT NOT NULL,
		cooldown_seconds INTEGER NOT NULL DEFAULT 5,
		times_used INTEGER NOT NULL DEFAULT 0,
		trigger_normal INTEGER NOT NULL DEFAULT 1,
		trigger_subs INTEGER NOT NULL DEFAULT 1,
		trigger_vips INTEGER NOT NULL DEFAULT 1,
		trigger_mods INTEGER NOT NULL DEFAULT 1,
		trigger_broadcaster INTEGER NOT NULL DEFAULT 1,
		trigger_bot_admin INTEGER NOT NULL DEFAULT 1,
		trigger_bot_owner INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_commands_group ON commands(command_group_id)`,
	`CREATE TABLE IF NOT EXISTS individual_user_replies (
		bot_user_id TEXT NOT NULL,
		room_id TEXT NOT NULL,
		trigger_user_id TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		trigger_phrase TEXT NOT NULL,
		response TEXT NOT NULL,
		PRIMARY KEY (bot_user_id, room_id, trigger_user_id, trigger_phrase)
	)`,
	`CREATE TABLE IF NOT EXISTS user_notice_responses (
		bot_user_id TEXT NOT NULL,
		room_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		response TEXT NOT NULL,
		PRIMARY KEY (bot_user_id, room_id, message_id)
	)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS channels (
		bot_user_id VARCHAR(64) NOT NULL,
		room_id VARCHAR(64) NOT NULL,
		channel_name VARCHAR(64) NOT NULL,
		enabled TINYINT(1) NOT NULL DEFAULT 1,
		max_message_length INT NOT NULL DEFAULT 450,
		PRIMARY KEY (bot_user_id, room_id)
	) DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS command_groups (
		id BIGINT NOT NULL AUTO_INCREMENT,
		name VARCHAR(255) NOT NULL,
		enabled TINYINT(1) NOT NULL DEFAULT 1,
		PRIMARY KEY (id)
	) DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS command_group_links (
		command_group_id BIGINT NOT NULL,
		bot_user_id VARCHAR(64) NOT NULL,
		room_id VARCHAR(64) NOT NULL,
		PRIMARY KEY (command_group_id, bot_user_id, room_id)
	) DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS commands (
		id BIGINT NOT NULL AUTO_INCREMENT,
		command_group_id BIGINT NOT NULL,
		enabled TINYINT(1) NOT NULL DEFAULT 1,
		is_regex TINYINT(1) NOT NULL DEFAULT 0,
		should_reply TINYINT(1) NOT NULL DEFAULT 0,
		trigger_phrase VARCHAR(255) NOT NULL,
		response TEXT NOT NULL,
		cooldown_seconds INT NOT NULL DEFAULT 5,
		times_used BIGINT NOT NULL DEFAULT 0,
		trigger_normal TINYINT(1) NOT NULL DEFAULT 1,
		trigger_subs TINYINT(1) NOT NULL DEFAULT 1,
		trigger_vips TINYINT(1) NOT NULL DEFAULT 1,
		trigger_mods TINYINT(1) NOT NULL DEFAULT 1,
		trigger_broadcaster TINYINT(1) NOT NULL DEFAULT 1,
		trigger_bot_admin TINYINT(1) NOT NULL DEFAULT 1,
		trigger_bot_owner TINYINT(1) NOT NULL DEFAULT 1,
		PRIMARY KEY (id),
		KEY idx_commands_group (command_group_id)
	) DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS individual_user_replies (
		bot_user_id VARCHAR(64) NOT NULL,
		room_id VARCHAR(64) NOT NULL,
		trigger_user_id VARCHAR(64) NOT NULL,
		enabled TINYINT(1) NOT NULL DEFAULT 1,
		trigger_phrase VARCHAR(255) NOT NULL,
		response TEXT NOT NULL,
		PRIMARY KEY (bot_user_id, room_id, trigger_user_id, trigger_phrase)
	) DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS user_notice_responses (
		bot_user_id VARCHAR(64) NOT NULL,
		room_id VARCHAR(64) NOT NULL,
		message_id VARCHAR(32) NOT NULL,
		response TEXT NOT NULL,
		PRIMARY KEY (bot_user_id, room_id, message_id)
	) DEFAULT CHARSET=utf8mb4`,
}

// migrate creates any missing tables for the dialect
func migrate(ctx context.Context, db *sql.DB, dialect string) error {
	var stmts []string
	switch dialect {
	case DialectSQLite:
		stmts = sqliteSchema
	case DialectMySQL:
		stmts = mysqlSchema
	default:
		return fmt.Errorf("unsupported dialect %q", dialect)
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
