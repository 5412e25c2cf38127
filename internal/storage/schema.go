package storage

import "strings"

const schemaVersion = 2

// Схема общая для обоих диалектов, отличаются только типы
const schema = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    applied_at {{TS}} NOT NULL
);

-- Пользователи
CREATE TABLE IF NOT EXISTS users (
    id {{ID}},
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    created_at {{TS}} NOT NULL
);

-- Журналы (торговые счета)
CREATE TABLE IF NOT EXISTS journals (
    id {{ID}},
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    account_type TEXT NOT NULL DEFAULT 'personal',
    initial_balance {{REAL}} NOT NULL DEFAULT 0,
    currency TEXT NOT NULL DEFAULT 'USD',
    is_active BOOLEAN NOT NULL DEFAULT FALSE,
    is_blown BOOLEAN NOT NULL DEFAULT FALSE,
    is_passed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at {{TS}} NOT NULL,
    updated_at {{TS}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journals_user ON journals(user_id);
-- Не больше одного активного журнала на пользователя
CREATE UNIQUE INDEX IF NOT EXISTS ux_journals_active ON journals(user_id) WHERE is_active;

-- Сделки
CREATE TABLE IF NOT EXISTS trades (
    id {{ID}},
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    journal_id INTEGER NOT NULL REFERENCES journals(id) ON DELETE CASCADE,
    symbol TEXT NOT NULL,
    type TEXT NOT NULL,
    entry_price {{REAL}} NOT NULL,
    exit_price {{REAL}},
    entry_time {{TS}} NOT NULL,
    exit_time {{TS}},
    quantity {{REAL}} NOT NULL,
    pnl {{REAL}},
    pnl_percent {{REAL}},
    planned_risk {{REAL}},
    r_multiple {{REAL}},
    stop_loss {{REAL}},
    take_profit {{REAL}},
    fees {{REAL}},
    setup_type TEXT NOT NULL DEFAULT '',
    emotions TEXT NOT NULL DEFAULT '[]',
    checklist_snapshots TEXT NOT NULL DEFAULT '[]',
    screenshots TEXT NOT NULL DEFAULT '[]',
    voice_notes TEXT NOT NULL DEFAULT '[]',
    notes TEXT NOT NULL DEFAULT '',
    created_at {{TS}} NOT NULL,
    updated_at {{TS}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_user ON trades(user_id);
CREATE INDEX IF NOT EXISTS idx_trades_journal ON trades(journal_id, entry_time);

-- Чек-листы, пункты хранятся JSON-массивом
CREATE TABLE IF NOT EXISTS checklists (
    id {{ID}},
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    type TEXT NOT NULL,
    items TEXT NOT NULL DEFAULT '[]',
    completion_rate {{REAL}} NOT NULL DEFAULT 0,
    created_at {{TS}} NOT NULL,
    updated_at {{TS}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checklists_user ON checklists(user_id);

-- Типы сетапов
CREATE TABLE IF NOT EXISTS setup_types (
    id {{ID}},
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    description TEXT,
    UNIQUE(user_id, name)
);

-- Дни без сделок
CREATE TABLE IF NOT EXISTS no_trade_days (
    id {{ID}},
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    journal_id INTEGER REFERENCES journals(id) ON DELETE SET NULL,
    date TEXT NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    screenshot_url TEXT,
    voice_note_url TEXT,
    created_at {{TS}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_no_trade_days_user ON no_trade_days(user_id, date);

-- v2: одна запись на дату и журнал; дубликаты из v1 схлопываются в самую раннюю
DELETE FROM no_trade_days WHERE id NOT IN (
    SELECT MIN(id) FROM no_trade_days GROUP BY user_id, date, COALESCE(journal_id, 0)
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_no_trade_days ON no_trade_days(user_id, date, (COALESCE(journal_id, 0)));

-- Настройки пользователя
CREATE TABLE IF NOT EXISTS user_settings (
    user_id INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    initial_balance {{REAL}} NOT NULL DEFAULT 0,
    currency TEXT NOT NULL DEFAULT 'USD',
    date_format TEXT NOT NULL DEFAULT 'YYYY-MM-DD',
    preferences TEXT NOT NULL DEFAULT '{}',
    schema_version INTEGER NOT NULL DEFAULT 1,
    updated_at {{TS}} NOT NULL
);

-- Ежедневные срезы по журналам
CREATE TABLE IF NOT EXISTS daily_snapshots (
    journal_id INTEGER NOT NULL REFERENCES journals(id) ON DELETE CASCADE,
    date TEXT NOT NULL,
    trades INTEGER NOT NULL,
    wins INTEGER NOT NULL,
    losses INTEGER NOT NULL,
    pnl {{REAL}} NOT NULL,
    balance {{REAL}} NOT NULL,
    created_at {{TS}} NOT NULL,
    PRIMARY KEY (journal_id, date)
);
`

func schemaFor(driver string) string {
	var r *strings.Replacer

	if driver == DriverPostgres {
		r = strings.NewReplacer(
			"{{ID}}", "BIGSERIAL PRIMARY KEY",
			"{{TS}}", "TIMESTAMPTZ",
			"{{REAL}}", "DOUBLE PRECISION",
		)
	} else {
		r = strings.NewReplacer(
			"{{ID}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{TS}}", "DATETIME",
			"{{REAL}}", "REAL",
		)
	}

	return r.Replace(schema)
}
