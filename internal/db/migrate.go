package db

import (
	"context"
	"database/sql"
)

const schemaMigration = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE IF NOT EXISTS users (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    email text NOT NULL,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_unique
ON users (LOWER(email));

CREATE TABLE IF NOT EXISTS credentials (
    user_id uuid PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    password_hash text NOT NULL,
    hash_version text NOT NULL,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS profiles (
    user_id uuid PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    steam_id text,
    display_name text,
    avatar_url text,
    total_games integer NOT NULL DEFAULT 0,
    total_playtime integer NOT NULL DEFAULT 0,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW(),
    CONSTRAINT profiles_steam_id_unique UNIQUE (steam_id)
);

CREATE TABLE IF NOT EXISTS user_games (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    appid bigint NOT NULL,
    name text NOT NULL,
    img_url text,
    playtime_forever integer NOT NULL DEFAULT 0,
    playtime_2weeks integer NOT NULL DEFAULT 0,
    last_played timestamptz,
    status text NOT NULL DEFAULT 'backlog',
    is_favorite boolean NOT NULL DEFAULT false,
    user_rating integer,
    user_review text,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW(),
    CONSTRAINT user_games_user_app_unique UNIQUE (user_id, appid)
);

CREATE INDEX IF NOT EXISTS user_games_user_id_idx
ON user_games (user_id);
`

// RunMigration applies the idempotent bootstrap schema. The unique
// constraint on profiles.steam_id is the final authority on external
// identity ownership; the resolver depends on it.
func RunMigration(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaMigration)
	return err
}
