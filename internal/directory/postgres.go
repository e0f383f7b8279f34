package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Yunichie/Play-This-Next/internal/auth/credentials"
	"github.com/Yunichie/Play-This-Next/internal/db"
)

const uniqueViolation = "23505"

// Postgres is the canonical directory implementation. The database's
// unique constraints are the final authority on email and Steam ID
// ownership; every violation is mapped to a typed error here.
type Postgres struct {
	db *db.DB
}

func NewPostgres(db *db.DB) *Postgres {
	return &Postgres{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (p *Postgres) FindBySteamID(ctx context.Context, steamID string) (*User, error) {
	return p.findBy(ctx, `
		SELECT u.id, u.email, COALESCE(pr.steam_id, ''), COALESCE(pr.display_name, ''),
		       COALESCE(pr.avatar_url, ''), pr.total_games, pr.total_playtime
		FROM users u
		JOIN profiles pr ON pr.user_id = u.id
		WHERE pr.steam_id = $1
	`, steamID)
}

func (p *Postgres) FindByID(ctx context.Context, userID string) (*User, error) {
	return p.findBy(ctx, `
		SELECT u.id, u.email, COALESCE(pr.steam_id, ''), COALESCE(pr.display_name, ''),
		       COALESCE(pr.avatar_url, ''), pr.total_games, pr.total_playtime
		FROM users u
		JOIN profiles pr ON pr.user_id = u.id
		WHERE u.id = $1
	`, userID)
}

func (p *Postgres) findBy(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := p.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.SteamID, &u.DisplayName,
		&u.AvatarURL, &u.TotalGames, &u.TotalPlaytime,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("directory: lookup: %w", err)
	}
	return &u, nil
}

func (p *Postgres) CreateWithSteamID(ctx context.Context, steamID string, profile Profile, secret string) (*User, error) {
	hash, version, err := credentials.HashPassword(secret)
	if err != nil {
		return nil, fmt.Errorf("directory: hash secret: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("directory: begin: %w", err)
	}
	defer tx.Rollback()

	email := fmt.Sprintf("steam_%s@playthisnext.app", steamID)

	var userID uuid.UUID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (email) VALUES ($1)
		RETURNING id
	`, email).Scan(&userID)
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent provision beat us to the same Steam ID; the
			// resolver re-reads and converts this into a sign-in.
			return nil, ErrSteamIDTaken
		}
		return nil, fmt.Errorf("directory: create user: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO credentials (user_id, password_hash, hash_version)
		VALUES ($1, $2, $3)
	`, userID, hash, version)
	if err != nil {
		return nil, fmt.Errorf("directory: create credentials: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, steam_id, display_name, avatar_url)
		VALUES ($1, $2, $3, $4)
	`, userID, steamID, profile.DisplayName, profile.AvatarURL)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSteamIDTaken
		}
		return nil, fmt.Errorf("directory: create profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSteamIDTaken
		}
		return nil, fmt.Errorf("directory: commit: %w", err)
	}

	return &User{
		ID:          userID.String(),
		Email:       email,
		SteamID:     steamID,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
	}, nil
}

func (p *Postgres) AttachSteamID(ctx context.Context, userID, steamID string, profile Profile) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE profiles
		SET steam_id = $2, display_name = $3, avatar_url = $4, updated_at = NOW()
		WHERE user_id = $1
	`, userID, steamID, profile.DisplayName, profile.AvatarURL)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSteamIDTaken
		}
		return fmt.Errorf("directory: attach steam id: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("directory: attach steam id: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DetachSteamID(ctx context.Context, userID string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE profiles
		SET steam_id = NULL, updated_at = NOW()
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("directory: detach steam id: %w", err)
	}
	return nil
}

func (p *Postgres) Authenticate(ctx context.Context, userID, secret string) error {
	var hash string
	err := p.db.QueryRowContext(ctx, `
		SELECT password_hash FROM credentials WHERE user_id = $1
	`, userID).Scan(&hash)
	if err != nil {
		// hide whether the user exists
		return ErrInvalidCredentials
	}

	if err := credentials.VerifyPassword(hash, secret); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (p *Postgres) CreateWithEmail(ctx context.Context, email, password string) (string, error) {
	hash, version, err := credentials.HashPassword(password)
	if err != nil {
		return "", err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("directory: begin: %w", err)
	}
	defer tx.Rollback()

	var userID uuid.UUID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (email) VALUES ($1)
		RETURNING id
	`, email).Scan(&userID)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("directory: create user: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO credentials (user_id, password_hash, hash_version)
		VALUES ($1, $2, $3)
	`, userID, hash, version)
	if err != nil {
		return "", fmt.Errorf("directory: create credentials: %w", err)
	}

	// Default display name mirrors the pre-Steam profile bootstrap.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, display_name)
		VALUES ($1, split_part($2, '@', 1))
	`, userID, email)
	if err != nil {
		return "", fmt.Errorf("directory: create profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("directory: commit: %w", err)
	}

	return userID.String(), nil
}

func (p *Postgres) AuthenticateEmail(ctx context.Context, email, password string) (string, error) {
	var (
		userID uuid.UUID
		hash   string
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT u.id, c.password_hash
		FROM users u
		JOIN credentials c ON c.user_id = u.id
		WHERE LOWER(u.email) = LOWER($1)
	`, email).Scan(&userID, &hash)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if err := credentials.VerifyPassword(hash, password); err != nil {
		return "", ErrInvalidCredentials
	}

	return userID.String(), nil
}

func (p *Postgres) UpdateAggregates(ctx context.Context, userID string, totalGames, totalPlaytime int) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE profiles
		SET total_games = $2, total_playtime = $3, updated_at = NOW()
		WHERE user_id = $1
	`, userID, totalGames, totalPlaytime)
	if err != nil {
		return fmt.Errorf("directory: update aggregates: %w", err)
	}
	return nil
}
