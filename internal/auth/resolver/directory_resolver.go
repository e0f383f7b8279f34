package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/Yunichie/Play-This-Next/internal/auth"
	"github.com/Yunichie/Play-This-Next/internal/auth/credentials"
	"github.com/Yunichie/Play-This-Next/internal/auth/linkstate"
	"github.com/Yunichie/Play-This-Next/internal/directory"
)

// DirectoryResolver is the canonical resolver, backed by the user
// directory. The directory's unique constraint on steam_id is treated as
// the final authority: a write conflict is re-read and converted into the
// terminal state a pre-existing row would have produced.
type DirectoryResolver struct {
	dir     directory.Directory
	deriver *credentials.Deriver
}

func NewDirectoryResolver(dir directory.Directory, deriver *credentials.Deriver) *DirectoryResolver {
	return &DirectoryResolver{dir: dir, deriver: deriver}
}

func (r *DirectoryResolver) Resolve(
	ctx context.Context,
	identity *auth.Identity,
	mode linkstate.Mode,
	authedUserID string,
) (Result, error) {
	if identity == nil || identity.SteamID == "" {
		return Result{}, errors.New("resolver: identity is empty")
	}

	existing, err := r.dir.FindBySteamID(ctx, identity.SteamID)
	if err != nil {
		return Result{}, err
	}

	switch mode {
	case linkstate.ModeLink:
		return r.resolveLink(ctx, identity, existing, authedUserID)
	case linkstate.ModeLogin:
		return r.resolveLogin(ctx, identity, existing)
	default:
		return Result{}, fmt.Errorf("resolver: unknown mode %q", mode)
	}
}

func (r *DirectoryResolver) resolveLink(
	ctx context.Context,
	identity *auth.Identity,
	existing *directory.User,
	authedUserID string,
) (Result, error) {
	if authedUserID == "" {
		return Result{}, ErrNotAuthenticated
	}

	if existing != nil {
		if existing.ID != authedUserID {
			return Result{}, ErrConflict
		}
		return Result{Outcome: OutcomeAlreadyLinkedToSelf, UserID: authedUserID}, nil
	}

	err := r.dir.AttachSteamID(ctx, authedUserID, identity.SteamID, directory.Profile{
		DisplayName: identity.DisplayName,
		AvatarURL:   identity.AvatarURL,
	})
	if errors.Is(err, directory.ErrSteamIDTaken) {
		// Lost a race on the unique constraint. Re-read and decide as if
		// the row had been there all along.
		owner, lookupErr := r.dir.FindBySteamID(ctx, identity.SteamID)
		if lookupErr != nil {
			return Result{}, lookupErr
		}
		if owner == nil || owner.ID != authedUserID {
			return Result{}, ErrConflict
		}
		return Result{Outcome: OutcomeAlreadyLinkedToSelf, UserID: authedUserID}, nil
	}
	if err != nil {
		return Result{}, err
	}

	return Result{Outcome: OutcomeLinked, UserID: authedUserID}, nil
}

func (r *DirectoryResolver) resolveLogin(
	ctx context.Context,
	identity *auth.Identity,
	existing *directory.User,
) (Result, error) {
	if existing != nil {
		return Result{Outcome: OutcomeSignedIn, UserID: existing.ID}, nil
	}

	secret, err := r.deriver.Derive(identity.SteamID)
	if err != nil {
		return Result{}, err
	}

	created, err := r.dir.CreateWithSteamID(ctx, identity.SteamID, directory.Profile{
		DisplayName: identity.DisplayName,
		AvatarURL:   identity.AvatarURL,
	}, secret)
	if errors.Is(err, directory.ErrSteamIDTaken) {
		// Concurrent provision for the same Steam ID. The surviving row
		// is authoritative; this attempt becomes a sign-in.
		owner, lookupErr := r.dir.FindBySteamID(ctx, identity.SteamID)
		if lookupErr != nil {
			return Result{}, lookupErr
		}
		if owner == nil {
			return Result{}, fmt.Errorf("resolver: steam id claimed but owner not found")
		}
		return Result{Outcome: OutcomeSignedIn, UserID: owner.ID}, nil
	}
	if err != nil {
		return Result{}, err
	}

	return Result{Outcome: OutcomeProvisioned, UserID: created.ID}, nil
}
