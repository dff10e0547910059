// Package seed loads demo users and swaps from YAML into an empty database.
// Swaps are driven through the swap service so counters, notifications and
// rating jobs match what the API would have produced.
package seed

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/garnizeh/skillswap/internal/auth"
	"github.com/garnizeh/skillswap/internal/swap"
	"github.com/garnizeh/skillswap/pkg/models"
	"github.com/garnizeh/skillswap/pkg/repository"
	"gopkg.in/yaml.v3"
)

type File struct {
	Users []User `yaml:"users"`
	Swaps []Swap `yaml:"swaps"`
}

type User struct {
	Name          string                `yaml:"name"`
	Email         string                `yaml:"email"`
	Password      string                `yaml:"password"`
	Bio           string                `yaml:"bio"`
	Location      string                `yaml:"location"`
	ProfilePhoto  string                `yaml:"profile_photo"`
	IsVerified    bool                  `yaml:"is_verified"`
	IsAdmin       bool                  `yaml:"is_admin"`
	IsPublic      *bool                 `yaml:"is_public"`
	SkillsOffered []models.SkillOffered `yaml:"skills_offered"`
	SkillsWanted  []models.SkillWanted  `yaml:"skills_wanted"`
}

type Swap struct {
	Requester      string            `yaml:"requester"`
	Recipient      string            `yaml:"recipient"`
	RequestedSkill models.Skill      `yaml:"requested_skill"`
	OfferedSkill   models.Skill      `yaml:"offered_skill"`
	Message        string            `yaml:"message"`
	ScheduledIn    time.Duration     `yaml:"scheduled_in"`
	Status         models.SwapStatus `yaml:"status"`
	Feedback       *models.Feedback  `yaml:"feedback"`
}

// Result counts what Apply created.
type Result struct {
	Users int
	Swaps int
}

// Load reads every *.yaml file in dir and concatenates their contents.
func Load(fsys fs.FS, dir string) (*File, error) {
	names, err := fs.Glob(fsys, dir+"/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("list seed files: %w", err)
	}

	out := &File{}
	for _, name := range names {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read seed %s: %w", name, err)
		}
		var f File
		if err := yaml.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("decode seed %s: %w", name, err)
		}
		out.Users = append(out.Users, f.Users...)
		out.Swaps = append(out.Swaps, f.Swaps...)
	}

	return out, nil
}

// steps lists the transitions that take a new swap to status, with the
// party that performs each one.
func steps(status models.SwapStatus) ([]models.SwapStatus, error) {
	switch status {
	case "", models.StatusPending:
		return nil, nil
	case models.StatusAccepted, models.StatusRejected, models.StatusCancelled:
		return []models.SwapStatus{status}, nil
	case models.StatusCompleted:
		return []models.SwapStatus{models.StatusAccepted, models.StatusCompleted}, nil
	}
	return nil, fmt.Errorf("unknown swap status %q", status)
}

// Apply creates the users that do not exist yet and then the swaps. Users
// already present are reused so a second run does not duplicate them, but
// swaps are always created.
func Apply(ctx context.Context, f *File, users repository.UserRepo, swaps *swap.Service, bcryptCost int, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var res Result
	ids := make(map[string]int64, len(f.Users))
	for _, su := range f.Users {
		existing, err := users.GetByEmail(ctx, su.Email)
		if err != nil {
			return res, err
		}
		if existing != nil {
			ids[su.Email] = existing.ID
			continue
		}

		id, err := createUser(ctx, users, su, bcryptCost)
		if err != nil {
			return res, fmt.Errorf("seed user %s: %w", su.Email, err)
		}
		ids[su.Email] = id
		res.Users++
		logger.Debug("seeded user", "email", su.Email, "id", id)
	}

	for i, ss := range f.Swaps {
		requester, ok := ids[ss.Requester]
		if !ok {
			return res, fmt.Errorf("seed swap %d: unknown requester %s", i, ss.Requester)
		}
		recipient, ok := ids[ss.Recipient]
		if !ok {
			return res, fmt.Errorf("seed swap %d: unknown recipient %s", i, ss.Recipient)
		}
		path, err := steps(ss.Status)
		if err != nil {
			return res, fmt.Errorf("seed swap %d: %w", i, err)
		}

		in := swap.CreateInput{
			RequesterID:    requester,
			RecipientID:    recipient,
			RequestedSkill: ss.RequestedSkill,
			OfferedSkill:   ss.OfferedSkill,
			Message:        ss.Message,
		}
		if ss.ScheduledIn > 0 {
			at := time.Now().Add(ss.ScheduledIn).UTC()
			in.ScheduledDate = &at
		}
		sw, err := swaps.Create(ctx, in)
		if err != nil {
			return res, fmt.Errorf("seed swap %d: %w", i, err)
		}

		for _, to := range path {
			// the recipient answers the request; the requester closes it
			caller := recipient
			if to == models.StatusCancelled || to == models.StatusCompleted {
				caller = requester
			}
			var fb *models.Feedback
			if to == models.StatusCompleted {
				fb = ss.Feedback
			}
			if _, err := swaps.Transition(ctx, sw.ID, caller, to, fb); err != nil {
				return res, fmt.Errorf("seed swap %d to %s: %w", i, to, err)
			}
		}
		res.Swaps++
	}

	return res, nil
}

func createUser(ctx context.Context, users repository.UserRepo, su User, bcryptCost int) (int64, error) {
	if su.Password == "" {
		return 0, fmt.Errorf("password is required")
	}
	hash, err := auth.HashPassword(su.Password, bcryptCost)
	if err != nil {
		return 0, err
	}

	u := models.NewUser(su.Name, su.Email, hash)
	u.Bio = su.Bio
	u.Location = su.Location
	if su.ProfilePhoto != "" {
		photo := su.ProfilePhoto
		u.ProfilePhoto = &photo
	}
	if su.IsPublic != nil {
		u.IsPublic = *su.IsPublic
	}
	if su.SkillsOffered != nil {
		u.SkillsOffered = su.SkillsOffered
	}
	if su.SkillsWanted != nil {
		u.SkillsWanted = su.SkillsWanted
	}
	u.IsAdmin = su.IsAdmin
	u.IsVerified = su.IsVerified

	return users.CreateUser(ctx, u)
}
