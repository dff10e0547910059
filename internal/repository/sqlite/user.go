package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/garnizeh/skillswap/pkg/models"
	"github.com/garnizeh/skillswap/pkg/repository"
)

const userColumns = `u.id, u.name, u.email, u.password_hash, u.location, u.bio, u.profile_photo,
	u.availability, u.avail_weekdays, u.avail_weekends, u.avail_evenings, u.avail_custom,
	u.is_public, u.rating_average, u.rating_count, u.swaps_completed, u.swaps_pending,
	u.is_admin, u.is_verified, u.is_banned, u.ban_reason, u.last_active, u.created, u.updated`

func scanUser(s scanner) (*models.User, error) {
	var (
		u                        models.User
		availability             string
		photo, banReason         sql.NullString
		lastActive, created, upd int64
	)
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Location, &u.Bio, &photo,
		&availability, &u.AvailabilityDetails.Weekdays, &u.AvailabilityDetails.Weekends, &u.AvailabilityDetails.Evenings, &u.AvailabilityDetails.CustomSchedule,
		&u.IsPublic, &u.Rating.Average, &u.Rating.Count, &u.TotalSwaps.Completed, &u.TotalSwaps.Pending,
		&u.IsAdmin, &u.IsVerified, &u.IsBanned, &banReason, &lastActive, &created, &upd)
	if err != nil {
		return nil, err
	}

	u.Availability = models.Availability(availability)
	u.ProfilePhoto = nullString(photo)
	u.BanReason = nullString(banReason)
	u.LastActive = fromMillis(lastActive)
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(upd)
	u.SkillsOffered = []models.SkillOffered{}
	u.SkillsWanted = []models.SkillWanted{}

	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *SQLiteRepo) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	if u == nil {
		return 0, fmt.Errorf("user is nil")
	}

	availability := u.Availability
	if availability == "" {
		availability = models.Available
	}

	var id int64
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		ts := now()
		res, err := tx.ExecContext(ctx, `INSERT INTO users (name, email, password_hash, location, bio, profile_photo, availability,
			avail_weekdays, avail_weekends, avail_evenings, avail_custom, is_public, is_admin, is_verified, last_active, created, updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			strings.TrimSpace(u.Name), normalizeEmail(u.Email), u.PasswordHash, u.Location, u.Bio, toNullString(u.ProfilePhoto), string(availability),
			u.AvailabilityDetails.Weekdays, u.AvailabilityDetails.Weekends, u.AvailabilityDetails.Evenings, u.AvailabilityDetails.CustomSchedule,
			u.IsPublic, u.IsAdmin, u.IsVerified, ts, ts, ts)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		if err := replaceSkillsOffered(ctx, tx, id, u.SkillsOffered); err != nil {
			return err
		}
		return replaceSkillsWanted(ctx, tx, id, u.SkillsWanted)
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

func (r *SQLiteRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return getUser(ctx, r.conn.GetConn(), `u.id = ?`, id)
}

func (r *SQLiteRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return getUser(ctx, r.conn.GetConn(), `u.email = ?`, normalizeEmail(email))
}

func getUser(ctx context.Context, q querier, where string, arg any) (*models.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE `+where, arg)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("get user: %w", err)
	}

	users := []models.User{*u}
	if err := loadSkills(ctx, q, users); err != nil {
		return nil, err
	}

	return &users[0], nil
}

// loadSkills attaches offered and wanted skills to users. It must run after
// the user rows have been closed.
func loadSkills(ctx context.Context, q querier, users []models.User) error {
	if len(users) == 0 {
		return nil
	}

	index := make(map[int64]int, len(users))
	ids := make([]int64, len(users))
	for i := range users {
		index[users[i].ID] = i
		ids[i] = users[i].ID
	}
	in, args := inClause(ids)

	rows, err := q.QueryContext(ctx, `SELECT user_id, name, level, description FROM skills_offered WHERE user_id IN (`+in+`) ORDER BY id`, args...)
	if err != nil {
		return fmt.Errorf("load skills offered: %w", err)
	}
	for rows.Next() {
		var uid int64
		var s models.SkillOffered
		if err := rows.Scan(&uid, &s.Name, &s.Level, &s.Description); err != nil {
			rows.Close()
			return err
		}
		i := index[uid]
		users[i].SkillsOffered = append(users[i].SkillsOffered, s)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, `SELECT user_id, name, priority, description FROM skills_wanted WHERE user_id IN (`+in+`) ORDER BY id`, args...)
	if err != nil {
		return fmt.Errorf("load skills wanted: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var uid int64
		var s models.SkillWanted
		if err := rows.Scan(&uid, &s.Name, &s.Priority, &s.Description); err != nil {
			return err
		}
		i := index[uid]
		users[i].SkillsWanted = append(users[i].SkillsWanted, s)
	}

	return rows.Err()
}

func replaceSkillsOffered(ctx context.Context, tx *sql.Tx, userID int64, skills []models.SkillOffered) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM skills_offered WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear skills offered: %w", err)
	}
	for _, s := range skills {
		level := s.Level
		if level == "" {
			level = models.LevelIntermediate
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO skills_offered (user_id, name, level, description) VALUES (?, ?, ?, ?)`,
			userID, strings.TrimSpace(s.Name), string(level), s.Description); err != nil {
			return fmt.Errorf("insert skill offered: %w", err)
		}
	}
	return nil
}

func replaceSkillsWanted(ctx context.Context, tx *sql.Tx, userID int64, skills []models.SkillWanted) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM skills_wanted WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear skills wanted: %w", err)
	}
	for _, s := range skills {
		priority := s.Priority
		if priority == "" {
			priority = models.PriorityMedium
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO skills_wanted (user_id, name, priority, description) VALUES (?, ?, ?, ?)`,
			userID, strings.TrimSpace(s.Name), string(priority), s.Description); err != nil {
			return fmt.Errorf("insert skill wanted: %w", err)
		}
	}
	return nil
}

// UpdateProfile writes the non-nil fields of p and refreshes last_active.
func (r *SQLiteRepo) UpdateProfile(ctx context.Context, id int64, p repository.ProfileUpdate) error {
	ts := now()
	sets := []string{"updated = ?", "last_active = ?"}
	args := []any{ts, ts}

	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Name != nil {
		add("name", strings.TrimSpace(*p.Name))
	}
	if p.Location != nil {
		add("location", *p.Location)
	}
	if p.Bio != nil {
		add("bio", *p.Bio)
	}
	if p.ProfilePhoto != nil {
		add("profile_photo", *p.ProfilePhoto)
	}
	if p.Availability != nil {
		add("availability", string(*p.Availability))
	}
	if d := p.AvailabilityDetails; d != nil {
		add("avail_weekdays", d.Weekdays)
		add("avail_weekends", d.Weekends)
		add("avail_evenings", d.Evenings)
		add("avail_custom", d.CustomSchedule)
	}
	if p.IsPublic != nil {
		add("is_public", *p.IsPublic)
	}
	args = append(args, id)

	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("user %d not found", id)
		}
		if p.SkillsOffered != nil {
			if err := replaceSkillsOffered(ctx, tx, id, *p.SkillsOffered); err != nil {
				return err
			}
		}
		if p.SkillsWanted != nil {
			if err := replaceSkillsWanted(ctx, tx, id, *p.SkillsWanted); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepo) TouchLastActive(ctx context.Context, id int64) error {
	_, err := r.conn.Exec(ctx, `UPDATE users SET last_active = ? WHERE id = ?`, now(), id)
	return err
}

func (r *SQLiteRepo) ListUsers(ctx context.Context, f repository.UserFilter) ([]models.User, int64, error) {
	var (
		where []string
		args  []any
	)
	if f.PublicOnly {
		where = append(where, `u.is_public = 1`, `u.is_banned = 0`)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pat := likePattern(s)
		cond := `u.name LIKE ? ESCAPE '\' OR u.location LIKE ? ESCAPE '\'
			OR EXISTS (SELECT 1 FROM skills_offered so WHERE so.user_id = u.id AND so.name LIKE ? ESCAPE '\')
			OR EXISTS (SELECT 1 FROM skills_wanted sw WHERE sw.user_id = u.id AND sw.name LIKE ? ESCAPE '\')`
		args = append(args, pat, pat, pat, pat)
		if !f.PublicOnly {
			cond += ` OR u.email LIKE ? ESCAPE '\'`
			args = append(args, pat)
		}
		where = append(where, "("+cond+")")
	}
	if f.Availability != "" {
		where = append(where, `u.availability = ?`)
		args = append(args, string(f.Availability))
	}
	if f.SkillLevel != "" {
		where = append(where, `EXISTS (SELECT 1 FROM skills_offered so WHERE so.user_id = u.id AND so.level = ?)`)
		args = append(args, string(f.SkillLevel))
	}
	switch f.Location {
	case "remote":
		where = append(where, `lower(u.location) LIKE '%remote%'`)
	case "local":
		where = append(where, `lower(u.location) NOT LIKE '%remote%'`)
	}
	switch f.Status {
	case "banned":
		where = append(where, `u.is_banned = 1`)
	case "active":
		where = append(where, `u.is_banned = 0`)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM users u`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	order := ` ORDER BY u.last_active DESC, u.id DESC`
	if !f.PublicOnly {
		order = ` ORDER BY u.created DESC, u.id DESC`
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	pageArgs := append(append([]any{}, args...), limit, f.Offset)

	rows, err := r.conn.QueryRows(ctx, `SELECT `+userColumns+` FROM users u`+clause+order+` LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, err
	}
	if err := rows.Close(); err != nil {
		return nil, 0, err
	}

	if err := loadSkills(ctx, r.conn.GetConn(), users); err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *SQLiteRepo) SetBanned(ctx context.Context, id int64, banned bool, reason string) error {
	var banReason any
	if banned && reason != "" {
		banReason = reason
	}
	_, err := r.conn.Exec(ctx, `UPDATE users SET is_banned = ?, ban_reason = ?, updated = ? WHERE id = ?`, banned, banReason, now(), id)
	return err
}

func (r *SQLiteRepo) SetVerified(ctx context.Context, id int64, verified bool) error {
	_, err := r.conn.Exec(ctx, `UPDATE users SET is_verified = ?, updated = ? WHERE id = ?`, verified, now(), id)
	return err
}
