package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kmanga/internal/model"
)

const mangaColumns = `m.id, m.name, m.description, m.status, m.url, m.created_at, m.updated_at`

const issueColumns = `i.id, i.manga_id, i.name, i.number, i.url, i.guid, i.created_at, i.updated_at`

// CreateManga inserts a manga with its alternative names and populates the
// generated IDs and timestamps. Duplicate alternative names are stored once.
func (s *SQLite) CreateManga(ctx context.Context, m *model.Manga) error {
	if m.Status == "" {
		m.Status = model.MangaOngoing
	}
	if !m.Status.Valid() {
		return fmt.Errorf("invalid manga status %q", m.Status)
	}

	now := s.timestamp()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO manga (name, description, status, url, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.Name, m.Description, string(m.Status), m.URL, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert manga: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		seen := make(map[string]bool, len(m.AltNames))
		alts := make([]model.AltName, 0, len(m.AltNames))
		for _, a := range m.AltNames {
			if a.Name == "" || seen[a.Name] {
				continue
			}
			seen[a.Name] = true
			alt, err := insertAltName(ctx, tx, id, a.Name)
			if err != nil {
				return err
			}
			alts = append(alts, *alt)
		}

		m.ID = id
		m.AltNames = alts
		m.CreatedAt = parseTime(now)
		m.UpdatedAt = m.CreatedAt
		return nil
	})
}

// GetManga returns a single manga with its alternative names.
func (s *SQLite) GetManga(ctx context.Context, id int64) (*model.Manga, error) {
	return getManga(ctx, s.db, id)
}

func getManga(ctx context.Context, q queryer, id int64) (*model.Manga, error) {
	row := q.QueryRowContext(ctx, `SELECT `+mangaColumns+` FROM manga m WHERE m.id = ?`, id)
	m, err := scanManga(row)
	if err != nil {
		return nil, notFound(err, "manga", id)
	}

	list := []model.Manga{*m}
	if err := attachAltNames(ctx, q, list,
		`SELECT id, manga_id, name FROM alt_names WHERE manga_id = ? ORDER BY id`, id); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ListManga returns every manga, in any status, with alternative names.
// Both tables are read in one transaction so the result is a consistent snapshot.
func (s *SQLite) ListManga(ctx context.Context) ([]model.Manga, error) {
	var out []model.Manga
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT `+mangaColumns+` FROM manga m ORDER BY m.id`)
		if err != nil {
			return fmt.Errorf("query manga: %w", err)
		}
		list, err := scanMangaRows(rows)
		if err != nil {
			return err
		}
		if err := attachAltNames(ctx, tx, list,
			`SELECT id, manga_id, name FROM alt_names ORDER BY manga_id, id`); err != nil {
			return err
		}
		out = list
		return nil
	})
	return out, err
}

// UpdateManga persists the mutable fields of a manga. Alternative names are
// managed with AddAltName and RemoveAltName.
func (s *SQLite) UpdateManga(ctx context.Context, m *model.Manga) error {
	if !m.Status.Valid() {
		return fmt.Errorf("invalid manga status %q", m.Status)
	}
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`UPDATE manga SET name = ?, description = ?, status = ?, url = ?, updated_at = ?
		 WHERE id = ?`,
		m.Name, m.Description, string(m.Status), m.URL, now, m.ID,
	)
	if err != nil {
		return fmt.Errorf("update manga: %w", err)
	}
	if err := expectRow(res, "manga", m.ID); err != nil {
		return err
	}
	m.UpdatedAt = parseTime(now)
	return nil
}

// LatestManga returns non-deleted manga ordered by their most recently created
// or updated issue. Manga without issues come last.
func (s *SQLite) LatestManga(ctx context.Context, limit int) ([]model.Manga, error) {
	if limit <= 0 {
		return nil, nil
	}
	var out []model.Manga
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+mangaColumns+`
			 FROM manga m
			 LEFT JOIN issues i ON i.manga_id = m.id
			 WHERE m.status <> 'deleted'
			 GROUP BY m.id
			 ORDER BY MAX(i.updated_at) IS NULL, MAX(i.updated_at) DESC, m.id DESC
			 LIMIT ?`, limit,
		)
		if err != nil {
			return fmt.Errorf("query latest manga: %w", err)
		}
		list, err := scanMangaRows(rows)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return nil
		}

		args := make([]any, len(list))
		for i, m := range list {
			args[i] = m.ID
		}
		if err := attachAltNames(ctx, tx, list,
			`SELECT id, manga_id, name FROM alt_names
			 WHERE manga_id IN (`+placeholders(len(args))+`) ORDER BY manga_id, id`, args...); err != nil {
			return err
		}
		out = list
		return nil
	})
	return out, err
}

// AddAltName attaches an alternative name to a manga. Adding a name the manga
// already has returns the existing entry.
func (s *SQLite) AddAltName(ctx context.Context, mangaID int64, name string) (*model.AltName, error) {
	if name == "" {
		return nil, fmt.Errorf("alt name is required")
	}
	var alt *model.AltName
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getManga(ctx, tx, mangaID); err != nil {
			return err
		}
		var existing model.AltName
		err := tx.QueryRowContext(ctx,
			`SELECT id, manga_id, name FROM alt_names WHERE manga_id = ? AND name = ?`, mangaID, name,
		).Scan(&existing.ID, &existing.MangaID, &existing.Name)
		switch {
		case err == nil:
			alt = &existing
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("scan alt name: %w", err)
		}
		alt, err = insertAltName(ctx, tx, mangaID, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return alt, nil
}

// RemoveAltName deletes an alternative name by its ID.
func (s *SQLite) RemoveAltName(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alt_names WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete alt name: %w", err)
	}
	return expectRow(res, "alt name", id)
}

// CreateIssue inserts a new issue and populates its ID and timestamps.
func (s *SQLite) CreateIssue(ctx context.Context, issue *model.Issue) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := insertIssue(ctx, tx, issue, s.timestamp())
		return err
	})
}

// EnsureIssue inserts the issue unless one with the same GUID already exists
// for the manga, in which case issue is filled from the stored row. It
// reports whether a row was created.
func (s *SQLite) EnsureIssue(ctx context.Context, issue *model.Issue) (bool, error) {
	var created bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if issue.GUID != "" {
			row := tx.QueryRowContext(ctx,
				`SELECT `+issueColumns+` FROM issues i WHERE i.manga_id = ? AND i.guid = ?`,
				issue.MangaID, issue.GUID,
			)
			existing, err := scanIssue(row)
			if err == nil {
				*issue = *existing
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("scan issue: %w", err)
			}
		}
		var err error
		created, err = insertIssue(ctx, tx, issue, s.timestamp())
		return err
	})
	return created, err
}

func insertIssue(ctx context.Context, tx *sql.Tx, issue *model.Issue, now string) (bool, error) {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM manga WHERE id = ?`, issue.MangaID).Scan(&status)
	if err != nil {
		return false, notFound(err, "manga", issue.MangaID)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO issues (manga_id, name, number, url, guid, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		issue.MangaID, issue.Name, issue.Number, issue.URL, nullString(issue.GUID), now, now,
	)
	if err != nil {
		return false, fmt.Errorf("insert issue: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	issue.ID = id
	issue.CreatedAt = parseTime(now)
	issue.UpdatedAt = issue.CreatedAt
	return true, nil
}

// GetIssue returns a single issue by its ID.
func (s *SQLite) GetIssue(ctx context.Context, id int64) (*model.Issue, error) {
	return getIssue(ctx, s.db, id)
}

func getIssue(ctx context.Context, q queryer, id int64) (*model.Issue, error) {
	row := q.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues i WHERE i.id = ?`, id)
	issue, err := scanIssue(row)
	if err != nil {
		return nil, notFound(err, "issue", id)
	}
	return issue, nil
}

// ListIssues returns the issues of a manga, oldest first.
func (s *SQLite) ListIssues(ctx context.Context, mangaID int64) ([]model.Issue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+issueColumns+` FROM issues i WHERE i.manga_id = ? ORDER BY i.id`, mangaID,
	)
	if err != nil {
		return nil, fmt.Errorf("query issues: %w", err)
	}
	return scanIssueRows(rows)
}

// RenameIssue corrects the name of an issue. It is the only mutation issues allow.
func (s *SQLite) RenameIssue(ctx context.Context, id int64, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE issues SET name = ?, updated_at = ? WHERE id = ?`, name, s.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("rename issue: %w", err)
	}
	return expectRow(res, "issue", id)
}

func insertAltName(ctx context.Context, tx *sql.Tx, mangaID int64, name string) (*model.AltName, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO alt_names (manga_id, name) VALUES (?, ?)`, mangaID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("insert alt name: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.AltName{ID: id, MangaID: mangaID, Name: name}, nil
}

// attachAltNames runs query and appends each alt name to the matching manga in list.
func attachAltNames(ctx context.Context, q queryer, list []model.Manga, query string, args ...any) error {
	byID := make(map[int64]int, len(list))
	for i := range list {
		byID[list[i].ID] = i
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query alt names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var a model.AltName
		if err := rows.Scan(&a.ID, &a.MangaID, &a.Name); err != nil {
			return fmt.Errorf("scan alt name: %w", err)
		}
		if i, ok := byID[a.MangaID]; ok {
			list[i].AltNames = append(list[i].AltNames, a)
		}
	}
	return rows.Err()
}

func expectRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}

func scanManga(row scannable) (*model.Manga, error) {
	var m model.Manga
	var status, created, updated string
	if err := row.Scan(&m.ID, &m.Name, &m.Description, &status, &m.URL, &created, &updated); err != nil {
		return nil, err
	}
	m.Status = model.MangaStatus(status)
	m.CreatedAt = parseTime(created)
	m.UpdatedAt = parseTime(updated)
	return &m, nil
}

func scanMangaRows(rows *sql.Rows) ([]model.Manga, error) {
	defer func() { _ = rows.Close() }()
	var list []model.Manga
	for rows.Next() {
		m, err := scanManga(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manga: %w", err)
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

func scanIssue(row scannable) (*model.Issue, error) {
	var i model.Issue
	var guid sql.NullString
	var created, updated string
	if err := row.Scan(&i.ID, &i.MangaID, &i.Name, &i.Number, &i.URL, &guid, &created, &updated); err != nil {
		return nil, err
	}
	i.GUID = guid.String
	i.CreatedAt = parseTime(created)
	i.UpdatedAt = parseTime(updated)
	return &i, nil
}

func scanIssueRows(rows *sql.Rows) ([]model.Issue, error) {
	defer func() { _ = rows.Close() }()
	var issues []model.Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, *i)
	}
	return issues, rows.Err()
}
