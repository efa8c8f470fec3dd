package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/eunmann/lineup/pkg/catalog"
)

func (s *Store) ListGroupIDs(ctx context.Context) ([]string, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := s.db.QueryContext(ctx, "SELECT group_id FROM groups ORDER BY group_id")
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) GetGroup(ctx context.Context, groupID string) (catalog.Group, bool, error) {
	release, err := s.acquire()
	if err != nil {
		return catalog.Group{}, false, err
	}
	defer release()

	records, err := s.queryRecords(ctx,
		"SELECT "+selectImageColumns+" FROM images WHERE group_id = ? ORDER BY id", groupID)
	if err != nil {
		return catalog.Group{}, false, fmt.Errorf("get group %s: %w", groupID, err)
	}
	if len(records) == 0 {
		return catalog.Group{}, false, nil
	}
	return catalog.Group{ID: groupID, Records: records}, true, nil
}

// GetGroupSummary reads the counts from the groups roll-up.
func (s *Store) GetGroupSummary(ctx context.Context, groupID string) (catalog.GroupSummary, bool, error) {
	release, err := s.acquire()
	if err != nil {
		return catalog.GroupSummary{}, false, err
	}
	defer release()

	var (
		sum       = catalog.GroupSummary{GroupID: groupID, MatchReasons: []string{}}
		algorithm sql.NullString
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT algorithm, total_images, existing_images, master_count
		FROM groups WHERE group_id = ?`, groupID).
		Scan(&algorithm, &sum.TotalImages, &sum.ExistingImages, &sum.MasterCount)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.GroupSummary{}, false, nil
	}
	if err != nil {
		return catalog.GroupSummary{}, false, fmt.Errorf("get group summary %s: %w", groupID, err)
	}
	sum.Algorithm = algorithm.String
	sum.MissingImages = sum.TotalImages - sum.ExistingImages
	sum.HasMaster = sum.MasterCount > 0

	rows, err := s.db.QueryContext(ctx, `
		SELECT match_reasons FROM images
		WHERE group_id = ? AND match_reasons IS NOT NULL
		GROUP BY match_reasons
		ORDER BY MIN(id)`, groupID)
	if err != nil {
		return catalog.GroupSummary{}, false, fmt.Errorf("get match reasons %s: %w", groupID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var reason string
		if err := rows.Scan(&reason); err != nil {
			return catalog.GroupSummary{}, false, fmt.Errorf("scan match reason: %w", err)
		}
		sum.MatchReasons = append(sum.MatchReasons, reason)
	}
	if err := rows.Err(); err != nil {
		return catalog.GroupSummary{}, false, err
	}
	return sum, true, nil
}

func (s *Store) OverallSummary(ctx context.Context) (catalog.OverallSummary, error) {
	release, err := s.acquire()
	if err != nil {
		return catalog.OverallSummary{}, err
	}
	defer release()

	var sum catalog.OverallSummary
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(total_images), 0),
			COALESCE(SUM(existing_images), 0),
			COALESCE(SUM(master_count), 0)
		FROM groups`).
		Scan(&sum.TotalGroups, &sum.TotalImages, &sum.ExistingImages, &sum.TotalMasters)
	if err != nil {
		return catalog.OverallSummary{}, fmt.Errorf("overall summary: %w", err)
	}
	sum.MissingImages = sum.TotalImages - sum.ExistingImages
	return sum, nil
}

// Search matches with the lineup_contains SQL function, which folds case
// through catalog.Fold.
func (s *Store) Search(ctx context.Context, q catalog.SearchQuery) ([]catalog.ImageRecord, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	fields := q.Field.Fields()
	conds := make([]string, len(fields))
	args := make([]any, 0, len(fields)+1)
	for i, f := range fields {
		conds[i] = fmt.Sprintf("lineup_contains(COALESCE(%s, ''), ?)", string(f))
		args = append(args, q.Text)
	}
	args = append(args, q.EffectiveLimit())

	query := "SELECT " + selectImageColumns + " FROM images WHERE " +
		strings.Join(conds, " OR ") + " ORDER BY id LIMIT ?"
	records, err := s.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q.Text, err)
	}
	return records, nil
}

// AdvancedStatistics aggregates in SQL over the indexed columns.
func (s *Store) AdvancedStatistics(ctx context.Context, opts catalog.StatsOptions) (catalog.AdvancedStats, error) {
	release, err := s.acquire()
	if err != nil {
		return catalog.AdvancedStats{}, err
	}
	defer release()
	opts = opts.Normalized()

	out := catalog.AdvancedStats{
		Cameras:   []catalog.CameraCount{},
		FileTypes: []catalog.FileTypeCount{},
	}

	var (
		quality          catalog.QualityStats
		qAvg, qMin, qMax sql.NullFloat64
		size             catalog.SizeStats
		sAvg             sql.NullFloat64
		sMin, sMax, sSum sql.NullInt64
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(quality_score), AVG(quality_score), MIN(quality_score), MAX(quality_score),
			COALESCE(SUM(CASE WHEN quality_score < ? THEN 1 ELSE 0 END), 0)
		FROM images`, opts.LowQualityThreshold).
		Scan(&quality.Count, &qAvg, &qMin, &qMax, &quality.LowQualityCount)
	if err != nil {
		return out, fmt.Errorf("quality statistics: %w", err)
	}
	if quality.Count > 0 {
		quality.Avg, quality.Min, quality.Max = qAvg.Float64, qMin.Float64, qMax.Float64
		out.Quality = &quality
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(size_bytes), AVG(size_bytes), MIN(size_bytes), MAX(size_bytes), SUM(size_bytes)
		FROM images`).
		Scan(&size.Count, &sAvg, &sMin, &sMax, &sSum)
	if err != nil {
		return out, fmt.Errorf("size statistics: %w", err)
	}
	if size.Count > 0 {
		size.Avg, size.Min, size.Max, size.Sum = sAvg.Float64, sMin.Int64, sMax.Int64, sSum.Int64
		out.Size = &size
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT camera_make, COALESCE(camera_model, '') AS model, COUNT(*) AS n
		FROM images
		WHERE camera_make IS NOT NULL
		GROUP BY camera_make, model
		ORDER BY n DESC, camera_make, model
		LIMIT ?`, opts.TopCameras)
	if err != nil {
		return out, fmt.Errorf("camera statistics: %w", err)
	}
	for rows.Next() {
		var c catalog.CameraCount
		if err := rows.Scan(&c.Make, &c.Model, &c.Count); err != nil {
			rows.Close()
			return out, fmt.Errorf("scan camera count: %w", err)
		}
		out.Cameras = append(out.Cameras, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT file_type, COUNT(*) AS n
		FROM images
		WHERE file_type IS NOT NULL
		GROUP BY file_type
		ORDER BY n DESC, file_type`)
	if err != nil {
		return out, fmt.Errorf("file type statistics: %w", err)
	}
	for rows.Next() {
		var ft catalog.FileTypeCount
		if err := rows.Scan(&ft.FileType, &ft.Count); err != nil {
			rows.Close()
			return out, fmt.Errorf("scan file type count: %w", err)
		}
		out.FileTypes = append(out.FileTypes, ft)
	}
	rows.Close()
	return out, rows.Err()
}

// MissingFiles lists paths flagged missing, in canonical order.
func (s *Store) MissingFiles(ctx context.Context) ([]string, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := s.db.QueryContext(ctx, "SELECT path FROM images WHERE file_exists = 0 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list missing files: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// queryRecords runs a query selecting imageColumns. The caller holds mu.
func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]catalog.ImageRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []catalog.ImageRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
