package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// ContentHash is the dedup identity of an entry without a link.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// InsertEntry persists a knowledge-base entry. Duplicate entries — same
// (source, link) when the link is set, otherwise same (ts, ticker, content
// hash) — are not re-inserted; the existing id is returned with
// inserted=false.
func (s *Store) InsertEntry(ctx context.Context, e core.KBEntry) (int64, bool, error) {
	if existing, err := s.findDuplicate(ctx, e); err != nil {
		return 0, false, err
	} else if existing != 0 {
		return existing, false, nil
	}

	row := KBRow{
		TS:             e.TS,
		Ticker:         e.Ticker,
		Source:         e.Source,
		Content:        e.Content,
		EventType:      string(e.EventType),
		Importance:     string(e.Importance),
		Region:         string(e.Region),
		SentimentScore: e.SentimentScore,
		Insight:        e.Insight,
	}
	if e.Link != "" {
		link := e.Link
		row.Link = &link
	}
	if len(e.Embedding) > 0 {
		vec := pgvector.NewVector(e.Embedding)
		row.Embedding = &vec
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, false, core.WrapError(core.ErrKBFailed, fmt.Errorf("inserting entry: %w", err))
	}

	s.logger.Debug("kb entry inserted",
		zap.Int64("id", row.ID),
		zap.String("ticker", e.Ticker),
		zap.String("source", e.Source),
	)
	return row.ID, true, nil
}

func (s *Store) findDuplicate(ctx context.Context, e core.KBEntry) (int64, error) {
	if e.Link != "" {
		var row KBRow
		err := s.db.WithContext(ctx).
			Select("id").
			Where("source = ? AND link = ?", e.Source, e.Link).
			First(&row).Error
		if err == nil {
			return row.ID, nil
		}
		return 0, ignoreNotFound(err)
	}

	// No link: same timestamp and ticker, identical content.
	var candidates []KBRow
	err := s.db.WithContext(ctx).
		Select("id", "content").
		Where("ts = ? AND ticker = ?", e.TS, e.Ticker).
		Find(&candidates).Error
	if err != nil {
		return 0, core.WrapError(core.ErrKBFailed, err)
	}
	want := ContentHash(e.Content)
	for _, c := range candidates {
		if ContentHash(c.Content) == want {
			return c.ID, nil
		}
	}
	return 0, nil
}

// EnrichmentUpdate is the writable subset of a persisted entry. Nil fields
// are left untouched; content, ts, ticker, source and link are immutable.
type EnrichmentUpdate struct {
	SentimentScore *float64
	Insight        *string
	Embedding      []float32
	Outcome        *core.Outcome
}

// UpdateEnrichment applies a partial update to the enrichment fields only.
func (s *Store) UpdateEnrichment(ctx context.Context, id int64, u EnrichmentUpdate) error {
	updates := map[string]any{}
	if u.SentimentScore != nil {
		updates["sentiment_score"] = *u.SentimentScore
	}
	if u.Insight != nil {
		updates["insight"] = *u.Insight
	}
	if len(u.Embedding) > 0 {
		updates["embedding"] = pgvector.NewVector(u.Embedding)
	}
	if u.Outcome != nil {
		raw, err := json.Marshal(u.Outcome)
		if err != nil {
			return fmt.Errorf("marshaling outcome: %w", err)
		}
		updates["outcome_json"] = raw
	}
	if len(updates) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&KBRow{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return core.WrapError(core.ErrKBFailed, res.Error)
	}
	if res.RowsAffected == 0 {
		return core.WrapError(core.ErrNoData, fmt.Errorf("kb entry %d not found", id))
	}
	return nil
}

// KBFilter narrows a knowledge-base query. Zero values mean "no filter".
type KBFilter struct {
	Ticker       string // includes macro sentinels when set
	Since        time.Time
	Until        time.Time
	EventTypes   []core.EventType
	ContentMatch string // full-text search over content
	Limit        int
}

// QueryEntries returns entries matching the filter, newest first, bounded by
// the session clock (no row later than asOf is ever visible).
func (s *Store) QueryEntries(ctx context.Context, f KBFilter, asOf time.Time) ([]core.KBEntry, error) {
	q := s.db.WithContext(ctx).Model(&KBRow{}).Where("ts <= ?", asOf)

	if f.Ticker != "" {
		q = q.Where("(ticker = ? OR ticker IN ?)", f.Ticker,
			[]string{core.TickerMacro, core.TickerUSMacro})
	}
	if !f.Since.IsZero() {
		q = q.Where("ts >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		q = q.Where("ts <= ?", f.Until)
	}
	if len(f.EventTypes) > 0 {
		types := make([]string, len(f.EventTypes))
		for i, t := range f.EventTypes {
			types[i] = string(t)
		}
		q = q.Where("event_type IN ?", types)
	}
	if f.ContentMatch != "" {
		q = q.Where("to_tsvector('english', content) @@ plainto_tsquery('english', ?)", f.ContentMatch)
	}

	q = q.Order("ts DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []KBRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, core.WrapError(core.ErrKBFailed, err)
	}
	return toEntries(rows), nil
}

// SimilarEvent is one cosine-KNN hit.
type SimilarEvent struct {
	Entry      core.KBEntry
	Similarity float64
}

// SimilarByVector returns entries ranked by cosine similarity to vec,
// keeping only rows with similarity >= minSimilarity inside the time window.
// Rows without an embedding are never considered.
func (s *Store) SimilarByVector(ctx context.Context, vec []float32, ticker string,
	windowDays, limit int, minSimilarity float64, asOf time.Time) ([]SimilarEvent, error) {

	if len(vec) == 0 {
		return nil, nil
	}
	qv := pgvector.NewVector(vec)
	cutoff := asOf.AddDate(0, 0, -windowDays)

	query := `
		SELECT *, 1 - (embedding <=> ?) AS similarity
		FROM knowledge_base
		WHERE embedding IS NOT NULL
		  AND ts <= ? AND ts >= ?
		  AND (1 - (embedding <=> ?)) >= ?`
	args := []any{qv, asOf, cutoff, qv, minSimilarity}
	if ticker != "" {
		query += ` AND (ticker = ? OR ticker IN (?, ?))`
		args = append(args, ticker, core.TickerMacro, core.TickerUSMacro)
	}
	query += ` ORDER BY embedding <=> ? LIMIT ?`
	args = append(args, qv, limit)

	type hitRow struct {
		KBRow
		Similarity float64
	}
	var hits []hitRow
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&hits).Error; err != nil {
		return nil, core.WrapError(core.ErrKBFailed, err)
	}

	out := make([]SimilarEvent, 0, len(hits))
	for _, h := range hits {
		out = append(out, SimilarEvent{Entry: toEntry(h.KBRow), Similarity: h.Similarity})
	}
	return out, nil
}

// PendingSentiment returns entries awaiting sentiment enrichment: NULL score,
// content of at least minContentLen characters, no older than maxAgeDays.
func (s *Store) PendingSentiment(ctx context.Context, maxAgeDays, minContentLen, limit int) ([]core.KBEntry, error) {
	cutoff := s.clock.Now().AddDate(0, 0, -maxAgeDays)

	var rows []KBRow
	err := s.db.WithContext(ctx).
		Where("sentiment_score IS NULL AND LENGTH(content) >= ? AND ts >= ?", minContentLen, cutoff).
		Order("ts DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, core.WrapError(core.ErrKBFailed, err)
	}
	return toEntries(rows), nil
}

// PendingEmbeddings returns entries with a NULL vector and non-empty content.
func (s *Store) PendingEmbeddings(ctx context.Context, limit int) ([]core.KBEntry, error) {
	var rows []KBRow
	err := s.db.WithContext(ctx).
		Where("embedding IS NULL AND content IS NOT NULL AND LENGTH(TRIM(content)) > 0").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, core.WrapError(core.ErrKBFailed, err)
	}
	return toEntries(rows), nil
}

// RipeEvents returns entries old enough for outcome analysis: no outcome yet,
// event at least daysAfter days in the past, and a real instrument ticker.
func (s *Store) RipeEvents(ctx context.Context, daysAfter, limit int) ([]core.KBEntry, error) {
	cutoff := s.clock.Now().AddDate(0, 0, -daysAfter)

	var rows []KBRow
	err := s.db.WithContext(ctx).
		Where("outcome_json IS NULL AND ts <= ? AND ticker NOT IN ? AND ticker <> ''",
			cutoff, []string{core.TickerMacro, core.TickerUSMacro}).
		Order("ts ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, core.WrapError(core.ErrKBFailed, err)
	}
	return toEntries(rows), nil
}

// HasRecentFromSource reports whether a source already produced an entry for
// the ticker since the given time. Used for per-ticker fetcher cooldowns.
func (s *Store) HasRecentFromSource(ctx context.Context, source, ticker string, since time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&KBRow{}).
		Where("source = ? AND ticker = ? AND ts >= ?", source, ticker, since).
		Count(&count).Error
	if err != nil {
		return false, core.WrapError(core.ErrKBFailed, err)
	}
	return count > 0, nil
}

// CountEntries reports total rows and rows carrying an embedding.
func (s *Store) CountEntries(ctx context.Context) (total, embedded int64, err error) {
	if err = s.db.WithContext(ctx).Model(&KBRow{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err = s.db.WithContext(ctx).Model(&KBRow{}).
		Where("embedding IS NOT NULL").Count(&embedded).Error; err != nil {
		return 0, 0, err
	}
	return total, embedded, nil
}

func toEntries(rows []KBRow) []core.KBEntry {
	out := make([]core.KBEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, toEntry(r))
	}
	return out
}

func toEntry(r KBRow) core.KBEntry {
	e := core.KBEntry{
		ID:             r.ID,
		TS:             r.TS,
		Ticker:         r.Ticker,
		Source:         r.Source,
		Content:        r.Content,
		EventType:      core.EventType(r.EventType),
		Importance:     core.Importance(r.Importance),
		Region:         core.Region(r.Region),
		SentimentScore: r.SentimentScore,
		Insight:        r.Insight,
	}
	if r.Link != nil {
		e.Link = *r.Link
	}
	if r.Embedding != nil {
		e.Embedding = r.Embedding.Slice()
	}
	if len(r.OutcomeJSON) > 0 {
		var o core.Outcome
		if err := json.Unmarshal(r.OutcomeJSON, &o); err == nil {
			e.Outcome = &o
		}
	}
	return e
}
