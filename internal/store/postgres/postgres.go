// Package postgres is the shared-deployment store backend (gorm over pgx)
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ppiankov/poldna/internal/logger"
	"github.com/ppiankov/poldna/internal/model"
	"github.com/ppiankov/poldna/internal/store"
)

const batchSize = 500

// Repository implements store.Store on PostgreSQL
type Repository struct {
	db  *gorm.DB
	log logger.Logger
}

// Open connects to dsn, pings, and migrates the schema
func Open(dsn string, log logger.Logger) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	r := NewRepository(db, log)
	if err := r.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return r, nil
}

// NewRepository wraps an existing gorm handle
func NewRepository(db *gorm.DB, log logger.Logger) *Repository {
	return &Repository{
		db:  db,
		log: logger.OrNop(log).Named("postgres"),
	}
}

// Migrate creates or updates the tables
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&legislatorModel{},
		&eventModel{},
		&voteModel{},
		&profileModel{},
		&partyModel{},
		&responseModel{},
		&alertModel{},
	)
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Snapshot reads everything inside one repeatable-read transaction
func (r *Repository) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	var legislators []legislatorModel
	var events []eventModel
	var votes []voteModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SET TRANSACTION ISOLATION LEVEL REPEATABLE READ").Error; err != nil {
			return err
		}
		if err := tx.Order("id ASC").Find(&legislators).Error; err != nil {
			return err
		}
		if err := tx.Order("id ASC").Find(&events).Error; err != nil {
			return err
		}
		return tx.Order("seq ASC").Find(&votes).Error
	})
	if err != nil {
		return nil, r.logError(ctx, "poldna_repo_snapshot_failed", err)
	}

	snap := &model.Snapshot{
		Legislators: make([]model.Legislator, 0, len(legislators)),
		Events:      make([]model.VotingEvent, 0, len(events)),
		Votes:       make([]model.VoteCast, 0, len(votes)),
	}
	for _, row := range legislators {
		snap.Legislators = append(snap.Legislators, row.toEntity())
	}
	for _, row := range events {
		snap.Events = append(snap.Events, row.toEntity())
	}
	for _, row := range votes {
		snap.Votes = append(snap.Votes, row.toEntity())
	}
	return snap, nil
}

func (r *Repository) Event(ctx context.Context, id string) (model.VotingEvent, error) {
	var row eventModel
	err := r.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.VotingEvent{}, fmt.Errorf("event %s: %w", id, store.ErrNotFound)
		}
		return model.VotingEvent{}, r.logError(ctx, "poldna_repo_get_event_failed", err, logger.String("event_id", id))
	}
	return row.toEntity(), nil
}

func (r *Repository) UpsertLegislators(ctx context.Context, legislators []model.Legislator) error {
	if len(legislators) == 0 {
		return nil
	}
	rows := make([]legislatorModel, 0, len(legislators))
	for _, l := range legislators {
		rows = append(rows, legislatorModelFromEntity(l))
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "party", "active"}),
	}).CreateInBatches(&rows, batchSize).Error
	if err != nil {
		return r.logError(ctx, "poldna_repo_upsert_legislators_failed", err, logger.Int("count", len(rows)))
	}
	return nil
}

func (r *Repository) UpsertEvents(ctx context.Context, events []model.VotingEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]eventModel, 0, len(events))
	for _, e := range events {
		rows = append(rows, eventModelFromEntity(e))
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "aye_count", "nay_count", "held_at"}),
	}).CreateInBatches(&rows, batchSize).Error
	if err != nil {
		return r.logError(ctx, "poldna_repo_upsert_events_failed", err, logger.Int("count", len(rows)))
	}
	return nil
}

func (r *Repository) AppendVotes(ctx context.Context, votes []model.VoteCast) error {
	if len(votes) == 0 {
		return nil
	}
	rows := make([]voteModel, 0, len(votes))
	for _, v := range votes {
		rows = append(rows, voteModel{
			LegislatorID: v.LegislatorID,
			EventID:      v.EventID,
			VoteType:     string(v.Type),
		})
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "legislator_id"}, {Name: "event_id"}},
		DoNothing: true,
	}).CreateInBatches(&rows, batchSize).Error
	if err != nil {
		return r.logError(ctx, "poldna_repo_append_votes_failed", err, logger.Int("count", len(rows)))
	}
	return nil
}

func (r *Repository) UpdateCategory(ctx context.Context, eventID string, c model.Categorization, force bool) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row eventModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", eventID).
			First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("event %s: %w", eventID, store.ErrNotFound)
			}
			return err
		}
		if !store.CanUpdateCategory(row.toEntity(), force) {
			return nil
		}
		w := c.Weight
		if err := tx.Model(&eventModel{}).Where("id = ?", eventID).Updates(map[string]any{
			"category":    string(c.Category),
			"weight":      &w,
			"categorized": true,
		}).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, err
		}
		return false, r.logError(ctx, "poldna_repo_update_category_failed", err, logger.String("event_id", eventID))
	}
	return applied, nil
}

// Publish replaces profiles and party aggregates in one transaction
func (r *Repository) Publish(ctx context.Context, profiles []model.Profile, parties []model.PartyAggregate) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&profileModel{}).Error; err != nil {
			return err
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&partyModel{}).Error; err != nil {
			return err
		}
		if len(profiles) > 0 {
			rows := make([]profileModel, 0, len(profiles))
			for _, p := range profiles {
				rows = append(rows, profileModelFromEntity(p))
			}
			if err := tx.CreateInBatches(&rows, batchSize).Error; err != nil {
				return err
			}
		}
		if len(parties) > 0 {
			rows := make([]partyModel, 0, len(parties))
			for _, a := range parties {
				rows = append(rows, partyModelFromEntity(a))
			}
			if err := tx.CreateInBatches(&rows, batchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return r.logError(ctx, "poldna_repo_publish_failed", err,
			logger.Int("profiles", len(profiles)),
			logger.Int("parties", len(parties)),
		)
	}
	return nil
}

func (r *Repository) Profiles(ctx context.Context) ([]model.Profile, error) {
	var rows []profileModel
	if err := r.db.WithContext(ctx).Order("legislator_id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError(ctx, "poldna_repo_list_profiles_failed", err)
	}
	out := make([]model.Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) Profile(ctx context.Context, legislatorID string) (model.Profile, error) {
	var row profileModel
	err := r.db.WithContext(ctx).Where("legislator_id = ?", strings.TrimSpace(legislatorID)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Profile{}, fmt.Errorf("profile %s: %w", legislatorID, store.ErrNotFound)
		}
		return model.Profile{}, r.logError(ctx, "poldna_repo_get_profile_failed", err, logger.String("legislator_id", legislatorID))
	}
	return row.toEntity(), nil
}

func (r *Repository) PartyAggregates(ctx context.Context) ([]model.PartyAggregate, error) {
	var rows []partyModel
	if err := r.db.WithContext(ctx).Order("party ASC").Find(&rows).Error; err != nil {
		return nil, r.logError(ctx, "poldna_repo_list_parties_failed", err)
	}
	out := make([]model.PartyAggregate, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) UpsertResponses(ctx context.Context, responses []model.CandidateResponse) error {
	if len(responses) == 0 {
		return nil
	}
	rows := make([]responseModel, 0, len(responses))
	for _, resp := range responses {
		rows = append(rows, responseModelFromEntity(resp))
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "legislator_id"}, {Name: "question"}},
		DoUpdates: clause.AssignmentColumns([]string{"response_value", "category", "weight"}),
	}).CreateInBatches(&rows, batchSize).Error
	if err != nil {
		return r.logError(ctx, "poldna_repo_upsert_responses_failed", err, logger.Int("count", len(rows)))
	}
	return nil
}

func (r *Repository) Responses(ctx context.Context) ([]model.CandidateResponse, error) {
	var rows []responseModel
	if err := r.db.WithContext(ctx).Order("legislator_id ASC, question ASC").Find(&rows).Error; err != nil {
		return nil, r.logError(ctx, "poldna_repo_list_responses_failed", err)
	}
	out := make([]model.CandidateResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

// UpsertAlerts keeps the first id and detection time of an existing alert
func (r *Repository) UpsertAlerts(ctx context.Context, alerts []model.Alert) (int, error) {
	created := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range alerts {
			var count int64
			if err := tx.Model(&alertModel{}).
				Where("legislator_id = ? AND event_id = ?", a.LegislatorID, a.EventID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				created++
			}

			row := alertModelFromEntity(a)
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "legislator_id"}, {Name: "event_id"}},
				DoUpdates: clause.Assignments(map[string]any{
					"category":      row.Category,
					"promise_value": row.PromiseValue,
					"vote_value":    row.VoteValue,
					"deviation":     row.Deviation,
					"severity":      row.Severity,
				}),
			}).Create(&row).Error; err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("alert %s conflicts on id: %w", a.ID, err)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, r.logError(ctx, "poldna_repo_upsert_alerts_failed", err, logger.Int("count", len(alerts)))
	}
	return created, nil
}

func (r *Repository) Alerts(ctx context.Context) ([]model.Alert, error) {
	var rows []alertModel
	if err := r.db.WithContext(ctx).Order("legislator_id ASC, event_id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError(ctx, "poldna_repo_list_alerts_failed", err)
	}
	out := make([]model.Alert, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) logError(ctx context.Context, event string, err error, fields ...logger.Field) error {
	all := append([]logger.Field{
		logger.String("event", event),
		logger.String("layer", "adapter"),
		logger.Error(err),
	}, fields...)
	r.log.Error(ctx, "poldna repository operation failed", all...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ store.Store = (*Repository)(nil)
