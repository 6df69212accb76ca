package syncengine

import (
	"context"
	"errors"
	"time"

	"github.com/paymirror/paymirror/app/models"
	"gorm.io/gorm"
)

// GormStore is the production Store backed by GORM. Requires the DB handle
// to be opened with TranslateError so uniqueness violations surface as
// gorm.ErrDuplicatedKey.
type GormStore struct {
	db      *gorm.DB
	schemas *SchemaRegistry
}

func NewGormStore(db *gorm.DB, schemas *SchemaRegistry) *GormStore {
	return &GormStore{db: db, schemas: schemas}
}

func (s *GormStore) tableFor(entityType string) (string, error) {
	schema, ok := s.schemas.Lookup(entityType)
	if !ok {
		return "", errors.New("syncengine: no schema registered for entity type " + entityType)
	}
	return schema.Table, nil
}

func (s *GormStore) GetRecord(ctx context.Context, entityType, id string) (Record, error) {
	tbl, err := s.tableFor(entityType)
	if err != nil {
		return nil, err
	}
	row := map[string]any{}
	err = s.db.WithContext(ctx).Table(tbl).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return Record(row), nil
}

func (s *GormStore) InsertRecord(ctx context.Context, entityType string, rec Record) error {
	tbl, err := s.tableFor(entityType)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Table(tbl).Create(map[string]any(rec)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (s *GormStore) UpdateRecord(ctx context.Context, entityType, id string, rec Record) error {
	tbl, err := s.tableFor(entityType)
	if err != nil {
		return err
	}
	updates := map[string]any(rec)
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Table(tbl).Where("id = ?", id).Updates(updates).Error
}

func (s *GormStore) DeleteRecord(ctx context.Context, entityType, id string) error {
	tbl, err := s.tableFor(entityType)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Table(tbl).Where("id = ?", id).Delete(nil).Error
}

func (s *GormStore) ListRecordIDs(ctx context.Context, entityType string) ([]string, error) {
	tbl, err := s.tableFor(entityType)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := s.db.WithContext(ctx).Table(tbl).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *GormStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var ev models.Event
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *GormStore) CreateEvent(ctx context.Context, ev *models.Event) error {
	err := s.db.WithContext(ctx).Create(ev).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (s *GormStore) CreateTrigger(ctx context.Context, t *models.WebhookTrigger) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *GormStore) UpdateTrigger(ctx context.Context, t *models.WebhookTrigger) error {
	return s.db.WithContext(ctx).Save(t).Error
}

func (s *GormStore) ListFailedTriggers(ctx context.Context) ([]models.WebhookTrigger, error) {
	var triggers []models.WebhookTrigger
	err := s.db.WithContext(ctx).
		Where("valid = ? AND processed = ?", true, false).
		Order("created_at").
		Find(&triggers).Error
	return triggers, err
}

func (s *GormStore) GetEndpointByUUID(ctx context.Context, uuid string) (*models.WebhookEndpoint, error) {
	var ep models.WebhookEndpoint
	err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&ep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ep, nil
}

func (s *GormStore) GetAccount(ctx context.Context, id string) (*models.PlatformAccount, error) {
	var a models.PlatformAccount
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *GormStore) UpsertAccount(ctx context.Context, a *models.PlatformAccount) error {
	if err := s.db.WithContext(ctx).Save(a).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("id = ?", a.ID).First(a).Error
}

func (s *GormStore) GetIdempotencyKey(ctx context.Context, action string, livemode bool) (*models.IdempotencyKey, error) {
	var k models.IdempotencyKey
	err := s.db.WithContext(ctx).
		Where("action = ? AND livemode = ?", action, livemode).
		First(&k).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (s *GormStore) SaveIdempotencyKey(ctx context.Context, k *models.IdempotencyKey) error {
	// Supersede any previous key for the same action+livemode scope.
	if err := s.db.WithContext(ctx).
		Where("action = ? AND livemode = ?", k.Action, k.Livemode).
		Delete(&models.IdempotencyKey{}).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(k).Error
}

func (s *GormStore) DeleteExpiredIdempotencyKeys(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&models.IdempotencyKey{})
	return res.RowsAffected, res.Error
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx, s.schemas))
	})
}
