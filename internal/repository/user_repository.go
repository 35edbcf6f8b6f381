package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/destroydevs/TikFetchBot/internal/model"
)

// UserRepository is the relational backend on top of gorm. Increments are
// single atomic UPDATE statements, so different users never block each other.
type UserRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewUserRepository(db *gorm.DB, opts ...Option) *UserRepository {
	o := buildOptions(opts)
	return &UserRepository{db: db, now: o.now}
}

func (r *UserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, storageErr("count user", err)
	}
	return n > 0, nil
}

func (r *UserRepository) Create(ctx context.Context, user model.User) error {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&user)
	if res.Error != nil {
		return storageErr("create user", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (r *UserRepository) Fetch(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	default:
		return nil, storageErr("find user", err)
	}
}

func (r *UserRepository) SetField(ctx context.Context, id int64, field model.Field, raw string) error {
	value, err := checkField(field, raw)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update(string(field), value)
	return affectedOne(res, fmt.Sprintf("update %s", field))
}

func (r *UserRepository) IncrementRequestCount(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		string(model.FieldRequestCount): gorm.Expr("requests_amount + ?", 1),
		string(model.FieldLastSeenAt):   model.Millis(r.now()),
	})
	return affectedOne(res, "increment requests")
}

func (r *UserRepository) Stats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Select("COUNT(*) AS users, COALESCE(SUM(requests_amount), 0) AS requests").
		Scan(&stats).Error
	if err != nil {
		return model.Stats{}, storageErr("user stats", err)
	}
	return stats, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.User{})
	return affectedOne(res, "delete user")
}

func (r *UserRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func affectedOne(res *gorm.DB, op string) error {
	if res.Error != nil {
		return storageErr(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
