package repository

import (
	"context"
	"fmt"

	"github-star-organizer/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresArchive 实现了 port.Archiver 接口
// 把已分类的仓库镜像到 Postgres，供分类浏览和关键词查询
// 数据集文件始终是唯一权威，这里只是查询副本
type PostgresArchive struct {
	db *gorm.DB
}

// NewPostgresArchive 初始化数据库连接并自动迁移表结构
func NewPostgresArchive(dsn string) (*PostgresArchive, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	if err := db.AutoMigrate(&domain.Repo{}); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return &PostgresArchive{db: db}, nil
}

// Archive 保存或更新一条仓库记录 (按主键 upsert)
func (r *PostgresArchive) Archive(ctx context.Context, repo *domain.Repo) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(repo)
	return result.Error
}

// ByCategory 按分类取已分类的仓库，星数高的在前
func (r *PostgresArchive) ByCategory(ctx context.Context, category string) ([]*domain.Repo, error) {
	var repos []*domain.Repo
	err := r.db.WithContext(ctx).
		Where("category = ? AND is_classified = ?", category, true).
		Order("stargazers_count DESC").
		Find(&repos).Error
	return repos, err
}

// Search 按关键词模糊查询名称、描述和摘要
func (r *PostgresArchive) Search(ctx context.Context, query string) ([]*domain.Repo, error) {
	var repos []*domain.Repo
	likeQuery := "%" + query + "%"
	err := r.db.WithContext(ctx).
		Where("full_name LIKE ? OR description LIKE ? OR summary LIKE ?", likeQuery, likeQuery, likeQuery).
		Order("stargazers_count DESC").
		Limit(20).
		Find(&repos).Error
	return repos, err
}

// Exists 检查仓库是否已归档
func (r *PostgresArchive) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Repo{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
