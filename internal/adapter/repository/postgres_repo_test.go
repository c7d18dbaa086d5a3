package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github-star-organizer/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupMockDB 创建一个模拟的数据库连接
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	// 禁用 GORM 日志以减少输出
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open gorm db: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return gormDB, mock, cleanup
}

func archiveRepo(id int64, fullName string) *domain.Repo {
	return &domain.Repo{
		ID:              id,
		FullName:        fullName,
		HTMLURL:         "https://github.com/" + fullName,
		Description:     "an archived repo",
		Language:        "Go",
		StargazersCount: 100,
		StarredAt:       time.Now(),
		IsClassified:    true,
		Category:        "开发工具",
		Summary:         "一个工具",
	}
}

func TestPostgresArchive_Archive(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "成功归档新仓库",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "repos"`)).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit()
			},
			expectError: false,
		},
		{
			name: "数据库写入失败",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "repos"`)).
					WillReturnError(errors.New("connection lost"))
				mock.ExpectRollback()
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			tt.setupMock(mock)

			archive := &PostgresArchive{db: gormDB}
			err := archive.Archive(context.Background(), archiveRepo(123, "test/tool"))

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresArchive_ByCategory(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "full_name", "category", "is_classified", "stargazers_count"}).
		AddRow(1, "a/one", "开发工具", true, 500).
		AddRow(2, "b/two", "开发工具", true, 100)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "repos" WHERE category = $1 AND is_classified = $2 ORDER BY stargazers_count DESC`)).
		WithArgs("开发工具", true).
		WillReturnRows(rows)

	archive := &PostgresArchive{db: gormDB}
	repos, err := archive.ByCategory(context.Background(), "开发工具")

	assert.NoError(t, err)
	assert.Len(t, repos, 2)
	assert.Equal(t, "a/one", repos[0].FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchive_Search(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "full_name", "description"}).
		AddRow(1, "a/terminal-tool", "a terminal multiplexer")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "repos" WHERE full_name LIKE $1 OR description LIKE $2 OR summary LIKE $3 ORDER BY stargazers_count DESC LIMIT $4`)).
		WithArgs("%terminal%", "%terminal%", "%terminal%", 20).
		WillReturnRows(rows)

	archive := &PostgresArchive{db: gormDB}
	repos, err := archive.Search(context.Background(), "terminal")

	assert.NoError(t, err)
	assert.Len(t, repos, 1)
	assert.Equal(t, "a/terminal-tool", repos[0].FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchive_Exists(t *testing.T) {
	tests := []struct {
		name     string
		count    int64
		expected bool
	}{
		{name: "已归档", count: 1, expected: true},
		{name: "未归档", count: 0, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "repos" WHERE id = $1`)).
				WithArgs(int64(42)).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tt.count))

			archive := &PostgresArchive{db: gormDB}
			exists, err := archive.Exists(context.Background(), 42)

			assert.NoError(t, err)
			assert.Equal(t, tt.expected, exists)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
