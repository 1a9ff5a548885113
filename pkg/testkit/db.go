// Package testkit holds helpers shared by the package tests: a migrated
// in-memory database, an HTTP call helper and recording fakes.
package testkit

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	_ "github.com/shashiranjanraj/orderly/database/migrations"
	"github.com/shashiranjanraj/orderly/pkg/database"
	"github.com/shashiranjanraj/orderly/pkg/migration"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// NewDB opens a private in-memory sqlite database, runs every registered
// migration and closes it when the test ends.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := unsafeName.ReplaceAllString(t.Name(), "_") + "_" + uuid.NewString()[:8]
	db, err := database.Open(context.Background(), database.Options{
		Driver:          "sqlite",
		DSN:             "file:" + name + "?mode=memory&cache=shared&_foreign_keys=on",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Hour,
		DisableMetrics:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, migration.New(db, nil).Run(context.Background()))
	return db
}
