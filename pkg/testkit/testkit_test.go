package testkit_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/orderly/pkg/response"
	"github.com/shashiranjanraj/orderly/pkg/testkit"
)

func TestNewDBIsMigratedAndPrivate(t *testing.T) {
	a := testkit.NewDB(t)
	b := testkit.NewDB(t)

	for _, table := range []string{"users", "orders", "order_items", "failed_jobs", "schema_migrations"} {
		assert.Truef(t, a.Migrator().HasTable(table), "missing table %s", table)
	}

	require.NoError(t, a.Exec("INSERT INTO failed_jobs (job_type, payload, error, attempts, failed_at) VALUES ('x', '{}', '', 1, CURRENT_TIMESTAMP)").Error)

	var n int64
	require.NoError(t, b.Table("failed_jobs").Count(&n).Error)
	assert.Zero(t, n)
}

func TestCallAndEnvelope(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		response.Created(w, map[string]int{"id": 3})
	})

	res := testkit.Call(t, h, http.MethodPost, "/things", map[string]string{"a": "b"}, "tok")
	assert.Equal(t, http.StatusCreated, res.Code)

	var data struct{ ID int }
	res.Data(t, &data)
	assert.Equal(t, 3, data.ID)
}

func TestAssertJSONEqual(t *testing.T) {
	testkit.AssertJSONEqual(t, `{"a":1,"b":[true]}`, []byte(`{ "b":[true], "a":1 }`))
}
