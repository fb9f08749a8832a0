package companyctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codigos/codigos/internal/storage"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()

	s, err := Load(ctx, kv)
	require.NoError(t, err)
	assert.False(t, s.HasCompany())
	assert.Nil(t, s.Active())
	assert.Zero(t, s.CompanyID())
	assert.Empty(t, s.CompanyName())

	require.NoError(t, s.SetCompanyID(ctx, 12, ""))
	assert.True(t, s.HasCompany())
	assert.Equal(t, int64(12), s.CompanyID())
	assert.Equal(t, "Company #12", s.CompanyName())

	raw, ok, err := kv.Get(ctx, Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":12,"name":"Company #12"}`, raw)

	reloaded, err := Load(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, &ActiveCompany{ID: 12, Name: "Company #12"}, reloaded.Active())

	require.NoError(t, s.SetCompanyID(ctx, 0, "ignored"))
	assert.False(t, s.HasCompany())
	_, ok, err = kv.Get(ctx, Key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetActiveCompanyCopies(t *testing.T) {
	ctx := context.Background()
	s, err := Load(ctx, storage.NewMemory())
	require.NoError(t, err)

	c := &ActiveCompany{ID: 3, Name: "Acme"}
	require.NoError(t, s.SetActiveCompany(ctx, c))
	c.Name = "changed"
	assert.Equal(t, "Acme", s.CompanyName())

	got := s.Active()
	got.ID = 99
	assert.Equal(t, int64(3), s.CompanyID())
}

func TestLoadRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	for name, raw := range map[string]string{
		"not json":      "{oops",
		"array":         `[1,2]`,
		"zero id":       `{"id":0,"name":"x"}`,
		"negative id":   `{"id":-4,"name":"x"}`,
		"fractional id": `{"id":1.5,"name":"x"}`,
		"string id":     `{"id":"1","name":"x"}`,
		"missing name":  `{"id":1}`,
		"numeric name":  `{"id":1,"name":7}`,
	} {
		t.Run(name, func(t *testing.T) {
			kv := storage.NewMemory()
			require.NoError(t, kv.Set(ctx, Key, raw))
			s, err := Load(ctx, kv)
			require.NoError(t, err)
			assert.False(t, s.HasCompany())
		})
	}

	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, Key, `{"id":5,"name":"Norte","extra":true}`))
	s, err := Load(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, &ActiveCompany{ID: 5, Name: "Norte"}, s.Active())
}
