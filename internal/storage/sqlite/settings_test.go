package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_ThemeLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewSettings(newTestDB(t))

	theme, err := repo.Theme(ctx)
	require.NoError(t, err)
	assert.Empty(t, theme)

	require.NoError(t, repo.SetTheme(ctx, "astronomy"))

	theme, err = repo.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "astronomy", theme)

	// Overwrite
	require.NoError(t, repo.SetTheme(ctx, "cooking"))
	theme, err = repo.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cooking", theme)

	require.NoError(t, repo.ClearTheme(ctx))
	theme, err = repo.Theme(ctx)
	require.NoError(t, err)
	assert.Empty(t, theme)
}

func TestSettings_ThemeThread(t *testing.T) {
	ctx := context.Background()
	repo := NewSettings(newTestDB(t))

	ref, err := repo.ThemeThread(ctx)
	require.NoError(t, err)
	assert.Empty(t, ref)

	require.NoError(t, repo.SetThemeThread(ctx, "topic-7"))

	ref, err = repo.ThemeThread(ctx)
	require.NoError(t, err)
	assert.Equal(t, "topic-7", ref)
}
