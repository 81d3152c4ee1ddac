package featureflag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	f := New([]string{"FEATURE1"})

	t.Run("run if enabled", func(t *testing.T) {
		var runFeature1 bool
		f.IfSet("FEATURE1", func() {
			runFeature1 = true
		})
		require.True(t, runFeature1)

		var runFeature2 bool
		f.IfSet("FEATURE2", func() {
			runFeature2 = true
		})
		require.False(t, runFeature2)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var runFeature1 bool
		f.IfNotSet("FEATURE1", func() {
			runFeature1 = true
		})
		require.False(t, runFeature1)

		var runFeature2 bool
		f.IfNotSet("FEATURE2", func() {
			runFeature2 = true
		})
		require.True(t, runFeature2)
	})
}

func TestFeatureFlagSimulationFlags(t *testing.T) {
	f := New([]string{string(FlagDisableMoveItem), "DISABLE_RESPAWN"})

	var moveItem, respawn, inverseQueries bool
	f.IfNotSet(FlagDisableMoveItem, func() { moveItem = true })
	f.IfNotSet(FlagDisableRespawn, func() { respawn = true })
	f.IfNotSet(FlagDisableInverseQueries, func() { inverseQueries = true })

	require.False(t, moveItem)
	require.False(t, respawn)
	require.True(t, inverseQueries)
}

func TestFeatureFlagNormalizesNames(t *testing.T) {
	f := New([]string{" disable_respawn", "", "  ", "DISABLE_MOVE_ITEM"})

	require.True(t, f.IsSet(FlagDisableRespawn))
	require.True(t, f.IsSet(FlagDisableMoveItem))
	require.False(t, f.IsSet(FlagDisableInverseQueries))
	require.Equal(t, []string{"DISABLE_MOVE_ITEM", "DISABLE_RESPAWN"}, f.List())
}
