package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithRunIdentifierStoresTrimmedValue(t *testing.T) {
	accessor := NewCommandContextAccessor()
	enriched := accessor.WithRunIdentifier(context.Background(), "  run-42 ")

	runIdentifier, exists := accessor.RunIdentifier(enriched)
	require.True(t, exists)
	require.Equal(t, "run-42", runIdentifier)
}

func TestWithRunIdentifierSkipsEmptyValues(t *testing.T) {
	accessor := NewCommandContextAccessor()
	enriched := accessor.WithRunIdentifier(context.Background(), "   ")

	_, exists := accessor.RunIdentifier(enriched)
	require.False(t, exists)
}

func TestWithConfigurationFilePathStoresValue(t *testing.T) {
	accessor := NewCommandContextAccessor()
	enriched := accessor.WithConfigurationFilePath(context.Background(), "/tmp/config.yaml")

	configurationFilePath, exists := accessor.ConfigurationFilePath(enriched)
	require.True(t, exists)
	require.Equal(t, "/tmp/config.yaml", configurationFilePath)
}

func TestAccessorHandlesMissingContextValues(t *testing.T) {
	accessor := NewCommandContextAccessor()

	_, runIdentifierExists := accessor.RunIdentifier(context.Background())
	require.False(t, runIdentifierExists)

	_, configurationExists := accessor.ConfigurationFilePath(context.Background())
	require.False(t, configurationExists)
}
