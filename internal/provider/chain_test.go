package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shortsget/shortsget/internal/config"
)

func chainNames(providers []Provider) []string {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	return names
}

func TestChainDefaultOrderWithKey(t *testing.T) {
	cfg := &config.Config{
		ProviderTimeout: time.Second,
		RapidAPI:        config.RapidAPI{Key: "secret"},
	}

	names := chainNames(Chain(cfg))

	// yt-dlp only joins when the binary is installed, so assert on the
	// stable prefix instead of the full list.
	assert.GreaterOrEqual(t, len(names), 3)
	assert.Equal(t, []string{"rapidapi", "cobalt", "yt1s"}, names[:3])
}

func TestChainSkipsRapidAPIWithoutKey(t *testing.T) {
	cfg := &config.Config{ProviderTimeout: time.Second}

	names := chainNames(Chain(cfg))
	assert.NotContains(t, names, "rapidapi")
	assert.Equal(t, "cobalt", names[0])
}

func TestChainHonorsConfiguredOrder(t *testing.T) {
	cfg := &config.Config{
		ProviderTimeout: time.Second,
		RapidAPI:        config.RapidAPI{Key: "secret"},
		Providers:       []string{"yt1s", "rapidapi"},
	}

	assert.Equal(t, []string{"yt1s", "rapidapi"}, chainNames(Chain(cfg)))
}

func TestChainIgnoresUnknownNames(t *testing.T) {
	cfg := &config.Config{
		ProviderTimeout: time.Second,
		Providers:       []string{"nonsense", "cobalt"},
	}

	assert.Equal(t, []string{"cobalt"}, chainNames(Chain(cfg)))
}

