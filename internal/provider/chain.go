package provider

import (
	"github.com/shortsget/shortsget/internal/config"
)

// Chain builds the ordered adapter list from config. Order encodes
// observed reliability; adapters missing their prerequisites (API key,
// local binary) are left out rather than failing at resolve time.
func Chain(cfg *config.Config) []Provider {
	available := map[string]func() (Provider, bool){
		"rapidapi": func() (Provider, bool) {
			if cfg.RapidAPI.Key == "" {
				return nil, false
			}
			return NewRapidAPI(cfg.RapidAPI.Key, cfg.RapidAPI.Host, cfg.ProviderTimeout), true
		},
		"cobalt": func() (Provider, bool) {
			return NewCobalt(cfg.CobaltURL, cfg.ProviderTimeout), true
		},
		"yt1s": func() (Provider, bool) {
			return NewConvert(cfg.ProviderTimeout), true
		},
		"yt-dlp": func() (Provider, bool) {
			if !YtdlpAvailable() {
				return nil, false
			}
			return NewYtdlp(), true
		},
	}

	order := cfg.Providers
	if len(order) == 0 {
		order = []string{"rapidapi", "cobalt", "yt1s", "yt-dlp"}
	}

	var chain []Provider
	for _, name := range order {
		build, ok := available[name]
		if !ok {
			continue
		}
		if p, enabled := build(); enabled {
			chain = append(chain, p)
		}
	}
	return chain
}
