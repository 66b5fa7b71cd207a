package progress

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

type catalogFile struct {
	Achievements []struct {
		ID          string  `toml:"id"`
		Name        string  `toml:"name"`
		Description string  `toml:"description"`
		Metric      string  `toml:"metric"`
		Threshold   float64 `toml:"threshold"`
	} `toml:"achievement"`
}

// LoadCatalog reads an achievement catalog from a TOML file:
//
//	[[achievement]]
//	id = "wpm_500"
//	name = "Speed Reader"
//	metric = "best_wpm"
//	threshold = 500
//
// An empty path returns DefaultCatalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	var file catalogFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to decode achievement catalog: %w", err)
	}
	if len(file.Achievements) == 0 {
		return nil, fmt.Errorf("achievement catalog %s is empty", path)
	}

	catalog := make(Catalog, 0, len(file.Achievements))
	for _, a := range file.Achievements {
		catalog = append(catalog, Rule{
			ID:          a.ID,
			Name:        a.Name,
			Description: a.Description,
			Metric:      Metric(a.Metric),
			Threshold:   a.Threshold,
		})
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}
