// Package catalog provides the static department catalog the collector
// iterates over. The data is compiled into the binary; there is nothing to
// load or configure at runtime.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/Zalgo-Dev/WeaRisk/internal/domain"
)

//go:embed departements.json
var departementsJSON []byte

var regions []domain.Region

func init() {
	if err := json.Unmarshal(departementsJSON, &regions); err != nil {
		panic(fmt.Sprintf("catalog: embedded departements.json is invalid: %v", err))
	}
}

// Regions returns every department in catalog order. Callers must treat the
// slice as read-only; it is shared process-wide.
func Regions() []domain.Region {
	return regions
}
