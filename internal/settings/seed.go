package settings

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

// DocumentsFromTOML splits a seed file into JSON documents, one per top-level
// table. Tables must be named after a document; sections that are absent are
// simply not returned.
//
//	[llm]
//	model = "llama-3.3-70b-versatile"
//
//	[voices."en-US".generative]
//	female = "Danielle"
func DocumentsFromTOML(data []byte) (map[string][]byte, error) {
	var tables map[string]any
	if err := toml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	docs := make(map[string][]byte, len(tables))
	for name, table := range tables {
		if !slices.Contains(Documents, name) {
			return nil, fmt.Errorf("unknown settings section %q", name)
		}
		if _, ok := table.(map[string]any); !ok {
			return nil, fmt.Errorf("settings section %q must be a table", name)
		}
		doc, err := json.Marshal(table)
		if err != nil {
			return nil, fmt.Errorf("encoding section %q: %w", name, err)
		}
		docs[name] = doc
	}
	return docs, nil
}
