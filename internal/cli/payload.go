package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-freightsync/query"
)

// readPayload decodes a YAML (or JSON) document from path, "-" being stdin.
// The document goes through JSON so references accept both the id and the
// populated form.
func readPayload[T any](path string, stdin io.Reader) (T, error) {
	var out T

	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return out, fmt.Errorf("read payload: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return out, fmt.Errorf("decode payload %s: %w", path, err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return out, fmt.Errorf("encode payload %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode payload %s: %w", path, err)
	}
	return out, nil
}

// parseFilters turns "key=value" pairs into filters. Comma separated values
// become lists; "key=" clears the filter.
func parseFilters(pairs []string) (query.FilterState, error) {
	filters := query.FilterState{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, want key=value", pair)
		}
		if strings.Contains(value, ",") {
			filters[key] = strings.Split(value, ",")
			continue
		}
		filters[key] = value
	}
	return filters, nil
}
