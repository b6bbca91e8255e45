package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmespath/go-jmespath"
)

// extractResultURL evaluates expr against a JSON upload response and returns
// the string it selects.
func extractResultURL(body, expr string) (string, error) {
	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return "", fmt.Errorf("upload response is not JSON: %w", err)
	}
	v, err := jmespath.Search(expr, doc)
	if err != nil {
		return "", fmt.Errorf("evaluate %q: %w", expr, err)
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("expression %q selected %v", expr, v)
	}
	return s, nil
}
