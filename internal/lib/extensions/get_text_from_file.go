package extensions

import (
	"fmt"
	"os"
	"strings"
)

// GetTextFromFile extracts text from file without surrounding whitespace
func GetTextFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("extensions.GetTextFromFile: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
