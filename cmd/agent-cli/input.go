package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
)

const maxInputBytes = 1 << 20 // 1MB

// readRequest decodes the --input value: inline JSON, @path relative to the working directory, or - for stdin.
// An empty value is an empty request.
func readRequest(input string, stdin io.Reader) (interfaces.Request, error) {
	input = strings.TrimSpace(input)

	var data []byte
	switch {
	case input == "":
		return interfaces.Request{}, nil
	case input == "-":
		b, err := io.ReadAll(io.LimitReader(stdin, maxInputBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		data = b
	case strings.HasPrefix(input, "@"):
		b, err := readLocalFile(strings.TrimPrefix(input, "@"))
		if err != nil {
			return nil, err
		}
		data = b
	default:
		data = []byte(input)
	}

	var req interfaces.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid --input JSON: %w", err)
	}
	if req == nil {
		req = interfaces.Request{}
	}
	return req, nil
}

// readLocalFile is scoped to the current directory to prevent path traversal
func readLocalFile(path string) ([]byte, error) {
	root, err := os.OpenRoot(".")
	if err != nil {
		return nil, fmt.Errorf("failed to open current directory: %w", err)
	}
	defer func() { _ = root.Close() }()

	f, err := root.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open --input file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxInputBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read --input file %s: %w", path, err)
	}
	return data, nil
}
