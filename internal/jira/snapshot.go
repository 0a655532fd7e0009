package jira

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// SaveSnapshot persists issues as JSONL, one IssueDTO per line. The file is
// written to a temp path and renamed into place.
func SaveSnapshot(path string, issues []IssueDTO) error {
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	for _, issue := range issues {
		if err := encoder.Encode(issue); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode issue %s: %w", issue.Key, err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}

	log.Info().Str("path", path).Int("count", len(issues)).Msg("Issue snapshot saved")
	return nil
}

// LoadSnapshot reads a JSONL snapshot written by SaveSnapshot. Invalid lines are skipped.
func LoadSnapshot(path string) ([]IssueDTO, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	var issues []IssueDTO
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var issue IssueDTO
		if err := json.Unmarshal(scanner.Bytes(), &issue); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping invalid JSON line in snapshot")
			continue
		}
		issues = append(issues, issue)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading snapshot: %w", err)
	}

	log.Info().Str("path", path).Int("count", len(issues)).Msg("Loaded issues from snapshot")
	return issues, nil
}
