/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package utils

import (
	"fmt"
	"os"
	"strings"
)

// ReadStatementsFromFile loads SQL statements from a file. Statements are
// split on semicolons at line ends; blank statements are dropped.
func ReadStatementsFromFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var statements []string
	for _, stmt := range strings.Split(string(content), ";\n") {
		trimmed := strings.TrimSpace(stmt)
		trimmed = strings.TrimSuffix(trimmed, ";")
		if trimmed != "" {
			statements = append(statements, trimmed)
		}
	}
	return statements, nil
}

// WriteOutput writes content to a file, or to stdout when path is empty.
func WriteOutput(content, path string) error {
	if path == "" {
		fmt.Print(content)
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", path, err)
	}
	fmt.Printf("Output written to: %s\n", path)
	return nil
}
