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
package schema

import "fmt"

// ErrExtraction represents a failed snapshot build.
type ErrExtraction struct {
	Msg string
	Err error
}

func (e *ErrExtraction) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("schema extraction error: %s", e.Msg)
	}
	return fmt.Sprintf("schema extraction error: %s: %v", e.Msg, e.Err)
}

func (e *ErrExtraction) Unwrap() error {
	return e.Err
}

// ErrRebuildInProgress is returned when a rebuild is requested while another
// rebuild is still running.
type ErrRebuildInProgress struct{}

func (e *ErrRebuildInProgress) Error() string {
	return "a schema rebuild is already in progress"
}

// ErrCancelled represents an operation cut short by its context.
type ErrCancelled struct {
	Msg string
	Err error
}

func (e *ErrCancelled) Error() string {
	return fmt.Sprintf("operation cancelled: %s: %v", e.Msg, e.Err)
}

func (e *ErrCancelled) Unwrap() error {
	return e.Err
}

// ErrSnapshotInvalid marks a cached payload that cannot be used: wrong
// format, wrong version or built against a different database.
type ErrSnapshotInvalid struct {
	Msg string
	Err error
}

func (e *ErrSnapshotInvalid) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid cached snapshot: %s", e.Msg)
	}
	return fmt.Sprintf("invalid cached snapshot: %s: %v", e.Msg, e.Err)
}

func (e *ErrSnapshotInvalid) Unwrap() error {
	return e.Err
}
