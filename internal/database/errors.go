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
package database

import "fmt"

// ErrConnection represents errors establishing or maintaining the database
// session. Fatal at startup; surfaced whole to the caller elsewhere.
type ErrConnection struct {
	Msg string
	Err error
}

func (e *ErrConnection) Error() string {
	return fmt.Sprintf("database connection error: %s: %v", e.Msg, e.Err)
}

func (e *ErrConnection) Unwrap() error {
	return e.Err
}

// ErrQueryExecution represents a live query that the database rejected.
// The executor converts it into a structured result; it never crosses the
// executor boundary as an error.
type ErrQueryExecution struct {
	Msg string
	Err error
}

func (e *ErrQueryExecution) Error() string {
	return fmt.Sprintf("query execution error: %s: %v", e.Msg, e.Err)
}

func (e *ErrQueryExecution) Unwrap() error {
	return e.Err
}
