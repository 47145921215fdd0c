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

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dbscope/dbscope/internal/database"
)

// snapshotFormatVersion guards against payload layout changes.
const snapshotFormatVersion = 1

type snapshotEnvelope struct {
	Version   int       `json:"version"`
	Signature string    `json:"signature"`
	SavedAt   time.Time `json:"savedAt"`
	Snapshot  *Snapshot `json:"snapshot"`
}

// EncodeSnapshot serializes a snapshot for the cache.
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	env := snapshotEnvelope{
		Version:   snapshotFormatVersion,
		Signature: snap.Signature,
		SavedAt:   time.Now().UTC(),
		Snapshot:  snap,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a cached payload and verifies it belongs to the
// database identified by signature. Any failure returns ErrSnapshotInvalid;
// callers treat it as a cache miss and rebuild.
func DecodeSnapshot(data []byte, signature string) (*Snapshot, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ErrSnapshotInvalid{Msg: "unreadable payload", Err: err}
	}
	if env.Version != snapshotFormatVersion {
		return nil, &ErrSnapshotInvalid{Msg: fmt.Sprintf("format version %d, want %d", env.Version, snapshotFormatVersion)}
	}
	if env.Snapshot == nil {
		return nil, &ErrSnapshotInvalid{Msg: "empty payload"}
	}
	if env.Signature != signature || env.Snapshot.Signature != signature {
		return nil, &ErrSnapshotInvalid{Msg: "signature mismatch: snapshot was built against a different database"}
	}

	snap := env.Snapshot
	if snap.Tables == nil {
		snap.Tables = map[string]*database.TableInfo{}
	}
	if snap.Objects == nil {
		snap.Objects = map[string]*database.CodeObjectInfo{}
	}
	if snap.Types == nil {
		snap.Types = map[string]*database.UserTypeInfo{}
	}
	return snap, nil
}
