// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloudstore persists save blobs (the byte stream save.Save writes)
// to DynamoDB, keyed by session id and tick (spec §4.O names cloud
// persistence as an external concern; this core's own scope stops at
// producing/consuming the byte stream). Grounded on the teacher's
// cloud/db/dynamodb.go: guregu/dynamo's Table wrapping the low-level
// dynamodb.DynamoDB client, Put/Scan/Get as the only three access
// patterns a save needs.
package cloudstore

import (
	"context"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/guregu/dynamo"

	"github.com/duskward/legion/save"
)

// Record is one save blob's row. Tick is the sort key, so ReadLatest can
// ask Dynamo for the highest tick without scanning the whole session.
type Record struct {
	SessionID string `dynamo:"session_id,hash"`
	Tick      uint32 `dynamo:"tick,range"`
	SavedAt   int64  `dynamo:"saved_at"`
	Data      []byte `dynamo:"data"`
}

// Store wraps a single Dynamo table of save blobs, mirroring
// DynamoDBDatabase's one-struct-per-table shape rather than exposing the
// raw dynamo.Table to callers.
type Store struct {
	table dynamo.Table
}

// New constructs a Store against "<prefix>-saves", matching the teacher's
// own NewDynamoDBDatabase wiring: a raw dynamodb.DynamoDB client handed to
// dynamo.NewFromIface rather than dynamo.New's session-only constructor.
// sess is the caller's own AWS session; region/credentials are an
// operational concern this package takes no opinion on.
func New(sess *session.Session, tablePrefix string) *Store {
	svc := dynamodb.New(sess)
	db := dynamo.NewFromIface(svc)
	return &Store{table: db.Table(tablePrefix + "-saves")}
}

// Put writes one save blob. The caller has already produced data via
// save.Save into a bytes.Buffer; Put does not itself know the save-stream
// format, only that it is an opaque blob keyed by session+tick. h supplies
// the session id and tick so callers don't restate them.
func (s *Store) Put(ctx context.Context, h save.Header, savedAt int64, data []byte) error {
	rec := Record{SessionID: headerSessionID(h), Tick: uint32(h.Tick), SavedAt: savedAt, Data: data}
	return s.table.Put(rec).RunWithContext(ctx)
}

// ReadLatest returns the highest-tick save blob recorded for sessionID, or
// save.ErrMalformed-free io.EOF-style "not found" behavior via dynamo's own
// dynamo.ErrNotFound.
func (s *Store) ReadLatest(ctx context.Context, sessionID string) (Record, error) {
	var rec Record
	err := s.table.Get("session_id", sessionID).Order(dynamo.Descending).Limit(1).OneWithContext(ctx, &rec)
	return rec, err
}

// ReadAll returns every save blob recorded for sessionID, oldest first,
// mirroring ReadScoresByType/ReadServersByRegion's Get-then-Iter pattern.
func (s *Store) ReadAll(ctx context.Context, sessionID string) ([]Record, error) {
	var recs []Record
	itr := s.table.Get("session_id", sessionID).Order(dynamo.Ascending).Iter()
	for {
		var rec Record
		if !itr.NextWithContext(ctx, &rec) {
			return recs, itr.Err()
		}
		recs = append(recs, rec)
	}
}

// headerSessionID is a small helper so callers threading a save.Header
// through Put don't need to format the uuid.UUID themselves.
func headerSessionID(h save.Header) string {
	return h.SessionID.String()
}
