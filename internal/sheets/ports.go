package sheets

import (
	"context"

	"mahjong/internal/core"
)

// RecordExporter mirrors records into an external spreadsheet, one row per
// record keyed by id.
type RecordExporter interface {
	// UpsertRecord writes r over its existing row or appends a new one.
	UpsertRecord(ctx context.Context, r core.Record) error
	// DeleteRecord clears the row of id. Unknown ids are not an error.
	DeleteRecord(ctx context.Context, id string) error
}
