// Package demux splits inbound usage files between the two licensing
// systems: transactions for licences issued by LITE are projected to JSON,
// everything else is re-emitted as a CHIEF file for onward delivery.
package demux

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"chiefgate/internal/chief"
	"chiefgate/internal/domain"
)

// Payloads reports whether a licence reference was issued through this
// gateway. Payload existence, not the id-mapping table, decides routing:
// a LITE licence whose id mapping is absent still belongs to LITE and
// projects with a null id.
type Payloads interface {
	GetByReference(ctx context.Context, reference string) (*domain.LicencePayload, error)
}

// Mappings resolves CHIEF identifiers for the JSON projection and records
// which transactions were routed to LITE.
type Mappings interface {
	chief.Resolver
	UpsertTransactionMapping(ctx context.Context, mapping domain.TransactionMapping) error
}

type Demux struct {
	Payloads Payloads
	Mappings Mappings
}

// Split is the outcome of demultiplexing one usage file. Either half may be
// empty; a file with no transactions at all still produces a valid Split so
// the mail can be acknowledged.
type Split struct {
	File *chief.File

	// LiteFile holds the LITE transactions as a tree; nil when the file
	// carries none.
	LiteFile *chief.File

	// Lite is the JSON projection of the LITE transactions. Nil when the
	// file carries none.
	Lite        *chief.LiteUsagePayload
	LiteRefs    []string
	HasLiteData bool

	// SpireText is the re-emitted file holding only the remaining
	// transactions, run number preserved from the input.
	SpireText    string
	HasSpireData bool
}

// Run parses a usageData file and partitions its transactions by whether a
// LicencePayload exists for the licence reference. Run has no side effects;
// mappings are written separately once the usage record exists.
func (d *Demux) Run(ctx context.Context, text string) (*Split, error) {
	file, err := chief.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse usage file: %w", err)
	}
	if file.DataID() != "usageData" {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownExtract, file.DataID())
	}

	known := map[string]bool{}
	for _, tx := range file.Transactions {
		ref := tx.LicenceRef()
		if _, seen := known[ref]; seen {
			continue
		}
		_, err := d.Payloads.GetByReference(ctx, ref)
		switch {
		case err == nil:
			known[ref] = true
		case errors.Is(err, domain.ErrNotFound):
			known[ref] = false
		default:
			return nil, fmt.Errorf("resolve licence %s: %w", ref, err)
		}
	}

	kept, dropped := chief.Partition(file, func(ref string) bool {
		return known[ref]
	})

	split := &Split{File: file}
	if len(kept.Transactions) > 0 {
		split.HasLiteData = true
		split.LiteFile = kept
		split.Lite = chief.ProjectJSON(kept, d.Mappings)
		for _, tx := range kept.Transactions {
			split.LiteRefs = append(split.LiteRefs, tx.LicenceRef())
		}
	}
	if len(dropped.Transactions) > 0 {
		spireText, err := dropped.Render()
		if err != nil {
			return nil, fmt.Errorf("re-emit remainder: %w", err)
		}
		split.HasSpireData = true
		split.SpireText = spireText
	}
	return split, nil
}

// RecordMappings upserts one TransactionMapping per usage line of every
// LITE transaction, keyed by (licence reference, line number, usage-data
// id), for reply correlation.
func (d *Demux) RecordMappings(ctx context.Context, split *Split, usageDataID int64) error {
	if !split.HasLiteData {
		return nil
	}
	for _, tx := range split.LiteFile.Transactions {
		for _, line := range tx.Children {
			if line.Record.Type != chief.TypeLine {
				continue
			}
			lineNumber, err := strconv.Atoi(line.Record.Field(chief.LineNum))
			if err != nil {
				continue
			}
			mapping := domain.TransactionMapping{
				Reference:        tx.LicenceRef(),
				LineNumber:       lineNumber,
				UsageDataID:      usageDataID,
				UsageTransaction: tx.TransactionRef(),
			}
			if err := d.Mappings.UpsertTransactionMapping(ctx, mapping); err != nil {
				return fmt.Errorf("record transaction mapping: %w", err)
			}
		}
	}
	return nil
}
