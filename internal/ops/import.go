package ops

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hpungsan/tagline/internal/config"
	"github.com/hpungsan/tagline/internal/db"
	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/sentence"
)

// ImportMode controls how invalid records are handled.
type ImportMode string

const (
	ImportModeError ImportMode = "error" // import nothing if any record is invalid
	ImportModeSkip  ImportMode = "skip"  // import valid records, report the rest
)

// maxImportLine bounds a single JSONL record.
const maxImportLine = 1 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	IDs      []int64       `json:"ids"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes a rejected line.
type ImportError struct {
	Line    int    `json:"line"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Import reads sentences from a JSONL file. Each line is
// {"text", "entities"?, "isTreated"?}; entities may use the object form or
// the [start,end,label] training form, so training exports re-import.
// Export header lines and ids are ignored; sentences get new ids.
func Import(ctx context.Context, database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeSkip {
		return nil, errors.NewInvalidRequest("mode must be one of: error, skip")
	}
	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	records, importErrors := parseImportFile(file)

	out := &ImportOutput{IDs: []int64{}, Errors: importErrors}
	if out.Errors == nil {
		out.Errors = []ImportError{}
	}
	if input.Mode == ImportModeError && len(importErrors) > 0 {
		out.Skipped = len(records) + len(importErrors)
		return out, nil
	}
	out.Skipped = len(importErrors)

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rec := range records {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("import")
		}
		if err := db.Insert(ctx, tx, rec); err != nil {
			return nil, err
		}
		out.IDs = append(out.IDs, rec.ID)
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	out.Imported = len(out.IDs)
	return out, nil
}

// parseImportFile decodes and validates every line.
func parseImportFile(r io.Reader) ([]*sentence.Sentence, []ImportError) {
	var (
		records []*sentence.Sentence
		errs    []ImportError
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxImportLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec sentence.ImportRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			errs = append(errs, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if rec.TaglineExport {
			continue
		}

		s, err := prepareCreate(CreateInput{
			Text:      rec.Text,
			Entities:  rec.Entities,
			IsTreated: rec.IsTreated,
		})
		if err != nil {
			msg := err.Error()
			if tErr, ok := errors.As(err); ok {
				msg = tErr.Message
			}
			errs = append(errs, ImportError{
				Line:    lineNum,
				Code:    "INVALID_RECORD",
				Message: msg,
			})
			continue
		}
		records = append(records, s)
	}

	if err := scanner.Err(); err != nil {
		errs = append(errs, ImportError{
			Line:    lineNum + 1,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, errs
}
