// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

// Package importer ingests contacts from uploaded CSV files.
package importer

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mreyes/mailfold/internal/database"
	"github.com/mreyes/mailfold/internal/logging"
	"github.com/mreyes/mailfold/internal/mailer"
	"github.com/mreyes/mailfold/internal/metrics"
	"github.com/mreyes/mailfold/internal/models"
)

// utf8BOM is stripped from the start of uploaded files when present.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ContactStore is the storage surface the importer needs.
type ContactStore interface {
	GetContactByEmail(ctx context.Context, email string) (*models.Contact, error)
	CreateContact(ctx context.Context, contact *models.Contact) error
	GetGroupByName(ctx context.Context, name string) (*models.ContactGroup, error)
	CreateGroup(ctx context.Context, group *models.ContactGroup) error
}

// Importer parses CSV files and creates the contacts they describe.
type Importer struct {
	store ContactStore
}

// NewImporter creates a CSV contact importer.
func NewImporter(store ContactStore) *Importer {
	return &Importer{store: store}
}

// columnIndexes maps the recognized header names to their positions.
type columnIndexes struct {
	email     int
	firstName int
	lastName  int
	group     int
}

// Import reads a CSV from r and creates contacts. The header row must
// contain an "email" column; "first_name", "last_name", and "group" are
// optional (header match is case-insensitive). Rows whose email already
// exists are skipped, invalid rows are reported in Errors with their
// 1-based row number (the header is row 1).
func (i *Importer) Import(ctx context.Context, r io.Reader) (*models.ImportResult, error) {
	start := time.Now()

	reader := csv.NewReader(stripBOM(r))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	result := &models.ImportResult{}
	groupCache := make(map[string]string) // group name -> ID

	for rowNum := 2; ; rowNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}

		if err := i.importRow(ctx, record, cols, groupCache, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
		}
	}

	duration := time.Since(start)
	metrics.RecordImport(result.Imported, result.Skipped, len(result.Errors), duration)
	logging.Info().
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Dur("duration", duration).
		Msg("CSV import completed")

	return result, nil
}

// importRow creates one contact from a CSV record. Existing emails count
// as skipped, not as errors.
func (i *Importer) importRow(ctx context.Context, record []string, cols columnIndexes, groupCache map[string]string, result *models.ImportResult) error {
	email := strings.ToLower(strings.TrimSpace(field(record, cols.email)))
	if email == "" {
		return errors.New("missing email")
	}
	if err := mailer.ValidateEmail(email); err != nil {
		return fmt.Errorf("invalid email %q", email)
	}

	if _, err := i.store.GetContactByEmail(ctx, email); err == nil {
		result.Skipped++
		return nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	contact := &models.Contact{
		Email:     email,
		FirstName: strings.TrimSpace(field(record, cols.firstName)),
		LastName:  strings.TrimSpace(field(record, cols.lastName)),
		IsActive:  true,
	}

	if groupName := strings.TrimSpace(field(record, cols.group)); groupName != "" {
		groupID, err := i.resolveGroup(ctx, groupName, groupCache)
		if err != nil {
			return err
		}
		contact.GroupID = &groupID
	}

	if err := i.store.CreateContact(ctx, contact); err != nil {
		// Duplicate insert races with the lookup above; treat it as skipped.
		if errors.Is(err, database.ErrDuplicate) {
			result.Skipped++
			return nil
		}
		return err
	}

	result.Imported++
	return nil
}

// resolveGroup returns the ID of the named group, creating it on first use.
func (i *Importer) resolveGroup(ctx context.Context, name string, cache map[string]string) (string, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}

	group, err := i.store.GetGroupByName(ctx, name)
	if err == nil {
		cache[name] = group.ID
		return group.ID, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return "", err
	}

	created := &models.ContactGroup{Name: name}
	if err := i.store.CreateGroup(ctx, created); err != nil {
		return "", err
	}
	cache[name] = created.ID
	return created.ID, nil
}

// mapColumns locates the recognized columns in the header row.
func mapColumns(header []string) (columnIndexes, error) {
	cols := columnIndexes{email: -1, firstName: -1, lastName: -1, group: -1}
	for idx, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "email":
			cols.email = idx
		case "first_name":
			cols.firstName = idx
		case "last_name":
			cols.lastName = idx
		case "group":
			cols.group = idx
		}
	}
	if cols.email == -1 {
		return cols, errors.New(`csv header must contain an "email" column`)
	}
	return cols, nil
}

// field returns record[idx], tolerating short rows and unmapped columns.
func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// stripBOM removes a leading UTF-8 byte order mark.
func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(len(utf8BOM)); err == nil && string(lead) == string(utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
