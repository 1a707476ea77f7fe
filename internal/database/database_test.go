// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mreyes/mailfold/internal/config"
	"github.com/mreyes/mailfold/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(&config.DatabaseConfig{Path: ":memory:", BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

func mustCreateGroup(t *testing.T, db *DB, name string) *models.ContactGroup {
	t.Helper()
	g := &models.ContactGroup{Name: name}
	if err := db.CreateGroup(context.Background(), g); err != nil {
		t.Fatalf("CreateGroup(%s): %v", name, err)
	}
	return g
}

func mustCreateContact(t *testing.T, db *DB, email string, groupID *string, active bool) *models.Contact {
	t.Helper()
	c := &models.Contact{Email: email, GroupID: groupID, IsActive: active}
	if err := db.CreateContact(context.Background(), c); err != nil {
		t.Fatalf("CreateContact(%s): %v", email, err)
	}
	return c
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestContactCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	c := mustCreateContact(t, db, "Ada@Example.com", nil, true)
	if c.Email != "ada@example.com" {
		t.Errorf("expected lowercased email, got %q", c.Email)
	}

	got, err := db.GetContact(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if got.Email != "ada@example.com" {
		t.Errorf("unexpected email %q", got.Email)
	}

	byEmail, err := db.GetContactByEmail(ctx, "ADA@example.com")
	if err != nil {
		t.Fatalf("GetContactByEmail: %v", err)
	}
	if byEmail.ID != c.ID {
		t.Error("case-insensitive lookup returned wrong contact")
	}

	got.FirstName = "Ada"
	got.IsActive = false
	if err := db.UpdateContact(ctx, got); err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}
	updated, _ := db.GetContact(ctx, c.ID)
	if updated.FirstName != "Ada" || updated.IsActive {
		t.Errorf("update not applied: %+v", updated)
	}

	if err := db.DeleteContact(ctx, c.ID); err != nil {
		t.Fatalf("DeleteContact: %v", err)
	}
	if _, err := db.GetContact(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCreateContactDuplicateEmail(t *testing.T) {
	db := newTestDB(t)

	mustCreateContact(t, db, "dup@example.com", nil, true)

	err := db.CreateContact(context.Background(), &models.Contact{Email: "DUP@example.com"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestListContactsFilters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	g := mustCreateGroup(t, db, "Customers")
	mustCreateContact(t, db, "alice@example.com", &g.ID, true)
	mustCreateContact(t, db, "bob@example.com", &g.ID, false)
	mustCreateContact(t, db, "carol@other.org", nil, true)

	all, total, err := db.ListContacts(ctx, ContactFilter{Limit: 10})
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if total != 3 || len(all) != 3 {
		t.Errorf("expected 3 contacts, got total=%d len=%d", total, len(all))
	}

	active, total, err := db.ListContacts(ctx, ContactFilter{ActiveOnly: true, Limit: 10})
	if err != nil {
		t.Fatalf("ListContacts active: %v", err)
	}
	if total != 2 || len(active) != 2 {
		t.Errorf("expected 2 active contacts, got total=%d len=%d", total, len(active))
	}

	grouped, _, err := db.ListContacts(ctx, ContactFilter{GroupID: g.ID, Limit: 10})
	if err != nil {
		t.Fatalf("ListContacts group: %v", err)
	}
	if len(grouped) != 2 {
		t.Errorf("expected 2 group contacts, got %d", len(grouped))
	}

	searched, _, err := db.ListContacts(ctx, ContactFilter{Search: "carol", Limit: 10})
	if err != nil {
		t.Fatalf("ListContacts search: %v", err)
	}
	if len(searched) != 1 || searched[0].Email != "carol@other.org" {
		t.Errorf("unexpected search result: %+v", searched)
	}

	paged, total, err := db.ListContacts(ctx, ContactFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListContacts paged: %v", err)
	}
	if total != 3 || len(paged) != 1 {
		t.Errorf("expected page of 1 with total 3, got total=%d len=%d", total, len(paged))
	}
}

func TestGroupCRUDAndMembership(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	g := mustCreateGroup(t, db, "Newsletter")
	mustCreateContact(t, db, "member@example.com", &g.ID, true)

	got, err := db.GetGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if got.ContactCount != 1 {
		t.Errorf("expected contact count 1, got %d", got.ContactCount)
	}

	if err := db.CreateGroup(ctx, &models.ContactGroup{Name: "Newsletter"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for duplicate group name, got %v", err)
	}

	got.Description = "Monthly digest"
	if err := db.UpdateGroup(ctx, got); err != nil {
		t.Fatalf("UpdateGroup: %v", err)
	}

	groups, err := db.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 1 || groups[0].Description != "Monthly digest" {
		t.Errorf("unexpected groups: %+v", groups)
	}

	members, err := db.GroupContacts(ctx, g.ID)
	if err != nil {
		t.Fatalf("GroupContacts: %v", err)
	}
	if len(members) != 1 {
		t.Errorf("expected 1 member, got %d", len(members))
	}
}

func TestDeleteGroupKeepsContacts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	g := mustCreateGroup(t, db, "Doomed")
	c := mustCreateContact(t, db, "keep@example.com", &g.ID, true)

	if err := db.DeleteGroup(ctx, g.ID); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}

	got, err := db.GetContact(ctx, c.ID)
	if err != nil {
		t.Fatalf("contact should survive group deletion: %v", err)
	}
	if got.GroupID != nil {
		t.Errorf("expected group_id cleared, got %v", *got.GroupID)
	}
}

func TestUnassignContactFromGroup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	g := mustCreateGroup(t, db, "Bulk")
	a := mustCreateContact(t, db, "a@example.com", &g.ID, true)
	b := mustCreateContact(t, db, "b@example.com", &g.ID, true)

	if err := db.UnassignContactFromGroup(ctx, g.ID, a.ID); err != nil {
		t.Fatalf("UnassignContactFromGroup: %v", err)
	}

	got, _ := db.GetGroup(ctx, g.ID)
	if got.ContactCount != 1 {
		t.Errorf("expected 1 remaining member, got count %d", got.ContactCount)
	}

	// a is now detached; unassigning again reports not found.
	if err := db.UnassignContactFromGroup(ctx, g.ID, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for detached contact, got %v", err)
	}

	other := mustCreateGroup(t, db, "Other")
	if err := db.UnassignContactFromGroup(ctx, other.ID, b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for wrong group, got %v", err)
	}
}

func TestGroupMemberEmails(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	g1 := mustCreateGroup(t, db, "One")
	g2 := mustCreateGroup(t, db, "Two")
	mustCreateContact(t, db, "a@example.com", &g1.ID, true)
	mustCreateContact(t, db, "b@example.com", &g2.ID, true)
	mustCreateContact(t, db, "inactive@example.com", &g1.ID, false)

	emails, err := db.GroupMemberEmails(ctx, []string{g1.ID, g2.ID})
	if err != nil {
		t.Fatalf("GroupMemberEmails: %v", err)
	}
	if len(emails) != 2 {
		t.Fatalf("expected 2 active member emails, got %v", emails)
	}
	if emails[0] != "a@example.com" || emails[1] != "b@example.com" {
		t.Errorf("unexpected emails: %v", emails)
	}

	none, err := db.GroupMemberEmails(ctx, nil)
	if err != nil || none != nil {
		t.Errorf("expected nil for empty group list, got %v %v", none, err)
	}
}

func TestTemplateCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tmpl := &models.EmailTemplate{
		Name:     "Welcome",
		Subject:  "Hello {{first_name}}",
		BodyHTML: "<p>Welcome aboard</p>",
		IsActive: true,
	}
	if err := db.CreateTemplate(ctx, tmpl); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}

	got, err := db.GetTemplate(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if got.Subject != "Hello {{first_name}}" {
		t.Errorf("unexpected subject %q", got.Subject)
	}

	got.IsActive = false
	if err := db.UpdateTemplate(ctx, got); err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}

	activeOnly, err := db.ListTemplates(ctx, true)
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	if len(activeOnly) != 0 {
		t.Errorf("expected no active templates, got %d", len(activeOnly))
	}

	if err := db.DeleteTemplate(ctx, tmpl.ID); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	if _, err := db.GetTemplate(ctx, tmpl.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
