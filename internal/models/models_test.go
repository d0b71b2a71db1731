package models

import (
	"strings"
	"testing"
)

func TestParseDocType(t *testing.T) {
	tests := []struct {
		in      string
		want    DocType
		wantErr bool
	}{
		{"regulation", DocTypeRegulation, false},
		{"Regimento", DocTypeRegulation, false},
		{"ata", DocTypeMinutes, false},
		{"PAUTA", DocTypeAgenda, false},
		{"resolução", DocTypeResolution, false},
		{"resolucao", DocTypeResolution, false},
		{"portaria", DocTypeOrdinance, false},
		{" minutes ", DocTypeMinutes, false},
		{"", DocTypeOther, false},
		{"recipe", DocTypeOther, true},
	}
	for _, tt := range tests {
		got, err := ParseDocType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDocType(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseDocType(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestDocTypeValid(t *testing.T) {
	for _, dt := range AllDocTypes {
		if !dt.Valid() {
			t.Errorf("%s should be valid", dt)
		}
	}
	if DocType("recipe").Valid() {
		t.Error("unknown type should be invalid")
	}
	if DocType("").Valid() {
		t.Error("empty type should be invalid")
	}
}

func TestPermissionVisible(t *testing.T) {
	global := &Document{ID: "g", IsGlobal: true}
	alices := &Document{ID: "a", OwnerID: "alice"}
	orphan := &Document{ID: "o"}

	tests := []struct {
		name string
		perm Permission
		doc  *Document
		want bool
	}{
		{"anonymous sees global", Anonymous(), global, true},
		{"anonymous blocked from private", Anonymous(), alices, false},
		{"owner sees own", Permission{UserID: "alice"}, alices, true},
		{"other user blocked", Permission{UserID: "bob"}, alices, false},
		{"admin sees everything", Permission{UserID: "root", Role: RoleAdmin}, alices, true},
		{"user sees global", Permission{UserID: "bob"}, global, true},
		{"nobody owns ownerless private doc", Permission{UserID: "bob"}, orphan, false},
		{"anonymous blocked from ownerless", Anonymous(), orphan, false},
	}
	for _, tt := range tests {
		if got := tt.perm.Visible(tt.doc); got != tt.want {
			t.Errorf("%s: Visible = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSourceCitation(t *testing.T) {
	s := Source{Title: "Regimento Interno", Type: DocTypeRegulation, Similarity: 0.912}
	got := s.Citation()
	if got != "Regimento Interno (regulation, 91.2%)" {
		t.Errorf("Citation() = %q", got)
	}
	if !strings.Contains(got, "%") {
		t.Errorf("citation should show a percentage: %q", got)
	}
}
