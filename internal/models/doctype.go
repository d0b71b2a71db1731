package models

import (
	"fmt"
	"strings"
)

// DocType classifies institutional documents. The set is closed; anything
// unrecognized maps to DocTypeOther.
type DocType string

const (
	DocTypeRegulation DocType = "regulation"
	DocTypeMinutes    DocType = "minutes"
	DocTypeAgenda     DocType = "agenda"
	DocTypeResolution DocType = "resolution"
	DocTypeOrdinance  DocType = "ordinance"
	DocTypeOther      DocType = "other"
)

// AllDocTypes lists every valid document type.
var AllDocTypes = []DocType{
	DocTypeRegulation,
	DocTypeMinutes,
	DocTypeAgenda,
	DocTypeResolution,
	DocTypeOrdinance,
	DocTypeOther,
}

// ParseDocType maps a string to a DocType. Portuguese corpus names are
// accepted alongside the canonical English tags.
func ParseDocType(s string) (DocType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "regulation", "regimento", "bylaw":
		return DocTypeRegulation, nil
	case "minutes", "ata":
		return DocTypeMinutes, nil
	case "agenda", "pauta":
		return DocTypeAgenda, nil
	case "resolution", "resolucao", "resolução":
		return DocTypeResolution, nil
	case "ordinance", "portaria":
		return DocTypeOrdinance, nil
	case "other", "":
		return DocTypeOther, nil
	}
	return DocTypeOther, fmt.Errorf("unknown document type: %q", s)
}

// Valid reports whether t is one of the closed set of document types.
func (t DocType) Valid() bool {
	switch t {
	case DocTypeRegulation, DocTypeMinutes, DocTypeAgenda, DocTypeResolution, DocTypeOrdinance, DocTypeOther:
		return true
	}
	return false
}

func (t DocType) String() string {
	return string(t)
}
