package domain

import "strings"

// Supplier is identified by its tax id; two suppliers with the same tax id are the same supplier.
type Supplier struct {
	TaxID     string `json:"taxId"`
	LegalName string `json:"legalName"`
	Contact   string `json:"contact,omitempty"`
}

func (s *Supplier) Valid() bool {
	return s != nil && strings.TrimSpace(s.TaxID) != ""
}

func (s *Supplier) Equal(other *Supplier) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.TaxID == other.TaxID
}

func (s *Supplier) Clone() *Supplier {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func (s Supplier) String() string {
	return s.LegalName + " (tax id: " + s.TaxID + ")"
}
