package models

import (
	"bytes"
	"encoding/json"
)

// FieldKey names one recognized certificate field.
type FieldKey string

const (
	FieldName          FieldKey = "name"
	FieldCourse        FieldKey = "course"
	FieldCertificateID FieldKey = "certificate_id"
	FieldScore         FieldKey = "score"
	FieldTerm          FieldKey = "term"
	FieldInstitute     FieldKey = "institute"
	FieldRollNo        FieldKey = "roll_no"

	// FieldText is the whole-document text comparison, not an extracted field.
	FieldText FieldKey = "text"
)

// Value is an optional normalized field value. The zero Value is absent.
type Value struct {
	text string
	set  bool
}

// Some returns a present Value.
func Some(s string) Value {
	return Value{text: s, set: true}
}

// None returns an absent Value.
func None() Value {
	return Value{}
}

func (v Value) Get() (string, bool) {
	return v.text, v.set
}

func (v Value) IsSet() bool {
	return v.set
}

// String returns the value, or "" when absent.
func (v Value) String() string {
	return v.text
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.set {
		return []byte("null"), nil
	}
	return json.Marshal(v.text)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Value{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = Some(s)
	return nil
}

// ExtractedFields holds the fields parsed from one document's text.
// It is produced once per document and not modified afterwards.
type ExtractedFields struct {
	Name          Value `json:"name"`
	Course        Value `json:"course"`
	CertificateID Value `json:"certificate_id"`
	Score         Value `json:"score"`
	Term          Value `json:"term"`
	Institute     Value `json:"institute"`
	RollNo        Value `json:"roll_no"`

	// InstituteDefaulted is true when Institute holds the configured
	// fallback rather than text found in the document.
	InstituteDefaulted bool `json:"institute_defaulted"`
}

// Get returns the value stored under key. Unknown keys are absent.
func (f ExtractedFields) Get(key FieldKey) Value {
	switch key {
	case FieldName:
		return f.Name
	case FieldCourse:
		return f.Course
	case FieldCertificateID:
		return f.CertificateID
	case FieldScore:
		return f.Score
	case FieldTerm:
		return f.Term
	case FieldInstitute:
		return f.Institute
	case FieldRollNo:
		return f.RollNo
	}
	return None()
}

// Empty reports whether no field was recognized.
func (f ExtractedFields) Empty() bool {
	for _, v := range []Value{f.Name, f.Course, f.CertificateID, f.Score, f.Term, f.Institute, f.RollNo} {
		if v.IsSet() {
			return false
		}
	}
	return true
}
